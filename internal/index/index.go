// Package index builds configured prefix trees and shares them between
// goroutines.
package index

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/google/go-symtrie/internal/config"
	"github.com/google/go-symtrie/prefixtree"
)

// New builds the tree described by cfg.
func New(cfg config.IndexConfig, logger *zap.Logger) (prefixtree.Index, error) {
	opts := []prefixtree.Option{prefixtree.WithLogger(logger)}
	if cfg.Name != "" {
		opts = append(opts, prefixtree.WithName(cfg.Name))
	}
	switch cfg.Kind {
	case config.KindSparse, "":
		return prefixtree.NewSparse(opts...), nil
	case config.KindDense:
		tree, err := prefixtree.NewDense(cfg.Degree, cfg.Alphabet, opts...)
		if err != nil {
			return nil, errors.Wrap(err, "building dense index")
		}
		return tree, nil
	default:
		return nil, errors.Errorf("unknown index kind %q", cfg.Kind)
	}
}

const (
	resultOK      = "ok"
	resultAbsent  = "absent"
	resultInvalid = "invalid"
)

// Guarded serializes access to an Index and instruments it.
type Guarded struct {
	mu   sync.Mutex
	idx  prefixtree.Index
	ops  *prometheus.CounterVec
	size prometheus.Gauge
}

var _ prefixtree.Index = (*Guarded)(nil)

// NewGuarded wraps idx.  If reg is non-nil, the wrapper's metrics are
// registered with it.
func NewGuarded(idx prefixtree.Index, reg prometheus.Registerer) (*Guarded, error) {
	labels := prometheus.Labels{"index": idx.Name()}
	g := &Guarded{
		idx: idx,
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "symtrie_operations_total",
			Help:        "Index operations by kind and result.",
			ConstLabels: labels,
		}, []string{"op", "result"}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "symtrie_sequences",
			Help:        "Number of sequences stored in the index.",
			ConstLabels: labels,
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{g.ops, g.size} {
			if err := reg.Register(c); err != nil {
				return nil, errors.Wrap(err, "registering index metrics")
			}
		}
	}
	g.size.Set(float64(idx.Len()))
	return g, nil
}

func (g *Guarded) observe(op string, ok bool, failed string) {
	result := resultOK
	if !ok {
		result = failed
	}
	g.ops.WithLabelValues(op, result).Inc()
}

func (g *Guarded) Name() string {
	return g.idx.Name()
}

func (g *Guarded) Insert(seq string, data any) error {
	_, err := g.Store(seq, data)
	return err
}

// Store inserts seq and returns the data stored for it, under one lock.
func (g *Guarded) Store(seq string, data any) (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	stored, err := g.idx.Store(seq, data)
	g.observe("insert", err == nil, resultInvalid)
	g.size.Set(float64(g.idx.Len()))
	return stored, err
}

func (g *Guarded) Search(seq string) (any, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	data, ok := g.idx.Search(seq)
	g.observe("search", ok, resultAbsent)
	return data, ok
}

func (g *Guarded) Update(seq string, data any) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	ok := g.idx.Update(seq, data)
	g.observe("update", ok, resultAbsent)
	return ok
}

func (g *Guarded) Delete(seq string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	ok := g.idx.Delete(seq)
	g.observe("delete", ok, resultAbsent)
	g.size.Set(float64(g.idx.Len()))
	return ok
}

// Validate does not take the lock: prefixtree trees validate against their
// immutable Indexer only.
func (g *Guarded) Validate(seq string) error {
	return g.idx.Validate(seq)
}

func (g *Guarded) Trace(seq string) []prefixtree.Step {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observe("trace", true, "")
	return g.idx.Trace(seq)
}

func (g *Guarded) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.idx.Len()
}

func (g *Guarded) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.idx.Clear()
	g.observe("clear", true, "")
	g.size.Set(0)
}
