/*
	Copyright 2023 Google Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

		https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

// Package bulkload loads sequence files into a prefix tree.
//
// # Input format
//
// Input is line-oriented text.  Each line holds one sequence, optionally
// followed by a tab and a data value:
//
//	cacao
//	cake	42
//	cat	feline
//
// Leading and trailing whitespace is trimmed from each line; blank lines and
// lines starting with '#' are skipped.  A data value that parses as a base-10
// integer is stored as an int, and any other data value is stored as a
// string.  Sequences without a data value are stored with the target's next
// auto-generated index.
//
// # Stages
//
// Loading runs as a three-stage pipeline.  A reader stage splits the input
// into batches of lines; a parse stage, which may run with any
// `Concurrency`, splits each line and validates its sequence against the
// target; and a single insert stage applies batches to the target.  The
// insert stage applies batches in input order, even when parsing completes
// out of order, so the auto-generated indices of a concurrent load match
// those of a serial one.  Only the insert stage mutates the target, so a
// prefixtree.Tree needs no locking while being loaded.
//
// The parse stage must be able to call Validate concurrently with the insert
// stage's calls to Insert.  prefixtree.Tree satisfies this, since Validate
// reads only the tree's immutable Indexer.
//
// The Stats returned by Load report the time spent in each stage, and are
// the best guide to tuning `BatchSize`, `Concurrency` and `InputBufferSize`.
package bulkload

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
)

// Target receives the sequences read by Load.
type Target interface {
	Insert(seq string, data any) error
	Validate(seq string) error
}

// rawLine is an unparsed input line and its 1-based line number.
type rawLine struct {
	number int
	text   string
}

type entry struct {
	line int
	seq  string
	data any
}

// batch is the work item moving through the pipeline.
type batch struct {
	ordinal  uint64
	lines    []rawLine
	entries  []entry
	skipped  int
	rejected int
}

// StageMetrics defines a set of performance metrics collected for a
// particular stage instance.
type StageMetrics struct {
	StageName                   string
	StageInstance               uint
	WorkDuration, StageDuration time.Duration
	Items                       uint
}

func (sm *StageMetrics) label() string {
	return fmt.Sprintf("%s (%d)", sm.StageName, sm.StageInstance)
}

func (sm *StageMetrics) detailRow(labelCols int) string {
	if sm.Items > 0 {
		formatStr := fmt.Sprintf("%%-%ds: %%d batches, total %%s, work %%s (%%s/batch)", labelCols)
		return fmt.Sprintf(formatStr,
			sm.label(),
			sm.Items,
			sm.StageDuration,
			sm.WorkDuration, sm.WorkDuration/time.Duration(sm.Items),
		)
	}
	formatStr := fmt.Sprintf("%%-%ds: 0 batches, total %%s", labelCols)
	return fmt.Sprintf(formatStr, sm.label(), sm.StageDuration)
}

// Stats summarizes a Load.
type Stats struct {
	// Lines is the number of input lines read.
	Lines int
	// Inserted is the number of sequences inserted into the target.
	Inserted int
	// Skipped is the number of blank and comment lines.
	Skipped int
	// Rejected is the number of lines skipped for invalid sequences.
	Rejected int
	// Batches is the number of batches inserted.
	Batches      int
	WallDuration time.Duration
	// StageMetrics holds, for each stage in order, one entry per stage
	// instance.
	StageMetrics [][]*StageMetrics
}

func (s *Stats) String() string {
	if s == nil {
		return ""
	}
	labelCols := 0
	for _, stage := range s.StageMetrics {
		for _, sm := range stage {
			if l := len(sm.label()); l > labelCols {
				labelCols = l
			}
		}
	}
	ret := []string{
		fmt.Sprintf("Load wall time: %s", s.WallDuration),
		fmt.Sprintf("  %d lines: %d inserted, %d skipped, %d rejected, in %d batches",
			s.Lines, s.Inserted, s.Skipped, s.Rejected, s.Batches),
	}
	for _, stage := range s.StageMetrics {
		for _, sm := range stage {
			ret = append(ret, "  "+sm.detailRow(labelCols))
		}
	}
	return strings.Join(ret, "\n")
}

// parseLine splits an input line into its sequence and data.  ok is false for
// blank and comment lines.
func parseLine(text string) (seq string, data any, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" || strings.HasPrefix(text, "#") {
		return "", nil, false
	}
	seq, raw, found := strings.Cut(text, "\t")
	if !found {
		return seq, nil, true
	}
	seq = strings.TrimSpace(seq)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return seq, nil, true
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return seq, n, true
	}
	return seq, raw, true
}

type loader struct {
	opts *options
	dst  Target
}

// Load reads sequences from r and inserts them into dst.  It returns when r is
// exhausted, when a line cannot be loaded, or when ctx is done.  The returned
// Stats are valid even when an error is returned.
func Load(ctx context.Context, r io.Reader, dst Target, optFns ...OptionFn) (*Stats, error) {
	opts, err := buildOptions(optFns...)
	if err != nil {
		return nil, err
	}
	l := &loader{opts: opts, dst: dst}
	return l.run(ctx, r)
}

// outputChannelCloser returns a function to be invoked by each of instances
// goroutines when it is done writing to ch; the last such invocation closes
// ch.
func outputChannelCloser[T any](ch chan T, instances uint) func() {
	var mu sync.Mutex
	return func() {
		mu.Lock()
		defer mu.Unlock()
		instances--
		if instances == 0 {
			close(ch)
		}
	}
}

func (l *loader) run(ctx context.Context, r io.Reader) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}
	eg, ctx := errgroup.WithContext(ctx)
	rawCh := make(chan *batch, l.opts.inputBufferSize)
	parsedCh := make(chan *batch, l.opts.inputBufferSize)

	readMetrics := &StageMetrics{StageName: "read"}
	eg.Go(func() error {
		defer close(rawCh)
		return l.read(ctx, r, rawCh, readMetrics)
	})

	parseMetrics := make([]*StageMetrics, l.opts.concurrency)
	closeParsed := outputChannelCloser(parsedCh, l.opts.concurrency)
	for i := range parseMetrics {
		sm := &StageMetrics{StageName: "parse", StageInstance: uint(i)}
		parseMetrics[i] = sm
		eg.Go(func() error {
			defer closeParsed()
			return l.parse(ctx, rawCh, parsedCh, sm)
		})
	}

	insertMetrics := &StageMetrics{StageName: "insert"}
	eg.Go(func() error {
		return l.insert(ctx, parsedCh, stats, insertMetrics)
	})

	err := eg.Wait()
	stats.WallDuration = time.Since(start)
	stats.StageMetrics = [][]*StageMetrics{{readMetrics}, parseMetrics, {insertMetrics}}
	if err != nil {
		l.opts.logger.Warn("load failed", zap.Error(err), zap.Int("inserted", stats.Inserted))
		return stats, err
	}
	l.opts.logger.Info("load complete",
		zap.Int("lines", stats.Lines),
		zap.Int("inserted", stats.Inserted),
		zap.Int("rejected", stats.Rejected),
		zap.Duration("wall", stats.WallDuration),
	)
	return stats, nil
}

// send places b on out, unless ctx is done first.
func send(ctx context.Context, out chan<- *batch, b *batch) error {
	select {
	case out <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// read splits r into batches of lines and sends them, in order, on out.
func (l *loader) read(ctx context.Context, r io.Reader, out chan<- *batch, sm *StageMetrics) error {
	start := time.Now()
	var blocked time.Duration
	defer func() {
		sm.StageDuration = time.Since(start)
		sm.WorkDuration = sm.StageDuration - blocked
	}()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(64*1024, int(l.opts.maxLineBytes))), int(l.opts.maxLineBytes))
	emit := func(b *batch) error {
		sendStart := time.Now()
		err := send(ctx, out, b)
		blocked += time.Since(sendStart)
		sm.Items++
		return err
	}
	var ordinal uint64
	cur := &batch{ordinal: ordinal}
	number := 0
	for scanner.Scan() {
		number++
		cur.lines = append(cur.lines, rawLine{number: number, text: scanner.Text()})
		if uint(len(cur.lines)) == l.opts.batchSize {
			if err := emit(cur); err != nil {
				return err
			}
			ordinal++
			cur = &batch{ordinal: ordinal}
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "reading line %d", number+1)
	}
	if len(cur.lines) > 0 {
		return emit(cur)
	}
	return nil
}

// parse turns raw lines into validated entries.
func (l *loader) parse(ctx context.Context, in <-chan *batch, out chan<- *batch, sm *StageMetrics) error {
	start := time.Now()
	defer func() {
		sm.StageDuration = time.Since(start)
	}()
	for b := range in {
		workStart := time.Now()
		if err := l.parseBatch(b); err != nil {
			return err
		}
		sm.WorkDuration += time.Since(workStart)
		sm.Items++
		if err := send(ctx, out, b); err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) parseBatch(b *batch) error {
	b.entries = make([]entry, 0, len(b.lines))
	for _, line := range b.lines {
		seq, data, ok := parseLine(line.text)
		if !ok {
			b.skipped++
			continue
		}
		if l.opts.normalize {
			seq = norm.NFC.String(seq)
		}
		if err := l.dst.Validate(seq); err != nil {
			if !l.opts.skipInvalid {
				return errors.Wrapf(err, "line %d", line.number)
			}
			b.rejected++
			l.opts.logger.Warn("skipping line", zap.Int("line", line.number), zap.Error(err))
			continue
		}
		b.entries = append(b.entries, entry{line: line.number, seq: seq, data: data})
	}
	b.lines = nil
	return nil
}

// insert applies batches to the target in ordinal order, holding back any
// batch that arrives ahead of its predecessors.
func (l *loader) insert(ctx context.Context, in <-chan *batch, stats *Stats, sm *StageMetrics) error {
	start := time.Now()
	defer func() {
		sm.StageDuration = time.Since(start)
	}()
	pending := map[uint64]*batch{}
	var next uint64
	for b := range in {
		pending[b.ordinal] = b
		for {
			nb, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if err := ctx.Err(); err != nil {
				return err
			}
			workStart := time.Now()
			for _, e := range nb.entries {
				if err := l.dst.Insert(e.seq, e.data); err != nil {
					return errors.Wrapf(err, "line %d", e.line)
				}
				stats.Inserted++
			}
			sm.WorkDuration += time.Since(workStart)
			sm.Items++
			stats.Batches++
			stats.Lines += len(nb.entries) + nb.skipped + nb.rejected
			stats.Skipped += nb.skipped
			stats.Rejected += nb.rejected
			l.opts.logger.Debug("batch loaded",
				zap.Uint64("batch", nb.ordinal),
				zap.Int("entries", len(nb.entries)),
			)
		}
	}
	return nil
}
