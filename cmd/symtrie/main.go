// Binary symtrie builds prefix-tree indexes of symbol sequences, queries
// them and serves them over HTTP.
//
// The input file holds one sequence per line, optionally followed by a tab
// and a data value.  E.g., a plain word list such as
// `curl -o words.txt https://raw.githubusercontent.com/dwyl/english-words/a77cb15f4f5beb59c15b945f2415328a6b33c3b0/words.txt`.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/google/go-symtrie/internal/config"
	"github.com/google/go-symtrie/internal/index"
	"github.com/google/go-symtrie/internal/logging"
	"github.com/google/go-symtrie/pkg/bulkload"
	"github.com/google/go-symtrie/prefixtree"
)

// app carries state shared by every subcommand.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	log     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}
	rootCmd := &cobra.Command{
		Use:           "symtrie",
		Short:         "symtrie indexes symbol sequences in a prefix tree",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "path to a YAML config file")
	flags.String("log-level", "INFO", "log level: DEBUG, INFO, WARN or ERROR")
	flags.String("kind", config.KindSparse, `index kind: "sparse" or "dense"`)
	flags.Int("degree", 0, "slot count of a dense index")
	flags.String("alphabet", "", "symbols of a dense index, in slot order; empty for digits")
	flags.Uint("batch-size", 5000, "lines per bulk-load batch")
	flags.Uint("concurrency", 1, "parallel parse workers for bulk loading")
	flags.Bool("skip-invalid", false, "skip lines with invalid sequences instead of failing")
	flags.Bool("normalize", false, "NFC-normalize sequences before loading")
	for key, flag := range map[string]string{
		"log.level":         "log-level",
		"index.kind":        "kind",
		"index.degree":      "degree",
		"index.alphabet":    "alphabet",
		"load.batch_size":   "batch-size",
		"load.concurrency":  "concurrency",
		"load.skip_invalid": "skip-invalid",
		"load.normalize":    "normalize",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(a.loadCmd(), a.queryCmd(), a.serveCmd())
	return rootCmd
}

func (a *app) setup() error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, logger
	return nil
}

// build returns an empty guarded index as configured, registering its
// metrics with reg if reg is non-nil.
func (a *app) build(reg prometheus.Registerer) (*index.Guarded, error) {
	idx, err := index.New(a.cfg.Index, a.log)
	if err != nil {
		return nil, err
	}
	return index.NewGuarded(idx, reg)
}

// load bulk loads the file at path into idx.
func (a *app) load(ctx context.Context, path string, idx prefixtree.Index) (*bulkload.Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	lc := a.cfg.Load
	stats, err := bulkload.Load(ctx, f, idx,
		bulkload.BatchSize(lc.BatchSize),
		bulkload.Concurrency(lc.Concurrency),
		bulkload.InputBufferSize(lc.BufferSize),
		bulkload.MaxLineBytes(lc.MaxLineBytes),
		bulkload.SkipInvalid(lc.SkipInvalid),
		bulkload.NormalizeNFC(lc.Normalize),
		bulkload.Logger(a.log),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", path)
	}
	a.log.Info("loaded",
		zap.String("file", path),
		zap.Int("inserted", stats.Inserted),
		zap.Int("rejected", stats.Rejected),
		zap.Duration("wall_time", stats.WallDuration))
	return stats, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "symtrie: %v\n", err)
		os.Exit(1)
	}
}
