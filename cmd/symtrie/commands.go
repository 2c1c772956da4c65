package main

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/google/go-symtrie/internal/server"
	"github.com/google/go-symtrie/prefixtree"
)

func (a *app) loadCmd() *cobra.Command {
	var queries []string
	cmd := &cobra.Command{
		Use:   "load FILE",
		Short: "Load a sequence file and report loader performance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := a.build(nil)
			if err != nil {
				return err
			}
			stats, err := a.load(cmd.Context(), args[0], idx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, stats)
			printQueries(out, idx, queries)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&queries, "query", nil, "sequences to look up after loading")
	return cmd
}

func (a *app) queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query FILE SEQ...",
		Short: "Load a sequence file and look up sequences in it",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := a.build(nil)
			if err != nil {
				return err
			}
			if _, err := a.load(cmd.Context(), args[0], idx); err != nil {
				return err
			}
			printQueries(cmd.OutOrStdout(), idx, args[1:])
			return nil
		},
	}
}

func (a *app) serveCmd() *cobra.Command {
	var preload string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an index over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := prometheus.NewRegistry()
			idx, err := a.build(reg)
			if err != nil {
				return err
			}
			if preload != "" {
				if _, err := a.load(cmd.Context(), preload, idx); err != nil {
					return err
				}
			}
			return server.New(idx, reg, a.log, a.cfg.Server).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&preload, "preload", "", "sequence file to load before serving")
	cmd.Flags().String("addr", "localhost:8080", "address to listen on")
	if err := a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr")); err != nil {
		panic(err)
	}
	return cmd
}

func printQueries(w io.Writer, idx prefixtree.Index, queries []string) {
	for _, q := range queries {
		if data, ok := idx.Search(q); ok {
			fmt.Fprintf(w, "%s\t%v\n", q, data)
		} else {
			fmt.Fprintf(w, "%s\tabsent\n", q)
		}
	}
}
