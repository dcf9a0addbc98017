// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Zipquery runs a single filter query against a dataset of
// zip code records and prints the matching records as JSON.
//
// Usage:
//
//	zipquery [--data file] [--parallel n] [--trace] [-v] QUERY
//	zipquery parse [--trace] QUERY
//
// For example:
//
//	zipquery --data zips.json.gz '.state == "ME" && .estimated_population > 14000'
//
// The parse subcommand prints the parsed form of QUERY without
// loading any data. The --trace flag writes a parser trace to
// standard error.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/zipquery/internal/query"
	"golang.org/x/zipquery/internal/record"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "zipquery: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// rootOptions holds the flags of all commands.
type rootOptions struct {
	data     string
	parallel int
	trace    bool
	verbose  bool
}

// newRootCommand returns the zipquery command.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "zipquery [flags] QUERY",
		Short: "Filter zip code records",
		Long: `Zipquery loads a JSON array of zip code records, keeps those
matching QUERY and prints them as a JSON array.

A query compares fields with literals, as in
  .zip == "01001"
  .primary_city == "Boston" || .acceptable_cities *== '|Boston|'
  .estimated_population > 14000 && .state == "ME"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, args[0])
		},
	}

	cmd.PersistentFlags().BoolVar(&opts.trace, "trace", false, "write a parser trace to standard error")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log progress to standard error")
	cmd.Flags().StringVar(&opts.data, "data", "zips.json", "dataset file (.json, .json.gz or .json.zst)")
	cmd.Flags().IntVar(&opts.parallel, "parallel", runtime.GOMAXPROCS(0), "goroutines used to evaluate the query")

	cmd.AddCommand(newParseCommand(opts))
	return cmd
}

// newParseCommand returns the parse subcommand.
func newParseCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "parse QUERY",
		Short:         "Print the parsed form of a query",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := parse(cmd.ErrOrStderr(), opts, args[0])
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), e.String())
			return err
		},
	}
}

func runQuery(cmd *cobra.Command, opts *rootOptions, q string) error {
	// Parse before loading, so that a bad query fails fast.
	e, err := parse(cmd.ErrOrStderr(), opts, q)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	lg := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	data, err := record.LoadFile(lg, opts.data)
	if err != nil {
		return err
	}
	rs, err := query.FilterParallel(cmd.Context(), e, data, opts.parallel)
	if err != nil {
		return err
	}
	lg.Debug("query done", "query", q, "matches", len(rs))

	out := record.AppendJSON(nil, rs)
	out = append(out, '\n')
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

// parse parses q, tracing to w if requested.
func parse(w io.Writer, opts *rootOptions, q string) (query.Expr, error) {
	if opts.trace {
		return query.ParseTrace(q, w)
	}
	return query.Parse(q)
}
