// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package query

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"
	"golang.org/x/zipquery/internal/record"
)

// Filter returns the records of d that match e, in dataset order.
// The result is never nil.
func Filter(e Expr, d *record.Dataset) []record.Record {
	return filterRange(Evaluator(e), d, 0, d.Len())
}

// Run parses q and returns the records of d that match it.
// If q does not parse, Run returns a [*SyntaxError]
// and no records.
func Run(q string, d *record.Dataset) ([]record.Record, error) {
	e, err := Parse(q)
	if err != nil {
		return nil, err
	}
	return Filter(e, d), nil
}

// minShard is the smallest number of records
// worth evaluating in a separate goroutine.
const minShard = 1024

// FilterParallel is like [Filter], but splits d into up to shards
// contiguous ranges and evaluates them concurrently.
// The shard results are concatenated in dataset order, so the
// result is the same as that of Filter.
// FilterParallel returns early with ctx's error if ctx is canceled.
func FilterParallel(ctx context.Context, e Expr, d *record.Dataset, shards int) ([]record.Record, error) {
	n := d.Len()
	shards = min(shards, (n+minShard-1)/minShard)
	if shards <= 1 {
		return Filter(e, d), nil
	}

	match := Evaluator(e)
	size := (n + shards - 1) / shards
	results := make([][]record.Record, shards)
	g, ctx := errgroup.WithContext(ctx)
	for i := range shards {
		lo := min(i*size, n)
		hi := min(lo+size, n)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = filterRange(match, d, lo, hi)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := slices.Concat(results...)
	if out == nil {
		out = []record.Record{}
	}
	return out, nil
}

// filterRange returns the records of d[lo:hi] for which match is true.
func filterRange(match func(record.Record) bool, d *record.Dataset, lo, hi int) []record.Record {
	out := []record.Record{}
	for r := range d.Range(lo, hi) {
		if match(r) {
			out = append(out, r)
		}
	}
	return out
}
