// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"iter"
	"slices"
)

// A Dataset is an ordered, immutable collection of records.
// It is built once, normally by [LoadFile], and then shared
// read-only by all queries.
type Dataset struct {
	records []Record
}

// NewDataset returns a dataset holding rs in order.
// The dataset keeps its own copy of the slice.
func NewDataset(rs ...Record) *Dataset {
	return &Dataset{records: slices.Clone(rs)}
}

// Len returns the number of records in d.
func (d *Dataset) Len() int {
	return len(d.records)
}

// At returns the i'th record of d.
func (d *Dataset) At(i int) Record {
	return d.records[i]
}

// All returns an iterator over the records of d and their indexes,
// in order.
func (d *Dataset) All() iter.Seq2[int, Record] {
	return slices.All(d.records)
}

// Range returns an iterator over the records d[lo:hi], in order.
func (d *Dataset) Range(lo, hi int) iter.Seq[Record] {
	return slices.Values(d.records[lo:hi])
}
