// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package record holds the postal-code reference data that queries
// run against: immutable records of named scalar fields,
// and the dataset that contains them.
package record

import (
	"iter"

	"github.com/valyala/fastjson"
	"rsc.io/omap"
)

// A Record is an immutable set of named field values.
// Looking up a field the record does not have yields an absent [Value].
// The zero Record has no fields.
// Records are safe for concurrent use.
type Record struct {
	fields *omap.Map[string, Value]
}

// New returns a record holding the given fields.
// Absent values are dropped.
func New(fields map[string]Value) Record {
	m := new(omap.Map[string, Value])
	for name, v := range fields {
		if !v.IsAbsent() {
			m.Set(name, v)
		}
	}
	return Record{fields: m}
}

// Get returns the value of the named field.
func (r Record) Get(name string) Value {
	if r.fields == nil {
		return Value{}
	}
	v, _ := r.fields.Get(name)
	return v
}

// All returns an iterator over the fields of r in name order.
func (r Record) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if r.fields == nil {
			return
		}
		for name, v := range r.fields.All() {
			if !yield(name, v) {
				return
			}
		}
	}
}

// With returns a copy of r with the named field set to v.
// If v is absent, the field is removed.
// r itself is unchanged.
func (r Record) With(name string, v Value) Record {
	m := new(omap.Map[string, Value])
	for n, fv := range r.All() {
		m.Set(n, fv)
	}
	if v.IsAbsent() {
		m.Delete(name)
	} else {
		m.Set(name, v)
	}
	return Record{fields: m}
}

// MarshalJSON encodes r as a JSON object.
func (r Record) MarshalJSON() ([]byte, error) {
	var a fastjson.Arena
	return r.jsonValue(&a).MarshalTo(nil), nil
}

// jsonValue returns r as a JSON object allocated in a.
func (r Record) jsonValue(a *fastjson.Arena) *fastjson.Value {
	obj := a.NewObject()
	for name, v := range r.All() {
		switch v.Kind() {
		case KindString:
			obj.Set(name, a.NewString(v.Str()))
		case KindNumber:
			obj.Set(name, a.NewNumberString(formatNumber(v.Num())))
		}
	}
	return obj
}

// AppendJSON appends the JSON array encoding of rs to dst.
// A nil or empty rs encodes as [].
func AppendJSON(dst []byte, rs []Record) []byte {
	var a fastjson.Arena
	arr := a.NewArray()
	for i, r := range rs {
		arr.SetArrayItem(i, r.jsonValue(&a))
	}
	return arr.MarshalTo(dst)
}
