// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"strconv"
)

// A Kind is the kind of a [Value].
type Kind int8

const (
	KindAbsent Kind = iota // missing or empty field
	KindString
	KindNumber
)

var kindStrings = [...]string{
	KindAbsent: "absent",
	KindString: "string",
	KindNumber: "number",
}

func (k Kind) String() string {
	return kindStrings[k]
}

// A Value is the value of a single record field.
// It is a string, a number, or absent.
// The zero Value is absent.
type Value struct {
	kind Kind
	str  string
	num  float64
}

// StringValue returns a string [Value].
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// NumberValue returns a number [Value].
func NumberValue(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Kind returns the kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether v is absent.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Str returns the string held by v, or "" if v is not a string.
func (v Value) Str() string { return v.str }

// Num returns the number held by v, or 0 if v is not a number.
func (v Value) Num() float64 { return v.num }

// Equal reports whether v and w have the same kind and value.
// Values of different kinds are never equal.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == w.str
	case KindNumber:
		return v.num == w.num
	}
	return true
}

// String returns a readable form of v: a quoted string,
// a number, or "absent".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindNumber:
		return formatNumber(v.num)
	}
	return "absent"
}

// formatNumber formats f in its shortest exact form.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
