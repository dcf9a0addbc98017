// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package query

import (
	"strings"

	"golang.org/x/zipquery/internal/record"
)

// Evaluator returns a function that reports whether a record
// matches e. The expression is compiled once, so the returned
// function is the efficient way to test many records.
// A nil Expr matches every record.
//
// Evaluation never fails. A comparison against an absent field
// is false whatever the operator. A comparison between a field
// and a literal of different types is false, except that !=
// is true. Ordering operators only compare numbers, and the
// string match operators only match strings.
//
// The returned function is safe for concurrent use.
func Evaluator(e Expr) func(record.Record) bool {
	if e == nil {
		return func(record.Record) bool { return true }
	}
	return compile(e)
}

// Eval reports whether the record r matches e.
// See [Evaluator] for the evaluation rules.
func Eval(e Expr, r record.Record) bool {
	return Evaluator(e)(r)
}

// compile returns an evaluator function for an [Expr].
func compile(e Expr) func(record.Record) bool {
	switch e := e.(type) {
	case *logicalExpr:
		return logical(e)
	case *notExpr:
		sub := compile(e.expr)
		return func(r record.Record) bool {
			return !sub(r)
		}
	case *comparisonExpr:
		return comparison(e)
	case *existsExpr:
		field := e.field
		return func(r record.Record) bool {
			return !r.Get(field).IsAbsent()
		}
	default:
		panic("can't happen")
	}
}

// logical returns an evaluator function for a [logicalExpr].
// The arguments are evaluated in order, stopping as soon
// as the result is known.
func logical(e *logicalExpr) func(record.Record) bool {
	args := make([]func(record.Record) bool, len(e.args))
	for i, arg := range e.args {
		args[i] = compile(arg)
	}
	switch e.op {
	case tokenAnd:
		return func(r record.Record) bool {
			for _, arg := range args {
				if !arg(r) {
					return false
				}
			}
			return true
		}
	case tokenOr:
		return func(r record.Record) bool {
			for _, arg := range args {
				if arg(r) {
					return true
				}
			}
			return false
		}
	default:
		panic("can't happen")
	}
}

// comparison returns an evaluator function for a [comparisonExpr].
func comparison(e *comparisonExpr) func(record.Record) bool {
	match := valueMatcher(e.op, e.lit)
	if match == nil {
		return alwaysFalse
	}
	field := e.field
	return func(r record.Record) bool {
		v := r.Get(field)
		if v.IsAbsent() {
			return false
		}
		return match(v)
	}
}

// valueMatcher returns a function that reports whether
// a present field value v satisfies "v op lit".
// It returns nil if no value can satisfy it.
func valueMatcher(op tokenKind, lit record.Value) func(record.Value) bool {
	switch op {
	case tokenEquals:
		return lit.Equal
	case tokenNotEquals:
		return func(v record.Value) bool { return !lit.Equal(v) }

	case tokenLessThan, tokenLessThanEquals, tokenGreaterThan, tokenGreaterThanEquals:
		if lit.Kind() != record.KindNumber {
			return nil
		}
		less := numberOrder(op, lit.Num())
		return func(v record.Value) bool {
			return v.Kind() == record.KindNumber && less(v.Num())
		}

	case tokenContains, tokenStartsWith, tokenEndsWith:
		if lit.Kind() != record.KindString {
			return nil
		}
		match := stringMatch(op, lit.Str())
		return func(v record.Value) bool {
			return v.Kind() == record.KindString && match(v.Str())
		}

	case tokenContainsFold, tokenStartsWithFold, tokenEndsWithFold:
		if lit.Kind() != record.KindString {
			return nil
		}
		match := stringMatch(op, strings.ToLower(lit.Str()))
		return func(v record.Value) bool {
			return v.Kind() == record.KindString && match(strings.ToLower(v.Str()))
		}

	default:
		panic("can't happen")
	}
}

// numberOrder returns a function that reports whether "x op n" holds.
func numberOrder(op tokenKind, n float64) func(x float64) bool {
	switch op {
	case tokenLessThan:
		return func(x float64) bool { return x < n }
	case tokenLessThanEquals:
		return func(x float64) bool { return x <= n }
	case tokenGreaterThan:
		return func(x float64) bool { return x > n }
	case tokenGreaterThanEquals:
		return func(x float64) bool { return x >= n }
	default:
		panic("can't happen")
	}
}

// stringMatch returns a function that reports whether
// s contains, starts with, or ends with lit.
func stringMatch(op tokenKind, lit string) func(s string) bool {
	switch op {
	case tokenContains, tokenContainsFold:
		return func(s string) bool { return strings.Contains(s, lit) }
	case tokenStartsWith, tokenStartsWithFold:
		return func(s string) bool { return strings.HasPrefix(s, lit) }
	case tokenEndsWith, tokenEndsWithFold:
		return func(s string) bool { return strings.HasSuffix(s, lit) }
	default:
		panic("can't happen")
	}
}

// alwaysFalse is an evaluator function that never matches.
func alwaysFalse(record.Record) bool { return false }
