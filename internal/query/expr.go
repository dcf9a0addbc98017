// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package query

import (
	"io"

	"golang.org/x/zipquery/internal/record"
)

// Expr is the parsed AST of a query expression.
// An Expr is immutable once parsed.
type Expr interface {
	queryExpr() // not used; restricts Expr to types defined here.

	String() string       // returns a multi-line string representation
	print(io.Writer, int) // used for String
}

// logicalExpr is a conjunction or disjunction of two or more expressions.
type logicalExpr struct {
	op   tokenKind // either tokenAnd or tokenOr
	args []Expr    // at least two, evaluated in order
	pos  Position  // position of the first operator
}

// notExpr is a negation.
type notExpr struct {
	expr Expr
	pos  Position // position of the ! or NOT
}

// comparisonExpr compares a record field with a literal.
type comparisonExpr struct {
	op    tokenKind    // tokenEquals, tokenLessThan, tokenContains, and so forth
	field string       // field name, without the leading dot
	lit   record.Value // a string or a number, never absent
	pos   Position     // position of op
}

// existsExpr is a field reference that is not compared with anything.
// It matches records in which the field is present.
type existsExpr struct {
	field string
	pos   Position
}

// Indicate that all expression types implement [Expr].

func (*logicalExpr) queryExpr()    {}
func (*notExpr) queryExpr()        {}
func (*comparisonExpr) queryExpr() {}
func (*existsExpr) queryExpr()     {}
