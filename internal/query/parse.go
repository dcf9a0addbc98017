// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package query

import (
	"fmt"
	"io"
	"strconv"

	"golang.org/x/zipquery/internal/record"
)

// A SyntaxError reports a query that does not conform to the grammar.
// It is the only kind of error returned by [Parse].
type SyntaxError struct {
	Pos Position // position of the offending token
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// syntaxErrorf returns a *SyntaxError at pos.
func syntaxErrorf(pos Position, format string, args ...any) error {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Parse parses a query expression into an [Expr].
// Any error is a [*SyntaxError].
//
//	query = or ;
func Parse(q string) (Expr, error) {
	return parse(newLexer(q))
}

// ParseTrace is like [Parse], but also writes a trace
// of the parser's progress to w.
func ParseTrace(q string, w io.Writer) (Expr, error) {
	lex := newLexer(q)
	lex.w = w
	return parse(lex)
}

func parse(lex *lexer) (Expr, error) {
	tok := lex.nextToken()
	if tok.kind == tokenEOF {
		return nil, syntaxErrorf(tok.pos, "empty query")
	}
	lex.pushToken(tok)

	expr, err := parseOr(lex)
	if err != nil {
		return nil, err
	}

	tok = lex.nextToken()
	switch tok.kind {
	case tokenEOF:
		return expr, nil
	case tokenInvalidInput:
		return nil, syntaxErrorf(tok.pos, "%s", tok.val)
	case tokenRparen:
		return nil, syntaxErrorf(tok.pos, "unbalanced right parenthesis")
	default:
		return nil, syntaxErrorf(tok.pos, "unexpected %s after expression", tok.describe())
	}
}

// parseOr parses a disjunction.
//
//	or = and, { ( "||" | "OR" ), and } ;
func parseOr(lex *lexer) (e Expr, err error) {
	fn := lex.trace("Or")
	defer func() { fn(e, err) }()
	return parseJunction(lex, tokenOr, parseAnd)
}

// parseAnd parses a conjunction.
//
//	and = unary, { ( "&&" | "AND" ), unary } ;
func parseAnd(lex *lexer) (e Expr, err error) {
	fn := lex.trace("And")
	defer func() { fn(e, err) }()
	return parseJunction(lex, tokenAnd, parseUnary)
}

// parseJunction parses an AND or OR sequence.
// A sequence of one element is returned as that element;
// longer sequences become a single [logicalExpr].
func parseJunction(lex *lexer, kind tokenKind, parseElement func(lex *lexer) (Expr, error)) (e Expr, err error) {
	sub, err := parseElement(lex)
	if err != nil {
		return nil, err
	}

	var pos Position
	args := []Expr{sub}
	for {
		tok := lex.nextToken()
		if tok.kind != kind {
			lex.pushToken(tok)
			break
		}
		if len(args) == 1 {
			pos = tok.pos
		}

		rsub, err := parseElement(lex)
		if err != nil {
			return nil, err
		}
		args = append(args, rsub)
	}

	if len(args) == 1 {
		return sub, nil
	}
	return &logicalExpr{op: kind, args: args, pos: pos}, nil
}

// parseUnary parses a negation, a parenthesized expression,
// or a comparison.
//
//	unary = ( "!" | "NOT" ), unary
//	      | "(", or, ")"
//	      | comparison
//	      ;
func parseUnary(lex *lexer) (e Expr, err error) {
	fn := lex.trace("Unary")
	defer func() { fn(e, err) }()

	tok := lex.nextToken()
	switch tok.kind {
	case tokenNot:
		sub, err := parseUnary(lex)
		if err != nil {
			return nil, err
		}
		return &notExpr{expr: sub, pos: tok.pos}, nil

	case tokenLparen:
		return parseParenthesized(lex, tok)

	case tokenField:
		return parseComparison(lex, tok)

	case tokenInvalidInput:
		return nil, syntaxErrorf(tok.pos, "%s", tok.val)

	case tokenEOF:
		return nil, syntaxErrorf(tok.pos, "missing operand at end of query")

	default:
		return nil, syntaxErrorf(tok.pos, "unexpected %s, expected field reference, '(' or NOT", tok.describe())
	}
}

// parseParenthesized parses parentheses.
// We've already seen the "(", in lparen.
func parseParenthesized(lex *lexer, lparen token) (e Expr, err error) {
	fn := lex.trace("Parenthesized")
	defer func() { fn(e, err) }()

	ret, err := parseOr(lex)
	if err != nil {
		return nil, err
	}

	tok := lex.nextToken()
	switch tok.kind {
	case tokenRparen:
		return ret, nil
	case tokenInvalidInput:
		return nil, syntaxErrorf(tok.pos, "%s", tok.val)
	case tokenEOF:
		return nil, syntaxErrorf(lparen.pos, "unbalanced left parenthesis")
	default:
		return nil, syntaxErrorf(tok.pos, "unexpected %s, expected right parenthesis", tok.describe())
	}
}

// parseComparison parses a comparison.
// We have already seen the field reference, in field.
// A field reference that is not followed by an operator
// tests whether the field exists.
//
//	comparison = field, [ operator, literal ] ;
//	literal    = string | number ;
func parseComparison(lex *lexer, field token) (e Expr, err error) {
	fn := lex.trace("Comparison")
	defer func() { fn(e, err) }()

	op := lex.nextToken()
	if !op.kind.isComparison() {
		lex.pushToken(op)
		return &existsExpr{field: field.val, pos: field.pos}, nil
	}

	var lit record.Value
	tok := lex.nextToken()
	switch tok.kind {
	case tokenString:
		lit = record.StringValue(tok.val)
	case tokenNumber:
		f, err := strconv.ParseFloat(tok.val, 64)
		if err != nil {
			return nil, syntaxErrorf(tok.pos, "invalid number %s", tok.val)
		}
		lit = record.NumberValue(f)
	case tokenInvalidInput:
		return nil, syntaxErrorf(tok.pos, "%s", tok.val)
	case tokenEOF:
		return nil, syntaxErrorf(tok.pos, "missing operand after %s", op.kind)
	default:
		return nil, syntaxErrorf(tok.pos, "unexpected %s, expected string or number after %s", tok.describe(), op.kind)
	}

	return &comparisonExpr{
		op:    op.kind,
		field: field.val,
		lit:   lit,
		pos:   op.pos,
	}, nil
}

// tracer emits a parse trace.
type tracer struct {
	w      io.Writer // nil if not tracing
	indent int
}

// trace emits a parse trace. It returns a function to defer.
func (tr *tracer) trace(fn string) func(Expr, error) {
	if tr.w == nil {
		return func(Expr, error) {}
	}
	fmt.Fprintf(tr.w, "%*s%s\n", tr.indent, "", fn)
	tr.indent++
	return func(e Expr, err error) {
		tr.indent--
		fmt.Fprintf(tr.w, "%*s%s returning ", tr.indent, "", fn)
		if e == nil && err == nil {
			fmt.Fprintf(tr.w, "nil, nil\n")
		} else if e == nil {
			fmt.Fprintf(tr.w, "error %v\n", err)
		} else if err == nil {
			fmt.Fprintf(tr.w, "%s", e)
		} else {
			fmt.Fprintf(tr.w, "error %v %s", err, e)
		}
	}
}
