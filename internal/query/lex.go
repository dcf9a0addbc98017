// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package query

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// tokenKind is a lexical token.
type tokenKind int

const (
	tokenInvalidInput      tokenKind = iota
	tokenEOF                         // end of tokens
	tokenField                       // .name
	tokenOr                          // || or OR
	tokenAnd                         // && or AND
	tokenNot                         // ! or NOT
	tokenLparen                      // (
	tokenRparen                      // )
	tokenEquals                      // ==
	tokenNotEquals                   // !=
	tokenLessThan                    // <
	tokenLessThanEquals              // <=
	tokenGreaterThan                 // >
	tokenGreaterThanEquals           // >=
	tokenContains                    // *==
	tokenStartsWith                  // ^==
	tokenEndsWith                    // $==
	tokenContainsFold                // *=
	tokenStartsWithFold              // ^=
	tokenEndsWithFold                // $=
	tokenString
	tokenNumber
	tokenText
)

var tokenKindStrings = [...]string{
	tokenInvalidInput:      "invalid",
	tokenEOF:               "EOF",
	tokenField:             "field",
	tokenOr:                "||",
	tokenAnd:               "&&",
	tokenNot:               "!",
	tokenLparen:            "(",
	tokenRparen:            ")",
	tokenEquals:            "==",
	tokenNotEquals:         "!=",
	tokenLessThan:          "<",
	tokenLessThanEquals:    "<=",
	tokenGreaterThan:       ">",
	tokenGreaterThanEquals: ">=",
	tokenContains:          "*==",
	tokenStartsWith:        "^==",
	tokenEndsWith:          "$==",
	tokenContainsFold:      "*=",
	tokenStartsWithFold:    "^=",
	tokenEndsWithFold:      "$=",
	tokenString:            "string",
	tokenNumber:            "number",
	tokenText:              "text",
}

// String returns the string representation of a tokenKind.
func (tk tokenKind) String() string {
	return tokenKindStrings[tk]
}

// isComparison reports whether tk is a comparison operator.
func (tk tokenKind) isComparison() bool {
	return tk >= tokenEquals && tk <= tokenEndsWithFold
}

// token is a lexical token read from the query string.
type token struct {
	kind tokenKind
	pos  Position
	// For tokenField, the field name.
	// For tokenString, the unquoted string.
	// For tokenNumber and tokenText, the source text.
	// For tokenInvalidInput, a description of the problem.
	val string
}

// describe returns a description of tok for an error message.
func (tok token) describe() string {
	switch tok.kind {
	case tokenEOF:
		return "end of query"
	case tokenField:
		return fmt.Sprintf("field .%s", tok.val)
	case tokenString:
		return fmt.Sprintf("string %q", tok.val)
	case tokenNumber:
		return fmt.Sprintf("number %s", tok.val)
	case tokenText:
		return fmt.Sprintf("token %q", tok.val)
	default:
		return fmt.Sprintf("%q", tok.kind.String())
	}
}

// Position describes a position in the query string.
// Line numbers start at 1, columns (counted in runes) at 0.
type Position struct {
	Line, Col int
}

// String prints a position for an error message.
func (pos Position) String() string {
	return fmt.Sprintf("%d:%d", pos.Line, pos.Col)
}

// lexer is used to convert a string into a sequence of tokens.
// Whitespace separates tokens but is otherwise ignored.
type lexer struct {
	input string

	pushed      bool
	pushedToken token // valid if pushed

	nextPos Position // position of next token

	tracer // parser trace, if enabled
}

// newLexer returns a lexer reading q.
func newLexer(q string) *lexer {
	return &lexer{
		input:   q,
		nextPos: Position{Line: 1, Col: 0},
	}
}

// nextToken returns the next token from the string.
// At the end of the input this returns tokenEOF.
func (lex *lexer) nextToken() token {
	if lex.pushed {
		lex.pushed = false
		return lex.pushedToken
	}

	lex.skipWhite()
	pos := lex.nextPos

	if len(lex.input) == 0 {
		return token{kind: tokenEOF, pos: pos}
	}

	r, size := utf8.DecodeRuneInString(lex.input)
	if r == utf8.RuneError && size <= 1 {
		return lex.invalid(pos, "invalid UTF-8 encoding")
	}
	lex.advance(r, size)

	switch {
	case r == '.':
		if len(lex.input) > 0 {
			rn := rune(lex.input[0])
			if isDigit(rn) {
				return lex.number(pos, r)
			}
			if isIdentStart(rn) {
				return token{kind: tokenField, pos: pos, val: lex.word()}
			}
		}
		return lex.invalid(pos, "expected field name after '.'")
	case r == '(':
		return token{kind: tokenLparen, pos: pos}
	case r == ')':
		return token{kind: tokenRparen, pos: pos}
	case r == '|':
		if lex.accept("|") {
			return token{kind: tokenOr, pos: pos}
		}
		return lex.invalid(pos, "unexpected '|' (did you mean '||'?)")
	case r == '&':
		if lex.accept("&") {
			return token{kind: tokenAnd, pos: pos}
		}
		return lex.invalid(pos, "unexpected '&' (did you mean '&&'?)")
	case r == '!':
		if lex.accept("=") {
			return token{kind: tokenNotEquals, pos: pos}
		}
		return token{kind: tokenNot, pos: pos}
	case r == '=':
		if lex.accept("=") {
			return token{kind: tokenEquals, pos: pos}
		}
		return lex.invalid(pos, "unexpected '=' (did you mean '=='?)")
	case r == '<':
		if lex.accept("=") {
			return token{kind: tokenLessThanEquals, pos: pos}
		}
		return token{kind: tokenLessThan, pos: pos}
	case r == '>':
		if lex.accept("=") {
			return token{kind: tokenGreaterThanEquals, pos: pos}
		}
		return token{kind: tokenGreaterThan, pos: pos}
	case r == '*':
		return lex.matchOp(pos, r, tokenContains, tokenContainsFold)
	case r == '^':
		return lex.matchOp(pos, r, tokenStartsWith, tokenStartsWithFold)
	case r == '$':
		return lex.matchOp(pos, r, tokenEndsWith, tokenEndsWithFold)
	case r == '"', r == '\'':
		return lex.collectString(pos, r)
	case r == '-', r == '+':
		if len(lex.input) > 0 && (isDigit(rune(lex.input[0])) || lex.input[0] == '.') {
			return lex.number(pos, r)
		}
		return lex.invalid(pos, fmt.Sprintf("unexpected %q", r))
	case isDigit(r):
		return lex.number(pos, r)
	case isIdentStart(r):
		w := string(r) + lex.word()
		switch w {
		case "AND":
			return token{kind: tokenAnd, pos: pos}
		case "OR":
			return token{kind: tokenOr, pos: pos}
		case "NOT":
			return token{kind: tokenNot, pos: pos}
		}
		return token{kind: tokenText, pos: pos, val: w}
	default:
		return lex.invalid(pos, fmt.Sprintf("unexpected %q", r))
	}
}

// invalid returns a tokenInvalidInput with the given message.
// The rest of the input is discarded.
func (lex *lexer) invalid(pos Position, msg string) token {
	lex.input = ""
	return token{kind: tokenInvalidInput, pos: pos, val: msg}
}

// accept advances past s if the input starts with it,
// and reports whether it did. s must be ASCII.
func (lex *lexer) accept(s string) bool {
	if !strings.HasPrefix(lex.input, s) {
		return false
	}
	for i := range len(s) {
		lex.advance(rune(s[i]), 1)
	}
	return true
}

// matchOp lexes a string match operator.
// We have already seen r, one of '*', '^', '$'.
// r followed by "==" is the case-sensitive operator exact,
// and r followed by "=" is the case-insensitive operator fold.
func (lex *lexer) matchOp(pos Position, r rune, exact, fold tokenKind) token {
	switch {
	case lex.accept("=="):
		return token{kind: exact, pos: pos}
	case lex.accept("="):
		return token{kind: fold, pos: pos}
	}
	return lex.invalid(pos, fmt.Sprintf("unexpected %q (did you mean '%c=='?)", r, r))
}

// skipWhite skips whitespace.
func (lex *lexer) skipWhite() {
	for len(lex.input) > 0 {
		r, size := utf8.DecodeRuneInString(lex.input)
		if !isWhite(r) {
			return
		}
		lex.advance(r, size)
	}
}

// advance advances past r of size size.
func (lex *lexer) advance(r rune, size int) {
	lex.input = lex.input[size:]
	if r == '\n' {
		lex.nextPos.Line++
		lex.nextPos.Col = 0
	} else {
		lex.nextPos.Col++
	}
}

// word collects the identifier characters at the start of the input.
func (lex *lexer) word() string {
	i := 0
	for i < len(lex.input) && isIdentChar(rune(lex.input[i])) {
		i++
	}
	w := lex.input[:i]
	lex.input = lex.input[i:]
	lex.nextPos.Col += i
	return w
}

// number collects a decimal number.
// r is the first rune of the number (a sign, a digit or '.');
// we have already advanced past it.
func (lex *lexer) number(pos Position, r rune) token {
	var sb strings.Builder
	sb.WriteRune(r)

	digits := func() int {
		n := 0
		for len(lex.input) > 0 && isDigit(rune(lex.input[0])) {
			sb.WriteByte(lex.input[0])
			lex.advance(rune(lex.input[0]), 1)
			n++
		}
		return n
	}

	sawDot := r == '.'
	if r == '-' || r == '+' {
		if len(lex.input) > 0 && lex.input[0] == '.' {
			sb.WriteByte('.')
			lex.advance('.', 1)
			sawDot = true
		}
	}
	n := digits()
	if isDigit(r) {
		n++
	}
	if !sawDot && len(lex.input) > 1 && lex.input[0] == '.' && isDigit(rune(lex.input[1])) {
		sb.WriteByte('.')
		lex.advance('.', 1)
		n += digits()
	}
	if n == 0 {
		return lex.invalid(pos, "malformed number")
	}
	if len(lex.input) > 0 && isIdentChar(rune(lex.input[0])) {
		return lex.invalid(pos, fmt.Sprintf("malformed number %s%c", sb.String(), lex.input[0]))
	}
	return token{kind: tokenNumber, pos: pos, val: sb.String()}
}

// collectString collects the characters of a quoted string.
// We have already seen the opening quote q.
// A backslash escapes q or another backslash;
// any other backslash is kept as is.
func (lex *lexer) collectString(pos Position, q rune) token {
	var sb strings.Builder
	for len(lex.input) > 0 {
		r, size := utf8.DecodeRuneInString(lex.input)
		if r == utf8.RuneError && size <= 1 {
			return lex.invalid(pos, "invalid UTF-8 encoding in string")
		}
		lex.advance(r, size)
		switch r {
		case q:
			return token{kind: tokenString, pos: pos, val: sb.String()}
		case '\\':
			if len(lex.input) > 0 && (rune(lex.input[0]) == q || lex.input[0] == '\\') {
				sb.WriteByte(lex.input[0])
				lex.advance(rune(lex.input[0]), 1)
				continue
			}
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return lex.invalid(pos, "unterminated string")
}

// pushToken pushes a token so that it is the next one returned.
func (lex *lexer) pushToken(tok token) {
	if lex.pushed {
		panic("double pushToken")
	}
	lex.pushed = true
	lex.pushedToken = tok
}

// isWhite reports whether r is a whitespace character.
func isWhite(r rune) bool {
	switch r {
	case ' ', '\t', '\f', '\u00a0', '\r', '\n':
		return true
	default:
		return false
	}
}

// isDigit reports whether r is a digit.
func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// isIdentStart reports whether r can start a field name or keyword.
func isIdentStart(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '_'
}

// isIdentChar reports whether r can appear in a field name or keyword.
func isIdentChar(r rune) bool {
	return isIdentStart(r) || isDigit(r)
}
