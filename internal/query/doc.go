// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package query implements the filter language used to select
// postal-code records.
//
// A query is a boolean expression over record fields:
//
//	.primary_city == "Boston" || .acceptable_cities *== '|Boston|'
//	.estimated_population > 14000 && .estimated_population < 15000 && .state == "ME"
//
// A field is written as a dot followed by its name. It is compared
// with a quoted string or a decimal number using one of
//
//	==  !=  <  <=  >  >=
//	*==  contains       *=  contains, ignoring case
//	^==  starts with    ^=  starts with, ignoring case
//	$==  ends with      $=  ends with, ignoring case
//
// A field with no comparison matches records that have the field.
// Comparisons are combined with && (or AND), || (or OR) and ! (or NOT),
// and grouped with parentheses. ! binds tightest, then &&, then ||.
//
// Use [Parse] to parse a query, then [Filter] or [Evaluator]
// to apply it to records.
package query
