// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"strings"
)

// ListFields are the fields that hold comma-separated lists of
// city names in the source data.
var ListFields = []string{"acceptable_cities", "unacceptable_cities"}

// ListSep is the delimiter that [Normalize] places around
// every member of a list field.
const ListSep = "|"

// Normalize returns a dataset in which every list field
// (see [ListFields]) is rewritten from "A, B" to "|A|B|",
// so that membership in the list can be tested with a
// substring match on "|A|". Empty lists are absent.
//
// Normalize is idempotent: a field already in the "|A|B|" form
// is left unchanged. Members that themselves contain [ListSep]
// are not escaped.
func Normalize(d *Dataset) *Dataset {
	rs := make([]Record, len(d.records))
	for i, r := range d.records {
		for _, name := range ListFields {
			v := r.Get(name)
			if v.Kind() != KindString {
				continue
			}
			if w := normalizeList(v.Str()); !w.Equal(v) {
				r = r.With(name, w)
			}
		}
		rs[i] = r
	}
	return &Dataset{records: rs}
}

// normalizeList returns the delimited form of the list s.
func normalizeList(s string) Value {
	if isWrapped(s) {
		return StringValue(s)
	}
	var members []string
	for _, m := range strings.Split(s, ",") {
		if m = strings.TrimLeft(m, " "); m != "" {
			members = append(members, m)
		}
	}
	if len(members) == 0 {
		return Value{}
	}
	return StringValue(ListSep + strings.Join(members, ListSep) + ListSep)
}

// isWrapped reports whether s is already a delimited list.
func isWrapped(s string) bool {
	return len(s) > len(ListSep) &&
		strings.HasPrefix(s, ListSep) &&
		strings.HasSuffix(s, ListSep)
}
