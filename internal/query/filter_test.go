// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/zipquery/internal/record"
	"golang.org/x/zipquery/internal/testutil"
)

// zips returns the zip field of each record.
func zips(rs []record.Record) []string {
	var out []string
	for _, r := range rs {
		out = append(out, r.Get("zip").Str())
	}
	return out
}

func TestScenarios(t *testing.T) {
	data := loadZips(t)

	var scenarios []struct {
		Query string   `json:"query"`
		Zips  []string `json:"zips"`
	}
	testutil.UnmarshalJSON(t, "scenarios.json", &scenarios)

	for _, sc := range scenarios {
		t.Run(sc.Query, func(t *testing.T) {
			got, err := Run(sc.Query, data)
			testutil.Check(t, err)
			if diff := cmp.Diff(sc.Zips, zips(got)); diff != "" {
				t.Errorf("matches mismatch (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestScenarioContains(t *testing.T) {
	got, err := Run(`.zip *== "010"`, loadZips(t))
	testutil.Check(t, err)
	if len(got) == 0 {
		t.Fatal("no matches")
	}
	for _, z := range zips(got) {
		if !strings.Contains(z, "010") {
			t.Errorf("zip %q does not contain %q", z, "010")
		}
	}
}

func TestScenarioCityList(t *testing.T) {
	got, err := Run(`.primary_city == "Boston" || .acceptable_cities *== '|Boston|'`, loadZips(t))
	testutil.Check(t, err)
	for _, r := range got {
		city := r.Get("primary_city")
		list := r.Get("acceptable_cities")
		if city.Str() != "Boston" && !strings.Contains(list.Str(), "|Boston|") {
			t.Errorf("%s: primary_city %v, acceptable_cities %v", r.Get("zip"), city, list)
		}
	}
}

func TestMalformedQuery(t *testing.T) {
	got, err := Run("This is not a very good query", loadZips(t))
	var serr *SyntaxError
	if !errors.As(err, &serr) {
		t.Fatalf("got error %v, want *SyntaxError", err)
	}
	if got != nil {
		t.Errorf("got %d records with a syntax error", len(got))
	}
}

func TestFilterIdempotent(t *testing.T) {
	data := loadZips(t)
	e := mustParse(t, `.state == "MA" && .estimated_population >= 4000`)
	first := zips(Filter(e, data))
	second := zips(Filter(e, data))
	if len(first) == 0 {
		t.Fatal("no matches")
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second run differs (-first, +second):\n%s", diff)
	}
}

func TestAndCommutes(t *testing.T) {
	data := loadZips(t)
	for _, test := range []struct{ a, b string }{
		{`.state == "MA"`, `.estimated_population < 5000`},
		{`.latitude > 42.3`, `.longitude < -71`},
		{`.acceptable_cities *== "|Boston|"`, `.primary_city != "Boston"`},
		{`.type == "PO BOX"`, `.estimated_population > 0`},
	} {
		ab := zips(Filter(mustParse(t, test.a+" && "+test.b), data))
		ba := zips(Filter(mustParse(t, test.b+" AND "+test.a), data))
		if diff := cmp.Diff(ab, ba); diff != "" {
			t.Errorf("%s && %s: order matters (-ab, +ba):\n%s", test.a, test.b, diff)
		}
	}
}

func TestAbsentFieldSafety(t *testing.T) {
	data := loadZips(t)
	ops := []string{"==", "!=", "<", "<=", ">", ">=", "*==", "^==", "$==", "*=", "^=", "$="}
	for _, op := range ops {
		for _, lit := range []string{`"x"`, `1`} {
			q := fmt.Sprintf(".no_such_field %s %s", op, lit)
			if got := Filter(mustParse(t, q), data); len(got) != 0 {
				t.Errorf("%s matched %v", q, zips(got))
			}
		}
	}

	// Cape Porpoise has no population and Nashua's is null.
	got := zips(Filter(mustParse(t, `.estimated_population != 0`), data))
	for _, z := range got {
		if z == "04014" || z == "03062" {
			t.Errorf(".estimated_population != 0 matched %s, which has no population", z)
		}
	}
}

func TestListMembershipBoundary(t *testing.T) {
	data := loadZips(t)
	got := zips(Filter(mustParse(t, `.acceptable_cities *== "|Boston|"`), data))
	if diff := cmp.Diff([]string{"02134"}, got); diff != "" {
		t.Errorf("|Boston| matches (-want, +got):\n%s", diff)
	}

	// Without the delimiters the substring also finds EastBoston.
	got = zips(Filter(mustParse(t, `.acceptable_cities *== "Boston"`), data))
	if diff := cmp.Diff([]string{"02128", "02134"}, got); diff != "" {
		t.Errorf("Boston matches (-want, +got):\n%s", diff)
	}
}

func TestFilterEmpty(t *testing.T) {
	got := Filter(mustParse(t, `.zip == "99999"`), loadZips(t))
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty non-nil slice", got)
	}
	got = Filter(mustParse(t, `.zip`), record.NewDataset())
	if got == nil || len(got) != 0 {
		t.Errorf("empty dataset: got %#v, want empty non-nil slice", got)
	}
}

// bigDataset returns a dataset of n generated records.
func bigDataset(n int) *record.Dataset {
	var rs []record.Record
	for i := range n {
		fields := map[string]record.Value{
			"zip":   record.StringValue(fmt.Sprintf("%05d", i)),
			"state": record.StringValue([]string{"MA", "ME", "NH"}[i%3]),
		}
		if i%7 != 0 {
			fields["estimated_population"] = record.NumberValue(float64(i))
		}
		rs = append(rs, record.New(fields))
	}
	return record.NewDataset(rs...)
}

func TestFilterParallel(t *testing.T) {
	ctx := context.Background()
	data := bigDataset(10*minShard + 17)
	for _, q := range []string{
		`.estimated_population >= 1000 && .estimated_population < 4000 || .zip $== "7"`,
		`.state == "ME" && !.estimated_population`,
		`.zip == "nope"`,
	} {
		e := mustParse(t, q)
		want := zips(Filter(e, data))
		for _, shards := range []int{0, 1, 2, 3, 4, 8, 100} {
			got, err := FilterParallel(ctx, e, data, shards)
			testutil.Check(t, err)
			if got == nil {
				t.Errorf("%s, %d shards: nil result", q, shards)
			}
			if diff := cmp.Diff(want, zips(got)); diff != "" {
				t.Errorf("%s, %d shards: mismatch (-Filter, +FilterParallel):\n%s", q, shards, diff)
			}
		}
	}
}

func TestFilterParallelCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := FilterParallel(ctx, mustParse(t, `.zip`), bigDataset(4*minShard), 4)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got error %v, want %v", err, context.Canceled)
	}
	if got != nil {
		t.Errorf("got %d records from a canceled filter", len(got))
	}
}
