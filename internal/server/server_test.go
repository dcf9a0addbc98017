// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/valyala/fastjson"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/zipquery/internal/record"
	"golang.org/x/zipquery/internal/testutil"
)

func testData() *record.Dataset {
	mk := func(zip, city, state, acceptable string, pop float64) record.Record {
		return record.New(map[string]record.Value{
			"zip":                  record.StringValue(zip),
			"primary_city":         record.StringValue(city),
			"state":                record.StringValue(state),
			"acceptable_cities":    record.StringValue(acceptable),
			"estimated_population": record.NumberValue(pop),
		})
	}
	return record.Normalize(record.NewDataset(
		mk("01001", "Agawam", "MA", "", 14770),
		mk("02108", "Boston", "MA", "Beacon Hill", 3920),
		mk("02134", "Allston", "MA", "Boston", 19219),
		mk("04038", "Gorham", "ME", "", 14280),
	))
}

func get(t *testing.T, s *httptest.Server, method, path string) (code int, contentType, body string) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, nil)
	testutil.Check(t, err)
	res, err := s.Client().Do(req)
	testutil.Check(t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	testutil.Check(t, err)
	return res.StatusCode, res.Header.Get("Content-Type"), string(b)
}

func queryPath(q string) string {
	return "/?" + url.Values{"query": {q}}.Encode()
}

func TestServer(t *testing.T) {
	report := func(err error) { t.Error(err) }
	srv := New(testutil.Slogger(t), testData(), noop.Meter{}, report)
	s := httptest.NewServer(srv)
	defer s.Close()

	for _, test := range []struct {
		name   string
		method string
		path   string
		code   int
		body   string
	}{
		{
			"one match", "GET", queryPath(`.zip == "01001"`),
			200, `[{"estimated_population":14770,"primary_city":"Agawam","state":"MA","zip":"01001"}]`,
		},
		{
			"no match", "GET", queryPath(`.zip == "99999"`),
			200, `[]`,
		},
		{
			"list membership", "GET", queryPath(`.primary_city == "Boston" || .acceptable_cities *== '|Boston|'`),
			200, `[{"acceptable_cities":"|Beacon Hill|","estimated_population":3920,"primary_city":"Boston","state":"MA","zip":"02108"},` +
				`{"acceptable_cities":"|Boston|","estimated_population":19219,"primary_city":"Allston","state":"MA","zip":"02134"}]`,
		},
		{
			"wrong path", "GET", "/zips" + queryPath(`.zip`)[1:],
			404, `{"message":"/ is the only supported path"}`,
		},
		{
			"wrong method", "POST", queryPath(`.zip`),
			405, `{"message":"GET is the only supported method"}`,
		},
		{
			"missing query", "GET", "/",
			400, `{"message":"query string parameter \"query\" is required"}`,
		},
		{
			"empty query", "GET", "/?query=",
			400, `{"message":"query string parameter \"query\" is required"}`,
		},
		{
			"malformed query", "GET", queryPath("This is not a very good query"),
			400, `{"message":"1:0: unexpected token \"This\", expected field reference, '(' or NOT"}`,
		},
		{
			"unterminated string", "GET", queryPath(`.zip == "0100`),
			400, `{"message":"1:8: unterminated string"}`,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			code, ct, body := get(t, s, test.method, test.path)
			if code != test.code {
				t.Errorf("status = %d, want %d", code, test.code)
			}
			if ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			if diff := cmp.Diff(test.body, body); diff != "" {
				t.Errorf("body mismatch (-want, +got):\n%s", diff)
			}
			if code != 200 {
				if msg := fastjson.GetString([]byte(body), "message"); msg == "" {
					t.Errorf("error body %s has no message", body)
				}
			}
		})
	}
}

func TestServerParallel(t *testing.T) {
	var rs []record.Record
	for i := range 5000 {
		rs = append(rs, record.New(map[string]record.Value{
			"n": record.NumberValue(float64(i)),
		}))
	}
	srv := New(testutil.Slogger(t), record.NewDataset(rs...), noop.Meter{}, func(err error) { t.Error(err) })
	srv.SetParallel(4)
	s := httptest.NewServer(srv)
	defer s.Close()

	code, _, body := get(t, s, "GET", queryPath(`.n >= 10 && .n < 13 || .n == 4999`))
	if code != 200 {
		t.Fatalf("status = %d: %s", code, body)
	}
	want := `[{"n":10},{"n":11},{"n":12},{"n":4999}]`
	if body != want {
		t.Errorf("got %s, want %s", body, want)
	}
}

func TestServerReportsFailures(t *testing.T) {
	var reported []error
	lg, logs := testutil.SlogBuffer()
	srv := New(lg, nil, noop.Meter{}, func(err error) { reported = append(reported, err) })

	// A nil dataset makes evaluation panic.
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", queryPath(`.zip`), nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if got, want := w.Body.String(), `{"message":"internal server error"}`; got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
	if len(reported) != 1 || !strings.Contains(reported[0].Error(), "panic") {
		t.Errorf("reported %v, want one panic", reported)
	}
	testutil.ExpectLog(t, logs, "query failed", 1)

	// Client errors are not reported.
	reported = nil
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", queryPath(`.zip ==`), nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if len(reported) != 0 {
		t.Errorf("reported %v for a client error", reported)
	}
}

func TestServerCanceled(t *testing.T) {
	var reported []error
	srv := New(testutil.Slogger(t), testData(), noop.Meter{}, func(err error) { reported = append(reported, err) })
	srv.SetParallel(2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rs := make([]record.Record, 3000)
	for i := range rs {
		rs[i] = record.New(map[string]record.Value{"zip": record.StringValue("x")})
	}
	srv.data = record.NewDataset(rs...)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", queryPath(`.zip`), nil).WithContext(ctx))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if len(reported) != 0 {
		t.Errorf("reported %v for a canceled request", reported)
	}
}

func TestServerMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(ctx)

	srv := New(testutil.Slogger(t), testData(), mp.Meter("test"), func(err error) { t.Error(err) })
	s := httptest.NewServer(srv)
	defer s.Close()

	get(t, s, "GET", queryPath(`.state == "MA"`))
	get(t, s, "GET", queryPath(`.state == "ME"`))
	get(t, s, "GET", queryPath(`.state ==`))
	get(t, s, "GET", "/nope")

	var rm metricdata.ResourceMetrics
	testutil.Check(t, reader.Collect(ctx, &rm))

	codes := map[int64]int64{}
	var matches metricdata.HistogramDataPoint[int64]
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch d := m.Data.(type) {
			case metricdata.Sum[int64]:
				if m.Name != "zipquery/requests" {
					t.Errorf("unexpected counter %s", m.Name)
				}
				for _, dp := range d.DataPoints {
					code, ok := dp.Attributes.Value("code")
					if !ok {
						t.Errorf("data point without code: %v", dp.Attributes)
					}
					codes[code.AsInt64()] += dp.Value
				}
			case metricdata.Histogram[int64]:
				if m.Name != "zipquery/matches" {
					t.Errorf("unexpected histogram %s", m.Name)
				}
				if len(d.DataPoints) != 1 {
					t.Fatalf("got %d histogram data points, want 1", len(d.DataPoints))
				}
				matches = d.DataPoints[0]
			}
		}
	}

	if diff := cmp.Diff(map[int64]int64{200: 2, 400: 1, 404: 1}, codes); diff != "" {
		t.Errorf("request counts (-want, +got):\n%s", diff)
	}
	if matches.Count != 2 || matches.Sum != 4 {
		t.Errorf("matches: count %d sum %d, want count 2 sum 4", matches.Count, matches.Sum)
	}
}

func TestRequestError(t *testing.T) {
	var rerr *requestError
	if !errors.As(error(errQuery), &rerr) || rerr.code != http.StatusBadRequest {
		t.Errorf("errQuery is not a 400 requestError")
	}
}
