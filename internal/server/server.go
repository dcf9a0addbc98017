// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package server implements the HTTP interface to zip code queries.
//
// The only request it accepts is
//
//	GET /?query=EXPR
//
// which returns a JSON array of the records matching EXPR.
// Errors are returned as a JSON object with a "message" field:
// 404 for any other path, 405 for any other method, 400 for a
// missing or malformed query and 500 for anything else.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/valyala/fastjson"
	"go.opentelemetry.io/otel/attribute"
	ometric "go.opentelemetry.io/otel/metric"
	"golang.org/x/zipquery/internal/query"
	"golang.org/x/zipquery/internal/record"
)

// A Server answers queries against a dataset.
// It is an [http.Handler].
type Server struct {
	lg     *slog.Logger
	data   *record.Dataset
	report func(error)
	shards int

	requests ometric.Int64Counter
	matches  ometric.Int64Histogram
}

// New returns a new Server serving queries against data.
// Unexpected errors are logged to lg and passed to report.
// Metric instruments are created with meter.
// New panics if the instruments cannot be created.
func New(lg *slog.Logger, data *record.Dataset, meter ometric.Meter, report func(error)) *Server {
	requests, err := meter.Int64Counter("zipquery/requests",
		ometric.WithDescription("number of query requests, by status code"))
	if err != nil {
		lg.Error("counter creation failed", "name", "requests")
		panic(err)
	}
	matches, err := meter.Int64Histogram("zipquery/matches",
		ometric.WithDescription("number of records returned by successful queries"))
	if err != nil {
		lg.Error("histogram creation failed", "name", "matches")
		panic(err)
	}
	return &Server{
		lg:       lg,
		data:     data,
		report:   report,
		shards:   1,
		requests: requests,
		matches:  matches,
	}
}

// SetParallel sets the number of goroutines used to evaluate
// each query. Values less than 1 mean 1.
func (s *Server) SetParallel(n int) {
	s.shards = max(n, 1)
}

// A requestError is an error in the request itself,
// reported to the client with the given status code.
type requestError struct {
	code int
	msg  string
}

func (e *requestError) Error() string { return e.msg }

var (
	errPath   = &requestError{http.StatusNotFound, "/ is the only supported path"}
	errMethod = &requestError{http.StatusMethodNotAllowed, "GET is the only supported method"}
	errQuery  = &requestError{http.StatusBadRequest, `query string parameter "query" is required`}
)

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	rs, err := s.serve(r)
	if err != nil {
		code := s.fail(ctx, w, r, err)
		s.requests.Add(ctx, 1, ometric.WithAttributes(attribute.Int("code", code)))
		return
	}

	body := record.AppendJSON(nil, rs)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.lg.Info("writing response", "err", err)
	}
	s.requests.Add(ctx, 1, ometric.WithAttributes(attribute.Int("code", http.StatusOK)))
	s.matches.Record(ctx, int64(len(rs)))
	s.lg.Debug("query served",
		"query", r.FormValue("query"),
		"matches", len(rs),
		"elapsed", time.Since(start))
}

// serve validates the request and runs its query.
// A panic during evaluation is returned as an error.
func (s *Server) serve(r *http.Request) (rs []record.Record, err error) {
	if r.URL.Path != "/" {
		return nil, errPath
	}
	if r.Method != http.MethodGet {
		return nil, errMethod
	}
	q := r.URL.Query().Get("query")
	if q == "" {
		return nil, errQuery
	}

	e, err := query.Parse(q)
	if err != nil {
		return nil, err
	}

	defer func() {
		if p := recover(); p != nil {
			rs, err = nil, fmt.Errorf("query %q: panic: %v", q, p)
		}
	}()
	return query.FilterParallel(r.Context(), e, s.data, s.shards)
}

// fail writes the response for err and returns its status code.
// Errors that are not the client's fault are reported.
func (s *Server) fail(ctx context.Context, w http.ResponseWriter, r *http.Request, err error) int {
	var (
		rerr *requestError
		serr *query.SyntaxError
	)
	code, msg := http.StatusInternalServerError, "internal server error"
	switch {
	case errors.As(err, &rerr):
		code, msg = rerr.code, rerr.msg
	case errors.As(err, &serr):
		code, msg = http.StatusBadRequest, serr.Error()
	case ctx.Err() != nil:
		// The client went away; there is no one to tell.
		s.lg.Info("query canceled", "url", r.URL.String(), "err", err)
	default:
		s.lg.Error("query failed", "url", r.URL.String(), "err", err)
		s.report(err)
	}
	if code != http.StatusInternalServerError {
		s.lg.Debug("bad request", "url", r.URL.String(), "code", code, "err", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(errorBody(msg))
	return code
}

// errorBody returns the JSON object {"message": msg}.
func errorBody(msg string) []byte {
	var a fastjson.Arena
	o := a.NewObject()
	o.Set("message", a.NewString(msg))
	return o.MarshalTo(nil)
}
