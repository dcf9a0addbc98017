// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/zipquery/internal/record"
	"golang.org/x/zipquery/internal/testutil"
)

func TestNewServer(t *testing.T) {
	data := record.NewDataset(
		record.New(map[string]record.Value{"zip": record.StringValue("01001"), "state": record.StringValue("MA")}),
		record.New(map[string]record.Value{"zip": record.StringValue("04038"), "state": record.StringValue("ME")}),
	)
	z := &Zipserver{
		ctx:       context.Background(),
		slog:      testutil.Slogger(t),
		slogLevel: new(slog.LevelVar),
		data:      data,
		meter:     noop.Meter{},
	}

	// create in-memory test server
	report := func(err error) { t.Error(err) }
	mux := z.newServer(report)
	s := httptest.NewServer(mux)
	defer s.Close()

	get := func(path string) (int, string) {
		res, err := s.Client().Get(s.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		b, _ := io.ReadAll(res.Body)
		res.Body.Close()
		return res.StatusCode, string(b)
	}

	// check "/" endpoint
	code, got := get("/?" + url.Values{"query": {`.state == "ME"`}}.Encode())
	if want := `[{"state":"ME","zip":"04038"}]`; code != 200 || got != want {
		t.Errorf("query: got %d %s, want 200 %s", code, got, want)
	}

	// check unknown path
	code, got = get("/info")
	if code != http.StatusNotFound || !strings.Contains(got, "/ is the only supported path") {
		t.Errorf("/info: got %d %s", code, got)
	}

	// check "/setlevel" endpoint
	code, got = get("/setlevel?l=error")
	if code != 200 || !strings.Contains(got, "ERROR") {
		t.Errorf("/setlevel: got %d %s", code, got)
	}
	if z.slogLevel.Level() != slog.LevelError {
		t.Errorf("level = %v, want ERROR", z.slogLevel.Level())
	}
	code, _ = get("/setlevel?l=loud")
	if code != http.StatusBadRequest {
		t.Errorf("/setlevel?l=loud: got %d, want 400", code)
	}
}

func TestOnCloudRun(t *testing.T) {
	t.Setenv("K_SERVICE", "")
	t.Setenv("K_REVISION", "")
	if onCloudRun() {
		t.Error("onCloudRun with no environment")
	}
	t.Setenv("K_SERVICE", "zipserver")
	t.Setenv("K_REVISION", "zipserver-00001")
	if !onCloudRun() {
		t.Error("!onCloudRun on Cloud Run")
	}
	if got := serviceName(); got != "zipserver" {
		t.Errorf("serviceName() = %q", got)
	}
}
