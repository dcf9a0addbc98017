// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Zipserver serves filter queries over a dataset of zip code records.
//
// Usage:
//
//	zipserver [-addr host:port] [-level info] [-parallel n] [-project id] -data file
//
// The data file is a JSON array of records, optionally compressed
// with gzip (.gz) or zstd (.zst). It is loaded once at startup.
// Queries are served at
//
//	GET /?query=EXPR
//
// and the log level can be changed at /setlevel?l=LEVEL.
//
// On Cloud Run, zipserver listens on $PORT, logs in the form the
// Cloud logging agent expects, reports errors to Cloud Error Reporting
// and exports metrics to Cloud Monitoring.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/errorreporting"
	ometric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/zipquery/internal/gcpmetrics"
	"golang.org/x/zipquery/internal/logs/gcphandler"
	"golang.org/x/zipquery/internal/record"
	"golang.org/x/zipquery/internal/server"
)

type serverFlags struct {
	addr     string
	data     string
	level    string
	project  string
	parallel int
}

var flags serverFlags

func init() {
	flag.StringVar(&flags.addr, "addr", "localhost:8080", "address to serve HTTP on, when not on Cloud Run")
	flag.StringVar(&flags.data, "data", "zips.json", "dataset `file` (.json, .json.gz or .json.zst)")
	flag.StringVar(&flags.level, "level", "info", "initial log level")
	flag.StringVar(&flags.project, "project", "", "name of the Google Cloud Project")
	flag.IntVar(&flags.parallel, "parallel", runtime.GOMAXPROCS(0), "goroutines per query")
}

// Zipserver holds the state of the server.
type Zipserver struct {
	ctx   context.Context
	cloud bool              // running on Cloud Run
	meta  map[string]string // any metadata we want to expose
	addr  string            // address to serve HTTP on

	slog      *slog.Logger           // slog output to use
	slogLevel *slog.LevelVar         // slog level, for changing as needed
	data      *record.Dataset        // records to query
	meter     ometric.Meter          // used to create Open Telemetry instruments
	report    *errorreporting.Client // nil when not reporting to Cloud Error Reporting
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: zipserver [flags]\n")
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()
	if flag.NArg() != 0 {
		flag.Usage()
	}

	level := new(slog.LevelVar)
	if err := level.UnmarshalText([]byte(flags.level)); err != nil {
		log.Fatal(err)
	}
	z := &Zipserver{
		ctx:       context.Background(),
		cloud:     onCloudRun(),
		meta:      map[string]string{},
		slogLevel: level,
		addr:      flags.addr,
		meter:     noop.Meter{},
	}
	if z.cloud {
		z.slog = slog.New(gcphandler.New(os.Stderr, &gcphandler.Options{Level: level}))
	} else {
		z.slog = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	if z.cloud || flags.project != "" {
		shutdown := z.initGCP()
		defer shutdown()
	}

	data, err := record.LoadFile(z.slog, flags.data)
	if err != nil {
		log.Fatal(err)
	}
	z.data = data
	z.meta["records"] = fmt.Sprint(data.Len())

	if err := z.serveHTTP(); err != nil {
		log.Fatal(err)
	}
}

// initGCP initializes error reporting and metrics on GCP.
func (z *Zipserver) initGCP() (shutdown func()) {
	if flags.project == "" {
		projectID, err := metadata.ProjectIDWithContext(z.ctx)
		if err != nil {
			log.Fatalf("metadata project ID: %v", err)
		}
		if projectID == "" {
			log.Fatal("project ID from metadata is empty")
		}
		flags.project = projectID
	}

	if z.cloud {
		port := os.Getenv("PORT")
		if port == "" {
			log.Fatal("$PORT not set")
		}
		z.meta["port"] = port
		z.addr = ":" + port
	}

	z.slog.Info("zipserver cloud init",
		"flags", fmt.Sprintf("%+v", flags),
		"k_service", os.Getenv("K_SERVICE"),
		"k_revision", os.Getenv("K_REVISION"))

	rep, err := errorreporting.NewClient(z.ctx, flags.project, errorreporting.Config{
		ServiceName: serviceName(),
		OnError: func(err error) {
			z.slog.Error("error reporting", "err", err)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
	z.report = rep

	mp, err := gcpmetrics.NewMeterProvider(z.ctx, z.slog, flags.project)
	if err != nil {
		log.Fatal(err)
	}
	z.meter = mp.Meter("gcp")
	return func() {
		if err := mp.Shutdown(z.ctx); err != nil {
			log.Print(err)
		}
		if err := rep.Close(); err != nil {
			log.Print(err)
		}
	}
}

// serviceName returns the name errors are reported under.
func serviceName() string {
	if s := os.Getenv("K_SERVICE"); s != "" {
		return s
	}
	return "zipserver"
}

// serveHTTP serves HTTP requests until the listener fails.
func (z *Zipserver) serveHTTP() error {
	report := func(err error) {
		z.slog.Error("reporting", "err", err)
		if z.report != nil {
			z.report.Report(errorreporting.Entry{Error: err})
		}
	}
	mux := z.newServer(report)
	l, err := net.Listen("tcp", z.addr)
	if err != nil {
		report(err)
		return err
	}
	z.slog.Info("serving", "addr", l.Addr().String(), "meta", fmt.Sprintf("%v", z.meta))
	if err := http.Serve(l, mux); err != nil {
		report(err)
		return err
	}
	return nil
}

// newServer creates a new [http.ServeMux] that uses report to
// process endpoint errors.
func (z *Zipserver) newServer(report func(error)) *http.ServeMux {
	const setLevelEndpoint = "setlevel"

	srv := server.New(z.slog, z.data, z.meter, report)
	srv.SetParallel(flags.parallel)

	mux := http.NewServeMux()

	// setlevel changes the log level dynamically.
	// Usage: /setlevel?l=LEVEL
	mux.HandleFunc("GET /"+setLevelEndpoint, func(w http.ResponseWriter, r *http.Request) {
		if err := z.slogLevel.UnmarshalText([]byte(r.FormValue("l"))); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// Don't use "level" as a key: it will be misinterpreted as the severity of the log entry.
		z.slog.Info("log level set", "new-level", z.slogLevel.Level())
		fmt.Fprintf(w, "log level: %v\n", z.slogLevel.Level())
	})

	// Everything else is a query, or an error the query server reports.
	mux.Handle("/", srv)
	return mux
}

func onCloudRun() bool {
	// There is no definitive test, so look for some environment variables specified in
	// https://cloud.google.com/run/docs/container-contract#services-env-vars.
	return os.Getenv("K_SERVICE") != "" && os.Getenv("K_REVISION") != ""
}
