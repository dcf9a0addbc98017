// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gcphandler implements a [slog.Handler] that writes
// JSON lines in the form the Google Cloud logging agent expects.
// The zip query server uses it when running on Cloud Run, where
// lines written to stderr become log entries.
package gcphandler

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"
)

// DefaultMaxMessageLength is the message length limit
// used when [Options.MaxMessageLength] is zero.
const DefaultMaxMessageLength = 100

// Options configure a handler.
type Options struct {
	// Level is the minimum level logged. Nil means [slog.LevelInfo].
	Level slog.Leveler

	// MaxMessageLength bounds the length of a message after
	// attributes are appended to it.
	MaxMessageLength int

	// Now, if non-nil, replaces the time of every record.
	Now func() time.Time
}

// New returns a [slog.Handler] that writes to w.
// It follows [GCP's logging specification] by modifying
// slog defaults:
//   - The key "msg" becomes "message".
//   - The key "level" becomes "severity", and WARN is written as WARNING.
//   - The key "traceID" becomes "logging.googleapis.com/trace".
//   - Times are RFC3339-formatted strings.
//
// It also appends leading attributes to the message, because the
// log viewer shows only the message in its main view.
//
// [GCP's logging specification]: https://cloud.google.com/logging/docs/agent/logging/configuration#special-fields
func New(w io.Writer, opts *Options) slog.Handler {
	if opts == nil {
		opts = &Options{}
	}
	limit := opts.MaxMessageLength
	if limit <= 0 {
		limit = DefaultMaxMessageLength
	}
	jh := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       opts.Level,
		ReplaceAttr: replacer(opts.Now),
	})
	return &handler{h: jh, max: limit}
}

// replacer returns a ReplaceAttr function that uses GCP names
// for certain fields and formats times the way GCP expects.
func replacer(now func() time.Time) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.TimeKey:
			if a.Value.Kind() == slog.KindTime {
				tm := a.Value.Time()
				if now != nil {
					tm = now()
				}
				a.Value = slog.StringValue(tm.Format(time.RFC3339))
			}
		case slog.MessageKey:
			a.Key = "message"
		case slog.LevelKey:
			a.Key = "severity"
			if lvl, ok := a.Value.Any().(slog.Level); ok {
				a.Value = slog.StringValue(severity(lvl))
			}
		case "traceID":
			a.Key = "logging.googleapis.com/trace"
		}
		return a
	}
}

// severity returns the GCP severity name for lvl.
func severity(lvl slog.Level) string {
	switch {
	case lvl < slog.LevelInfo:
		return "DEBUG"
	case lvl < slog.LevelWarn:
		return "INFO"
	case lvl < slog.LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// handler is a [slog.Handler] that appends some attributes
// to the message, but otherwise behaves like its underlying
// handler.
type handler struct {
	h   slog.Handler
	max int
}

func (h *handler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.h.Enabled(ctx, lvl)
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &handler{h: h.h.WithAttrs(attrs), max: h.max}
}

func (h *handler) WithGroup(name string) slog.Handler {
	return &handler{h: h.h.WithGroup(name), max: h.max}
}

// Handle implements [slog.Handler] by appending the first attributes
// to the message until the limit is reached, then calling the underlying
// handler.
func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		s := a.String()
		if b.Len()+1+len(s) > h.max {
			return false
		}
		b.WriteByte(' ')
		b.WriteString(s)
		return true
	})
	r.Message = b.String()
	return h.h.Handle(ctx, r)
}
