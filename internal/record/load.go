// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/valyala/fastjson"
)

// LoadFile reads a dataset from the JSON file at path and normalizes it.
// Files ending in ".gz" or ".zst" are decompressed first.
func LoadFile(lg *slog.Logger, path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	d, err := Load(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	d = Normalize(d)
	lg.Info("dataset loaded", "path", path, "records", d.Len())
	return d, nil
}

// Load decodes a dataset from r, which must hold a JSON array
// of flat objects. Load does not normalize the records;
// see [Normalize].
//
// Field values are converted as follows:
//   - strings become string values, except that "" is absent;
//   - numbers become number values;
//   - null is absent;
//   - true and false become the strings "true" and "false";
//   - nested arrays and objects become strings holding their JSON text.
func Load(r io.Reader) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	arr, err := v.Array()
	if err != nil {
		return nil, fmt.Errorf("dataset is not a JSON array: %w", err)
	}

	rs := make([]Record, 0, len(arr))
	for i, ov := range arr {
		obj, err := ov.Object()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		fields := make(map[string]Value, obj.Len())
		obj.Visit(func(key []byte, fv *fastjson.Value) {
			fields[string(key)] = jsonFieldValue(fv)
		})
		rs = append(rs, New(fields))
	}
	return &Dataset{records: rs}, nil
}

// jsonFieldValue converts a JSON value to a [Value].
func jsonFieldValue(v *fastjson.Value) Value {
	switch v.Type() {
	case fastjson.TypeString:
		s := string(v.GetStringBytes())
		if s == "" {
			return Value{}
		}
		return StringValue(s)
	case fastjson.TypeNumber:
		f, err := v.Float64()
		if err != nil {
			return StringValue(v.String())
		}
		return NumberValue(f)
	case fastjson.TypeTrue:
		return StringValue("true")
	case fastjson.TypeFalse:
		return StringValue("false")
	case fastjson.TypeNull:
		return Value{}
	default:
		return StringValue(v.String())
	}
}
