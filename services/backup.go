package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

const exportFormatVersion = 1

// Dumper returns one table or collection as a JSON array.
type Dumper func(ctx context.Context, name string) (json.RawMessage, error)

// Export is the document written by CreateExport.
type Export struct {
	FormatVersion int                        `json:"format_version"`
	Backend       string                     `json:"backend"`
	GeneratedAt   time.Time                  `json:"generated_at"`
	Collections   map[string]json.RawMessage `json:"collections"`
	Notes         string                     `json:"notes,omitempty"`
}

// CreateExport dumps the named collections into a gzipped JSON document and returns
// it with a suggested file name.
func CreateExport(ctx context.Context, backend string, names []string, dump Dumper, now time.Time) ([]byte, string, error) {
	export := Export{
		FormatVersion: exportFormatVersion,
		Backend:       backend,
		GeneratedAt:   now.UTC(),
		Collections:   make(map[string]json.RawMessage, len(names)),
		Notes:         "Application data only; uploaded media is not included.",
	}
	for _, name := range names {
		data, err := dump(ctx, name)
		if err != nil {
			return nil, "", err
		}
		export.Collections[name] = data
	}

	js, err := json.Marshal(export)
	if err != nil {
		return nil, "", err
	}
	var b bytes.Buffer
	gz := gzip.NewWriter(&b)
	if _, err := gz.Write(js); err != nil {
		_ = gz.Close()
		return nil, "", err
	}
	if err := gz.Close(); err != nil {
		return nil, "", err
	}
	name := "patronhub-export-" + export.GeneratedAt.Format("20060102T150405Z") + ".json.gz"
	return b.Bytes(), name, nil
}

// ReadExport parses a document produced by CreateExport. Plain JSON is accepted too.
func ReadExport(r io.Reader) (*Export, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var src io.Reader = bytes.NewReader(raw)
	if zr, err := gzip.NewReader(bytes.NewReader(raw)); err == nil {
		defer zr.Close()
		src = zr
	}
	var export Export
	if err := json.NewDecoder(src).Decode(&export); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}
	if export.FormatVersion <= 0 || export.FormatVersion > exportFormatVersion {
		return nil, fmt.Errorf("unsupported export format %d", export.FormatVersion)
	}
	return &export, nil
}
