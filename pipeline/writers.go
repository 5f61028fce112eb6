package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Paths are the files written by Save.
type Paths struct {
	JSON string
	CSV  string
}

// PathsFor derives both output files from an extension-less base path.
func PathsFor(base string) Paths {
	base = strings.TrimSuffix(strings.TrimSuffix(base, ".json"), ".csv")
	return Paths{JSON: base + ".json", CSV: base + ".csv"}
}

// Save writes records as a JSON document and a flattened CSV table next to
// base. An empty slice is logged and writes nothing. Both files are fully
// encoded before either is replaced, so a failed Save leaves prior output
// intact.
func Save[T any](records []T, base string) (Paths, error) {
	paths := PathsFor(base)
	if len(records) == 0 {
		slog.Info("no data to save", slog.String("output", base))
		return paths, nil
	}

	jsonData, err := encodeJSON(records)
	if err != nil {
		return paths, err
	}

	rows, err := flatten(records)
	if err != nil {
		return paths, err
	}
	csvData, err := encodeCSV(rows)
	if err != nil {
		return paths, err
	}

	if err := writeAtomically(paths.JSON, jsonData); err != nil {
		return paths, err
	}
	if err := writeAtomically(paths.CSV, csvData); err != nil {
		return paths, err
	}

	slog.Info("saved records",
		slog.Int("records", len(records)),
		slog.String("json", paths.JSON),
		slog.String("csv", paths.CSV),
	)
	return paths, nil
}

// encodeJSON renders the full record list as an indented array.
func encodeJSON(records any) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		return nil, fmt.Errorf("encode json records: %w", err)
	}
	return buffer.Bytes(), nil
}

// row is one record flattened to cell strings, keyed by JSON field name.
type row map[string]string

// flatten turns each record into cells. Lists and nested objects are kept as
// a single JSON-encoded cell; null becomes an empty cell.
func flatten[T any](records []T) ([]row, error) {
	rows := make([]row, 0, len(records))
	for i, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("record %d is not an object: %w", i, err)
		}

		r := make(row, len(fields))
		for key, raw := range fields {
			cell, err := cellValue(raw)
			if err != nil {
				return nil, fmt.Errorf("record %d field %q: %w", i, key, err)
			}
			r[key] = cell
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func cellValue(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", nil
	}
	switch raw[0] {
	case 'n':
		return "", nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '[', '{':
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			return "", err
		}
		return compact.String(), nil
	default:
		return string(raw), nil
	}
}

// header returns the sorted union of keys across rows.
func header(rows []row) []string {
	keys := make(map[string]struct{})
	for _, r := range rows {
		for key := range r {
			keys[key] = struct{}{}
		}
	}
	out := make([]string, 0, len(keys))
	for key := range keys {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func encodeCSV(rows []row) ([]byte, error) {
	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)
	columns := header(rows)
	if err := writer.Write(columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(columns))
	for _, r := range rows {
		for i, column := range columns {
			record[i] = r[column]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv records: %w", err)
	}
	return buffer.Bytes(), nil
}

// writeAtomically replaces filename through a temp file in the same
// directory, so readers never observe a truncated document.
func writeAtomically(filename string, data []byte) error {
	if err := ensureDir(filename); err != nil {
		return err
	}
	tmp := filename + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, filename); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", filename, err)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
