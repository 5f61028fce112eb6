// Package cache indexes the records of a previous run so a rerun can skip
// identifiers that were already scraped.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aluiziolira/go-scrape-venues/models"
)

// CacheLoadError reports an unreadable or malformed prior output file.
type CacheLoadError struct {
	Path string
	Err  error
}

func (e CacheLoadError) Error() string {
	return fmt.Sprintf("load cache %s: %v", e.Path, e.Err)
}

func (e CacheLoadError) Unwrap() error {
	return e.Err
}

// Load reads a JSON document written by the pipeline and indexes its records
// by RecordID, dropping records without one. A missing file yields an empty
// index. A malformed file is logged and also yields an empty index, forcing a
// full re-scrape.
func Load[T models.Record](path string) map[string]T {
	index, err := Read[T](path)
	if err != nil {
		slog.Warn("ignoring unreadable cache", slog.String("path", path), slog.Any("error", err))
		return map[string]T{}
	}
	return index
}

// Read is Load with the error surfaced. A missing file is not an error.
func Read[T models.Record](path string) (map[string]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]T{}, nil
		}
		return nil, CacheLoadError{Path: path, Err: err}
	}

	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, CacheLoadError{Path: path, Err: err}
	}

	index := make(map[string]T, len(records))
	dropped := 0
	for _, record := range records {
		id := record.RecordID()
		if id == "" {
			dropped++
			continue
		}
		index[id] = record
	}

	slog.Info("cache loaded",
		slog.String("path", path),
		slog.Int("records", len(index)),
		slog.Int("without_id", dropped),
	)
	return index, nil
}
