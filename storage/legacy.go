package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"travel-monitor/models"
)

// MigrateLegacy imports the single-route prices.csv of earlier versions
// into the flights history, tagging every row with routeID. It does nothing
// when the legacy file is missing or the flights history already exists, so
// it is safe to run before every scan. The new file is written to a temp
// file and renamed into place. It returns the number of imported rows.
func (c *CSVStore) MigrateLegacy(legacyPath, routeID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.Path(models.Flight)
	if _, err := os.Stat(target); err == nil {
		return 0, nil
	}

	src, err := os.Open(legacyPath)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("legacy: open: %w", err)
	}
	defer src.Close()

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("legacy: read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	get := func(rec []string, name, fallback string) string {
		if i, ok := index[name]; ok && i < len(rec) {
			return rec[i]
		}
		return fallback
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("legacy: read row: %w", err)
		}
		rows = append(rows, []string{
			get(rec, "timestamp", ""),
			routeID,
			string(models.Flight),
			get(rec, "cabin", "ECONOMY"),
			get(rec, "price", ""),
			get(rec, "currency", ""),
			get(rec, "airline", ""),
			get(rec, "stops", ""),
			get(rec, "duration", ""),
			"", "", "", "", "",
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".flights-*.csv")
	if err != nil {
		return 0, fmt.Errorf("legacy: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	_ = w.Write(Columns)
	_ = w.WriteAll(rows)
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("legacy: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("legacy: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return 0, fmt.Errorf("legacy: rename: %w", err)
	}
	return len(rows), nil
}
