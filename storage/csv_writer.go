package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"travel-monitor/models"
)

// Columns is the persisted column order of both history files.
var Columns = []string{
	"timestamp", "route_id", "transport_type", "cabin_class", "price", "currency",
	"airline", "stops", "duration", "train_type", "departure_time", "arrival_time",
	"week_start", "travel_date",
}

// timestampLayouts are accepted when reading; RFC 3339 is always written.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// CSVStore keeps one append-only CSV file per transport type under a data
// directory. It is safe for concurrent use.
type CSVStore struct {
	mu  sync.Mutex
	dir string
}

// NewCSVStore creates dir if needed.
func NewCSVStore(dir string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("csv: create data dir: %w", err)
	}
	return &CSVStore{dir: dir}, nil
}

// Path is the history file of transport, e.g. data/flights.csv.
func (c *CSVStore) Path(transport models.TransportType) string {
	return filepath.Join(c.dir, string(transport)+"s.csv")
}

// Append encodes obs into one buffer per file and writes each buffer with
// a single O_APPEND write. The header goes out with the first row of a new
// file.
func (c *CSVStore) Append(ctx context.Context, obs ...models.PriceObservation) error {
	if len(obs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var order []models.TransportType
	byType := map[models.TransportType][]models.PriceObservation{}
	for _, o := range obs {
		if _, ok := byType[o.TransportType]; !ok {
			order = append(order, o.TransportType)
		}
		byType[o.TransportType] = append(byType[o.TransportType], o)
	}

	for _, t := range order {
		if err := c.appendFile(c.Path(t), byType[t]); err != nil {
			return err
		}
	}
	return nil
}

func (c *CSVStore) appendFile(path string, obs []models.PriceObservation) error {
	info, err := os.Stat(path)
	newFile := errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if newFile {
		if err := w.Write(Columns); err != nil {
			return fmt.Errorf("csv: write header: %w", err)
		}
	}
	for _, o := range obs {
		if err := w.Write(EncodeRow(o)); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: encode rows: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("csv: open %q: %w", path, err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: append %q: %w", path, err)
	}
	return f.Close()
}

// History reads the file of transport. A missing file is an empty history.
func (c *CSVStore) History(ctx context.Context, transport models.TransportType, routeID string) ([]models.PriceObservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Open(c.Path(transport))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: open history: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}

	var out []models.PriceObservation
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read row: %w", err)
		}
		o := DecodeRow(index, rec)
		if o.TransportType == "" {
			o.TransportType = transport
		}
		if routeID != "" && o.RouteID != routeID {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (c *CSVStore) Close() error { return nil }

// EncodeRow renders o in Columns order. Price and currency are blank for
// unpriced observations; stops is only written for flights.
func EncodeRow(o models.PriceObservation) []string {
	price, currency := "", ""
	if o.HasPrice() {
		price = strconv.FormatFloat(*o.Price, 'f', -1, 64)
		currency = o.Currency
	}
	stops := ""
	if o.TransportType == models.Flight {
		stops = strconv.Itoa(o.Stops)
	}
	return []string{
		o.Timestamp.Format(time.RFC3339),
		o.RouteID,
		string(o.TransportType),
		o.CabinClass,
		price,
		currency,
		o.Airline,
		stops,
		o.Duration,
		o.TrainType,
		o.DepartureTime,
		o.ArrivalTime,
		o.WeekStart,
		o.TravelDate,
	}
}

// DecodeRow maps a record onto an observation using a header index.
// Missing columns and unparsable numbers read as empty.
func DecodeRow(index map[string]int, rec []string) models.PriceObservation {
	get := func(name string) string {
		if i, ok := index[name]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}

	o := models.PriceObservation{
		Timestamp:     parseTimestamp(get("timestamp")),
		RouteID:       get("route_id"),
		TransportType: models.TransportType(get("transport_type")),
		CabinClass:    get("cabin_class"),
		Currency:      get("currency"),
		Airline:       get("airline"),
		Duration:      get("duration"),
		TrainType:     get("train_type"),
		DepartureTime: get("departure_time"),
		ArrivalTime:   get("arrival_time"),
		WeekStart:     get("week_start"),
		TravelDate:    get("travel_date"),
	}
	if v, err := strconv.ParseFloat(get("price"), 64); err == nil && v > 0 {
		o.Price = &v
	}
	if n, err := strconv.Atoi(get("stops")); err == nil {
		o.Stops = n
	}
	return o
}

func parseTimestamp(raw string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
