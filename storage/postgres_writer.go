package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"travel-monitor/models"
)

const insertBatchSize = 50

// PostgresStore persists observations to PostgreSQL. Rows are only ever
// inserted.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("postgres: ping: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return ps, nil
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS price_observations (
			id             BIGSERIAL PRIMARY KEY,
			observed_at    TIMESTAMPTZ   NOT NULL,
			route_id       TEXT          NOT NULL,
			transport_type VARCHAR(10)   NOT NULL,
			cabin_class    VARCHAR(20)   NOT NULL,
			price          NUMERIC(12,2),
			currency       VARCHAR(3)    NOT NULL DEFAULT '',
			airline        TEXT          NOT NULL DEFAULT '',
			stops          INTEGER,
			duration       TEXT          NOT NULL DEFAULT '',
			train_type     TEXT          NOT NULL DEFAULT '',
			departure_time TEXT          NOT NULL DEFAULT '',
			arrival_time   TEXT          NOT NULL DEFAULT '',
			week_start     TEXT          NOT NULL DEFAULT '',
			travel_date    TEXT          NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_observations_route ON price_observations(transport_type, route_id);
		CREATE INDEX IF NOT EXISTS idx_observations_date  ON price_observations(travel_date);
	`)
	return err
}

// Append inserts obs in batches inside one transaction.
func (ps *PostgresStore) Append(ctx context.Context, obs ...models.PriceObservation) error {
	if len(obs) == 0 {
		return nil
	}
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	for i := 0; i < len(obs); i += insertBatchSize {
		end := min(i+insertBatchSize, len(obs))
		query, args := buildInsert(obs[i:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("postgres: insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

const insertColumns = 14

func buildInsert(batch []models.PriceObservation) (string, []any) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*insertColumns)

	for idx, o := range batch {
		base := idx * insertColumns
		ph := make([]string, insertColumns)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")

		var price, stops any
		currency := ""
		if o.HasPrice() {
			price = *o.Price
			currency = o.Currency
		}
		if o.TransportType == models.Flight {
			stops = o.Stops
		}
		valueArgs = append(valueArgs,
			o.Timestamp, o.RouteID, string(o.TransportType), o.CabinClass, price, currency,
			o.Airline, stops, o.Duration, o.TrainType, o.DepartureTime, o.ArrivalTime,
			o.WeekStart, o.TravelDate)
	}

	query := fmt.Sprintf(`
		INSERT INTO price_observations (observed_at, route_id, transport_type, cabin_class, price, currency,
			airline, stops, duration, train_type, departure_time, arrival_time, week_start, travel_date)
		VALUES %s
	`, strings.Join(valueStrings, ","))
	return query, valueArgs
}

// History retrieves the observations of one transport in insertion order.
func (ps *PostgresStore) History(ctx context.Context, transport models.TransportType, routeID string) ([]models.PriceObservation, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT observed_at, route_id, transport_type, cabin_class, price, currency, airline, stops,
			duration, train_type, departure_time, arrival_time, week_start, travel_date
		FROM price_observations
		WHERE transport_type = $1 AND ($2::text = '' OR route_id = $2)
		ORDER BY id
	`, string(transport), routeID)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch history: %w", err)
	}
	defer rows.Close()

	var out []models.PriceObservation
	for rows.Next() {
		var (
			o     models.PriceObservation
			kind  string
			price sql.NullFloat64
			stops sql.NullInt64
		)
		if err := rows.Scan(
			&o.Timestamp, &o.RouteID, &kind, &o.CabinClass, &price, &o.Currency, &o.Airline, &stops,
			&o.Duration, &o.TrainType, &o.DepartureTime, &o.ArrivalTime, &o.WeekStart, &o.TravelDate,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		o.TransportType = models.TransportType(kind)
		if price.Valid && price.Float64 > 0 {
			v := price.Float64
			o.Price = &v
		}
		o.Stops = int(stops.Int64)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
