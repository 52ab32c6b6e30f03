package storage

import (
	"context"

	"travel-monitor/models"
)

// HistoryStore is the interface any storage backend must satisfy. Stores
// are append-only: observations are never rewritten or deleted.
type HistoryStore interface {
	// Append persists observations in order. Each call is atomic per
	// backend file or transaction.
	Append(ctx context.Context, obs ...models.PriceObservation) error
	// History returns the stored observations of one transport in append
	// order. An empty routeID returns every route.
	History(ctx context.Context, transport models.TransportType, routeID string) ([]models.PriceObservation, error)
	Close() error
}
