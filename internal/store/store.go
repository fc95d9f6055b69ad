package store

import (
	"context"
	"time"
)

// Store defines the persistence layer contract for conversion history.
// All implementations must be safe for concurrent use.
type Store interface {
	// Conversions
	CreateConversion(ctx context.Context, c *Conversion) error
	GetConversion(ctx context.Context, id string) (*Conversion, error)
	ListConversions(ctx context.Context, filter ConversionFilter) ([]*Conversion, error)
	DeleteConversion(ctx context.Context, id string) error

	// Maintenance
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
