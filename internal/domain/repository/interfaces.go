package repository

import (
	"context"
	"time"

	"BarPulse/internal/domain/models"
)

// BarStore provides read access to bar tables, scoped to (table, symbol).
// Implementations map rows to models.Bar at this boundary; untyped rows never
// escape. Zero matching rows is a normal empty result, not an error.
type BarStore interface {
	// FetchLatest returns at most limit rows with time <= cutoff (when cutoff
	// is non-nil), selected most-recent-first on the source side.
	FetchLatest(ctx context.Context, table, symbol string, limit int, cutoff *time.Time) ([]models.Bar, error)
	// FetchRange returns rows with start <= time <= end, both bounds inclusive.
	FetchRange(ctx context.Context, table, symbol string, start, end time.Time) ([]models.Bar, error)
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// MetaSearcher looks up stock metadata by symbol or name through an external
// service. Implementations must fail loudly when unconfigured rather than
// returning an empty success.
type MetaSearcher interface {
	Search(ctx context.Context, keyword string) (string, error)
}

// Metrics records operational measurements for the query pipeline.
type Metrics interface {
	RecordQuery(mode, level string)
	RecordError(kind string)
	RecordQueryDuration(mode string, seconds float64)
	RecordRowsReturned(mode string, rows int)
	StreamConnectionOpened()
	StreamConnectionClosed()
	RecordStreamInvocation(tool, outcome string)
}
