package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"BarPulse/internal/domain/models"
	domrepo "BarPulse/internal/domain/repository"
	pkgch "BarPulse/pkg/clickhouse"
	applogger "BarPulse/pkg/logger"
)

// ClickHouseBarStore implements BarStore backed by ClickHouse. Table names
// come from the level resolver's closed, config-owned set, never from user
// input, so interpolating them into the statement is safe.
type ClickHouseBarStore struct {
	ch       *pkgch.Client
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewClickHouseBarStore(ch *pkgch.Client, database string) *ClickHouseBarStore {
	return &ClickHouseBarStore{ch: ch, db: ch.DB(), database: database}
}

// SetLogger injects a structured logger.
func (s *ClickHouseBarStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *ClickHouseBarStore) FetchLatest(ctx context.Context, table, symbol string, limit int, cutoff *time.Time) ([]models.Bar, error) {
	start := time.Now()

	q := fmt.Sprintf(`
        SELECT time, symbol, open, high, low, close
        FROM %s.%s
        WHERE symbol = ?`, s.database, table)
	args := []interface{}{symbol}
	if cutoff != nil {
		q += " AND time <= ?"
		args = append(args, *cutoff)
	}
	q += `
        ORDER BY time DESC
        LIMIT ?`
	args = append(args, limit)

	bars, err := s.queryBars(ctx, q, args...)
	if err != nil {
		s.logError("clickhouse fetch_latest error", table, symbol, err)
		return nil, fmt.Errorf("fetch latest bars: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse fetch_latest ok",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.Int("limit", limit),
			applogger.Int("rows", len(bars)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return bars, nil
}

func (s *ClickHouseBarStore) FetchRange(ctx context.Context, table, symbol string, startTime, endTime time.Time) ([]models.Bar, error) {
	start := time.Now()

	q := fmt.Sprintf(`
        SELECT time, symbol, open, high, low, close
        FROM %s.%s
        WHERE symbol = ? AND time >= ? AND time <= ?
        ORDER BY time ASC`, s.database, table)

	bars, err := s.queryBars(ctx, q, symbol, startTime, endTime)
	if err != nil {
		s.logError("clickhouse fetch_range error", table, symbol, err)
		return nil, fmt.Errorf("fetch bars range: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse fetch_range ok",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(bars)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return bars, nil
}

// Health reports whether ClickHouse is reachable.
func (s *ClickHouseBarStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

// queryBars runs a bar select and maps every row to a typed Bar immediately.
func (s *ClickHouseBarStore) queryBars(ctx context.Context, q string, args ...interface{}) ([]models.Bar, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 64)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Time, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *ClickHouseBarStore) logError(msg, table, symbol string, err error) {
	if s.l == nil {
		return
	}
	s.l.Error(msg,
		applogger.String("table", table),
		applogger.String("symbol", symbol),
		applogger.Error(err),
	)
}

var _ domrepo.BarStore = (*ClickHouseBarStore)(nil)
