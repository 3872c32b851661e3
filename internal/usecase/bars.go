package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"BarPulse/internal/domain/models"
	domrepo "BarPulse/internal/domain/repository"
	xhttp "BarPulse/pkg/http"
	applogger "BarPulse/pkg/logger"
)

// BarQueryService orchestrates level resolution, the bar store, and the change
// formatter for the two retrieval modes. Both operations are read-only and
// safe to retry.
type BarQueryService struct {
	levels   *domrepo.LevelResolver
	store    domrepo.BarStore
	metrics  domrepo.Metrics
	maxLimit int
	l        *applogger.Logger
}

func NewBarQueryService(levels *domrepo.LevelResolver, store domrepo.BarStore, metrics domrepo.Metrics, maxLimit int) *BarQueryService {
	if maxLimit <= 0 {
		maxLimit = 5000
	}
	return &BarQueryService{levels: levels, store: store, metrics: metrics, maxLimit: maxLimit}
}

// SetLogger injects a structured logger.
func (s *BarQueryService) SetLogger(l *applogger.Logger) { s.l = l }

// Levels exposes the configured level tokens (for the tool catalogue).
func (s *BarQueryService) Levels() []string { return s.levels.Tokens() }

// GetLatestBars returns the limit most recent bars at or before cutoff
// (unbounded when cutoff is nil), ascending by time in the result.
func (s *BarQueryService) GetLatestBars(ctx context.Context, level, symbol string, cutoff *time.Time, limit int) (*models.QueryResult, error) {
	start := time.Now()

	if limit <= 0 {
		return nil, xhttp.InvalidArgumentErrorf("limit must be a positive integer, got %d", limit)
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	table, err := s.resolveLevel(level)
	if err != nil {
		return nil, err
	}

	bars, err := s.store.FetchLatest(ctx, table, symbol, limit, cutoff)
	if err != nil {
		return nil, s.storeFailure(ctx, "latest", level, symbol, err)
	}
	if len(bars) == 0 {
		if cutoff != nil {
			return nil, xhttp.NotFoundErrorf("no %s bars found for %s at or before %s",
				level, symbol, cutoff.UTC().Format(time.RFC3339))
		}
		return nil, xhttp.NotFoundErrorf("no %s bars found for %s", level, symbol)
	}

	res := s.envelope(level, symbol, bars)
	s.observe("latest", level, res.Count, start)
	return res, nil
}

// GetBarsRange returns all bars within [start, end], both bounds inclusive.
// The bound order is checked before the level token, and always before any
// store access.
func (s *BarQueryService) GetBarsRange(ctx context.Context, level, symbol string, startTime, endTime time.Time) (*models.QueryResult, error) {
	start := time.Now()

	if !startTime.Before(endTime) {
		return nil, xhttp.InvalidArgumentError("start_time must be before end_time")
	}
	table, err := s.resolveLevel(level)
	if err != nil {
		return nil, err
	}

	bars, err := s.store.FetchRange(ctx, table, symbol, startTime, endTime)
	if err != nil {
		return nil, s.storeFailure(ctx, "range", level, symbol, err)
	}
	if len(bars) == 0 {
		return nil, xhttp.NotFoundErrorf("no %s bars found for %s between %s and %s",
			level, symbol, startTime.UTC().Format(time.RFC3339), endTime.UTC().Format(time.RFC3339))
	}

	res := s.envelope(level, symbol, bars)
	s.observe("range", level, res.Count, start)
	return res, nil
}

func (s *BarQueryService) resolveLevel(level string) (string, error) {
	table, ok := s.levels.Resolve(level)
	if !ok {
		return "", xhttp.InvalidArgumentErrorf("invalid time level: %s, valid values: %s",
			level, strings.Join(s.levels.Tokens(), ", ")).
			WithParam("valid_levels", s.levels.Tokens())
	}
	return table, nil
}

// envelope formats the bars and wraps them, echoing the requested token and
// symbol verbatim rather than the resolved table.
func (s *BarQueryService) envelope(level, symbol string, bars []models.Bar) *models.QueryResult {
	data := FormatBars(bars)
	return &models.QueryResult{
		Data:      data,
		Count:     len(data),
		TimeLevel: level,
		Symbol:    symbol,
	}
}

func (s *BarQueryService) storeFailure(ctx context.Context, mode, level, symbol string, err error) error {
	// Client disconnects are informational, not backend failures.
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		if s.l != nil {
			s.l.Info("bar query cancelled",
				applogger.String("mode", mode),
				applogger.String("level", level),
				applogger.String("symbol", symbol),
			)
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordError("store_unavailable")
	}
	if s.l != nil {
		s.l.Error("bar store failure",
			applogger.String("mode", mode),
			applogger.String("level", level),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
	}
	return xhttp.StoreUnavailableError("bar store query failed").
		WithParam("operation", mode).
		WithError(err)
}

func (s *BarQueryService) observe(mode, level string, rows int, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordQuery(mode, level)
	s.metrics.RecordQueryDuration(mode, time.Since(start).Seconds())
	s.metrics.RecordRowsReturned(mode, rows)
}
