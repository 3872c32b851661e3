package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"BarPulse/internal/domain/models"
	domrepo "BarPulse/internal/domain/repository"
	"BarPulse/internal/usecase"
	xhttp "BarPulse/pkg/http"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	bars      []models.Bar
	err       error
	healthErr error

	latestCalls int
	lastLimit   int
	lastCutoff  *time.Time
}

func (s *stubStore) Health(context.Context) error { return s.healthErr }

func (s *stubStore) FetchLatest(_ context.Context, table, symbol string, limit int, cutoff *time.Time) ([]models.Bar, error) {
	s.latestCalls++
	s.lastLimit = limit
	s.lastCutoff = cutoff
	return s.bars, s.err
}

func (s *stubStore) FetchRange(_ context.Context, table, symbol string, start, end time.Time) ([]models.Bar, error) {
	return s.bars, s.err
}

type stubSearcher struct {
	listing string
	err     error
}

func (s *stubSearcher) Search(_ context.Context, keyword string) (string, error) {
	return s.listing, s.err
}

func newTestServer(t *testing.T, store *stubStore, searcher domrepo.MetaSearcher) *echo.Echo {
	t.Helper()
	levels := domrepo.NewLevelResolver(map[string]string{
		"15min":   "bars_15min",
		"daily":   "bars_daily",
		"weekly":  "bars_weekly",
		"monthly": "bars_monthly",
	})
	svc := usecase.NewBarQueryService(levels, store, nil, 5000)
	h := NewBarsEchoHandler(nil, svc, searcher, store, 10)

	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func doGET(e *echo.Echo, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func sampleBars() []models.Bar {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return []models.Bar{
		{Time: base.Add(48 * time.Hour), Symbol: "AAPL", Open: 9.6, High: 9.9, Low: 9.4, Close: 9.5},
		{Time: base.Add(24 * time.Hour), Symbol: "AAPL", Open: 10.1, High: 10.7, Low: 10.0, Close: 10.5},
		{Time: base, Symbol: "AAPL", Open: 9.9, High: 10.2, Low: 9.8, Close: 10.0},
	}
}

func TestLatestBarsOK(t *testing.T) {
	store := &stubStore{bars: sampleBars()}
	e := newTestServer(t, store, &stubSearcher{})

	rec := doGET(e, "/api/latest_bars/daily/AAPL?limit=3")
	require.Equal(t, http.StatusOK, rec.Code)

	var res models.QueryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "daily", res.TimeLevel)
	assert.Equal(t, "AAPL", res.Symbol)
	assert.Equal(t, 3, res.Count)
	require.Len(t, res.Data, 3)
	assert.True(t, res.Data[0].Time.Before(res.Data[1].Time), "bars should be ascending")
	assert.Equal(t, 3, store.lastLimit)
	assert.Nil(t, store.lastCutoff)
}

func TestLatestBarsDefaultLimit(t *testing.T) {
	store := &stubStore{bars: sampleBars()}
	e := newTestServer(t, store, &stubSearcher{})

	rec := doGET(e, "/api/latest_bars/daily/AAPL")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, store.lastLimit)
}

func TestLatestBarsCutoffPassedThrough(t *testing.T) {
	store := &stubStore{bars: sampleBars()}
	e := newTestServer(t, store, &stubSearcher{})

	rec := doGET(e, "/api/latest_bars/daily/AAPL?end_time=2024-05-03T00:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.lastCutoff)
	assert.Equal(t, time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), store.lastCutoff.UTC())
}

func TestLatestBarsUnknownLevel(t *testing.T) {
	store := &stubStore{bars: sampleBars()}
	e := newTestServer(t, store, &stubSearcher{})

	rec := doGET(e, "/api/latest_bars/hourly/AAPL")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body xhttp.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "ERR_INVALID_ARGUMENT", body.Error.Code)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "/api/latest_bars/hourly/AAPL", body.Path)
	assert.Equal(t, http.MethodGet, body.Method)
	assert.Zero(t, store.latestCalls, "store must not be touched on bad input")
}

func TestLatestBarsMalformedInput(t *testing.T) {
	e := newTestServer(t, &stubStore{bars: sampleBars()}, &stubSearcher{})

	for _, target := range []string{
		"/api/latest_bars/daily/AAPL?end_time=not-a-time",
		"/api/latest_bars/daily/AAPL?limit=ten",
		"/api/latest_bars/daily/AAPL?limit=0",
	} {
		rec := doGET(e, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestLatestBarsEmptyIsNotFound(t *testing.T) {
	e := newTestServer(t, &stubStore{}, &stubSearcher{})

	rec := doGET(e, "/api/latest_bars/daily/MSFT")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body xhttp.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "ERR_NOT_FOUND", body.Error.Code)
}

func TestBarsRangeRejectsUnorderedBounds(t *testing.T) {
	store := &stubStore{bars: sampleBars()}
	e := newTestServer(t, store, &stubSearcher{})

	rec := doGET(e, "/api/bars_range/daily/AAPL?start_time=2024-05-10T00:00:00Z&end_time=2024-05-01T00:00:00Z")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body xhttp.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Contains(t, body.Error.Message, "start_time must be before end_time")
}

func TestBarsRangeMissingBounds(t *testing.T) {
	e := newTestServer(t, &stubStore{bars: sampleBars()}, &stubSearcher{})

	rec := doGET(e, "/api/bars_range/daily/AAPL?start_time=2024-05-01T00:00:00Z")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFixedLevelRoutes(t *testing.T) {
	store := &stubStore{bars: sampleBars()}
	e := newTestServer(t, store, &stubSearcher{})

	for _, target := range []string{
		"/api/latest_daily_bars/AAPL",
		"/api/latest_weekly_bars/AAPL",
		"/api/latest_monthly_bars/AAPL",
	} {
		rec := doGET(e, target)
		require.Equal(t, http.StatusOK, rec.Code, target)
	}

	var res models.QueryResult
	rec := doGET(e, "/api/latest_weekly_bars/AAPL?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "weekly", res.TimeLevel)
	assert.Equal(t, 2, store.lastLimit)

	rec = doGET(e, "/api/daily_bars_range/AAPL?start_time=2024-05-01T00:00:00Z&end_time=2024-05-10T00:00:00Z")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doGET(e, "/api/daily_bars_range/AAPL?start_time=2024-05-01T00:00:00Z")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStoreFailureIsServiceUnavailable(t *testing.T) {
	e := newTestServer(t, &stubStore{err: errors.New("clickhouse: connection refused")}, &stubSearcher{})

	rec := doGET(e, "/api/latest_bars/daily/AAPL")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body xhttp.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "ERR_STORE_UNAVAILABLE", body.Error.Code)
}

func TestSearch(t *testing.T) {
	e := newTestServer(t, &stubStore{}, &stubSearcher{listing: "AAPL\tApple Inc."})

	rec := doGET(e, "/api/search?keyword=apple")
	require.Equal(t, http.StatusOK, rec.Code)

	var res map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "apple", res["keyword"])
	assert.Equal(t, "AAPL\tApple Inc.", res["result"])

	rec = doGET(e, "/api/search")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchUnconfigured(t *testing.T) {
	e := newTestServer(t, &stubStore{}, &stubSearcher{err: xhttp.UnavailableError("stock metadata search is not configured")})

	rec := doGET(e, "/api/search?keyword=apple")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body xhttp.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "ERR_UNAVAILABLE", body.Error.Code)
}

func TestRootLiveness(t *testing.T) {
	e := newTestServer(t, &stubStore{}, &stubSearcher{})

	rec := doGET(e, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "running")
}

func TestHealthOK(t *testing.T) {
	e := newTestServer(t, &stubStore{}, &stubSearcher{})

	rec := doGET(e, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestHealthStoreDown(t *testing.T) {
	e := newTestServer(t, &stubStore{healthErr: errors.New("dial tcp: connection refused")}, &stubSearcher{})

	rec := doGET(e, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body xhttp.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "ERR_STORE_UNAVAILABLE", body.Error.Code)
}
