package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"BarPulse/internal/domain/models"
	domrepo "BarPulse/internal/domain/repository"
	"BarPulse/internal/service/ratelimit"
	"BarPulse/internal/usecase"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	bars []models.Bar
	err  error

	lastLimit  int
	lastCutoff *time.Time
}

func (s *stubStore) FetchLatest(_ context.Context, table, symbol string, limit int, cutoff *time.Time) ([]models.Bar, error) {
	s.lastLimit = limit
	s.lastCutoff = cutoff
	return s.bars, s.err
}

func (s *stubStore) FetchRange(_ context.Context, table, symbol string, start, end time.Time) ([]models.Bar, error) {
	return s.bars, s.err
}

type recordingSink struct {
	events []event
}

func (s *recordingSink) send(ev event) error {
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) names() []string {
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Event)
	}
	return out
}

func newGateway(store domrepo.BarStore, limiter *ratelimit.Limiter) *Gateway {
	levels := domrepo.NewLevelResolver(map[string]string{
		"15min":   "bars_15min",
		"daily":   "bars_daily",
		"weekly":  "bars_weekly",
		"monthly": "bars_monthly",
	})
	svc := usecase.NewBarQueryService(levels, store, nil, 5000)
	return NewGateway(nil, svc, nil, limiter, 10)
}

func sampleBars() []models.Bar {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return []models.Bar{
		{Time: base.Add(24 * time.Hour), Symbol: "AAPL", Open: 10.1, High: 10.7, Low: 10.0, Close: 10.5},
		{Time: base, Symbol: "AAPL", Open: 9.9, High: 10.2, Low: 9.8, Close: 10.0},
	}
}

func TestInvocationEventOrder(t *testing.T) {
	store := &stubStore{bars: sampleBars()}
	g := newGateway(store, nil)
	sink := &recordingSink{}

	ok := g.handleFrame(context.Background(), sink, "conn-1",
		[]byte(`{"id":"req-1","tool":"get_latest_bars","params":{"time_level":"daily","symbol":"AAPL","limit":2}}`))
	require.True(t, ok)

	require.Equal(t, []string{evProcessing, evDataReady, evResult, evCompleted}, sink.names())
	for _, ev := range sink.events {
		assert.Equal(t, "req-1", ev.ID)
		assert.Equal(t, "get_latest_bars", ev.Tool)
	}
	assert.Equal(t, "get_latest_bars: daily AAPL limit=2", sink.events[0].Message)

	ready := sink.events[1]
	require.NotNil(t, ready.Count)
	assert.Equal(t, 2, *ready.Count)

	res, isResult := sink.events[2].Payload.(*models.QueryResult)
	require.True(t, isResult)
	assert.Equal(t, "daily", res.TimeLevel)
	require.Len(t, res.Data, 2)
	assert.True(t, res.Data[0].Time.Before(res.Data[1].Time), "bars should be ascending")
	assert.Equal(t, 2, store.lastLimit)
}

func TestFixedLevelToolPinsLevel(t *testing.T) {
	store := &stubStore{bars: sampleBars()}
	g := newGateway(store, nil)
	sink := &recordingSink{}

	g.handleFrame(context.Background(), sink, "conn-1",
		[]byte(`{"id":"req-2","tool":"get_latest_weekly_bars","params":{"symbol":"AAPL"}}`))

	require.Equal(t, []string{evProcessing, evDataReady, evResult, evCompleted}, sink.names())
	res := sink.events[2].Payload.(*models.QueryResult)
	assert.Equal(t, "weekly", res.TimeLevel)
	assert.Equal(t, 10, store.lastLimit, "default limit applies when params omit it")
}

func TestBadTimestampStopsBeforeData(t *testing.T) {
	g := newGateway(&stubStore{bars: sampleBars()}, nil)
	sink := &recordingSink{}

	g.handleFrame(context.Background(), sink, "conn-1",
		[]byte(`{"id":"req-3","tool":"get_latest_bars","params":{"time_level":"daily","symbol":"AAPL","end_time":"not-a-time"}}`))

	require.Equal(t, []string{evProcessing, evError}, sink.names())
	errEv := sink.events[1]
	require.NotNil(t, errEv.Error)
	assert.Equal(t, "ERR_INVALID_ARGUMENT", errEv.Error.Code)
	assert.Equal(t, "req-3", errEv.ID)
}

func TestUnknownTool(t *testing.T) {
	g := newGateway(&stubStore{}, nil)
	sink := &recordingSink{}

	g.handleFrame(context.Background(), sink, "conn-1",
		[]byte(`{"id":"req-4","tool":"get_sparklines","params":{}}`))

	require.Equal(t, []string{evProcessing, evError}, sink.names())
	assert.Equal(t, "ERR_INVALID_ARGUMENT", sink.events[1].Error.Code)
}

func TestMalformedFrame(t *testing.T) {
	g := newGateway(&stubStore{}, nil)
	sink := &recordingSink{}

	g.handleFrame(context.Background(), sink, "conn-1", []byte(`not json`))

	require.Equal(t, []string{evError}, sink.names())
	assert.Equal(t, "ERR_INVALID_ARGUMENT", sink.events[0].Error.Code)
}

func TestUnorderedRangeBounds(t *testing.T) {
	g := newGateway(&stubStore{bars: sampleBars()}, nil)
	sink := &recordingSink{}

	g.handleFrame(context.Background(), sink, "conn-1",
		[]byte(`{"id":"req-5","tool":"get_bars_range","params":{"time_level":"daily","symbol":"AAPL","start_time":"2024-05-10T00:00:00Z","end_time":"2024-05-01T00:00:00Z"}}`))

	require.Equal(t, []string{evProcessing, evError}, sink.names())
	assert.Contains(t, sink.events[1].Error.Message, "start_time must be before end_time")
}

func TestEmptyResultIsNotFound(t *testing.T) {
	g := newGateway(&stubStore{}, nil)
	sink := &recordingSink{}

	g.handleFrame(context.Background(), sink, "conn-1",
		[]byte(`{"id":"req-6","tool":"get_latest_bars","params":{"time_level":"daily","symbol":"MSFT"}}`))

	require.Equal(t, []string{evProcessing, evError}, sink.names())
	assert.Equal(t, "ERR_NOT_FOUND", sink.events[1].Error.Code)
}

func TestRateLimitedInvocation(t *testing.T) {
	limiter := ratelimit.New(1, 0.000001)
	g := newGateway(&stubStore{bars: sampleBars()}, limiter)
	frame := []byte(`{"id":"req-7","tool":"get_latest_bars","params":{"time_level":"daily","symbol":"AAPL"}}`)

	first := &recordingSink{}
	g.handleFrame(context.Background(), first, "conn-1", frame)
	require.Equal(t, []string{evProcessing, evDataReady, evResult, evCompleted}, first.names())

	second := &recordingSink{}
	g.handleFrame(context.Background(), second, "conn-1", frame)
	require.Equal(t, []string{evError}, second.names())
	assert.Equal(t, "ERR_RATE_LIMITED", second.events[0].Error.Code)

	// Another connection has its own bucket.
	third := &recordingSink{}
	g.handleFrame(context.Background(), third, "conn-2", frame)
	require.Equal(t, []string{evProcessing, evDataReady, evResult, evCompleted}, third.names())
}

func TestProcessingDescribesResolvedQuery(t *testing.T) {
	g := newGateway(&stubStore{bars: sampleBars()}, nil)
	sink := &recordingSink{}

	g.handleFrame(context.Background(), sink, "conn-1",
		[]byte(`{"id":"req-8","tool":"get_bars_range","params":{"time_level":"daily","symbol":"AAPL","start_time":"2024-05-01T00:00:00Z","end_time":"2024-05-10T00:00:00Z"}}`))

	require.Equal(t, evProcessing, sink.events[0].Event)
	assert.Equal(t,
		"get_bars_range: daily AAPL from 2024-05-01T00:00:00Z to 2024-05-10T00:00:00Z",
		sink.events[0].Message)
}

// blockingStore parks every fetch on its context so tests can observe whether
// a disconnect reaches in-flight calls.
type blockingStore struct {
	entered chan struct{}
	result  chan error
}

func (s *blockingStore) FetchLatest(ctx context.Context, table, symbol string, limit int, cutoff *time.Time) ([]models.Bar, error) {
	close(s.entered)
	<-ctx.Done()
	s.result <- ctx.Err()
	return nil, ctx.Err()
}

func (s *blockingStore) FetchRange(ctx context.Context, table, symbol string, start, end time.Time) ([]models.Bar, error) {
	return nil, ctx.Err()
}

func TestDisconnectCancelsInFlightCall(t *testing.T) {
	store := &blockingStore{
		entered: make(chan struct{}),
		result:  make(chan error, 1),
	}
	g := newGateway(store, nil)

	e := echo.New()
	g.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)

	var hello event
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, evConnected, hello.Event)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"id":"req-9","tool":"get_latest_bars","params":{"time_level":"daily","symbol":"AAPL"}}`)))

	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("store was never called")
	}

	require.NoError(t, conn.Close())

	select {
	case err := <-store.result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight store call was not cancelled after disconnect")
	}
}

func TestSlowCallDoesNotBlockReadLoop(t *testing.T) {
	store := &blockingStore{
		entered: make(chan struct{}),
		result:  make(chan error, 1),
	}
	g := newGateway(store, nil)

	e := echo.New()
	g.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello event
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, evConnected, hello.Event)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"id":"slow","tool":"get_latest_bars","params":{"time_level":"daily","symbol":"AAPL"}}`)))
	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("store was never called")
	}

	// A second, invalid frame must still be answered while the first call
	// is parked in the store.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"id":"fast","tool":"get_sparklines","params":{}}`)))

	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var ev event
		require.NoError(t, conn.ReadJSON(&ev), "gateway stopped answering while a call was in flight")
		if ev.ID == "fast" && ev.Event == evError {
			assert.Equal(t, "ERR_INVALID_ARGUMENT", ev.Error.Code)
			return
		}
	}
}

func TestCatalogueCoversAllTools(t *testing.T) {
	specs := Catalogue()
	names := make(map[string]bool, len(specs))
	for _, s := range specs {
		names[s.Name] = true
		assert.NotEmpty(t, s.Params, s.Name)
	}
	for _, want := range []string{
		"get_latest_bars", "get_bars_range",
		"get_latest_daily_bars", "get_latest_weekly_bars", "get_latest_monthly_bars",
		"get_daily_bars_range", "get_weekly_bars_range", "get_monthly_bars_range",
	} {
		assert.True(t, names[want], want)
	}
	assert.Len(t, specs, 8)
}
