package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	domrepo "BarPulse/internal/domain/repository"
	"BarPulse/internal/service/ratelimit"
	"BarPulse/internal/usecase"
	xhttp "BarPulse/pkg/http"
	xlogger "BarPulse/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// event is the single outbound frame shape. Every event for an invocation
// echoes the client-chosen id; connection-scoped events carry conn_id instead.
type event struct {
	Event   string          `json:"event"`
	ID      string          `json:"id,omitempty"`
	ConnID  string          `json:"conn_id,omitempty"`
	Tool    string          `json:"tool,omitempty"`
	Message string          `json:"message,omitempty"`
	Count   *int            `json:"count,omitempty"`
	Payload interface{}     `json:"payload,omitempty"`
	Error   *xhttp.AppError `json:"error,omitempty"`
}

const (
	evConnected  = "connected"
	evProcessing = "processing"
	evDataReady  = "data_ready"
	evResult     = "result"
	evCompleted  = "completed"
	evError      = "error"
)

// eventSink serializes outbound events for one connection.
type eventSink interface {
	send(ev event) error
}

// wsSink guards the websocket writer; gorilla allows one concurrent writer.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) send(ev event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}

// Gateway exposes the bar query tools over a websocket, one invocation frame
// in, an ordered event stream out. Each invocation runs in its own goroutine
// with writes serialized through the sink, so a slow store call never stops
// the read loop from seeing the next frame or the disconnect.
type Gateway struct {
	logger       *xlogger.Logger
	svc          *usecase.BarQueryService
	metrics      domrepo.Metrics
	limiter      *ratelimit.Limiter
	upgrader     websocket.Upgrader
	defaultLimit int
}

func NewGateway(logger *xlogger.Logger, svc *usecase.BarQueryService, metrics domrepo.Metrics, limiter *ratelimit.Limiter, defaultLimit int) *Gateway {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &Gateway{
		logger:  logger,
		svc:     svc,
		metrics: metrics,
		limiter: limiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		defaultLimit: defaultLimit,
	}
}

func (g *Gateway) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", g.Serve)
	e.GET("/ws/tools", g.Tools)
}

// Tools returns the dispatchable tool catalogue plus the configured levels.
func (g *Gateway) Tools(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"tools":  Catalogue(),
		"levels": g.svc.Levels(),
	})
}

// Serve upgrades the request and runs the connection loop until the client
// goes away or the frame stream breaks.
func (g *Gateway) Serve(c echo.Context) error {
	conn, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the handshake failure.
		if g.logger != nil {
			g.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		}
		return nil
	}
	defer conn.Close()

	connID := uuid.NewString()
	if g.metrics != nil {
		g.metrics.StreamConnectionOpened()
		defer g.metrics.StreamConnectionClosed()
	}
	if g.limiter != nil {
		defer g.limiter.Forget(connID)
	}
	if g.logger != nil {
		g.logger.Info("stream connected", xlogger.String("conn_id", connID))
	}

	// The connection is hijacked, so the request context does not notice the
	// client going away. The read loop is the disconnect detector: when it
	// fails, cancel so in-flight store calls stop instead of finishing for
	// nobody.
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	sink := &wsSink{conn: conn}
	if err := sink.send(event{Event: evConnected, ConnID: connID}); err != nil {
		return nil
	}

	var inflight sync.WaitGroup
	defer inflight.Wait()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if g.logger != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Info("stream closed", xlogger.String("conn_id", connID), xlogger.Error(err))
			}
			cancel()
			return nil
		}
		frame := raw
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			g.handleFrame(ctx, sink, connID, frame)
		}()
	}
}

// handleFrame runs one inbound frame to completion. It reports whether the
// frame's event stream was fully delivered to the sink.
func (g *Gateway) handleFrame(ctx context.Context, sink eventSink, connID string, raw []byte) bool {
	var inv invocation
	if err := json.Unmarshal(raw, &inv); err != nil {
		return g.emit(sink, event{
			Event: evError,
			Error: xhttp.InvalidArgumentError("frame must be a JSON object with id, tool, params"),
		})
	}

	if g.limiter != nil && !g.limiter.Allow(connID) {
		g.countInvocation(inv.Tool, "rate_limited")
		return g.emit(sink, event{
			Event: evError,
			ID:    inv.ID,
			Tool:  inv.Tool,
			Error: xhttp.NewAppError("ERR_RATE_LIMITED", "", "rate limit exceeded, slow down", http.StatusTooManyRequests),
		})
	}

	// Parse first so the processing event can describe the resolved query.
	// A parse failure still gets a bare processing event before its error.
	call, parseErr := parseCall(inv.Tool, inv.Params, g.defaultLimit)
	processing := event{Event: evProcessing, ID: inv.ID, Tool: inv.Tool}
	if parseErr == nil {
		processing.Message = inv.Tool + ": " + call.describe()
	}
	if !g.emit(sink, processing) {
		return false
	}
	if parseErr != nil {
		return g.fail(sink, inv, parseErr)
	}

	res, err := call.run(ctx, g.svc)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false
		}
		return g.fail(sink, inv, err)
	}

	count := res.Count
	if !g.emit(sink, event{Event: evDataReady, ID: inv.ID, Tool: inv.Tool, Count: &count}) {
		return false
	}
	if !g.emit(sink, event{Event: evResult, ID: inv.ID, Tool: inv.Tool, Payload: res}) {
		return false
	}
	g.countInvocation(inv.Tool, "ok")
	return g.emit(sink, event{Event: evCompleted, ID: inv.ID, Tool: inv.Tool})
}

// fail emits the single error event for an invocation. Anything that is not
// an AppError goes out as an internal error without the raw message.
func (g *Gateway) fail(sink eventSink, inv invocation, err error) bool {
	var appErr *xhttp.AppError
	if !errors.As(err, &appErr) {
		appErr = xhttp.InternalError("internal server error")
	}
	if g.logger != nil && appErr.Status >= http.StatusInternalServerError {
		g.logger.Error("stream invocation failed",
			xlogger.String("tool", inv.Tool),
			xlogger.Error(err))
	}
	g.countInvocation(inv.Tool, "error")
	return g.emit(sink, event{Event: evError, ID: inv.ID, Tool: inv.Tool, Error: appErr})
}

func (g *Gateway) emit(sink eventSink, ev event) bool {
	return sink.send(ev) == nil
}

func (g *Gateway) countInvocation(tool, outcome string) {
	if g.metrics != nil {
		g.metrics.RecordStreamInvocation(tool, outcome)
	}
}
