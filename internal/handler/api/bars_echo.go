package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"BarPulse/internal/domain/models"
	domrepo "BarPulse/internal/domain/repository"
	"BarPulse/internal/usecase"
	xhttp "BarPulse/pkg/http"
	xlogger "BarPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// statusClientClosedRequest mirrors nginx's non-standard 499 for clients that
// disconnected before the response was written.
const statusClientClosedRequest = 499

// fixedLevels get their own thin routes; each pins the level token and shares
// all logic with the parameterized endpoints.
var fixedLevels = []string{"daily", "weekly", "monthly"}

// BarsEchoHandler exposes the bar query pipeline over HTTP.
type BarsEchoHandler struct {
	logger       *xlogger.Logger
	svc          *usecase.BarQueryService
	searcher     domrepo.MetaSearcher
	health       domrepo.HealthChecker
	defaultLimit int
}

func NewBarsEchoHandler(logger *xlogger.Logger, svc *usecase.BarQueryService, searcher domrepo.MetaSearcher, health domrepo.HealthChecker, defaultLimit int) *BarsEchoHandler {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &BarsEchoHandler{logger: logger, svc: svc, searcher: searcher, health: health, defaultLimit: defaultLimit}
}

func (h *BarsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/health", h.HealthCheck)

	g := e.Group("/api")
	g.GET("/latest_bars/:time_level/:symbol", h.LatestBars)
	g.GET("/bars_range/:time_level/:symbol", h.BarsRange)
	for _, level := range fixedLevels {
		g.GET("/latest_"+level+"_bars/:symbol", h.latestFixed(level))
		g.GET("/"+level+"_bars_range/:symbol", h.rangeFixed(level))
	}
	g.GET("/search", h.Search)
}

func (h *BarsEchoHandler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message": "stock bar query service is running",
	})
}

// HealthCheck pings the bar store. Liveness stays on "/"; this is readiness.
func (h *BarsEchoHandler) HealthCheck(c echo.Context) error {
	if h.health != nil {
		if err := h.health.Health(c.Request().Context()); err != nil {
			return h.fail(c, xhttp.StoreUnavailableError("bar store unreachable").WithError(err))
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *BarsEchoHandler) LatestBars(c echo.Context) error {
	req := &models.LatestBarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.latest(c, req.TimeLevel, req.Symbol, req.EndTime, req.Limit)
}

func (h *BarsEchoHandler) BarsRange(c echo.Context) error {
	req := &models.BarsRangeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.barsRange(c, req.TimeLevel, req.Symbol, req.StartTime, req.EndTime)
}

func (h *BarsEchoHandler) Search(c echo.Context) error {
	req := &models.SearchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	listing, err := h.searcher.Search(c.Request().Context(), req.Keyword)
	if err != nil {
		return h.fail(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]string{
		"keyword": req.Keyword,
		"result":  listing,
	})
}

func (h *BarsEchoHandler) latestFixed(level string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return h.latest(c, level, c.Param("symbol"), c.QueryParam("end_time"), c.QueryParam("limit"))
	}
}

func (h *BarsEchoHandler) rangeFixed(level string) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := c.QueryParam("start_time")
		end := c.QueryParam("end_time")
		if start == "" || end == "" {
			return h.fail(c, xhttp.InvalidArgumentError("start_time and end_time are required"))
		}
		return h.barsRange(c, level, c.Param("symbol"), start, end)
	}
}

func (h *BarsEchoHandler) latest(c echo.Context, level, symbol, endTime, limitStr string) error {
	var cutoff *time.Time
	if endTime != "" {
		t, ok := xhttp.ParseTime(endTime)
		if !ok {
			return h.fail(c, xhttp.InvalidArgumentErrorf("invalid end_time: %q", endTime))
		}
		cutoff = &t
	}

	limit := h.defaultLimit
	if limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil {
			return h.fail(c, xhttp.InvalidArgumentErrorf("invalid limit: %q", limitStr))
		}
		limit = v
	}

	res, err := h.svc.GetLatestBars(c.Request().Context(), level, symbol, cutoff, limit)
	if err != nil {
		return h.fail(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BarsEchoHandler) barsRange(c echo.Context, level, symbol, startStr, endStr string) error {
	start, ok := xhttp.ParseTime(startStr)
	if !ok {
		return h.fail(c, xhttp.InvalidArgumentErrorf("invalid start_time: %q", startStr))
	}
	end, ok := xhttp.ParseTime(endStr)
	if !ok {
		return h.fail(c, xhttp.InvalidArgumentErrorf("invalid end_time: %q", endStr))
	}

	res, err := h.svc.GetBarsRange(c.Request().Context(), level, symbol, start, end)
	if err != nil {
		return h.fail(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// fail logs by severity and writes the structured error body. Not-found and
// bad input are warnings; client disconnects are informational.
func (h *BarsEchoHandler) fail(c echo.Context, err error) error {
	path := c.Request().URL.Path

	if errors.Is(err, context.Canceled) {
		if h.logger != nil {
			h.logger.Info("client closed request", xlogger.String("path", path))
		}
		return c.NoContent(statusClientClosedRequest)
	}

	var appErr *xhttp.AppError
	if h.logger != nil {
		switch {
		case errors.As(err, &appErr) && appErr.Status < http.StatusInternalServerError:
			h.logger.Warn("bar query rejected", xlogger.String("path", path), xlogger.Error(err))
		default:
			h.logger.Error("bar query failed", xlogger.String("path", path), xlogger.Error(err))
		}
	}
	return xhttp.AppErrorResponse(c, err)
}
