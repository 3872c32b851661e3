package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"BarPulse/internal/domain/models"
	"BarPulse/internal/usecase"
	xhttp "BarPulse/pkg/http"
)

// invocation is one inbound frame. The id is chosen by the client and echoed
// on every event for that call.
type invocation struct {
	ID     string          `json:"id"`
	Tool   string          `json:"tool"`
	Params json.RawMessage `json:"params"`
}

// toolCall is a fully parsed, validated-shape invocation. Parsing happens
// before any event past "processing" is emitted, so a malformed call produces
// exactly one error event and nothing else.
type toolCall interface {
	run(ctx context.Context, svc *usecase.BarQueryService) (*models.QueryResult, error)
	// describe renders the resolved query for the processing event.
	describe() string
}

type latestBarsCall struct {
	level  string
	symbol string
	cutoff *time.Time
	limit  int
}

func (c latestBarsCall) run(ctx context.Context, svc *usecase.BarQueryService) (*models.QueryResult, error) {
	return svc.GetLatestBars(ctx, c.level, c.symbol, c.cutoff, c.limit)
}

func (c latestBarsCall) describe() string {
	s := fmt.Sprintf("%s %s limit=%d", c.level, c.symbol, c.limit)
	if c.cutoff != nil {
		s += " until " + c.cutoff.UTC().Format(time.RFC3339)
	}
	return s
}

type barsRangeCall struct {
	level  string
	symbol string
	start  time.Time
	end    time.Time
}

func (c barsRangeCall) run(ctx context.Context, svc *usecase.BarQueryService) (*models.QueryResult, error) {
	return svc.GetBarsRange(ctx, c.level, c.symbol, c.start, c.end)
}

func (c barsRangeCall) describe() string {
	return fmt.Sprintf("%s %s from %s to %s",
		c.level, c.symbol,
		c.start.UTC().Format(time.RFC3339), c.end.UTC().Format(time.RFC3339))
}

type latestParams struct {
	TimeLevel string `json:"time_level"`
	Symbol    string `json:"symbol"`
	EndTime   string `json:"end_time"`
	Limit     *int   `json:"limit"`
}

type rangeParams struct {
	TimeLevel string `json:"time_level"`
	Symbol    string `json:"symbol"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ToolSpec describes one tool for the catalogue endpoint.
type ToolSpec struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Params      []string `json:"params"`
}

// fixedLevelTools maps tool name suffixes to pinned level tokens.
var fixedLevelTools = map[string]string{
	"daily":   "daily",
	"weekly":  "weekly",
	"monthly": "monthly",
}

// Catalogue lists every tool the gateway dispatches.
func Catalogue() []ToolSpec {
	specs := []ToolSpec{
		{
			Name:        "get_latest_bars",
			Description: "most recent bars for a symbol at a time level, optionally at or before end_time",
			Params:      []string{"time_level", "symbol", "end_time", "limit"},
		},
		{
			Name:        "get_bars_range",
			Description: "bars for a symbol between start_time and end_time inclusive",
			Params:      []string{"time_level", "symbol", "start_time", "end_time"},
		},
	}
	for _, level := range []string{"daily", "weekly", "monthly"} {
		specs = append(specs,
			ToolSpec{
				Name:        "get_latest_" + level + "_bars",
				Description: "most recent " + level + " bars for a symbol",
				Params:      []string{"symbol", "end_time", "limit"},
			},
			ToolSpec{
				Name:        "get_" + level + "_bars_range",
				Description: level + " bars for a symbol between start_time and end_time inclusive",
				Params:      []string{"symbol", "start_time", "end_time"},
			},
		)
	}
	return specs
}

// parseCall turns (tool, params) into a runnable call. All shape and format
// problems surface here as invalid-argument errors.
func parseCall(tool string, params json.RawMessage, defaultLimit int) (toolCall, error) {
	switch tool {
	case "get_latest_bars":
		return parseLatest(params, "", defaultLimit)
	case "get_bars_range":
		return parseRange(params, "")
	}
	for suffix, level := range fixedLevelTools {
		switch tool {
		case "get_latest_" + suffix + "_bars":
			return parseLatest(params, level, defaultLimit)
		case "get_" + suffix + "_bars_range":
			return parseRange(params, level)
		}
	}
	return nil, xhttp.InvalidArgumentErrorf("unknown tool: %q", tool)
}

func parseLatest(raw json.RawMessage, level string, defaultLimit int) (toolCall, error) {
	var p latestParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if level == "" {
		level = p.TimeLevel
	}
	if level == "" {
		return nil, xhttp.InvalidArgumentError("time_level is required")
	}
	if p.Symbol == "" {
		return nil, xhttp.InvalidArgumentError("symbol is required")
	}

	call := latestBarsCall{level: level, symbol: p.Symbol, limit: defaultLimit}
	if p.EndTime != "" {
		t, ok := xhttp.ParseTime(p.EndTime)
		if !ok {
			return nil, xhttp.InvalidArgumentErrorf("invalid end_time: %q", p.EndTime)
		}
		call.cutoff = &t
	}
	if p.Limit != nil {
		call.limit = *p.Limit
	}
	return call, nil
}

func parseRange(raw json.RawMessage, level string) (toolCall, error) {
	var p rangeParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if level == "" {
		level = p.TimeLevel
	}
	if level == "" {
		return nil, xhttp.InvalidArgumentError("time_level is required")
	}
	if p.Symbol == "" {
		return nil, xhttp.InvalidArgumentError("symbol is required")
	}

	start, ok := xhttp.ParseTime(p.StartTime)
	if !ok {
		return nil, xhttp.InvalidArgumentErrorf("invalid start_time: %q", p.StartTime)
	}
	end, ok := xhttp.ParseTime(p.EndTime)
	if !ok {
		return nil, xhttp.InvalidArgumentErrorf("invalid end_time: %q", p.EndTime)
	}
	return barsRangeCall{level: level, symbol: p.Symbol, start: start, end: end}, nil
}

func decodeParams(raw json.RawMessage, dest interface{}) error {
	if len(raw) == 0 {
		return xhttp.InvalidArgumentError("params are required")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return xhttp.InvalidArgumentError("params must be a JSON object").WithError(err)
	}
	return nil
}
