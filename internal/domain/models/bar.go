package models

import "time"

// Bar is one OHLC observation at a given time level.
type Bar struct {
	Time   time.Time `json:"time"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	// Derived against the previous bar of the same result set. nil when no
	// predecessor exists (or its close is zero); nil is not a computed zero.
	Change        *float64 `json:"change,omitempty"`
	ChangePercent *float64 `json:"change_percent,omitempty"`
}

// QueryResult is the response envelope for both query modes. Data is ordered
// ascending by time; TimeLevel and Symbol echo the request verbatim.
type QueryResult struct {
	Data      []Bar  `json:"data"`
	Count     int    `json:"count"`
	TimeLevel string `json:"time_level"`
	Symbol    string `json:"symbol"`
}
