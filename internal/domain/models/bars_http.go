package models

// Requests for the bar HTTP endpoints. Time and limit parameters stay strings
// here: they need custom parsing (ISO-8601 variants, unix seconds) and the
// service decides how a bad value fails.

type LatestBarsRequest struct {
	TimeLevel string `param:"time_level" json:"time_level" validate:"required"`
	Symbol    string `param:"symbol" json:"symbol" validate:"required"`
	EndTime   string `query:"end_time" json:"end_time"`
	Limit     string `query:"limit" json:"limit" default:"10"`
}

type BarsRangeRequest struct {
	TimeLevel string `param:"time_level" json:"time_level" validate:"required"`
	Symbol    string `param:"symbol" json:"symbol" validate:"required"`
	StartTime string `query:"start_time" json:"start_time" validate:"required"`
	EndTime   string `query:"end_time" json:"end_time" validate:"required"`
}

type SearchRequest struct {
	Keyword string `query:"keyword" json:"keyword" validate:"required,min=1"`
}
