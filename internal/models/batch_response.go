package models

import "time"

// BatchSummary counts the results of one batch run by outcome
type BatchSummary struct {
	Total       int `json:"total" example:"3"`
	OK          int `json:"ok" example:"1"`
	Cached      int `json:"cached" example:"1"`
	Invalid     int `json:"invalid" example:"2"`
	NotFound    int `json:"not_found" example:"0"`
	RateLimited int `json:"rate_limited" example:"0"`
	Timeout     int `json:"timeout" example:"0"`
	Failed      int `json:"failed" example:"0"`
}

// Add accounts one result in the summary
func (s *BatchSummary) Add(r Result, fromCache bool) {
	s.Total++
	if fromCache {
		s.Cached++
	}

	switch r.Status {
	case StatusOK:
		s.OK++
	case StatusInvalido:
		s.Invalid++
	case StatusNaoEncontrado:
		s.NotFound++
	case StatusRateLimit:
		s.RateLimited++
	case StatusTimeout:
		s.Timeout++
	case StatusErro:
		s.Failed++
	}
}

// BatchResponse represents a batch consultation response
type BatchResponse struct {
	Results    []Result     `json:"results"`
	Summary    BatchSummary `json:"summary"`
	DurationMs int64        `json:"duration_ms" example:"24500"`
	Timestamp  time.Time    `json:"timestamp" example:"2024-01-15T10:30:00Z"`
	Warning    string       `json:"warning,omitempty"`
}
