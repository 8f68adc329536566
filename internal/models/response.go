package models

import "time"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string    `json:"error" example:"Invalid request"`
	Message   string    `json:"message" example:"cnpjs must be a non-empty array"`
	Code      string    `json:"code,omitempty" example:"INVALID_REQUEST"`
	Timestamp time.Time `json:"timestamp" example:"2024-01-15T10:30:00Z"`
	Path      string    `json:"path" example:"/api/v1/simples/batch"`
}

// Standard error codes
const (
	ErrorCodeInvalidRequest = "INVALID_REQUEST"
	ErrorCodeBatchTooLarge  = "BATCH_TOO_LARGE"
	ErrorCodeCacheError     = "CACHE_ERROR"
	ErrorCodeInternalError  = "INTERNAL_ERROR"
	ErrorCodeRateLimit      = "RATE_LIMIT_EXCEEDED"
)

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status" example:"healthy"`
	Timestamp time.Time              `json:"timestamp" example:"2024-01-15T10:30:00Z"`
	Version   string                 `json:"version" example:"1.0.0"`
	Services  map[string]ServiceInfo `json:"services"`
	Uptime    string                 `json:"uptime" example:"2h30m45s"`
}

// ServiceInfo represents individual service health
type ServiceInfo struct {
	Status    string    `json:"status" example:"healthy"`
	LastCheck time.Time `json:"last_check" example:"2024-01-15T10:30:00Z"`
	Error     string    `json:"error,omitempty"`
}

// CacheStats describes the persisted cache contents
type CacheStats struct {
	Backend string        `json:"backend" example:"file"`
	Entries int           `json:"entries" example:"120"`
	Fresh   int           `json:"fresh" example:"100"`
	Stale   int           `json:"stale" example:"20"`
	TTL     time.Duration `json:"ttl" swaggertype:"integer" example:"2592000000000000"`
}
