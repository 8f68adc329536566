package services

import (
	"context"
	"time"

	"github.com/nexconsult/simples-nacional/internal/models"
	"github.com/nexconsult/simples-nacional/internal/registry"
)

// SleepFunc blocks for d. Tests replace it to avoid real waits.
type SleepFunc func(d time.Duration)

// ClockFunc returns the current time
type ClockFunc func() time.Time

// FetcherInterface performs a single registry request
type FetcherInterface interface {
	// Fetch returns the HTTP answer for cnpj, an error wrapping
	// registry.ErrTimeout on timeout, or any other error on transport failure
	Fetch(ctx context.Context, cnpj string) (*registry.Response, error)
}

// QueryServiceInterface resolves one normalized CNPJ against the registry
type QueryServiceInterface interface {
	// Query performs a single attempt
	Query(ctx context.Context, cnpj string) models.Result

	// QueryWithRetry retries once after a backoff for transient failures
	QueryWithRetry(ctx context.Context, cnpj string) models.Result
}

// SimplesServiceInterface defines the batch resolution service
type SimplesServiceInterface interface {
	// Resolve returns one result per input, in input order
	Resolve(ctx context.Context, cnpjs []string) ([]models.Result, error)

	// Run is Resolve plus the run summary
	Run(ctx context.Context, cnpjs []string) (*BatchRun, error)

	// CacheStats describes the persisted cache
	CacheStats(ctx context.Context) (*models.CacheStats, error)

	// Health returns service health status
	Health() map[string]interface{}
}
