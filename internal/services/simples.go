package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nexconsult/simples-nacional/internal/cache"
	"github.com/nexconsult/simples-nacional/internal/models"
	"github.com/nexconsult/simples-nacional/internal/utils"
	"github.com/sirupsen/logrus"
)

var (
	// ErrCacheLoad means the batch could not start because the cache was unreadable
	ErrCacheLoad = errors.New("failed to load cache")

	// ErrCacheSave means the batch finished but its cache updates were lost
	ErrCacheSave = errors.New("failed to save cache")
)

// SimplesOptions tunes the batch pacing and cache freshness
type SimplesOptions struct {
	RateLimitDelay time.Duration
	CacheTTL       time.Duration
	Sleep          SleepFunc
	Now            ClockFunc
}

// BatchRun is the outcome of one batch
type BatchRun struct {
	Results    []models.Result
	Summary    models.BatchSummary
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the run took
func (r *BatchRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SimplesService resolves batches of CNPJs sequentially
type SimplesService struct {
	store   cache.Store
	query   QueryServiceInterface
	options SimplesOptions
	logger  *logrus.Logger

	// runs are serialized so that two batches never race on the persisted cache
	runMu sync.Mutex

	runCount   int64
	queryCount int64
}

// NewSimplesService creates the batch service
func NewSimplesService(store cache.Store, query QueryServiceInterface, options SimplesOptions, logger *logrus.Logger) *SimplesService {
	if options.Sleep == nil {
		options.Sleep = time.Sleep
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	return &SimplesService{
		store:   store,
		query:   query,
		options: options,
		logger:  logger,
	}
}

// Resolve returns one result per input, in input order
func (s *SimplesService) Resolve(ctx context.Context, cnpjs []string) ([]models.Result, error) {
	run, err := s.Run(ctx, cnpjs)
	if run == nil {
		return nil, err
	}
	return run.Results, err
}

// Run loads the cache, resolves every input in order and saves the cache once.
//
// Per-item failures are reported in the results, never as an error. The
// returned error is ErrCacheLoad (no run happened) or ErrCacheSave (the run
// is complete and its results are returned alongside the error).
func (s *SimplesService) Run(ctx context.Context, cnpjs []string) (*BatchRun, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	atomic.AddInt64(&s.runCount, 1)

	run := &BatchRun{
		Results:   make([]models.Result, 0, len(cnpjs)),
		StartedAt: s.options.Now(),
	}

	entries, err := s.store.Load(ctx)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"backend": s.store.Name(),
			"error":   err.Error(),
		}).Error("Failed to load cache")
		return nil, fmt.Errorf("%w: %w", ErrCacheLoad, err)
	}
	if entries == nil {
		entries = cache.Entries{}
	}

	s.logger.WithFields(logrus.Fields{
		"total":   len(cnpjs),
		"cached":  len(entries),
		"backend": s.store.Name(),
	}).Info("Starting batch")

	for i, raw := range cnpjs {
		result, fromCache := s.resolveOne(ctx, raw, entries)
		run.Results = append(run.Results, result)
		run.Summary.Add(result, fromCache)

		if i < len(cnpjs)-1 {
			s.options.Sleep(s.options.RateLimitDelay)
		}
	}

	run.FinishedAt = s.options.Now()

	if err := s.store.Save(ctx, entries); err != nil {
		s.logger.WithFields(logrus.Fields{
			"backend": s.store.Name(),
			"error":   err.Error(),
		}).Error("Failed to save cache")
		return run, fmt.Errorf("%w: %w", ErrCacheSave, err)
	}

	s.logger.WithFields(logrus.Fields{
		"total":        run.Summary.Total,
		"ok":           run.Summary.OK,
		"cached":       run.Summary.Cached,
		"invalid":      run.Summary.Invalid,
		"not_found":    run.Summary.NotFound,
		"rate_limited": run.Summary.RateLimited,
		"timeout":      run.Summary.Timeout,
		"failed":       run.Summary.Failed,
		"duration":     run.Duration(),
	}).Info("Batch completed")

	return run, nil
}

// resolveOne walks a single identifier through validation, cache and query
func (s *SimplesService) resolveOne(ctx context.Context, raw string, entries cache.Entries) (models.Result, bool) {
	cnpj, valid := utils.NormalizeCNPJ(raw)
	if !valid {
		s.logger.WithField("cnpj", raw).Debug("Invalid CNPJ")
		return models.NewStatusResult(raw, models.StatusInvalido), false
	}

	logger := s.logger.WithField("cnpj", cnpj)

	if entry, ok := entries.Lookup(cnpj, s.options.Now(), s.options.CacheTTL); ok {
		logger.WithField("updated_at", entry.UpdatedAt).Debug("Cache hit")
		return entry.Result.WithCNPJ(cnpj), true
	}

	atomic.AddInt64(&s.queryCount, 1)
	result := s.query.QueryWithRetry(ctx, cnpj).WithCNPJ(cnpj)

	if result.Status == models.StatusOK {
		entries.Put(cnpj, result, s.options.Now())
	}

	logger.WithField("status", result.Status).Info("CNPJ resolved")
	return result, false
}

// CacheStats describes the persisted cache
func (s *SimplesService) CacheStats(ctx context.Context) (*models.CacheStats, error) {
	s.runMu.Lock()
	entries, err := s.store.Load(ctx)
	s.runMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheLoad, err)
	}

	fresh, stale := entries.Stats(s.options.Now(), s.options.CacheTTL)
	return &models.CacheStats{
		Backend: s.store.Name(),
		Entries: len(entries),
		Fresh:   fresh,
		Stale:   stale,
		TTL:     s.options.CacheTTL,
	}, nil
}

// Health returns service health status
func (s *SimplesService) Health() map[string]interface{} {
	return map[string]interface{}{
		"status":        "healthy",
		"runs":          atomic.LoadInt64(&s.runCount),
		"queries":       atomic.LoadInt64(&s.queryCount),
		"cache_backend": s.store.Name(),
	}
}
