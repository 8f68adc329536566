package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/nexconsult/simples-nacional/internal/cache"
	"github.com/nexconsult/simples-nacional/internal/logger"
	"github.com/nexconsult/simples-nacional/internal/models"
	"github.com/nexconsult/simples-nacional/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	rec     *recorder
	fetcher *fetcherMock
	store   *storeMock
	svc     *SimplesService
}

func newHarness(entries cache.Entries, fetch func(ctx context.Context, cnpj string, attempt int) (*registry.Response, error)) *harness {
	rec := &recorder{}
	fm := &fetcherMock{rec: rec, FetchFn: fetch}
	if entries == nil {
		entries = cache.Entries{}
	}
	store := &storeMock{rec: rec, entries: entries}

	query := NewQueryService(fm, 30*time.Second, rec.sleep, logger.Discard())
	svc := NewSimplesService(store, query, SimplesOptions{
		RateLimitDelay: 12 * time.Second,
		CacheTTL:       30 * 24 * time.Hour,
		Sleep:          rec.sleep,
		Now:            func() time.Time { return fixedNow },
	}, logger.Discard())

	return &harness{rec: rec, fetcher: fm, store: store, svc: svc}
}

func alwaysOK(context.Context, string, int) (*registry.Response, error) {
	return respond(http.StatusOK, okBody(true, false))
}

func statuses(results []models.Result) []models.Status {
	out := make([]models.Status, len(results))
	for i, r := range results {
		out[i] = r.Status
	}
	return out
}

func TestResolve_MixedBatchKeepsOrder(t *testing.T) {
	h := newHarness(nil, alwaysOK)

	results, err := h.svc.Resolve(context.Background(), []string{cnpjA, "00000000000000", "11111111111111"})
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, []models.Status{models.StatusOK, models.StatusInvalido, models.StatusInvalido}, statuses(results))
	assert.Equal(t, cnpjA, results[0].CNPJ)
	assert.Equal(t, 1, h.fetcher.total(), "invalid identifiers are never queried")
}

func TestResolve_InvalidReportsRawInput(t *testing.T) {
	h := newHarness(nil, alwaysOK)

	results, err := h.svc.Resolve(context.Background(), []string{"12.345.678/0001-00", "abc"})
	require.NoError(t, err)

	assert.Equal(t, models.NewStatusResult("12.345.678/0001-00", models.StatusInvalido), results[0])
	assert.Equal(t, models.NewStatusResult("abc", models.StatusInvalido), results[1])
	assert.Empty(t, h.store.entries, "invalid identifiers are never cached")
}

func TestResolve_FormattedInputReportsNormalizedCNPJ(t *testing.T) {
	h := newHarness(nil, alwaysOK)

	results, err := h.svc.Resolve(context.Background(), []string{"07.526.557/0116-59"})
	require.NoError(t, err)

	assert.Equal(t, cnpjA, results[0].CNPJ)
	assert.Equal(t, 1, h.fetcher.calls[cnpjA])
	assert.Contains(t, h.store.entries, cnpjA)
}

func TestResolve_CacheRoundTripSkipsQuery(t *testing.T) {
	h := newHarness(nil, alwaysOK)
	ctx := context.Background()

	first, err := h.svc.Resolve(ctx, []string{cnpjA})
	require.NoError(t, err)
	require.Equal(t, 1, h.fetcher.total())

	entry := h.store.entries[cnpjA]
	assert.Equal(t, fixedNow, entry.UpdatedAt)
	assert.Equal(t, models.StatusOK, entry.Result.Status)

	second, err := h.svc.Resolve(ctx, []string{cnpjA})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.fetcher.total(), "fresh cache hit must not query")
}

func TestResolve_StaleEntryTriggersQuery(t *testing.T) {
	stale := cache.Entries{
		cnpjA: {
			UpdatedAt: fixedNow.Add(-31 * 24 * time.Hour),
			Result:    models.NewOKResult(cnpjA, false, false),
		},
	}
	h := newHarness(stale, alwaysOK)

	results, err := h.svc.Resolve(context.Background(), []string{cnpjA})
	require.NoError(t, err)

	assert.Equal(t, 1, h.fetcher.calls[cnpjA])
	assert.True(t, *results[0].SimplesNacional, "fresh answer replaces the stale one")
	assert.Equal(t, fixedNow, h.store.entries[cnpjA].UpdatedAt)
	assert.True(t, *h.store.entries[cnpjA].Result.SimplesNacional)
}

func TestResolve_FreshEntryIsServedFromCache(t *testing.T) {
	fresh := cache.Entries{
		cnpjA: {
			UpdatedAt: fixedNow.Add(-29 * 24 * time.Hour),
			Result:    models.NewOKResult(cnpjA, false, true),
		},
	}
	h := newHarness(fresh, alwaysOK)

	run, err := h.svc.Run(context.Background(), []string{cnpjA})
	require.NoError(t, err)

	assert.Equal(t, 0, h.fetcher.total())
	assert.Equal(t, models.NewOKResult(cnpjA, false, true), run.Results[0])
	assert.Equal(t, 1, run.Summary.Cached)
	assert.Equal(t, fixedNow.Add(-29*24*time.Hour), h.store.entries[cnpjA].UpdatedAt, "cache hit does not refresh the timestamp")
}

func TestResolve_NonOKResultsAreNotCached(t *testing.T) {
	h := newHarness(nil, func(_ context.Context, cnpj string, _ int) (*registry.Response, error) {
		if cnpj == cnpjA {
			return respond(http.StatusNotFound, nil)
		}
		return respond(http.StatusTooManyRequests, nil)
	})

	results, err := h.svc.Resolve(context.Background(), []string{cnpjA, cnpjB})
	require.NoError(t, err)

	assert.Equal(t, []models.Status{models.StatusNaoEncontrado, models.StatusRateLimit}, statuses(results))
	assert.Empty(t, h.store.entries)
	assert.Equal(t, 1, h.fetcher.calls[cnpjA])
	assert.Equal(t, 1, h.fetcher.calls[cnpjB])
}

func TestResolve_DelayBetweenItemsOnly(t *testing.T) {
	h := newHarness(nil, alwaysOK)

	inputs := []string{cnpjA, "invalid", cnpjB, cnpjA}
	_, err := h.svc.Resolve(context.Background(), inputs)
	require.NoError(t, err)

	assert.Equal(t, len(inputs)-1, h.rec.count("sleep:12s"))
	assert.Equal(t, "save", h.rec.events[len(h.rec.events)-1])
	assert.Equal(t, "sleep:12s", h.rec.events[len(h.rec.events)-2], "last delay precedes the last item, not the save")
}

func TestResolve_EventOrder(t *testing.T) {
	h := newHarness(nil, func(_ context.Context, _ string, attempt int) (*registry.Response, error) {
		if attempt == 1 {
			return nil, timeoutErr()
		}
		return respond(http.StatusOK, okBody(true, true))
	})

	_, err := h.svc.Resolve(context.Background(), []string{cnpjA, "x", cnpjB})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"load",
		"fetch:" + cnpjA, "sleep:30s", "fetch:" + cnpjA,
		"sleep:12s",
		"sleep:12s",
		"fetch:" + cnpjB, "sleep:30s", "fetch:" + cnpjB,
		"save",
	}, h.rec.events)
}

func TestResolve_SingleItemHasNoDelay(t *testing.T) {
	h := newHarness(nil, alwaysOK)

	_, err := h.svc.Resolve(context.Background(), []string{cnpjA})
	require.NoError(t, err)
	assert.Equal(t, 0, h.rec.count("sleep"))
}

func TestResolve_EmptyBatchStillSavesOnce(t *testing.T) {
	h := newHarness(nil, alwaysOK)

	results, err := h.svc.Resolve(context.Background(), nil)
	require.NoError(t, err)

	assert.Empty(t, results)
	assert.NotNil(t, results)
	assert.Equal(t, 1, h.store.loads)
	assert.Equal(t, 1, h.store.saves)
	assert.Equal(t, 0, h.rec.count("sleep"))
}

func TestResolve_SavesOnceWhenEverythingFails(t *testing.T) {
	h := newHarness(nil, func(context.Context, string, int) (*registry.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})

	results, err := h.svc.Resolve(context.Background(), []string{cnpjA, cnpjB, "bad"})
	require.NoError(t, err)

	assert.Equal(t, []models.Status{models.StatusErro, models.StatusErro, models.StatusInvalido}, statuses(results))
	assert.Equal(t, 1, h.store.saves)
	assert.Equal(t, "save", h.rec.events[len(h.rec.events)-1])
}

func TestResolve_SaveFailureIsReported(t *testing.T) {
	h := newHarness(nil, alwaysOK)
	h.store.SaveErr = errors.New("disk full")

	results, err := h.svc.Resolve(context.Background(), []string{cnpjA})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCacheSave))
	require.Len(t, results, 1, "results survive a failed save")
	assert.Equal(t, models.StatusOK, results[0].Status)
}

func TestResolve_LoadFailureAbortsBeforeQuerying(t *testing.T) {
	h := newHarness(nil, alwaysOK)
	h.store.LoadErr = errors.New("permission denied")

	results, err := h.svc.Resolve(context.Background(), []string{cnpjA})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCacheLoad))
	assert.Nil(t, results)
	assert.Equal(t, 0, h.fetcher.total())
	assert.Equal(t, 0, h.store.saves)
}

func TestRun_Summary(t *testing.T) {
	fresh := cache.Entries{
		cnpjB: {UpdatedAt: fixedNow, Result: models.NewOKResult(cnpjB, true, true)},
	}
	h := newHarness(fresh, func(context.Context, string, int) (*registry.Response, error) {
		return respond(http.StatusNotFound, nil)
	})

	run, err := h.svc.Run(context.Background(), []string{cnpjA, cnpjB, "1"})
	require.NoError(t, err)

	assert.Equal(t, models.BatchSummary{Total: 3, OK: 1, Cached: 1, Invalid: 1, NotFound: 1}, run.Summary)
	assert.Equal(t, time.Duration(0), run.Duration())
}

func TestResolve_DuplicateIdentifierUsesFreshlyCachedResult(t *testing.T) {
	h := newHarness(nil, alwaysOK)

	results, err := h.svc.Resolve(context.Background(), []string{cnpjA, "07.526.557/0116-59"})
	require.NoError(t, err)

	assert.Equal(t, 1, h.fetcher.calls[cnpjA])
	assert.Equal(t, results[0], results[1])
}

func TestCacheStats(t *testing.T) {
	entries := cache.Entries{
		cnpjA: {UpdatedAt: fixedNow.Add(-time.Hour)},
		cnpjB: {UpdatedAt: fixedNow.Add(-60 * 24 * time.Hour)},
	}
	h := newHarness(entries, alwaysOK)

	stats, err := h.svc.CacheStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &models.CacheStats{Backend: "mock", Entries: 2, Fresh: 1, Stale: 1, TTL: 30 * 24 * time.Hour}, stats)
}

func TestSimplesService_WithMemoryStore(t *testing.T) {
	store := cache.NewMemoryStore(nil)
	fm := &fetcherMock{FetchFn: alwaysOK}
	svc := NewSimplesService(store, NewQueryService(fm, 0, func(time.Duration) {}, logger.Discard()), SimplesOptions{
		CacheTTL: 24 * time.Hour,
		Sleep:    func(time.Duration) {},
	}, logger.Discard())

	_, err := svc.Resolve(context.Background(), []string{cnpjA})
	require.NoError(t, err)
	_, err = svc.Resolve(context.Background(), []string{cnpjA})
	require.NoError(t, err)

	assert.Equal(t, 1, fm.total())
	assert.Equal(t, 2, store.Saves())
	assert.Contains(t, store.Snapshot(), cnpjA)
}

func TestResolve_SuccessWithoutFlagsIsNotCached(t *testing.T) {
	for _, body := range []string{`{}`, `null`, `{"company":null}`} {
		h := newHarness(nil, func(context.Context, string, int) (*registry.Response, error) {
			return respond(http.StatusOK, []byte(body))
		})

		results, err := h.svc.Resolve(context.Background(), []string{cnpjA})
		require.NoError(t, err)

		assert.Equal(t, models.StatusErro, results[0].Status, body)
		assert.Empty(t, h.store.entries, body)
		assert.Equal(t, 2, h.fetcher.calls[cnpjA], body)
	}
}
