// Package cache persists successful Simples Nacional lookups between batch
// runs. A store is read wholesale before a run and written wholesale after it.
package cache

import (
	"context"
	"time"

	"github.com/nexconsult/simples-nacional/internal/models"
)

// Entries maps a normalized CNPJ to its last successful lookup
type Entries map[string]models.CacheEntry

// Store is the persisted side of the cache
type Store interface {
	// Load returns every persisted entry, or an empty map when nothing was saved yet
	Load(ctx context.Context) (Entries, error)

	// Save replaces the persisted state with entries
	Save(ctx context.Context, entries Entries) error

	// Name identifies the backend in logs and stats
	Name() string
}

// IsFresh reports whether entry is younger than ttl at now
func IsFresh(entry models.CacheEntry, now time.Time, ttl time.Duration) bool {
	return now.Sub(entry.UpdatedAt) < ttl
}

// Lookup returns the entry for cnpj when it exists, holds an OK result and is
// still fresh
func (e Entries) Lookup(cnpj string, now time.Time, ttl time.Duration) (models.CacheEntry, bool) {
	entry, ok := e[cnpj]
	if !ok || entry.Result.Status != models.StatusOK || !IsFresh(entry, now, ttl) {
		return models.CacheEntry{}, false
	}
	return entry, true
}

// Put records a successful result for cnpj at now
func (e Entries) Put(cnpj string, result models.Result, now time.Time) {
	e[cnpj] = models.CacheEntry{
		UpdatedAt: now.UTC(),
		Result:    result,
	}
}

// Clone returns a shallow copy of the entries
func (e Entries) Clone() Entries {
	out := make(Entries, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Stats counts fresh and stale entries at now
func (e Entries) Stats(now time.Time, ttl time.Duration) (fresh, stale int) {
	for _, entry := range e {
		if IsFresh(entry, now, ttl) {
			fresh++
		} else {
			stale++
		}
	}
	return fresh, stale
}
