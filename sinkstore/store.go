// Package sinkstore holds captured sink records and answers canary queries.
//
// Records are produced by external capture instrumentation and are immutable
// once ingested: the store looks them up, it never rewrites them. Two
// implementations are provided: an in-memory store for tests and embedded
// use, and a SQLite-backed store for shared deployments.
package sinkstore

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Record is one captured sink occurrence, keyed by a stable dedup key
// assigned by the capture instrumentation.
type Record struct {
	DedupKey     string          `json:"dedup_key"`
	SinkName     string          `json:"sink_name"`
	Tag          string          `json:"tag,omitempty"`
	URL          string          `json:"url"`
	CapturedData json.RawMessage `json:"captured_data,omitempty"`
	Canary       string          `json:"canary,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// matches reports whether the record carries the canary, testing the
// serialized captured data (substring) and the canary column.
func (r Record) matches(canary string) bool {
	if canary == "" {
		return false
	}
	if r.Canary == canary {
		return true
	}
	return strings.Contains(string(r.CapturedData), canary)
}

// Store is the sink record repository.
type Store interface {
	// Put ingests a record, upserting by dedup key.
	Put(ctx context.Context, rec Record) error

	// Get returns the record for a dedup key, or false.
	Get(ctx context.Context, dedupKey string) (Record, bool, error)

	// QueryCanary returns records whose captured data contains the canary,
	// in discovery order, truncated to max (max <= 0 means unlimited).
	// An empty result is not an error.
	QueryCanary(ctx context.Context, canary string, max int) ([]Record, error)

	// CountCanary counts all records matching the canary, ignoring limits.
	CountCanary(ctx context.Context, canary string) (int, error)

	Close() error
}

// MemStore is an in-memory Store preserving insertion order.
type MemStore struct {
	mu      sync.RWMutex
	order   []string
	records map[string]Record
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]Record)}
}

// Put ingests a record. Re-ingesting a dedup key replaces the record but
// keeps its original discovery position.
func (s *MemStore) Put(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.records[rec.DedupKey]; !seen {
		s.order = append(s.order, rec.DedupKey)
	}
	s.records[rec.DedupKey] = rec
	return nil
}

// Get returns the record for a dedup key.
func (s *MemStore) Get(_ context.Context, dedupKey string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[dedupKey]
	return rec, ok, nil
}

// QueryCanary filters by canary substring in discovery order.
func (s *MemStore) QueryCanary(_ context.Context, canary string, max int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Record{}
	for _, key := range s.order {
		rec := s.records[key]
		if !rec.matches(canary) {
			continue
		}
		out = append(out, rec)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, nil
}

// CountCanary counts all matches regardless of limit.
func (s *MemStore) CountCanary(_ context.Context, canary string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, key := range s.order {
		if s.records[key].matches(canary) {
			n++
		}
	}
	return n, nil
}

// Close is a no-op for the in-memory store.
func (s *MemStore) Close() error { return nil }
