// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package webhooks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/SuperSonnix71/github-invite-plus/internal/cache"
	"github.com/SuperSonnix71/github-invite-plus/internal/logging"
)

var (
	// ErrDeliveryAlreadyProcessed is returned when a delivery id was claimed
	// within the TTL.
	ErrDeliveryAlreadyProcessed = errors.New("webhook delivery already processed")

	// ErrTrackerClosed is returned after Close.
	ErrTrackerClosed = errors.New("delivery tracker is closed")
)

const maxClaimAttempts = 3

// DeliveryTracker remembers X-GitHub-Delivery ids so a redelivered event is
// applied once.
type DeliveryTracker interface {
	// Claim records the delivery. It returns ErrDeliveryAlreadyProcessed if
	// the id was claimed before and has not expired.
	Claim(ctx context.Context, deliveryID, event string) error

	// Release forgets a claim so a redelivery of a failed event is processed.
	Release(ctx context.Context, deliveryID string) error

	Close() error
}

// GarbageCollector is implemented by trackers whose storage needs periodic
// compaction.
type GarbageCollector interface {
	RunGC() error
}

type deliveryEntry struct {
	Event     string    `json:"event"`
	FirstSeen time.Time `json:"first_seen"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MemoryTracker keeps claims in a bounded LRU. Claims are lost on restart,
// and under sustained load the oldest are evicted before their TTL.
type MemoryTracker struct {
	claims *cache.LRU[string, deliveryEntry]
	ttl    time.Duration
	closed atomic.Bool
}

// NewMemoryTracker creates an in-memory tracker holding at most maxEntries
// claims.
func NewMemoryTracker(maxEntries int, ttl time.Duration) *MemoryTracker {
	return &MemoryTracker{claims: cache.NewLRU[string, deliveryEntry](maxEntries, ttl), ttl: ttl}
}

// Claim implements DeliveryTracker.
func (t *MemoryTracker) Claim(_ context.Context, deliveryID, event string) error {
	if t.closed.Load() {
		return ErrTrackerClosed
	}
	now := time.Now()
	if t.claims.AddIfAbsent(deliveryID, deliveryEntry{Event: event, FirstSeen: now, ExpiresAt: now.Add(t.ttl)}) {
		return ErrDeliveryAlreadyProcessed
	}
	return nil
}

// Release implements DeliveryTracker.
func (t *MemoryTracker) Release(_ context.Context, deliveryID string) error {
	if t.closed.Load() {
		return ErrTrackerClosed
	}
	t.claims.Remove(deliveryID)
	return nil
}

// RunGC drops expired claims.
func (t *MemoryTracker) RunGC() error {
	if t.closed.Load() {
		return nil
	}
	if n := t.claims.CleanupExpired(); n > 0 {
		logging.Debug().Int("expired", n).Msg("Dropped expired webhook deliveries")
	}
	return nil
}

// Close implements DeliveryTracker.
func (t *MemoryTracker) Close() error {
	if t.closed.CompareAndSwap(false, true) {
		t.claims.Clear()
	}
	return nil
}

// BadgerTracker persists claims in BadgerDB so they survive restarts. Badger
// expires the keys itself.
type BadgerTracker struct {
	db     *badger.DB
	owned  bool
	prefix []byte
	ttl    time.Duration

	mu     sync.RWMutex
	closed bool
}

// NewBadgerTracker uses a shared BadgerDB; Close leaves it open.
func NewBadgerTracker(db *badger.DB, prefix string, ttl time.Duration) *BadgerTracker {
	if prefix == "" {
		prefix = "delivery:"
	}
	return &BadgerTracker{db: db, prefix: []byte(prefix), ttl: ttl}
}

// OpenBadgerTracker opens a dedicated BadgerDB at path. An empty path keeps
// the database in memory.
func OpenBadgerTracker(path string, ttl time.Duration) (*BadgerTracker, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open delivery store: %w", err)
	}
	t := NewBadgerTracker(db, "", ttl)
	t.owned = true
	return t, nil
}

func (t *BadgerTracker) key(deliveryID string) []byte {
	return append(append([]byte{}, t.prefix...), deliveryID...)
}

func (t *BadgerTracker) isClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

// Claim implements DeliveryTracker.
func (t *BadgerTracker) Claim(_ context.Context, deliveryID, event string) error {
	if t.isClosed() {
		return ErrTrackerClosed
	}
	key := t.key(deliveryID)

	// A conflict means a concurrent claim committed first; the retry sees it.
	var err error
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		err = t.claim(key, event)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (t *BadgerTracker) claim(key []byte, event string) error {
	return t.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return ErrDeliveryAlreadyProcessed
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		now := time.Now()
		data, err := json.Marshal(deliveryEntry{Event: event, FirstSeen: now, ExpiresAt: now.Add(t.ttl)})
		if err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry(key, data).WithTTL(t.ttl))
	})
}

// Release implements DeliveryTracker.
func (t *BadgerTracker) Release(_ context.Context, deliveryID string) error {
	if t.isClosed() {
		return ErrTrackerClosed
	}
	return t.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(t.key(deliveryID))
	})
}

// RunGC reclaims value log space left by expired claims. Only a tracker that
// owns its database collects; a shared one is collected by its owner.
func (t *BadgerTracker) RunGC() error {
	if t.isClosed() || !t.owned {
		return nil
	}
	err := t.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
		return nil
	}
	return err
}

// Close implements DeliveryTracker.
func (t *BadgerTracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.owned {
		return t.db.Close()
	}
	return nil
}

// NewTracker builds the tracker selected by store ("memory" or "badger").
func NewTracker(store, path string, maxEntries int, ttl time.Duration) (DeliveryTracker, error) {
	switch store {
	case "", "memory":
		return NewMemoryTracker(maxEntries, ttl), nil
	case "badger":
		t, err := OpenBadgerTracker(path, ttl)
		if err != nil {
			return nil, err
		}
		logging.Info().Str("path", path).Dur("ttl", ttl).Msg("Webhook delivery dedupe uses BadgerDB")
		return t, nil
	default:
		return nil, fmt.Errorf("unknown delivery store %q", store)
	}
}
