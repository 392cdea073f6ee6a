// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

/*
manager.go - Sync Manager Lifecycle and Scheduling

Manager Components:
  - Store: persistence for integrations, pages, posts and insights
  - GraphAPI: Facebook Graph API client (optionally behind a circuit breaker)
  - TokenManager: refreshes tokens before a sync when they are close to expiry
  - Enqueuer: hands due integrations to the background sync queue

Lifecycle Methods:
  - NewManager(): Initialize manager with configuration and dependencies
  - Start(): Begin the periodic sweep that enqueues stale integrations
  - Stop(): Stop the sweep and wait for it to exit
  - SyncData(): Run one sync for the caller in ctx (see manager_sync.go)
  - LastSyncTime(): Query last successful sync timestamp

Thread Safety:
  - locks: serializes SyncData per user
  - mu: protects running, lastSync, enqueuer and the completion callback
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/pagesight/internal/config"
	"github.com/tomtom215/pagesight/internal/logging"
	"github.com/tomtom215/pagesight/internal/models"
)

// DefaultStaleAfter is how old a sync must be before a non-manual trigger runs.
const DefaultStaleAfter = 60 * time.Minute

// CheckSync reports whether a sync should run at now.
// A manual trigger always runs; a never-synced integration always runs.
func CheckSync(manual bool, lastSyncAt *time.Time, now time.Time) bool {
	return checkSyncWithin(manual, lastSyncAt, now, DefaultStaleAfter)
}

func checkSyncWithin(manual bool, lastSyncAt *time.Time, now time.Time, staleAfter time.Duration) bool {
	if manual || lastSyncAt == nil {
		return true
	}
	return now.Sub(*lastSyncAt) > staleAfter
}

// Enqueuer hands a user's sync to the background queue.
// Implemented by internal/eventprocessor.
type Enqueuer interface {
	EnqueueSync(ctx context.Context, userID string) error
}

// Manager orchestrates page and post sync for one user at a time.
type Manager struct {
	store  Store
	client GraphAPI
	tokens *TokenManager
	cfg    *config.Config
	locks  *keyedMutex
	now    func() time.Time

	mu              sync.RWMutex
	running         bool
	lastSync        time.Time
	stopChan        chan struct{}
	wg              sync.WaitGroup
	enqueuer        Enqueuer
	onSyncCompleted func(userID string, stats models.SyncStats, durationMs int64)
}

// NewManager creates a sync manager.
//
// Parameters:
//   - store: persistence adapter
//   - client: Graph API client, usually a *CircuitBreakerClient
//   - tokens: token manager used for auto refresh (optional, can be nil)
//   - cfg: full application configuration (Sync and Facebook sections are read)
func NewManager(store Store, client GraphAPI, tokens *TokenManager, cfg *config.Config) *Manager {
	m := &Manager{
		store:    store,
		client:   client,
		tokens:   tokens,
		cfg:      cfg,
		locks:    newKeyedMutex(),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	logging.Info().
		Dur("stale_after", m.staleAfter()).
		Int("page_workers", m.pageWorkers()).
		Bool("auto_refresh_tokens", cfg.Sync.AutoRefreshTokens).
		Bool("scheduler_enabled", cfg.Sync.SchedulerEnabled).
		Msg("Sync manager config loaded")

	return m
}

func (m *Manager) staleAfter() time.Duration {
	if m.cfg.Sync.StaleAfter > 0 {
		return m.cfg.Sync.StaleAfter
	}
	return DefaultStaleAfter
}

func (m *Manager) pageWorkers() int {
	if m.cfg.Sync.PageWorkers > 0 {
		return m.cfg.Sync.PageWorkers
	}
	return 1
}

// SetEnqueuer sets the queue used by the periodic sweep.
func (m *Manager) SetEnqueuer(e Enqueuer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueuer = e
}

// SetOnSyncCompleted sets the callback to be invoked after each successful sync
func (m *Manager) SetOnSyncCompleted(callback func(userID string, stats models.SyncStats, durationMs int64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSyncCompleted = callback
}

// Start begins the periodic sweep for stale integrations.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is already running")
	}

	logging.Info().Msg("Starting sync manager...")

	m.running = true
	stop := make(chan struct{})
	m.stopChan = stop
	m.mu.Unlock()

	if !m.cfg.Sync.SchedulerEnabled || m.cfg.Sync.SchedulerInterval <= 0 {
		logging.Info().Msg("Sync scheduler disabled - syncs run only on request")
		return nil
	}

	m.wg.Add(1)
	go m.syncLoop(ctx, stop)
	logging.Info().Dur("interval", m.cfg.Sync.SchedulerInterval).Msg("Sync scheduler started")

	return nil
}

// Stop gracefully stops the periodic sweep.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is not running")
	}
	m.running = false
	stop := m.stopChan
	m.mu.Unlock()

	logging.Info().Msg("Stopping sync manager...")

	close(stop)
	m.wg.Wait()
	logging.Info().Msg("Sync manager stopped")

	return nil
}

// LastSyncTime returns the start time of the last successful sync by any user.
func (m *Manager) LastSyncTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSync
}

func (m *Manager) syncLoop(ctx context.Context, stop <-chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Sync.SchedulerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if n, err := m.enqueueDueSyncs(ctx); err != nil {
				logging.Error().Err(err).Msg("Scheduled sync sweep failed")
			} else if n > 0 {
				logging.Info().Int("enqueued", n).Msg("Scheduled syncs enqueued")
			}
		}
	}
}

// enqueueDueSyncs enqueues every integration whose last sync is stale.
// A failed enqueue is logged and the sweep moves on.
func (m *Manager) enqueueDueSyncs(ctx context.Context) (int, error) {
	m.mu.RLock()
	enqueuer := m.enqueuer
	m.mu.RUnlock()

	if enqueuer == nil {
		logging.Warn().Msg("No sync queue configured, skipping scheduled sweep")
		return 0, nil
	}

	integrations, err := m.store.ListIntegrations(ctx, models.PlatformFacebook)
	if err != nil {
		return 0, fmt.Errorf("failed to list integrations: %w", err)
	}

	now := m.now()
	enqueued := 0
	for i := range integrations {
		integration := &integrations[i]
		if !checkSyncWithin(false, integration.LastSyncAt, now, m.staleAfter()) {
			continue
		}
		if err := enqueuer.EnqueueSync(ctx, integration.UserID); err != nil {
			logging.Warn().Err(err).Str("user_id", integration.UserID).Msg("Failed to enqueue scheduled sync")
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

// keyedMutex is a set of mutexes created on demand per key and dropped once
// no caller holds or waits on them. Lock honors context cancellation.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free or ctx is done. The returned func unlocks.
func (k *keyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				k.release(key, l)
			})
		}, nil
	case <-ctx.Done():
		k.release(key, l)
		return nil, ctx.Err()
	}
}

func (k *keyedMutex) release(key string, l *keyedLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

// size returns the number of live keys.
func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
