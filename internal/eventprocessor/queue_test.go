// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/tomtom215/pagesight/internal/config"
	"github.com/tomtom215/pagesight/internal/models"
	pagesync "github.com/tomtom215/pagesight/internal/sync"
)

type fakeSyncer struct {
	mu    sync.Mutex
	calls []string
	count atomic.Int32

	SyncForUserFunc func(ctx context.Context, userID string) (*models.SyncResult, error)
}

func (f *fakeSyncer) SyncForUser(ctx context.Context, userID string, manual bool) (*models.SyncResult, error) {
	if manual {
		return nil, errors.New("queued syncs must not be manual")
	}
	f.mu.Lock()
	f.calls = append(f.calls, userID)
	f.mu.Unlock()
	f.count.Add(1)
	if f.SyncForUserFunc != nil {
		return f.SyncForUserFunc(ctx, userID)
	}
	return &models.SyncResult{Success: true, Stats: &models.SyncStats{PagesSynced: 1}}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Queue: *testQueueConfig(),
		Sync:  config.SyncConfig{Timeout: 5 * time.Second},
	}
}

// startQueue builds a channel-backed queue and runs it until the test ends.
func startQueue(t *testing.T, cfg *config.Config, syncer Syncer) *Queue {
	t.Helper()

	q, err := newQueue(cfg, syncer, newChannelTransport(&cfg.Queue, watermill.NopLogger{}), watermill.NopLogger{})
	if err != nil {
		t.Fatalf("newQueue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		_ = q.Close()
		<-done
	})

	select {
	case <-q.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
	return q
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewRejectsUnknownTransport(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Queue.Transport = "kafka"
	if _, err := New(context.Background(), cfg, &fakeSyncer{}); err == nil {
		t.Fatal("expected error for unknown transport")
	}
}

func TestEnqueueRunsSync(t *testing.T) {
	t.Parallel()

	syncer := &fakeSyncer{}
	q := startQueue(t, testConfig(), syncer)

	accepted, err := q.Enqueue(context.Background(), "user-1", SourceAPI)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if accepted.RequestID == "" || accepted.Deduplicated {
		t.Errorf("accepted = %+v, want a fresh request", accepted)
	}

	waitFor(t, "sync to run", func() bool { return syncer.count.Load() == 1 })
	waitFor(t, "dedup key release", func() bool { return q.dedup.Len() == 0 })
}

func TestEnqueueRequiresUser(t *testing.T) {
	t.Parallel()

	q := startQueue(t, testConfig(), &fakeSyncer{})
	if _, err := q.Enqueue(context.Background(), "", SourceAPI); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("Enqueue error = %v, want ErrInvalidEvent", err)
	}
}

func TestEnqueueDeduplicatesPendingUser(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	syncer := &fakeSyncer{
		SyncForUserFunc: func(ctx context.Context, _ string) (*models.SyncResult, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return &models.SyncResult{Success: true}, nil
		},
	}
	q := startQueue(t, testConfig(), syncer)
	defer close(release)

	first, err := q.Enqueue(context.Background(), "user-1", SourceAPI)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	second, err := q.Enqueue(context.Background(), "user-1", SourceScheduler)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !second.Deduplicated || second.RequestID != "" {
		t.Errorf("second = %+v, want deduplicated", second)
	}
	if second.QueuedAt.IsZero() || second.QueuedAt.After(first.QueuedAt.Add(time.Second)) {
		t.Errorf("second.QueuedAt = %v, want close to %v", second.QueuedAt, first.QueuedAt)
	}

	other, err := q.Enqueue(context.Background(), "user-2", SourceAPI)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if other.Deduplicated {
		t.Error("a different user must not be deduplicated")
	}
}

func TestPermanentErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	syncer := &fakeSyncer{
		SyncForUserFunc: func(context.Context, string) (*models.SyncResult, error) {
			return nil, fmt.Errorf("lookup: %w", pagesync.ErrNoIntegration)
		},
	}
	q := startQueue(t, testConfig(), syncer)

	if err := q.EnqueueSync(context.Background(), "user-1"); err != nil {
		t.Fatalf("EnqueueSync: %v", err)
	}
	waitFor(t, "dedup key release", func() bool { return syncer.count.Load() == 1 && q.dedup.Len() == 0 })

	time.Sleep(50 * time.Millisecond)
	if n := syncer.count.Load(); n != 1 {
		t.Errorf("sync calls = %d, want 1", n)
	}
}

func TestTransientErrorIsRetriedThenPoisoned(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Queue.MaxRetries = 2
	cfg.Queue.RetryInitialInterval = time.Millisecond
	cfg.Queue.RetryMaxInterval = 2 * time.Millisecond

	syncer := &fakeSyncer{
		SyncForUserFunc: func(context.Context, string) (*models.SyncResult, error) {
			return nil, errors.New("graph api unavailable")
		},
	}
	q := startQueue(t, cfg, syncer)

	if _, err := q.Enqueue(context.Background(), "user-1", SourceAPI); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// The poison handler releases the dedup key once retries are exhausted.
	waitFor(t, "poisoned request", func() bool { return syncer.count.Load() == 3 && q.dedup.Len() == 0 })

	again, err := q.Enqueue(context.Background(), "user-1", SourceAPI)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if again.Deduplicated {
		t.Error("request after poisoning must not be deduplicated")
	}
}

func TestEnqueueHonorsContext(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	q, err := newQueue(cfg, &fakeSyncer{}, newChannelTransport(&cfg.Queue, watermill.NopLogger{}), watermill.NopLogger{})
	if err != nil {
		t.Fatalf("newQueue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Enqueue(ctx, "user-1", SourceAPI); !errors.Is(err, context.Canceled) {
		t.Errorf("Enqueue error = %v, want context.Canceled", err)
	}
}
