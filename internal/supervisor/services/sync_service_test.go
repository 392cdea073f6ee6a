// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type mockManager struct {
	startErr   error
	stopErr    error
	startCalls atomic.Int32
	stopCalls  atomic.Int32
	started    chan struct{}
}

func newMockManager() *mockManager {
	return &mockManager{started: make(chan struct{}, 1)}
}

func (m *mockManager) Start(context.Context) error {
	m.startCalls.Add(1)
	if m.startErr != nil {
		return m.startErr
	}
	m.started <- struct{}{}
	return nil
}

func (m *mockManager) Stop() error {
	m.stopCalls.Add(1)
	return m.stopErr
}

func TestSyncService(t *testing.T) {
	t.Parallel()

	t.Run("start then stop on cancel", func(t *testing.T) {
		t.Parallel()
		manager := newMockManager()
		svc := NewSyncService(manager)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Serve(ctx) }()

		<-manager.started
		if n := manager.stopCalls.Load(); n != 0 {
			t.Fatalf("Stop called before cancel")
		}
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return")
		}
		if n := manager.stopCalls.Load(); n != 1 {
			t.Errorf("Stop called %d times, want 1", n)
		}
	})

	t.Run("start failure", func(t *testing.T) {
		t.Parallel()
		manager := newMockManager()
		manager.startErr = errors.New("no store")
		svc := NewSyncService(manager)

		if err := svc.Serve(context.Background()); !errors.Is(err, manager.startErr) {
			t.Errorf("Serve() = %v, want wrapped start error", err)
		}
		if n := manager.stopCalls.Load(); n != 0 {
			t.Errorf("Stop called %d times after failed start", n)
		}
	})

	t.Run("stop failure", func(t *testing.T) {
		t.Parallel()
		manager := newMockManager()
		manager.stopErr = errors.New("loop stuck")
		svc := NewSyncService(manager)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := svc.Serve(ctx); !errors.Is(err, manager.stopErr) {
			t.Errorf("Serve() = %v, want wrapped stop error", err)
		}
	})

	if got := NewSyncService(newMockManager()).String(); got != "sync-scheduler" {
		t.Errorf("String() = %q", got)
	}
}
