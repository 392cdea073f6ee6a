// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package services

import (
	"context"
	"fmt"
)

// StartStopManager matches the lifecycle of the sync scheduler.
type StartStopManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// SyncService runs the periodic sync sweep under suture. The sweep itself
// only enqueues stale users; the queue service does the work.
type SyncService struct {
	manager StartStopManager
	name    string
}

// NewSyncService wraps manager.
//
//	svc := services.NewSyncService(syncManager)
//	tree.AddMessagingService(svc)
func NewSyncService(manager StartStopManager) *SyncService {
	return &SyncService{
		manager: manager,
		name:    "sync-scheduler",
	}
}

// Serve starts the manager, blocks until ctx is canceled, then stops it.
// A Start failure is returned so suture retries with backoff.
func (s *SyncService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("sync scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("sync scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

func (s *SyncService) String() string {
	return s.name
}
