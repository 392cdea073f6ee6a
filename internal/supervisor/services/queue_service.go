// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package services

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/pagesight/internal/logging"
)

// QueueRunner matches the lifecycle of the background sync queue.
type QueueRunner interface {
	Run(ctx context.Context) error
	Close() error
}

// QueueService runs the sync queue's watermill router under suture.
//
// A router cannot be run twice, so an exit that was not requested is
// reported with suture.ErrDoNotRestart. Foreground syncs keep working and
// the health endpoint reports the queue as down.
type QueueService struct {
	queue QueueRunner
	name  string
}

// NewQueueService wraps queue.
func NewQueueService(queue QueueRunner) *QueueService {
	return &QueueService{
		queue: queue,
		name:  "sync-queue",
	}
}

// Serve implements suture.Service.
func (s *QueueService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.queue.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		closeErr := s.queue.Close()
		<-errCh
		if closeErr != nil {
			return fmt.Errorf("sync queue close failed: %w", closeErr)
		}
		return ctx.Err()

	case err := <-errCh:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			logging.Error().Err(err).Msg("Sync queue stopped unexpectedly")
		} else {
			logging.Error().Msg("Sync queue stopped without a shutdown request")
		}
		if closeErr := s.queue.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("Sync queue close failed")
		}
		return suture.ErrDoNotRestart
	}
}

func (s *QueueService) String() string {
	return s.name
}
