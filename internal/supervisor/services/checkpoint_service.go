// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package services

import (
	"context"
	"time"

	"github.com/tomtom215/pagesight/internal/logging"
)

// DefaultCheckpointInterval is used when NewCheckpointService gets zero.
const DefaultCheckpointInterval = 5 * time.Minute

// Checkpointer flushes a store's write-ahead log into its main file.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// CheckpointService runs periodic checkpoints so the DuckDB WAL stays small
// and a crash replays little. A final checkpoint runs on shutdown.
type CheckpointService struct {
	store    Checkpointer
	interval time.Duration
	timeout  time.Duration
	name     string
}

// NewCheckpointService wraps store.
func NewCheckpointService(store Checkpointer, interval time.Duration) *CheckpointService {
	if interval <= 0 {
		interval = DefaultCheckpointInterval
	}
	return &CheckpointService{
		store:    store,
		interval: interval,
		timeout:  30 * time.Second,
		name:     "duckdb-checkpoint",
	}
}

// Serve implements suture.Service. Checkpoint failures are logged and the
// next tick tries again.
func (s *CheckpointService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final checkpoint with a fresh context.
			finalCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
			s.checkpoint(finalCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, s.timeout)
			s.checkpoint(tickCtx)
			cancel()
		}
	}
}

func (s *CheckpointService) checkpoint(ctx context.Context) {
	start := time.Now()
	if err := s.store.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("DuckDB checkpoint failed")
		return
	}
	logging.Debug().Dur("duration", time.Since(start)).Msg("DuckDB checkpoint complete")
}

func (s *CheckpointService) String() string {
	return s.name
}
