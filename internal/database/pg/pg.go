// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

// Package pg implements the sync store on Postgres (Supabase) using pgxpool.
package pg

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/pagesight/internal/auth"
	"github.com/tomtom215/pagesight/internal/config"
	"github.com/tomtom215/pagesight/internal/logging"
	"github.com/tomtom215/pagesight/internal/metrics"
	"github.com/tomtom215/pagesight/internal/sync"
)

const backendName = "postgres"

//go:embed schema.sql
var schemaSQL string

// newPool is a seam for tests.
var newPool = pgxpool.NewWithConfig

// Store is a Postgres-backed sync store.
type Store struct {
	pool   *pgxpool.Pool
	tokens *auth.TokenEncryptor
	now    func() time.Time
}

var _ sync.Store = (*Store)(nil)

// Open connects to cfg.URL, applies the schema and returns the store.
// poolCfgMut may adjust the pool configuration before the pool is created.
func Open(ctx context.Context, cfg *config.DatabaseConfig, tokens *auth.TokenEncryptor, poolCfgMut func(*pgxpool.Config)) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("database url is required for the postgres driver")
	}

	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if poolCfgMut != nil {
		poolCfgMut(pcfg)
	}

	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	s := &Store{pool: pool, tokens: tokens, now: time.Now}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logging.Info().
		Str("host", pcfg.ConnConfig.Host).
		Int32("max_conns", pcfg.MaxConns).
		Bool("token_encryption", tokens.IsEnabled()).
		Msg("Postgres store ready")

	return s, nil
}

// EnsureSchema applies the embedded schema. It is safe to run repeatedly.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks that a pooled connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool
func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func observe(operation string, start time.Time, err error) {
	metrics.RecordDBQuery(backendName, operation, time.Since(start), err)
}
