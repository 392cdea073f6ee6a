// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/tomtom215/pagesight/internal/api"
	"github.com/tomtom215/pagesight/internal/auth"
	"github.com/tomtom215/pagesight/internal/config"
	"github.com/tomtom215/pagesight/internal/database"
	"github.com/tomtom215/pagesight/internal/database/pg"
	"github.com/tomtom215/pagesight/internal/logging"
	"github.com/tomtom215/pagesight/internal/sync"
)

// backend is what every store driver provides to the rest of the server.
type backend interface {
	sync.Store
	api.ContentStore
	io.Closer
}

var (
	_ backend = (*database.DB)(nil)
	_ backend = (*pg.Store)(nil)
)

// openStore opens the store named by cfg.Driver.
func openStore(ctx context.Context, cfg *config.DatabaseConfig, tokens *auth.TokenEncryptor) (backend, error) {
	switch cfg.Driver {
	case "", "duckdb":
		db, err := database.New(cfg, tokens)
		if err != nil {
			return nil, fmt.Errorf("open duckdb: %w", err)
		}
		logging.Info().Str("path", cfg.Path).Msg("DuckDB store ready")
		return db, nil
	case "postgres":
		store, err := pg.Open(ctx, cfg, tokens, nil)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		logging.Info().Int32("max_conns", cfg.MaxConns).Msg("Postgres store ready")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
