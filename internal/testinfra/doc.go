// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

// Package testinfra provides container-backed infrastructure for integration tests.
//
// Everything here is behind the integration build tag and uses
// testcontainers-go, so plain `go test ./...` never needs Docker.
//
// # Postgres Container
//
// PostgresContainer starts a throwaway Postgres matching the Supabase major
// version, used to exercise the pg store against a real server:
//
//	func TestStore(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    pgc, err := testinfra.NewPostgresContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, pgc)
//	    // pg.Open(ctx, &config.DatabaseConfig{URL: pgc.URL}, nil, nil)
//	}
//
// # CI Considerations
//
// These tests require Docker and network access. Tests are skipped
// gracefully if Docker is unavailable. Run them with:
//
//	go test -tags integration ./internal/database/pg/...
package testinfra
