// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

/*
Package supervisor runs Pagesight's long-lived components under a suture v4
supervision tree.

	pagesight (root)
	├── data-layer
	│   └── duckdb-checkpoint       (duckdb driver only)
	├── messaging-layer
	│   ├── sync-queue              watermill router workers
	│   └── sync-scheduler          periodic sweep enqueueing stale users
	└── api-layer
	    └── http-server

Failures restart the failing service with suture's backoff. Supervisor
events are logged through sutureslog into the zerolog-backed slog logger.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.NewTreeConfig(&cfg.Supervisor))
	if err != nil {
	    return err
	}
	tree.AddMessagingService(services.NewQueueService(queue))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	return tree.Serve(ctx)

Service wrappers live in the services subpackage.
*/
package supervisor
