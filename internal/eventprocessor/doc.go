// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

/*
Package eventprocessor runs background syncs through a Watermill message queue.

A POST to /api/v1/sync/background and every scheduler tick end up in
Queue.Enqueue, which publishes a SyncRequestedEvent and returns immediately.
Router workers consume the event and call the sync manager with manual=false,
so staleness rules still apply.

# Transports

  - channel: in-process gochannel pub/sub. No broker; requests are lost on restart.
  - nats: NATS JetStream through watermill-nats. The PAGESIGHT_SYNC stream is
    created by StreamInitializer before publishers and subscribers bind to it.
    Set queue.embedded_nats to run nats-server inside the process.

# Delivery

Requests for a user already pending within the dedup window are collapsed
into one. JetStream additionally drops duplicate Nats-Msg-Id headers.

Handler errors pass through the Retry middleware with exponential backoff.
Requests that still fail land on the poison topic, where they are logged and
counted. Errors that cannot succeed on retry (no integration, no token) are
acknowledged without retrying.

# Usage

	q, err := eventprocessor.New(ctx, cfg, manager)
	if err != nil {
	    return err
	}
	manager.SetEnqueuer(q)
	go q.Run(ctx)
	defer q.Close()
*/
package eventprocessor
