// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"

	"github.com/tomtom215/pagesight/internal/cache"
	"github.com/tomtom215/pagesight/internal/config"
	"github.com/tomtom215/pagesight/internal/logging"
	"github.com/tomtom215/pagesight/internal/metrics"
	"github.com/tomtom215/pagesight/internal/models"
	pagesync "github.com/tomtom215/pagesight/internal/sync"
)

const (
	syncHandlerName   = "sync-requests"
	poisonHandlerName = "sync-poison"

	// routerStartWait bounds how long Enqueue waits for subscriptions.
	routerStartWait = 5 * time.Second
)

// ErrQueueNotRunning is returned when a request is enqueued before the
// router has subscribed to its topics.
var ErrQueueNotRunning = errors.New("sync queue is not running")

// Syncer runs a sync on behalf of a user.
type Syncer interface {
	SyncForUser(ctx context.Context, userID string, manual bool) (*models.SyncResult, error)
}

// Queue hands background sync requests to workers. Publishing returns as
// soon as the request is accepted; failures are retried, then routed to the
// poison topic and logged.
type Queue struct {
	cfg     config.QueueConfig
	timeout time.Duration
	syncer  Syncer

	transport *transport
	router    *message.Router
	dedup     *cache.LRUCache
	now       func() time.Time
}

var _ pagesync.Enqueuer = (*Queue)(nil)

// New builds the queue on the configured transport and registers its handlers.
func New(ctx context.Context, cfg *config.Config, syncer Syncer) (*Queue, error) {
	logger := logging.NewWatermillLogger()

	t, err := newTransport(ctx, &cfg.Queue, logger)
	if err != nil {
		return nil, err
	}

	q, err := newQueue(cfg, syncer, t, logger)
	if err != nil {
		_ = t.close(ctx)
		return nil, err
	}

	logging.Info().
		Str("transport", cfg.Queue.Transport).
		Str("topic", cfg.Queue.Topic).
		Int("subscribers", cfg.Queue.Subscribers).
		Msg("Sync queue configured")
	return q, nil
}

func newQueue(cfg *config.Config, syncer Syncer, t *transport, logger watermill.LoggerAdapter) (*Queue, error) {
	routerCfg := NewRouterConfig(&cfg.Queue)
	router, err := NewRouter(&routerCfg, t.publisher, logger)
	if err != nil {
		return nil, err
	}

	q := &Queue{
		cfg:       cfg.Queue,
		timeout:   cfg.Sync.Timeout,
		syncer:    syncer,
		transport: t,
		router:    router,
		dedup:     cache.NewLRUCache(10000, cfg.Queue.DedupWindow),
		now:       time.Now,
	}

	router.AddConsumerHandler(syncHandlerName, cfg.Queue.Topic, t.subscriber, q.handleSyncRequest)
	router.AddConsumerHandler(poisonHandlerName, cfg.Queue.PoisonTopic, t.subscriber, q.handlePoisoned)
	return q, nil
}

// Enqueue publishes a sync request for userID. A request for a user that is
// already pending within the dedup window is dropped and reported as such.
func (q *Queue) Enqueue(ctx context.Context, userID, source string) (*models.BackgroundSyncAccepted, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidEvent)
	}

	select {
	case <-q.router.Running():
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(routerStartWait):
		return nil, ErrQueueNotRunning
	}

	if q.dedup.IsDuplicate(userID) {
		metrics.RecordQueueDeduplicated()
		queuedAt, _ := q.dedup.SeenAt(userID)
		logging.Ctx(ctx).Debug().Str("user_id", userID).Msg("Sync request already pending")
		return &models.BackgroundSyncAccepted{QueuedAt: queuedAt.UTC(), Deduplicated: true}, nil
	}

	event := &SyncRequestedEvent{
		RequestID:   uuid.New().String(),
		UserID:      userID,
		Source:      source,
		RequestedAt: q.now().UTC(),
	}
	payload, err := MarshalEvent(event)
	if err != nil {
		q.dedup.Remove(userID)
		return nil, err
	}

	msg := message.NewMessage(event.RequestID, payload)
	msg.Metadata.Set(metadataUserID, userID)
	msg.Metadata.Set(metadataSource, source)
	if correlationID := logging.CorrelationIDFromContext(ctx); correlationID != "" {
		middleware.SetCorrelationID(correlationID, msg)
	}

	if err := q.transport.publisher.Publish(q.cfg.Topic, msg); err != nil {
		q.dedup.Remove(userID)
		return nil, fmt.Errorf("publish sync request: %w", err)
	}
	metrics.RecordQueuePublish()

	logging.Ctx(ctx).Info().
		Str("request_id", event.RequestID).
		Str("user_id", userID).
		Str("source", source).
		Msg("Sync request queued")

	return &models.BackgroundSyncAccepted{RequestID: event.RequestID, QueuedAt: event.RequestedAt}, nil
}

// EnqueueSync queues a scheduler-initiated sync.
func (q *Queue) EnqueueSync(ctx context.Context, userID string) error {
	_, err := q.Enqueue(ctx, userID, SourceScheduler)
	return err
}

// handleSyncRequest runs one queued sync. Errors that cannot succeed on retry
// are logged and acked; anything else is returned for the retry middleware.
func (q *Queue) handleSyncRequest(msg *message.Message) error {
	start := time.Now()

	event, err := UnmarshalEvent(msg.Payload)
	if err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed sync request")
		return nil
	}

	ctx := logging.ContextWithCorrelationID(msg.Context(), event.RequestID)
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	result, err := q.syncer.SyncForUser(ctx, event.UserID, false)
	metrics.RecordQueueConsume(time.Since(start))

	if err != nil {
		if isPermanent(err) {
			q.dedup.Remove(event.UserID)
			logging.Ctx(ctx).Warn().Err(err).Str("user_id", event.UserID).Msg("Sync request cannot be served")
			return nil
		}
		return fmt.Errorf("sync for user %s: %w", event.UserID, err)
	}

	q.dedup.Remove(event.UserID)
	logEvent := logging.Ctx(ctx).Info().
		Str("user_id", event.UserID).
		Str("source", event.Source).
		Dur("duration", time.Since(start))
	if result != nil {
		logEvent = logEvent.Bool("skipped", result.Skipped)
		if result.Stats != nil {
			logEvent = logEvent.Int("records", result.Stats.Total())
		}
	}
	logEvent.Msg("Background sync finished")
	return nil
}

// handlePoisoned records requests that exhausted their retries.
func (q *Queue) handlePoisoned(msg *message.Message) error {
	metrics.RecordQueuePoisoned()

	userID := msg.Metadata.Get(metadataUserID)
	q.dedup.Remove(userID)

	logging.Error().
		Str("message_uuid", msg.UUID).
		Str("user_id", userID).
		Str("reason", msg.Metadata.Get(middleware.ReasonForPoisonedKey)).
		Msg("Background sync failed after retries")
	return nil
}

func isPermanent(err error) bool {
	return errors.Is(err, pagesync.ErrNoIntegration) ||
		errors.Is(err, pagesync.ErrNotAuthenticated) ||
		errors.Is(err, ErrInvalidEvent)
}

// Run subscribes and processes requests until ctx is cancelled or Close is
// called.
func (q *Queue) Run(ctx context.Context) error {
	return q.router.Run(ctx)
}

// Running is closed once every handler is subscribed.
func (q *Queue) Running() <-chan struct{} {
	return q.router.Running()
}

// Close stops the router, waiting for in-flight syncs up to the close
// timeout, then closes the transport.
func (q *Queue) Close() error {
	routerErr := q.router.Close()

	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.CloseTimeout)
	defer cancel()
	return errors.Join(routerErr, q.transport.close(ctx))
}
