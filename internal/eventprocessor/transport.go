// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/pagesight/internal/config"
)

// transport bundles the publisher and subscriber of one queue backend.
type transport struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	embedded   *EmbeddedServer
}

// newTransport builds the backend selected by cfg.Transport.
func newTransport(ctx context.Context, cfg *config.QueueConfig, logger watermill.LoggerAdapter) (*transport, error) {
	switch cfg.Transport {
	case "", TransportChannel:
		return newChannelTransport(cfg, logger), nil
	case TransportNATS:
		return newNATSTransport(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown queue transport %q", cfg.Transport)
	}
}

// newChannelTransport keeps messages in process. Requests are lost on restart.
func newChannelTransport(cfg *config.QueueConfig, logger watermill.LoggerAdapter) *transport {
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.BufferSize,
		Persistent:          false,
	}, logger)
	return &transport{publisher: pubSub, subscriber: pubSub}
}

func newNATSTransport(ctx context.Context, cfg *config.QueueConfig, logger watermill.LoggerAdapter) (*transport, error) {
	t := &transport{}
	url := cfg.NATSURL

	if cfg.EmbeddedNATS {
		serverCfg := NewServerConfig(cfg)
		embedded, err := NewEmbeddedServer(&serverCfg)
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		t.embedded = embedded
		url = embedded.ClientURL()
	}

	if err := ensureStream(ctx, url, cfg); err != nil {
		_ = t.close(ctx)
		return nil, err
	}

	pub, err := NewPublisher(NewPublisherConfig(url), logger)
	if err != nil {
		_ = t.close(ctx)
		return nil, err
	}
	pub.SetCircuitBreaker(newPublishBreaker())
	t.publisher = pub

	subCfg := NewSubscriberConfig(url, cfg)
	sub, err := NewSubscriber(&subCfg, logger)
	if err != nil {
		_ = t.close(ctx)
		return nil, err
	}
	t.subscriber = sub

	return t, nil
}

func ensureStream(ctx context.Context, url string, cfg *config.QueueConfig) error {
	nc, err := natsgo.Connect(url, natsgo.Name("pagesight-stream-init"))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}

	streamCfg := NewStreamConfig(cfg)
	initializer, err := NewStreamInitializer(js, &streamCfg)
	if err != nil {
		return err
	}
	if _, err := initializer.EnsureStream(ctx); err != nil {
		return err
	}
	return nil
}

// close releases everything the transport opened, in reverse order.
func (t *transport) close(ctx context.Context) error {
	var errs []error
	if t.subscriber != nil {
		if err := t.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	// gochannel uses one value for both sides.
	if t.publisher != nil && any(t.publisher) != any(t.subscriber) {
		if err := t.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if t.embedded != nil {
		if err := t.embedded.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown embedded NATS: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Publisher wraps the NATS JetStream publisher with a circuit breaker.
type Publisher struct {
	publisher      message.Publisher
	circuitBreaker *gobreaker.CircuitBreaker[interface{}]
	mu             sync.RWMutex
	closed         bool
}

var _ message.Publisher = (*Publisher)(nil)

// NewPublisher creates a JetStream publisher bound to the pre-created stream.
func NewPublisher(cfg PublisherConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false, // Stream is pre-created by StreamInitializer
			TrackMsgId:    cfg.EnableTrackMsgID,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return &Publisher{publisher: pub}, nil
}

// SetCircuitBreaker configures the circuit breaker for publish operations.
func (p *Publisher) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[interface{}]) {
	p.circuitBreaker = cb
}

// Publish sends messages to topic. The message UUID doubles as the
// Nats-Msg-Id so JetStream drops redeliveries of the same request.
func (p *Publisher) Publish(topic string, msgs ...*message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("publisher is closed")
	}

	for _, msg := range msgs {
		if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
			msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
		}
	}

	if p.circuitBreaker == nil {
		return p.publisher.Publish(topic, msgs...)
	}
	_, err := p.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, p.publisher.Publish(topic, msgs...)
	})
	return err
}

// Close gracefully shuts down the publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}

func newPublishBreaker() *gobreaker.CircuitBreaker[interface{}] {
	return gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        "queue-publish",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// NewSubscriber creates a durable JetStream subscriber bound to the stream.
func NewSubscriber(cfg *SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("Subscriber disconnected", err, nil)
			}
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(cfg.MaxDeliver),
		natsgo.MaxAckPending(cfg.MaxAckPending),
		natsgo.AckWait(cfg.AckWaitTimeout),
		natsgo.DeliverNew(),
	}
	autoProvision := true
	if cfg.StreamName != "" {
		subOpts = append(subOpts, natsgo.BindStream(cfg.StreamName))
		autoProvision = false
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    autoProvision,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}
	return sub, nil
}
