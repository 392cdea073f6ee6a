// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package eventprocessor

import (
	"net/url"
	"strconv"
	"time"

	"github.com/tomtom215/pagesight/internal/config"
)

// Transports.
const (
	TransportChannel = "channel"
	TransportNATS    = "nats"
)

// RouterConfig holds configuration for the Watermill Router.
type RouterConfig struct {
	// CloseTimeout is how long to wait for handlers to finish when closing.
	CloseTimeout time.Duration

	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// PoisonQueueTopic receives messages that failed every retry.
	PoisonQueueTopic string
}

// PublisherConfig holds NATS publisher configuration.
type PublisherConfig struct {
	URL              string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	EnableTrackMsgID bool // nolint:revive // ID is correct per Go conventions
}

// SubscriberConfig holds NATS subscriber configuration.
type SubscriberConfig struct {
	URL              string
	DurableName      string
	QueueGroup       string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	MaxDeliver       int
	MaxAckPending    int
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration

	// StreamName binds the subscriber to a stream created by StreamInitializer.
	StreamName string
}

// StreamConfig defines the JetStream stream holding sync requests.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxMsgs         int64
	DuplicateWindow time.Duration
}

// ServerConfig configures the embedded NATS server.
type ServerConfig struct {
	Host     string
	Port     int
	StoreDir string
}

// streamName is the JetStream stream holding both queue topics.
const streamName = "PAGESIGHT_SYNC"

// NewRouterConfig derives router settings from the queue configuration.
func NewRouterConfig(cfg *config.QueueConfig) RouterConfig {
	return RouterConfig{
		CloseTimeout:         cfg.CloseTimeout,
		RetryMaxRetries:      cfg.MaxRetries,
		RetryInitialInterval: cfg.RetryInitialInterval,
		RetryMaxInterval:     cfg.RetryMaxInterval,
		RetryMultiplier:      2.0,
		PoisonQueueTopic:     cfg.PoisonTopic,
	}
}

// NewPublisherConfig returns production publisher defaults for natsURL.
func NewPublisherConfig(natsURL string) PublisherConfig {
	return PublisherConfig{
		URL:              natsURL,
		MaxReconnects:    -1, // Unlimited
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024,
		EnableTrackMsgID: true,
	}
}

// NewSubscriberConfig returns production subscriber defaults for natsURL.
func NewSubscriberConfig(natsURL string, cfg *config.QueueConfig) SubscriberConfig {
	return SubscriberConfig{
		URL:              natsURL,
		DurableName:      "pagesight-sync",
		QueueGroup:       "sync-workers",
		SubscribersCount: cfg.Subscribers,
		AckWaitTimeout:   30 * time.Second,
		MaxDeliver:       cfg.MaxRetries + 1,
		MaxAckPending:    256,
		CloseTimeout:     cfg.CloseTimeout,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		StreamName:       streamName,
	}
}

// NewStreamConfig returns the stream covering the request and poison topics.
func NewStreamConfig(cfg *config.QueueConfig) StreamConfig {
	return StreamConfig{
		Name:            streamName,
		Subjects:        []string{cfg.Topic, cfg.PoisonTopic},
		MaxAge:          7 * 24 * time.Hour,
		MaxMsgs:         100000,
		DuplicateWindow: cfg.DedupWindow,
	}
}

// NewServerConfig takes the embedded server's host and port from the
// configured NATS URL, falling back to 127.0.0.1:4222.
func NewServerConfig(cfg *config.QueueConfig) ServerConfig {
	server := ServerConfig{Host: "127.0.0.1", Port: 4222, StoreDir: cfg.NATSStoreDir}
	u, err := url.Parse(cfg.NATSURL)
	if err != nil {
		return server
	}
	if host := u.Hostname(); host != "" {
		server.Host = host
	}
	if port, err := strconv.Atoi(u.Port()); err == nil && port > 0 {
		server.Port = port
	}
	return server
}
