// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package eventprocessor

import (
	"testing"
	"time"

	"github.com/tomtom215/pagesight/internal/config"
)

func testQueueConfig() *config.QueueConfig {
	return &config.QueueConfig{
		Transport:            TransportChannel,
		NATSURL:              "nats://10.0.0.5:4333",
		NATSStoreDir:         "/tmp/nats",
		Topic:                "pagesight.sync.requests",
		PoisonTopic:          "pagesight.sync.poison",
		Subscribers:          2,
		BufferSize:           16,
		MaxRetries:           3,
		RetryInitialInterval: time.Second,
		RetryMaxInterval:     time.Minute,
		CloseTimeout:         10 * time.Second,
		DedupWindow:          2 * time.Minute,
	}
}

func TestNewRouterConfig(t *testing.T) {
	t.Parallel()

	cfg := NewRouterConfig(testQueueConfig())
	if cfg.RetryMaxRetries != 3 {
		t.Errorf("RetryMaxRetries = %d, want 3", cfg.RetryMaxRetries)
	}
	if cfg.RetryMultiplier != 2.0 {
		t.Errorf("RetryMultiplier = %f, want 2.0", cfg.RetryMultiplier)
	}
	if cfg.PoisonQueueTopic != "pagesight.sync.poison" {
		t.Errorf("PoisonQueueTopic = %q", cfg.PoisonQueueTopic)
	}
	if cfg.CloseTimeout != 10*time.Second {
		t.Errorf("CloseTimeout = %v", cfg.CloseTimeout)
	}
}

func TestNewSubscriberConfig(t *testing.T) {
	t.Parallel()

	cfg := NewSubscriberConfig("nats://localhost:4222", testQueueConfig())
	if cfg.MaxDeliver != 4 {
		t.Errorf("MaxDeliver = %d, want MaxRetries+1", cfg.MaxDeliver)
	}
	if cfg.SubscribersCount != 2 {
		t.Errorf("SubscribersCount = %d, want 2", cfg.SubscribersCount)
	}
	if cfg.StreamName != streamName {
		t.Errorf("StreamName = %q, want %q", cfg.StreamName, streamName)
	}
}

func TestNewStreamConfigCoversBothTopics(t *testing.T) {
	t.Parallel()

	cfg := NewStreamConfig(testQueueConfig())
	if len(cfg.Subjects) != 2 || cfg.Subjects[0] != "pagesight.sync.requests" || cfg.Subjects[1] != "pagesight.sync.poison" {
		t.Errorf("Subjects = %v", cfg.Subjects)
	}
	if cfg.DuplicateWindow != 2*time.Minute {
		t.Errorf("DuplicateWindow = %v, want dedup window", cfg.DuplicateWindow)
	}
}

func TestNewServerConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		url      string
		wantHost string
		wantPort int
	}{
		{"explicit", "nats://10.0.0.5:4333", "10.0.0.5", 4333},
		{"no port", "nats://nats.internal", "nats.internal", 4222},
		{"empty", "", "127.0.0.1", 4222},
		{"malformed", "nats://%zz", "127.0.0.1", 4222},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			qc := testQueueConfig()
			qc.NATSURL = tt.url
			got := NewServerConfig(qc)
			if got.Host != tt.wantHost || got.Port != tt.wantPort {
				t.Errorf("NewServerConfig(%q) = %s:%d, want %s:%d", tt.url, got.Host, got.Port, tt.wantHost, tt.wantPort)
			}
			if got.StoreDir != "/tmp/nats" {
				t.Errorf("StoreDir = %q", got.StoreDir)
			}
		})
	}
}
