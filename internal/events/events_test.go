// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/releasewatch/internal/models"
)

func testRecord() *models.NotificationRecord {
	return &models.NotificationRecord{
		SubscriberEmail:  "alice@example.com",
		ReleaseID:        "4uLU6hMCjMI75M1A2tKUQC",
		Channel:          models.ChannelEmail,
		ReleaseName:      "Dawn FM",
		MatchedArtistIDs: []string{"1Xyo4u8uXC1ZmMpatF05PJ"},
		Address:          "alice@example.com",
		CycleID:          "cycle-1",
		SentAt:           time.Date(2022, 1, 7, 9, 0, 0, 0, time.UTC),
	}
}

func TestPublisher_InProcess(t *testing.T) {
	t.Parallel()

	p, err := Open(DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	if p.Transport() != "gochannel" {
		t.Errorf("Transport() = %s, want gochannel", p.Transport())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, err := p.subscribe(ctx, TopicNotificationDispatched)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	p.NotificationDispatched(ctx, testRecord())

	select {
	case msg := <-msgs:
		defer msg.Ack()
		if got := msg.Metadata.Get(MetadataEventType); got != TopicNotificationDispatched {
			t.Errorf("event_type = %q", got)
		}
		if got := msg.Metadata.Get(MetadataCycleID); got != "cycle-1" {
			t.Errorf("cycle_id = %q", got)
		}
		var ev NotificationDispatched
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if ev.EventID != msg.UUID {
			t.Errorf("event id %q does not match message uuid %q", ev.EventID, msg.UUID)
		}
		if ev.Record == nil || ev.Record.ReleaseID != "4uLU6hMCjMI75M1A2tKUQC" {
			t.Errorf("unexpected record %+v", ev.Record)
		}
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}

func TestPublisher_Disabled(t *testing.T) {
	t.Parallel()

	p, err := Open(Config{Enabled: false}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if p.Transport() != "disabled" {
		t.Errorf("Transport() = %s", p.Transport())
	}
	if err := p.Publish(TopicCycleCompleted, "id", struct{}{}, nil); err != nil {
		t.Errorf("disabled publish should be a no-op, got %v", err)
	}
	p.CycleCompleted(context.Background(), &models.CycleSummary{CycleID: "c"})
	if _, err := p.subscribe(context.Background(), TopicCycleCompleted); err == nil {
		t.Error("subscribe should fail without the in-process transport")
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestPublisher_Closed(t *testing.T) {
	t.Parallel()

	p, err := Open(DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	err = p.Publish(TopicCycleCompleted, "id", struct{}{}, nil)
	if !errors.Is(err, ErrPublisherClosed) {
		t.Errorf("Publish after Close = %v, want ErrPublisherClosed", err)
	}
	// Event sink calls must not panic after shutdown.
	p.NotificationDispatched(context.Background(), testRecord())
}

func TestPublisher_EmbeddedNATS(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Embedded = true
	cfg.EmbeddedPort = server.RANDOM_PORT
	p, err := Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	if p.Transport() != "nats-embedded" {
		t.Fatalf("Transport() = %s", p.Transport())
	}
	if !p.embedded.IsRunning() {
		t.Fatal("embedded server not running")
	}

	nc, err := natsgo.Connect(p.embedded.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()

	sub, err := nc.SubscribeSync(p.Subject(TopicCycleCompleted))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	p.CycleCompleted(context.Background(), &models.CycleSummary{
		CycleID:    "cycle-9",
		Result:     models.CycleResultOK,
		Dispatched: 3,
	})

	msg, err := sub.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatalf("NextMsg: %v", err)
	}
	if msg.Subject != "releasewatch.cycle.completed" {
		t.Errorf("subject = %s", msg.Subject)
	}
	var ev CycleCompleted
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Summary == nil || ev.Summary.CycleID != "cycle-9" || ev.Summary.Dispatched != 3 {
		t.Errorf("unexpected summary %+v", ev.Summary)
	}
}

func TestEmbeddedServer_Shutdown(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}
	t.Parallel()

	srv, err := NewEmbeddedServer(ServerConfig{Port: server.RANDOM_PORT})
	if err != nil {
		t.Fatalf("NewEmbeddedServer: %v", err)
	}
	if srv.ClientURL() == "" {
		t.Error("empty client URL")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if srv.IsRunning() {
		t.Error("server still running after shutdown")
	}
}
