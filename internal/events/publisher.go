// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package events

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
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/releasewatch/internal/logging"
	"github.com/tomtom215/releasewatch/internal/metrics"
	"github.com/tomtom215/releasewatch/internal/models"
	"github.com/tomtom215/releasewatch/internal/resilience"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// Config configures the event publisher.
type Config struct {
	// Enabled turns publishing on. A disabled publisher drops every event.
	Enabled bool

	// NATSURL selects the NATS transport. Empty means in-process GoChannel,
	// unless Embedded is set.
	NATSURL string

	// Embedded starts an in-process NATS server and publishes to it.
	Embedded     bool
	EmbeddedHost string
	EmbeddedPort int

	// SubjectPrefix is prepended to topics on NATS (default "releasewatch.").
	SubjectPrefix string

	MaxReconnects int
	ReconnectWait time.Duration

	// BufferSize is the GoChannel output buffer per subscriber.
	BufferSize int64
}

// DefaultConfig returns the default publisher configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		SubjectPrefix: "releasewatch.",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		BufferSize:    64,
	}
}

// Publisher publishes domain events. It implements the reconciler's event sink.
type Publisher struct {
	cfg      Config
	pub      message.Publisher
	channel  *gochannel.GoChannel
	embedded *EmbeddedServer
	breaker  *resilience.Breaker
	logger   zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// Open builds the publisher for cfg and connects its transport.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Open(cfg Config, logger zerolog.Logger) (*Publisher, error) {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultConfig().SubjectPrefix
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = DefaultConfig().ReconnectWait
	}

	p := &Publisher{
		cfg:     cfg,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerConfig("event-publisher")),
		logger:  logger.With().Str("component", "events").Logger(),
	}
	if !cfg.Enabled {
		p.logger.Info().Msg("Event publishing disabled")
		return p, nil
	}

	wmLogger := logging.NewWatermillAdapter(p.logger)

	url := cfg.NATSURL
	if cfg.Embedded && url == "" {
		srv, err := NewEmbeddedServer(ServerConfig{Host: cfg.EmbeddedHost, Port: cfg.EmbeddedPort})
		if err != nil {
			return nil, err
		}
		p.embedded = srv
		url = srv.ClientURL()
	}

	if url == "" {
		p.channel = gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: cfg.BufferSize}, wmLogger)
		p.pub = p.channel
		p.logger.Info().Msg("Publishing events in-process")
		return p, nil
	}

	pub, err := newNATSPublisher(url, cfg, wmLogger)
	if err != nil {
		if p.embedded != nil {
			_ = p.embedded.Shutdown(context.Background())
		}
		return nil, err
	}
	p.pub = pub
	p.logger.Info().Str("url", url).Bool("embedded", p.embedded != nil).Msg("Publishing events to NATS")
	return p, nil
}

func newNATSPublisher(url string, cfg Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	natsOpts := []natsgo.Option{
		natsgo.Name("releasewatch"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}
	return pub, nil
}

// Subject returns the transport subject for topic.
func (p *Publisher) Subject(topic string) string {
	if p.channel != nil {
		return topic
	}
	return p.cfg.SubjectPrefix + topic
}

// subscribe returns a channel of messages for topic. Only the in-process
// transport supports it; NATS consumers subscribe on the server directly.
func (p *Publisher) subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if p.channel == nil {
		return nil, fmt.Errorf("subscribe is only available on the in-process transport")
	}
	return p.channel.Subscribe(ctx, topic)
}

// Publish sends payload on topic through the circuit breaker.
func (p *Publisher) Publish(topic, eventID string, payload interface{}, metadata map[string]string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	if p.pub == nil {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	msg := message.NewMessage(eventID, data)
	msg.Metadata.Set(MetadataEventType, topic)
	for k, v := range metadata {
		msg.Metadata.Set(k, v)
	}

	err = p.breaker.Execute(func() error {
		return p.pub.Publish(p.Subject(topic), msg)
	})
	metrics.RecordEventPublish(topic, err)
	return err
}

// NotificationDispatched publishes a NotificationDispatched event.
func (p *Publisher) NotificationDispatched(ctx context.Context, rec *models.NotificationRecord) {
	id := uuid.New().String()
	err := p.Publish(TopicNotificationDispatched, id, NotificationDispatched{
		EventID:    id,
		OccurredAt: time.Now().UTC(),
		Record:     rec,
	}, map[string]string{MetadataCycleID: rec.CycleID, "channel": string(rec.Channel)})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("topic", TopicNotificationDispatched).Msg("Failed to publish event")
	}
}

// CycleCompleted publishes a CycleCompleted event.
func (p *Publisher) CycleCompleted(ctx context.Context, summary *models.CycleSummary) {
	id := uuid.New().String()
	err := p.Publish(TopicCycleCompleted, id, CycleCompleted{
		EventID:    id,
		OccurredAt: time.Now().UTC(),
		Summary:    summary,
	}, map[string]string{MetadataCycleID: summary.CycleID, "result": summary.Result})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("topic", TopicCycleCompleted).Msg("Failed to publish event")
	}
}

// Close shuts down the transport and the embedded server, if any.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if p.pub != nil {
		if err := p.pub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if p.embedded != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.embedded.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown NATS server: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Transport names the active transport for health reporting.
func (p *Publisher) Transport() string {
	switch {
	case p.pub == nil:
		return "disabled"
	case p.channel != nil:
		return "gochannel"
	case p.embedded != nil:
		return "nats-embedded"
	default:
		return "nats"
	}
}
