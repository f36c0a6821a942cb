package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

// eventEnvelope — типизированная обертка исходящего сообщения. Уникальный
// id позволяет подписчикам дедуплицировать повторные доставки, emitted_at
// фиксирует момент публикации на стороне бота.
type eventEnvelope struct {
	ID        string      `json:"id"`
	Subject   string      `json:"subject"`
	EmittedAt time.Time   `json:"emitted_at"`
	Payload   interface{} `json:"payload"`
}

func newEventEnvelope(subject string, payload interface{}) eventEnvelope {
	return eventEnvelope{
		ID:        uuid.NewString(),
		Subject:   subject,
		EmittedAt: time.Now().UTC(),
		Payload:   payload,
	}
}

// NATSPublisher публикует исходы обработки событий (оцененные события,
// переходы здоровья ветки) в NATS JetStream. Реализует port.EventPublisher.
// Публикация асинхронная: недоступность брокера не должна задерживать
// или срывать обработку события сборки.
type NATSPublisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *logger.Logger
}

// NewNATSPublisher подключается к NATS и создает publisher
func NewNATSPublisher(natsURL string, log *logger.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	log.Info("Connected to NATS", "url", natsURL)

	return &NATSPublisher{
		nc:     nc,
		js:     js,
		logger: log,
	}, nil
}

// PublishEvent заворачивает payload в envelope и публикует его в subject
func (p *NATSPublisher) PublishEvent(ctx context.Context, subject string, event interface{}) error {
	data, err := json.Marshal(newEventEnvelope(subject, event))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.js.PublishAsync(subject, data); err != nil {
		p.logger.Error("Failed to publish event", err, "subject", subject)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Event published", "subject", subject, "size", len(data))
	return nil
}

// Close закрывает соединение с NATS
func (p *NATSPublisher) Close() error {
	if p.nc != nil {
		p.logger.Info("Closing NATS connection")
		p.nc.Close()
	}
	return nil
}
