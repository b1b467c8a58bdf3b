package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQP publishes attendance events to a RabbitMQ topic exchange.
// Routing keys are "attendance.<type>".
type AMQP struct {
	url      string
	exchange string
	logger   *zap.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closing bool
}

// NewAMQP connects to RabbitMQ and declares the exchange.
func NewAMQP(url, exchange string, logger *zap.Logger) (*AMQP, error) {
	p := &AMQP{
		url:      url,
		exchange: exchange,
		logger:   logger,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect dials with retry and declares the exchange. Callers hold p.mu.
func (p *AMQP) connect() error {
	var (
		conn *amqp.Connection
		err  error
	)

	maxRetries := 5
	for attempt := 1; attempt <= maxRetries; attempt++ {
		conn, err = amqp.Dial(p.url)
		if err == nil {
			break
		}

		p.logger.Warn("Failed to connect to RabbitMQ",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))

		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		p.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	p.conn = conn
	p.channel = channel
	p.logger.Info("Connected to RabbitMQ", zap.String("exchange", p.exchange))
	return nil
}

// Publish sends the event as a persistent JSON message, reconnecting once if
// the connection was lost.
func (p *AMQP) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closing {
		return fmt.Errorf("publisher closed")
	}
	if p.conn == nil || p.conn.IsClosed() {
		p.logger.Warn("RabbitMQ connection lost, reconnecting")
		if err := p.connect(); err != nil {
			return err
		}
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,           // exchange
		"attendance."+e.Type, // routing key
		false,                // mandatory
		false,                // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    e.At,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("Published attendance event",
		zap.String("type", e.Type),
		zap.String("source", e.Source))
	return nil
}

// Close gracefully closes the RabbitMQ connection.
func (p *AMQP) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closing = true

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Error("Error closing channel", zap.Error(err))
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("closing RabbitMQ connection: %w", err)
		}
	}
	return nil
}
