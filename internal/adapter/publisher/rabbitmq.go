package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/srgjo27/tour_booking/internal/core/domain"
	"github.com/srgjo27/tour_booking/internal/core/ports"
)

// RabbitMQ publishes booking events to a durable topic exchange with the
// routing key "booking.<action>", e.g. "booking.cancelled".
type RabbitMQ struct {
	url      string
	exchange string
	log      *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewRabbitMQ(url, exchange string, log *zap.Logger) (*RabbitMQ, error) {
	p := &RabbitMQ{url: url, exchange: exchange, log: log}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *RabbitMQ) connectLocked() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}

	if err := ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: exchange declare failed: %w", err)
	}

	p.conn = conn
	p.ch = ch
	p.log.Info("rabbitmq publisher connected", zap.String("exchange", p.exchange))
	return nil
}

func RoutingKey(event domain.BookingEvent) string {
	return "booking." + string(event.Type)
}

func buildPublishing(event domain.BookingEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("rabbitmq: marshal event failed: %w", err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.BookingID.String() + ":" + string(event.Type) + ":" + event.OccurredAt.UTC().Format(time.RFC3339Nano),
		Timestamp:    event.OccurredAt.UTC(),
		Type:         string(event.Type),
		Body:         body,
	}, nil
}

// Publish reconnects once if the channel was closed under it, e.g. after a
// broker restart.
func (p *RabbitMQ) Publish(ctx context.Context, event domain.BookingEvent) error {
	msg, err := buildPublishing(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		p.closeLocked()
		if err := p.connectLocked(); err != nil {
			return err
		}
	}

	err = p.ch.PublishWithContext(ctx,
		p.exchange,        // exchange
		RoutingKey(event), // routing key
		false,             // mandatory
		false,             // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish failed: %w", err)
	}
	return nil
}

func (p *RabbitMQ) closeLocked() error {
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
		p.ch = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}

func (p *RabbitMQ) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

var _ ports.EventPublisher = (*RabbitMQ)(nil)
