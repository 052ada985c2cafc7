package events

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const exchangeKind = "topic"

// amqpChannel is the part of *amqp.Channel the publisher needs.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher forwards bus events to a RabbitMQ topic exchange, using the
// event type as routing key.
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
	timeout  time.Duration
	logger   *zerolog.Logger
}

func NewAMQPPublisher(url, exchange string, logger *zerolog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, exchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	p := newAMQPPublisher(ch, exchange, logger)
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(ch amqpChannel, exchange string, logger *zerolog.Logger) *AMQPPublisher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AMQPPublisher{
		channel:  ch,
		exchange: exchange,
		timeout:  5 * time.Second,
		logger:   logger,
	}
}

// Handle publishes one event. Delivery failures are logged and swallowed.
func (p *AMQPPublisher) Handle(event *Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err := p.channel.PublishWithContext(ctx, p.exchange, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.CreatedAt,
		Type:         event.Type,
		Body:         event.Payload,
	})
	if err != nil {
		p.logger.Error().Err(err).Str("event", event.Type).Str("exchange", p.exchange).Msg("Failed to publish event to RabbitMQ")
		return nil
	}

	p.logger.Debug().Str("event", event.Type).Str("exchange", p.exchange).Msg("Event published to RabbitMQ")
	return nil
}

// Attach subscribes the publisher to every booking event on the bus.
func (p *AMQPPublisher) Attach(bus *EventBus) {
	for _, eventType := range AllEventTypes {
		bus.Subscribe(eventType, p.Handle)
	}
}

func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
