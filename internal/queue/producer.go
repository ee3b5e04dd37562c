package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/callpulse/lead-intake/internal/entity"
)

// LeadSyncMessage is the snapshot of a lead pushed to the CRM sync exchange.
type LeadSyncMessage struct {
	LeadID    int64             `json:"lead_id"`
	Source    entity.LeadSource `json:"source"`
	Phone     string            `json:"phone"`
	Name      string            `json:"name,omitempty"`
	Email     string            `json:"email,omitempty"`
	Fields    json.RawMessage   `json:"fields,omitempty"`
	CreatedAt string            `json:"created_at"`
}

// Publisher pushes lead sync messages to the broker.
type Publisher interface {
	Publish(ctx context.Context, msg LeadSyncMessage) error
	Close() error
}

// AMQPPublisher implements Publisher on a RabbitMQ channel.
type AMQPPublisher struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	exchange   string
	routingKey string
}

// NewAMQPPublisher dials the broker and declares a durable direct exchange
// for lead sync messages.
func NewAMQPPublisher(url, exchange, routingKey string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange, routingKey: routingKey}, nil
}

// Publish sends one persistent JSON message to the sync exchange.
func (p *AMQPPublisher) Publish(ctx context.Context, msg LeadSyncMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode sync message for lead %d: %w", msg.LeadID, err)
	}

	err = p.ch.PublishWithContext(ctx,
		p.exchange,
		p.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("publish sync message for lead %d: %w", msg.LeadID, err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
