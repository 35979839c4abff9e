package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const statusExchange = "groupsend.status"

// RabbitPublisher publishes status events to a topic exchange, routing
// key "user-<id>", so each user's session subscribes to its own key.
type RabbitPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

type RabbitConfig struct {
	URL string
}

func NewRabbitPublisher(cfg RabbitConfig) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		statusExchange, // name
		"topic",        // kind
		true,           // durable
		false,          // auto-delete
		false,          // internal
		false,          // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &RabbitPublisher{
		conn:    conn,
		channel: channel,
	}, nil
}

func (p *RabbitPublisher) PublishStatus(ctx context.Context, userID int64, event StatusEvent) error {
	if event.Event == "" {
		event.Event = "message-status"
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		statusExchange,
		fmt.Sprintf("user-%d", userID), // routing key
		false,                          // mandatory
		false,                          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         event.Event,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish status event: %w", err)
	}

	return nil
}

func (p *RabbitPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return fmt.Errorf("failed to close channel: %w", err)
	}
	return p.conn.Close()
}
