// Package events publishes item lifecycle events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"reelpress/internal/model"
)

// ActionCreated is the action of an item creation event.
const ActionCreated = "item.created"

// Config configures the publisher.
type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitMQ publishes item events to a durable direct exchange.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	pub        publisher
	exchange   string
	routingKey string
	log        *slog.Logger
	now        func() time.Time
}

// NewRabbitMQ connects and declares the exchange, queue and binding.
func NewRabbitMQ(cfg Config, log *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	fail := func(step string, err error) (*RabbitMQ, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fail("declare exchange", err)
	}
	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fail("declare queue", err)
	}
	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fail("bind queue", err)
	}

	log = log.With("component", "events")
	log.Info("connected to rabbitmq", "exchange", cfg.Exchange, "queue", cfg.QueueName, "routing_key", cfg.RoutingKey)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		pub:        ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// ItemPayload is the item snapshot carried by an event.
type ItemPayload struct {
	ID          int64      `json:"id"`
	SourceID    int64      `json:"source_id"`
	Kind        model.Kind `json:"kind"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Platform    string     `json:"platform"`
	ReleaseDate string     `json:"release_date,omitempty"`
	Genres      []string   `json:"genres,omitempty"`
	Categories  []string   `json:"categories,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	PosterURL   string     `json:"poster_url,omitempty"`
	BackdropURL string     `json:"backdrop_url,omitempty"`
}

// ItemMessage is the JSON body of every event.
type ItemMessage struct {
	Action    string      `json:"action"`
	Item      ItemPayload `json:"item"`
	Timestamp time.Time   `json:"timestamp"`
}

// Announce publishes an item.created event. It satisfies the batch announcer contract.
func (r *RabbitMQ) Announce(ctx context.Context, item *model.ContentItem, meta model.Metadata) error {
	msg := ItemMessage{
		Action: ActionCreated,
		Item: ItemPayload{
			ID:          item.ID,
			SourceID:    item.SourceID,
			Kind:        item.Kind,
			Title:       item.Title,
			Slug:        item.Slug,
			Platform:    item.Platform,
			ReleaseDate: item.ReleaseDate,
			Genres:      item.Genres,
			Categories:  item.Categories,
			Tags:        item.Tags,
			PosterURL:   meta.PosterURL,
			BackdropURL: meta.BackdropURL,
		},
		Timestamp: r.now(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.pub.PublishWithContext(ctx, r.exchange, r.routingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    msg.Timestamp,
		Type:         ActionCreated,
	})
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.log.Debug("published item event", "item_id", item.ID, "source_id", item.SourceID, "action", ActionCreated)
	return nil
}

// Close closes the channel and the connection.
func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
