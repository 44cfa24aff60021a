package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wb-go/wbf/zlog"

	"festreg/internal/notify"
)

const routingPrefix = "notify."

// Topology names the notification exchange and its e-mail queue. Messages
// that fail twice are dead-lettered to Queue + ".dead" for inspection.
type Topology struct {
	Exchange string
	Queue    string
	Prefetch int
}

func (t Topology) deadLetterQueue() string { return t.Queue + ".dead" }

func (t Topology) deadLetterExchange() string { return t.Exchange + ".dlx" }

// RoutingKey is the key a notification is published under, e.g. notify.payment_approved.
func RoutingKey(tpl notify.Template) string {
	return routingPrefix + string(tpl)
}

type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	topo    Topology

	// amqp channels are not safe for concurrent publishing.
	pubMu sync.Mutex
}

func NewRabbit(url string, topo Topology) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to connect to RabbitMQ")
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		zlog.Logger.Error().Err(err).Msg("failed to open RabbitMQ channel")
		return nil, err
	}

	client := &Client{conn: conn, channel: ch, topo: topo}
	if err := client.declare(); err != nil {
		client.Close()
		zlog.Logger.Error().Err(err).Msg("failed to declare notification topology")
		return nil, err
	}

	zlog.Logger.Info().
		Str("exchange", topo.Exchange).
		Str("queue", topo.Queue).
		Int("prefetch", topo.Prefetch).
		Msg("RabbitMQ initialized")
	return client, nil
}

func (c *Client) declare() error {
	t := c.topo
	if err := c.channel.ExchangeDeclare(t.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange %s: %w", t.Exchange, err)
	}
	if err := c.channel.ExchangeDeclare(t.deadLetterExchange(), amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange %s: %w", t.deadLetterExchange(), err)
	}

	if _, err := c.channel.QueueDeclare(t.deadLetterQueue(), true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue %s: %w", t.deadLetterQueue(), err)
	}
	if err := c.channel.QueueBind(t.deadLetterQueue(), "", t.deadLetterExchange(), false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", t.deadLetterQueue(), err)
	}

	args := amqp.Table{"x-dead-letter-exchange": t.deadLetterExchange()}
	if _, err := c.channel.QueueDeclare(t.Queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("queue %s: %w", t.Queue, err)
	}
	if err := c.channel.QueueBind(t.Queue, routingPrefix+"#", t.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", t.Queue, err)
	}

	if t.Prefetch > 0 {
		if err := c.channel.Qos(t.Prefetch, 0, false); err != nil {
			return fmt.Errorf("qos: %w", err)
		}
	}
	return nil
}

func (c *Client) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	zlog.Logger.Info().Msg("RabbitMQ connection closed")
}

// Send implements notify.Sender: the notification is published as persistent
// JSON and delivered later by the consumer worker.
func (c *Client) Send(ctx context.Context, n notify.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	err = c.channel.PublishWithContext(ctx, c.topo.Exchange, RoutingKey(n.Template), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Type:         string(n.Template),
		Body:         body,
	})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("template", string(n.Template)).Msg("failed to publish notification")
		return err
	}
	zlog.Logger.Debug().Str("template", string(n.Template)).Str("to", n.To).Msg("notification published")
	return nil
}

// Consume delivers queued messages to handler until the channel closes.
// A failed message is requeued once; the second failure dead-letters it.
func (c *Client) Consume(handler func([]byte) error) error {
	msgs, err := c.channel.Consume(c.topo.Queue, "", false, false, false, false, nil)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to start consuming messages")
		return err
	}

	go func() {
		for d := range msgs {
			if err := handler(d.Body); err != nil {
				requeue := !d.Redelivered
				zlog.Logger.Warn().
					Err(err).
					Str("type", d.Type).
					Bool("requeue", requeue).
					Msg("failed to process notification")
				_ = d.Nack(false, requeue)
				continue
			}
			_ = d.Ack(false)
		}
		zlog.Logger.Info().Str("queue", c.topo.Queue).Msg("delivery channel closed")
	}()

	zlog.Logger.Info().Str("queue", c.topo.Queue).Msg("consuming notifications")
	return nil
}
