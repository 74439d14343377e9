package helpers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitPublisher wraps an AMQP channel and a durable queue for publishing
// JSON messages. Publishing is serialized since an amqp channel is not safe
// for concurrent use.
type RabbitPublisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	Queue string
}

func dialQueue(url, queue string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	if err := DeclareQueue(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

// DeclareQueue declares the durable, non-exclusive queue both sides agree on.
func DeclareQueue(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	return err
}

func NewRabbitPublisher(url, queue string) (*RabbitPublisher, error) {
	conn, ch, err := dialQueue(url, queue)
	if err != nil {
		return nil, err
	}
	return &RabbitPublisher{conn: conn, ch: ch, Queue: queue}, nil
}

func (p *RabbitPublisher) Close() {
	if p == nil {
		return
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// PublishJSON publishes a JSON-encoded persistent message to the queue.
func (p *RabbitPublisher) PublishJSON(ctx context.Context, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         b,
		},
	)
}

// AttemptsHeader counts how many times a message has been handed back to
// the queue by Retry.
const AttemptsHeader = "x-attempts"

// Attempts reports how many earlier tries d has had.
func Attempts(d amqp.Delivery) int {
	switch n := d.Headers[AttemptsHeader].(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// retryPublishing copies d with its attempt counter bumped.
func retryPublishing(d amqp.Delivery) amqp.Publishing {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[AttemptsHeader] = int32(Attempts(d) + 1)
	return amqp.Publishing{
		Headers:      headers,
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         d.Body,
	}
}

// RabbitConsumer owns a connection and channel used to drain queues.
type RabbitConsumer struct {
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitConsumer dials url, declares every queue and applies prefetch.
func NewRabbitConsumer(url string, prefetch int, queues ...string) (*RabbitConsumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c := &RabbitConsumer{conn: conn, ch: ch}
	for _, q := range queues {
		if err := DeclareQueue(ch, q); err != nil {
			c.Close()
			return nil, err
		}
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Consume starts a manual-ack consumer on queue.
func (c *RabbitConsumer) Consume(queue, tag string) (<-chan amqp.Delivery, error) {
	return c.ch.Consume(queue, tag, false, false, false, false, nil)
}

// Retry puts d back at the tail of queue with its attempt counter bumped and
// acks the original. If the republish fails the original is requeued as is.
func (c *RabbitConsumer) Retry(ctx context.Context, queue string, d amqp.Delivery) error {
	c.mu.Lock()
	err := c.ch.PublishWithContext(ctx, "", queue, false, false, retryPublishing(d))
	c.mu.Unlock()
	if err != nil {
		_ = d.Nack(false, true)
		return err
	}
	return d.Ack(false)
}

// NotifyClose reports connection loss.
func (c *RabbitConsumer) NotifyClose() <-chan *amqp.Error {
	return c.conn.NotifyClose(make(chan *amqp.Error, 1))
}

func (c *RabbitConsumer) Close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}
