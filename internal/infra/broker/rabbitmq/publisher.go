package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrPublisherClosed = errors.New("rabbitmq: publisher closed")

// Publisher publishes persistent messages to durable queues named after the
// topic, through the default exchange.
type Publisher struct {
	url string

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
	closed   bool
}

func NewPublisher(url string) (*Publisher, error) {
	p := &Publisher{url: url, declared: map[string]bool{}}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	p.conn, p.ch = conn, ch
	p.declared = map[string]bool{}
	return nil
}

func (p *Publisher) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}
	if p.ch == nil || p.ch.IsClosed() {
		if err := p.connect(); err != nil {
			return err
		}
	}
	if !p.declared[topic] {
		if _, err := p.ch.QueueDeclare(topic, true, false, false, false, nil); err != nil {
			return err
		}
		p.declared[topic] = true
	}
	return p.ch.PublishWithContext(ctx, "", topic, false, false, NewPublishing(key, payload, headers))
}

// NewPublishing builds the AMQP message for one relayed event.
func NewPublishing(key string, payload []byte, headers map[string]string) amqp.Publishing {
	table := amqp.Table{}
	for k, v := range headers {
		table[k] = v
	}
	return amqp.Publishing{
		ContentType:   headers["content-type"],
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now().UTC(),
		MessageId:     headers["ce_id"],
		Type:          headers["ce_type"],
		CorrelationId: key,
		Headers:       table,
		Body:          payload,
	}
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
