package channel

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPTransport runs the push channel over RabbitMQ. Each topic maps to a
// fanout exchange; every subscriber gets its own exclusive, auto-deleted
// queue bound to the exchanges it watches, so hold events reach every
// connected shopper without any routing keys.
type AMQPTransport struct {
	url string

	mu      sync.Mutex
	conn    *amqp.Connection
	pubChan *amqp.Channel
}

func NewAMQPTransport(url string) *AMQPTransport {
	return &AMQPTransport{url: url}
}

func (t *AMQPTransport) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	conn, err := t.connection()
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		t.dropConnection()
		return nil, err
	}

	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return nil, err
	}

	for _, topic := range topics {
		if err := ch.ExchangeDeclare(topic, "fanout", false, true, false, false, nil); err != nil {
			ch.Close()
			return nil, err
		}
		if err := ch.QueueBind(queue.Name, "", topic, false, nil); err != nil {
			ch.Close()
			return nil, err
		}
	}

	deliveries, err := ch.Consume(queue.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, err
	}

	sub := &amqpSubscription{
		channel:  ch,
		messages: make(chan []byte, 64),
	}
	go sub.pump(deliveries)

	return sub, nil
}

func (t *AMQPTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	ch, err := t.publishChannel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, topic, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
	})
	if err != nil {
		// A failed publish usually means the connection died; drop it so
		// the next attempt redials.
		t.dropConnection()
	}

	return err
}

func (t *AMQPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}

	err := t.conn.Close()
	t.conn = nil
	t.pubChan = nil

	return err
}

func (t *AMQPTransport) connection() (*amqp.Connection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil && !t.conn.IsClosed() {
		return t.conn, nil
	}

	conn, err := amqp.Dial(t.url)
	if err != nil {
		return nil, err
	}

	t.conn = conn
	t.pubChan = nil

	return conn, nil
}

func (t *AMQPTransport) publishChannel() (*amqp.Channel, error) {
	conn, err := t.connection()
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pubChan != nil && !t.pubChan.IsClosed() {
		return t.pubChan, nil
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	t.pubChan = ch

	return ch, nil
}

func (t *AMQPTransport) dropConnection() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		t.conn.Close()
	}
	t.conn = nil
	t.pubChan = nil
}

type amqpSubscription struct {
	channel  *amqp.Channel
	messages chan []byte
}

func (s *amqpSubscription) pump(deliveries <-chan amqp.Delivery) {
	defer close(s.messages)

	for d := range deliveries {
		s.messages <- d.Body
	}
}

func (s *amqpSubscription) Messages() <-chan []byte {
	return s.messages
}

func (s *amqpSubscription) Close() error {
	return s.channel.Close()
}
