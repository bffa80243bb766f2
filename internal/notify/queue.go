package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"budgetapi/internal/config"
	"budgetapi/internal/logger"
)

// MailMessage is the queued form of an email intent.
type MailMessage struct {
	ID        string    `json:"id"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMailMessage creates a message with a fresh time-ordered id.
func NewMailMessage(to, subject, body string) *MailMessage {
	return &MailMessage{
		ID:        newMessageID(),
		To:        to,
		Subject:   subject,
		Body:      body,
		Timestamp: time.Now().UTC(),
	}
}

// newMessageID returns a UUIDv7 so ids sort by publish time, falling back to
// a random v4 when v7 generation fails.
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// MailMessageFromJSON decodes a queued message.
func MailMessageFromJSON(data []byte) (*MailMessage, error) {
	var msg MailMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := uuid.Validate(msg.ID); err != nil {
		return nil, fmt.Errorf("mail message id %q: %w", msg.ID, err)
	}
	if msg.To == "" {
		return nil, fmt.Errorf("mail message %s has no recipient", msg.ID)
	}
	return &msg, nil
}

// consumeRetryDelay is the pause before Consume re-subscribes after the
// broker dropped the delivery channel.
const consumeRetryDelay = 5 * time.Second

// Queue publishes and consumes mail messages over AMQP. A dropped connection
// is re-dialled on the next Publish or by the Consume loop.
type Queue struct {
	url      string
	exchange string
	queue    string
	log      *zap.SugaredLogger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// NewQueue connects to the broker and declares the exchange and queue.
func NewQueue(cfg config.AMQPConfig) (*Queue, error) {
	q := &Queue{
		url:      cfg.URL,
		exchange: cfg.Exchange,
		queue:    cfg.Queue,
		log:      logger.Named("queue"),
	}
	if err := q.connect(); err != nil {
		return nil, err
	}
	return q, nil
}

// connect dials, opens a channel and declares the topology. Callers hold mu
// unless the Queue is not shared yet.
func (q *Queue) connect() error {
	conn, err := amqp091.Dial(q.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	q.conn, q.channel = conn, channel

	if err := q.setup(); err != nil {
		q.closeLocked()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	return nil
}

func (q *Queue) setup() error {
	if err := q.channel.ExchangeDeclare(q.exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := q.channel.QueueDeclare(q.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	// Routing key is the queue name on a direct exchange.
	if err := q.channel.QueueBind(q.queue, q.queue, q.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// openChannel returns a live channel, re-dialling when the connection or
// channel has been closed by the broker.
func (q *Queue) openChannel() (*amqp091.Channel, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.conn != nil && !q.conn.IsClosed() && q.channel != nil && !q.channel.IsClosed() {
		return q.channel, nil
	}

	q.log.Warn("AMQP connection lost, reconnecting")
	q.closeLocked()
	if err := q.connect(); err != nil {
		return nil, fmt.Errorf("reconnect AMQP: %w", err)
	}
	q.log.Info("AMQP connection restored")
	return q.channel, nil
}

// Publish sends a persistent message.
func (q *Queue) Publish(ctx context.Context, msg *MailMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	channel, err := q.openChannel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = channel.PublishWithContext(ctx, q.exchange, q.queue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.Timestamp,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Consume hands each message to handler until ctx is done. Messages that
// fail to decode are dropped; handler errors requeue the message. When the
// broker drops the subscription, Consume reconnects and subscribes again.
func (q *Queue) Consume(ctx context.Context, handler func(context.Context, *MailMessage) error) error {
	for {
		err := q.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		q.log.Warnw("mail consumer interrupted, retrying",
			"error", err,
			"in", consumeRetryDelay.String(),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(consumeRetryDelay):
		}
	}
}

func (q *Queue) consumeOnce(ctx context.Context, handler func(context.Context, *MailMessage) error) error {
	channel, err := q.openChannel()
	if err != nil {
		return err
	}
	deliveries, err := channel.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	q.log.Infow("consuming mail messages", "queue", q.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			msg, err := MailMessageFromJSON(d.Body)
			if err != nil {
				q.log.Errorw("dropping malformed mail message", "error", err)
				_ = d.Nack(false, false)
				continue
			}

			if err := handler(ctx, msg); err != nil {
				q.log.Errorw("mail delivery failed, requeueing", "id", msg.ID, "error", err)
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Close releases the channel and connection.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closeLocked()
}

func (q *Queue) closeLocked() error {
	var err error
	if q.channel != nil {
		_ = q.channel.Close()
		q.channel = nil
	}
	if q.conn != nil && !q.conn.IsClosed() {
		err = q.conn.Close()
	}
	q.conn = nil
	return err
}

// Publisher is the publishing side of Queue.
type Publisher interface {
	Publish(ctx context.Context, msg *MailMessage) error
}

// QueueMailer defers mail delivery to the notifier worker through a queue.
// With a fallback set, mail that cannot be published is sent directly.
type QueueMailer struct {
	pub      Publisher
	fallback Mailer
	log      *zap.SugaredLogger
}

// NewQueueMailer creates a QueueMailer.
func NewQueueMailer(pub Publisher) *QueueMailer {
	return &QueueMailer{pub: pub, log: logger.Named("queue")}
}

// WithFallback sets the mailer used when publishing fails.
func (m *QueueMailer) WithFallback(fallback Mailer) *QueueMailer {
	m.fallback = fallback
	return m
}

// Send implements Mailer.
func (m *QueueMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := NewMailMessage(to, subject, body)
	err := m.pub.Publish(ctx, msg)
	if err == nil || m.fallback == nil {
		return err
	}
	m.log.Warnw("publish failed, sending mail directly", "id", msg.ID, "error", err)
	if ferr := m.fallback.Send(ctx, to, subject, body); ferr != nil {
		return fmt.Errorf("publish: %w; fallback: %v", err, ferr)
	}
	return nil
}

// Deliver returns a Consume handler that sends each message with mailer.
func Deliver(mailer Mailer) func(context.Context, *MailMessage) error {
	return func(ctx context.Context, msg *MailMessage) error {
		return mailer.Send(ctx, msg.To, msg.Subject, msg.Body)
	}
}
