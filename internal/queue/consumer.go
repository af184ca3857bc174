package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer drains the payment and enrollment queues into append-only
// audit logs under Dir (payment.log and enrollment.log).
type Consumer struct {
	URL string
	Dir string
	Log Logger
}

// Run connects to the broker and consumes until ctx is cancelled. Lost
// connections are retried with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warnf("event-consumer: dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warnf("event-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warnf("event-consumer: set QoS: %v", err)
	}
	payments, err := c.subscribe(ch, PaymentQueue)
	if err != nil {
		return err
	}
	enrollments, err := c.subscribe(ch, EnrollmentQueue)
	if err != nil {
		return err
	}
	c.Log.Infof("event-consumer: consuming %s and %s", PaymentQueue, EnrollmentQueue)

	for {
		var (
			d  amqp.Delivery
			ok bool
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok = <-payments:
		case d, ok = <-enrollments:
		}
		if !ok {
			return errors.New("deliveries channel closed")
		}
		if err := c.Handle(d.RoutingKey, d.Body); err != nil {
			c.Log.Errorf("event-consumer: handle message: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
}

func (c *Consumer) subscribe(ch *amqp.Channel, queue string) (<-chan amqp.Delivery, error) {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare %s: %w", queue, err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}
	return msgs, nil
}

// Handle appends one message received from queue to the matching log.
func (c *Consumer) Handle(queue string, body []byte) error {
	var (
		file string
		line string
	)
	switch queue {
	case PaymentQueue:
		var ev PaymentEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal payment event: %w", err)
		}
		file, line = "payment.log", FormatPaymentEvent(ev)
	case EnrollmentQueue:
		var ev EnrollmentEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal enrollment event: %w", err)
		}
		file, line = "enrollment.log", FormatEnrollmentEvent(ev)
	default:
		return fmt.Errorf("unexpected queue %q", queue)
	}
	return appendLine(filepath.Join(c.Dir, file), line)
}

// FormatPaymentEvent renders ev as one audit log line.
func FormatPaymentEvent(ev PaymentEvent) string {
	line := fmt.Sprintf("[%s] %s | payment_id=%d | ref=%s | user_id=%d | amount=%d | method=%s | status=%s | items=%d | updated=%d | failed=%d",
		ev.OccurredAt, ev.Type, ev.PaymentID, ev.Reference, ev.UserID, ev.Amount, ev.Method, ev.Status,
		ev.ItemCount, ev.UpdatedCount, ev.FailedCount)
	if ev.Reason != "" {
		line += fmt.Sprintf(" | reason=%q", ev.Reason)
	}
	return line + "\n"
}

// FormatEnrollmentEvent renders ev as one audit log line.
func FormatEnrollmentEvent(ev EnrollmentEvent) string {
	return fmt.Sprintf("[%s] %s | enrollment_id=%d | user_id=%d | class_id=%d\n",
		ev.OccurredAt, ev.Type, ev.EnrollmentID, ev.UserID, ev.ClassID)
}

func appendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
