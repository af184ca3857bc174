// Package queue defines the domain events exchanged over RabbitMQ, the
// publisher used by the services and the audit consumer.
package queue

// Queue names. Each is a durable queue bound to the default exchange.
const (
	PaymentQueue    = "gym.payments"
	EnrollmentQueue = "gym.enrollments"
)

// PaymentEvent is published after a payment is created, completed,
// rejected or cancelled. It carries enough to audit the change without
// querying the primary database.
type PaymentEvent struct {
	Type         string `json:"type"`
	PaymentID    uint64 `json:"payment_id"`
	Reference    string `json:"reference"`
	UserID       uint64 `json:"user_id"`
	Amount       int64  `json:"amount"`
	Method       string `json:"method"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	ItemCount    int    `json:"item_count"`
	UpdatedCount int    `json:"updated_count"`
	FailedCount  int    `json:"failed_count"`
	OccurredAt   string `json:"occurred_at"`
}

// EnrollmentEvent is published when a member joins or leaves a class.
type EnrollmentEvent struct {
	Type         string `json:"type"`
	EnrollmentID uint64 `json:"enrollment_id"`
	UserID       uint64 `json:"user_id"`
	ClassID      uint64 `json:"class_id"`
	OccurredAt   string `json:"occurred_at"`
}

// Logger is satisfied by *log.Logger from github.com/labstack/gommon.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}
