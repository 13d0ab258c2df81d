// Package publisher emits domain events to NATS.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectHighSpenderRecorded is the subject high spender writes are published on.
const SubjectHighSpenderRecorded = "spending.high_spenders.recorded"

// HighSpenderRecorded is published after a high spender row was written.
type HighSpenderRecorded struct {
	UserID        int64     `json:"user_id"`
	TotalSpending int64     `json:"total_spending"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// NATSClient interface to allow mocking
type NATSClient interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes spending events over core NATS.
type NATSPublisher struct {
	nc NATSClient
}

// NewNATSPublisher creates a new publisher
func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: conn}
}

// Connect dials the NATS server at url. The returned connection reconnects
// on its own; callers close it on shutdown.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("spending-stats"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return conn, nil
}

// PublishHighSpenderRecorded publishes a high spender event
func (p *NATSPublisher) PublishHighSpenderRecorded(ctx context.Context, event HighSpenderRecorded) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.nc.Publish(SubjectHighSpenderRecorded, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}
