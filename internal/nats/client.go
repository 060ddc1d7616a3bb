// Package nats provides a thin JetStream client for delivery event
// publishing.
package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// DeliveryStream is the stream carrying all delivery lifecycle events.
const DeliveryStream = "DELIVERY"

// DeliverySubjects covers per-recipient status changes and batch
// completion.
var DeliverySubjects = []string{"delivery.>"}

// Client wraps a nats connection and its jetstream context.
type Client struct {
	Conn *nats.Conn
	js   jetstream.JetStream
}

// New connects to nats and sets up jetstream.
func New(_ context.Context, natsURL string) (*Client, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Client{Conn: conn, js: js}, nil
}

// EnsureDeliveryStream creates the delivery stream if it doesn't exist.
func (c *Client) EnsureDeliveryStream(ctx context.Context) error {
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     DeliveryStream,
		Subjects: DeliverySubjects,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", DeliveryStream, err)
	}
	return nil
}

// Publish JSON-encodes data and publishes it to a subject.
func (c *Client) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if _, err := c.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	return nil
}

// Close closes the nats connection.
func (c *Client) Close() {
	c.Conn.Close()
}

// IsConnected returns true if connected to nats.
func (c *Client) IsConnected() bool {
	return c.Conn.IsConnected()
}
