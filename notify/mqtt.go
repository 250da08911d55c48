// Package notify publishes alerting readings to an MQTT broker. It is the
// reference implementation of the pipeline's notification collaborator.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"

	"github.com/eclipse/paho.golang/paho"

	"github.com/chromaprobe/chromaprobe/internal/log"
	"github.com/chromaprobe/chromaprobe/pipeline"
)

// Options configure the MQTT notifier.
type Options struct {
	// Broker is the TCP address of the broker, e.g. "localhost:1883".
	Broker string

	// Topic is the topic alert payloads are published to.
	// Defaults to "chromaprobe/alerts".
	Topic string

	// ClientID identifies this client to the broker.
	// Defaults to "chromaprobe-notifier".
	ClientID string

	// KeepAlive is the MQTT keep-alive interval in seconds.
	// Defaults to 30.
	KeepAlive uint16

	// Logger, if provided, receives connection and publish logs.
	Logger *slog.Logger
}

// Notifier publishes readings that raised alerts as JSON payloads on a single
// topic at QoS 1.
type Notifier struct {
	client *paho.Client
	topic  string
	log    log.Logger
}

// payload is the published message body.
type payload struct {
	Reading pipeline.ProcessedReading `json:"reading"`
	Alerts  []pipeline.Alert          `json:"alerts"`
}

// Connect dials the broker and establishes the MQTT session.
func Connect(ctx context.Context, opts Options) (*Notifier, error) {
	if opts.Broker == "" {
		return nil, fmt.Errorf("notify: broker address required")
	}
	if opts.Topic == "" {
		opts.Topic = "chromaprobe/alerts"
	}
	if opts.ClientID == "" {
		opts.ClientID = "chromaprobe-notifier"
	}
	if opts.KeepAlive == 0 {
		opts.KeepAlive = 30
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", opts.Broker)
	if err != nil {
		return nil, fmt.Errorf("notify: dial broker: %w", err)
	}

	client := paho.NewClient(paho.ClientConfig{Conn: conn})
	ca, err := client.Connect(ctx, &paho.Connect{
		ClientID:   opts.ClientID,
		KeepAlive:  opts.KeepAlive,
		CleanStart: true,
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("notify: connect: %w", err)
	}
	if ca.ReasonCode != 0 {
		_ = conn.Close()
		return nil, fmt.Errorf(
			"notify: broker refused connection (reason code %d)", ca.ReasonCode,
		)
	}

	n := &Notifier{
		client: client,
		topic:  opts.Topic,
		log:    log.Wrap(opts.Logger),
	}
	n.log.Info(ctx, "notifier connected",
		slog.String("broker", opts.Broker),
		slog.String("topic", opts.Topic),
	)
	return n, nil
}

// Notify publishes the reading and its alerts as one JSON message.
func (n *Notifier) Notify(
	ctx context.Context,
	reading pipeline.ProcessedReading,
	alerts []pipeline.Alert,
) error {
	body, err := json.Marshal(payload{Reading: reading, Alerts: alerts})
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}

	_, err = n.client.Publish(ctx, &paho.Publish{
		Topic:   n.topic,
		QoS:     1,
		Payload: body,
	})
	if err != nil {
		return fmt.Errorf("notify: publish: %w", err)
	}

	n.log.Debug(ctx, "alert published",
		slog.String("reading_id", reading.ID.String()),
		slog.Int("alerts", len(alerts)),
	)
	return nil
}

// Close disconnects from the broker.
func (n *Notifier) Close() error {
	return n.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
}
