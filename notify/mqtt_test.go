package notify_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/require"

	"github.com/chromaprobe/chromaprobe/colorspace"
	"github.com/chromaprobe/chromaprobe/notify"
	"github.com/chromaprobe/chromaprobe/pipeline"
)

const brokerPort = 18883

// startBroker spins up an in-process MQTT broker for the test.
func startBroker(t *testing.T) string {
	t.Helper()
	addr := fmt.Sprintf("localhost:%d", brokerPort)

	broker := mochi.New(nil)
	require.NoError(t, broker.AddHook(&auth.AllowHook{}, nil))
	require.NoError(t, broker.AddListener(listeners.NewTCP(listeners.Config{
		Type:    "tcp",
		Address: addr,
	})))
	require.NoError(t, broker.Serve())
	t.Cleanup(func() { _ = broker.Close() })

	return addr
}

// subscribe connects a raw client and forwards payloads on topic to a channel.
func subscribe(
	ctx context.Context,
	t *testing.T,
	addr, topic string,
) <-chan []byte {
	t.Helper()
	received := make(chan []byte, 1)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	require.NoError(t, err)

	client := paho.NewClient(paho.ClientConfig{
		ClientID: "test-subscriber",
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(pub paho.PublishReceived) (bool, error) {
				received <- pub.Packet.Payload
				return true, nil
			},
		},
	})

	_, err = client.Connect(ctx, &paho.Connect{
		ClientID:  client.ClientID(),
		KeepAlive: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: 1}},
	})
	require.NoError(t, err)

	return received
}

func TestNotifyPublishesAlertPayload(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	addr := startBroker(t)
	topic := "chromaprobe/test/alerts"
	received := subscribe(ctx, t, addr, topic)

	n, err := notify.Connect(ctx, notify.Options{Broker: addr, Topic: topic})
	require.NoError(t, err)
	defer n.Close()

	reading := pipeline.ProcessedReading{
		ID:         uuid.New(),
		PHAverage:  3.9,
		Score:      9,
		Confidence: 0.84,
		Color:      colorspace.RGB{R: 120, G: 66, B: 40},
		CapturedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	alerts := pipeline.EvaluateAlerts(reading)
	require.NotEmpty(t, alerts)

	require.NoError(t, n.Notify(ctx, reading, alerts))

	select {
	case body := <-received:
		var got struct {
			Reading pipeline.ProcessedReading `json:"reading"`
			Alerts  []pipeline.Alert          `json:"alerts"`
		}
		require.NoError(t, json.Unmarshal(body, &got))
		require.Equal(t, reading.ID, got.Reading.ID)
		require.Equal(t, reading.Score, got.Reading.Score)
		require.Len(t, got.Alerts, len(alerts))
	case <-ctx.Done():
		t.Fatal("timed out waiting for published alert")
	}
}

func TestConnectRejectsUnreachableBroker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := notify.Connect(ctx, notify.Options{Broker: "localhost:1"})
	require.Error(t, err)
}

func TestConnectRequiresBroker(t *testing.T) {
	_, err := notify.Connect(context.Background(), notify.Options{})
	require.Error(t, err)
}
