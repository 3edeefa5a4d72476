// Package report publishes a summary of each wake cycle.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Summary describes one finished wake cycle.
type Summary struct {
	Cycle      string    `json:"cycle"`
	Outcome    string    `json:"outcome"`
	Identifier string    `json:"identifier,omitempty"`
	Bytes      int       `json:"bytes,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	At         time.Time `json:"at"`
}

type Reporter interface {
	Report(ctx context.Context, s Summary) error
}

// Discard drops every summary.
type Discard struct{}

func (Discard) Report(context.Context, Summary) error { return nil }

// MQTT publishes each summary as a retained JSON message. The connection
// only lives for one publish, the device is asleep the rest of the time.
type MQTT struct {
	opts    *mqtt.ClientOptions
	topic   string
	qos     byte
	timeout time.Duration

	newClient func(*mqtt.ClientOptions) mqtt.Client
}

func NewMQTT(broker, clientID, topic string, qos byte, timeout time.Duration) *MQTT {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(false).
		SetConnectTimeout(timeout)
	return &MQTT{
		opts:      opts,
		topic:     topic,
		qos:       qos,
		timeout:   timeout,
		newClient: mqtt.NewClient,
	}
}

func (m *MQTT) wait(ctx context.Context, t mqtt.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.timeout):
		return errors.New("report: mqtt timeout")
	}
}

func (m *MQTT) Report(ctx context.Context, s Summary) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	c := m.newClient(m.opts)
	if err := m.wait(ctx, c.Connect()); err != nil {
		return fmt.Errorf("report: connect: %w", err)
	}
	defer c.Disconnect(250)
	if err := m.wait(ctx, c.Publish(m.topic, m.qos, true, payload)); err != nil {
		return fmt.Errorf("report: publish %s: %w", m.topic, err)
	}
	return nil
}
