package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/go-cmp/cmp"
)

type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

type fakeClient struct {
	mqtt.Client

	connectErr   error
	topic        string
	retained     bool
	payload      []byte
	disconnected bool
}

func (f *fakeClient) Connect() mqtt.Token { return doneToken{f.connectErr} }

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.topic = topic
	f.retained = retained
	f.payload = payload.([]byte)
	return doneToken{}
}

func (f *fakeClient) Disconnect(quiesce uint) { f.disconnected = true }

func TestMQTTReport(t *testing.T) {
	fc := &fakeClient{}
	m := NewMQTT("tcp://127.0.0.1:1883", "frame-1", "eink/frame-1/status", 1, time.Second)
	m.newClient = func(*mqtt.ClientOptions) mqtt.Client { return fc }

	s := Summary{
		Cycle:      "c1",
		Outcome:    "rendered",
		Identifier: "img_20240101_0800.jpg",
		Bytes:      50000,
		DurationMS: 1234,
		At:         time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}
	if err := m.Report(context.Background(), s); err != nil {
		t.Fatalf("Report() failed: %v", err)
	}
	if fc.topic != "eink/frame-1/status" || !fc.retained || !fc.disconnected {
		t.Errorf("publish = topic %q retained %t disconnected %t", fc.topic, fc.retained, fc.disconnected)
	}
	var got Summary
	if err := json.Unmarshal(fc.payload, &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(got, s); diff != "" {
		t.Errorf("payload difference (-got +want):\n%s", diff)
	}
}

func TestMQTTConnectFailure(t *testing.T) {
	fc := &fakeClient{connectErr: errors.New("connection refused")}
	m := NewMQTT("tcp://127.0.0.1:1883", "frame-1", "t", 0, time.Second)
	m.newClient = func(*mqtt.ClientOptions) mqtt.Client { return fc }
	if err := m.Report(context.Background(), Summary{}); err == nil {
		t.Error("Report() hid the connect failure")
	}
	if fc.payload != nil {
		t.Error("published without a connection")
	}
}

func TestDiscard(t *testing.T) {
	if err := (Discard{}).Report(context.Background(), Summary{}); err != nil {
		t.Error(err)
	}
}
