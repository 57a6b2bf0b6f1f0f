package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestMessageHandlerRoutesByTopic(t *testing.T) {
	var gotDevice string
	var gotPayload string
	h := messageHandler(func(ctx context.Context, deviceID string, payload []byte) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected a bounded context")
		}
		gotDevice = deviceID
		gotPayload = string(payload)
		return nil
	})

	h(nil, fakeMessage{topic: "devices/esp-7/readings", payload: []byte(`{"umidadeSolo":40}`)})

	if gotDevice != "esp-7" || gotPayload != `{"umidadeSolo":40}` {
		t.Fatalf("unexpected routing: %q %q", gotDevice, gotPayload)
	}
}

func TestMessageHandlerSkipsTopicWithoutDevice(t *testing.T) {
	called := false
	h := messageHandler(func(context.Context, string, []byte) error {
		called = true
		return nil
	})
	h(nil, fakeMessage{topic: "readings"})
	if called {
		t.Fatal("handler must not run without a device id")
	}
}

func TestMessageHandlerSwallowsErrors(t *testing.T) {
	h := messageHandler(func(context.Context, string, []byte) error {
		return errors.New("unknown device")
	})
	h(nil, fakeMessage{topic: "devices/x/readings"})
}

type fakeToken struct {
	done bool
	err  error
}

func (t fakeToken) Wait() bool                     { return t.done }
func (t fakeToken) WaitTimeout(time.Duration) bool { return t.done }
func (t fakeToken) Error() error                   { return t.err }

func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if t.done {
		close(ch)
	}
	return ch
}

// fakeClient implements only Subscribe; other mqtt.Client methods panic
type fakeClient struct {
	mqtt.Client
	token   fakeToken
	topic   string
	handler mqtt.MessageHandler
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.topic = topic
	c.handler = cb
	return c.token
}

func TestSubscribeReadings(t *testing.T) {
	client := &fakeClient{token: fakeToken{done: true}}
	var gotDevice string
	err := SubscribeReadings(client, "devices/+/readings", func(_ context.Context, deviceID string, _ []byte) error {
		gotDevice = deviceID
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if client.topic != "devices/+/readings" {
		t.Fatalf("unexpected topic %q", client.topic)
	}

	client.handler(nil, fakeMessage{topic: "devices/esp-3/readings"})
	if gotDevice != "esp-3" {
		t.Fatalf("expected routed message, got %q", gotDevice)
	}
}

func TestSubscribeReadingsErrors(t *testing.T) {
	noop := func(context.Context, string, []byte) error { return nil }

	if err := SubscribeReadings(&fakeClient{token: fakeToken{done: false}}, "t", noop); err == nil {
		t.Fatal("expected timeout error")
	}
	refused := fakeToken{done: true, err: errors.New("not authorized")}
	if err := SubscribeReadings(&fakeClient{token: refused}, "t", noop); err == nil {
		t.Fatal("expected subscribe error")
	}
}
