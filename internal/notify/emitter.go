package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var ErrPublishTimeout = errors.New("publish timed out")

// Emitter delivers a notification to the user. Implementations must not
// block past ctx.
type Emitter interface {
	Emit(ctx context.Context, title, body string) error
}

// EmitterFunc adapts a function to Emitter
type EmitterFunc func(ctx context.Context, title, body string) error

func (f EmitterFunc) Emit(ctx context.Context, title, body string) error {
	return f(ctx, title, body)
}

// Message is the payload published by the MQTT and Redis emitters
type Message struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Timestamp string `json:"timestamp"`
}

func newMessage(title, body string) ([]byte, error) {
	return json.Marshal(Message{
		Title:     title,
		Body:      body,
		Timestamp: time.Now().UTC().Format(TimestampFormat),
	})
}

// LogEmitter writes notifications to a structured logger
type LogEmitter struct {
	Logger zerolog.Logger
}

func (e LogEmitter) Emit(_ context.Context, title, body string) error {
	e.Logger.Info().Str("title", title).Str("body", body).Msg("notification")
	return nil
}

// Publisher is the part of mqtt.Client the emitter needs
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTEmitter publishes notifications to an MQTT topic
type MQTTEmitter struct {
	client  Publisher
	topic   string
	timeout time.Duration
}

func NewMQTTEmitter(client Publisher, topic string, timeout time.Duration) *MQTTEmitter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTEmitter{client: client, topic: topic, timeout: timeout}
}

func (e *MQTTEmitter) Emit(ctx context.Context, title, body string) error {
	payload, err := newMessage(title, body)
	if err != nil {
		return err
	}

	wait := e.timeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d < wait {
			wait = d
		}
	}

	token := e.client.Publish(e.topic, 1, false, payload)
	if !token.WaitTimeout(wait) {
		return fmt.Errorf("mqtt %s: %w", e.topic, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt %s: %w", e.topic, err)
	}
	return nil
}

// RedisPublisher is the part of redis.Client the emitter needs
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisEmitter publishes notifications on a Redis pub/sub channel
type RedisEmitter struct {
	client  RedisPublisher
	channel string
}

func NewRedisEmitter(client RedisPublisher, channel string) *RedisEmitter {
	return &RedisEmitter{client: client, channel: channel}
}

func (e *RedisEmitter) Emit(ctx context.Context, title, body string) error {
	payload, err := newMessage(title, body)
	if err != nil {
		return err
	}
	if err := e.client.Publish(ctx, e.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", e.channel, err)
	}
	return nil
}

// Multi fans a notification out to every emitter and joins their errors
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, title, body string) error {
	var errs []error
	for _, e := range m {
		if err := e.Emit(ctx, title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
