package mqtt

import (
	"context"
	"fmt"
	"time"

	"agromonitor/internal/logger"
	"agromonitor/internal/utils"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const handlerTimeout = 10 * time.Second

type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// MaxRetries bounds connection attempts; 0 means 5
	MaxRetries uint64
}

// NewMQTTClient connects to the broker, retrying with exponential backoff
func NewMQTTClient(ctx context.Context, o Options) (mqtt.Client, error) {
	log := logger.WithComponent("mqtt")

	opts := mqtt.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		// persistent session keeps subscriptions across reconnects
		SetCleanSession(false).
		SetResumeSubs(true).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Msg("connection lost")
		})

	retries := o.MaxRetries
	if retries == 0 {
		retries = 5
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		token := client.Connect()
		if !token.WaitTimeout(10 * time.Second) {
			return fmt.Errorf("connect to %s timed out", o.Broker)
		}
		if err := token.Error(); err != nil {
			log.Warn().Err(err).Str("broker", o.Broker).Msg("connect failed, retrying")
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, retries-1), ctx))
	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection: %w", err)
	}

	log.Info().Str("broker", o.Broker).Msg("connected")
	return client, nil
}

// ReadingHandler ingests one reading payload published by deviceID
type ReadingHandler func(ctx context.Context, deviceID string, payload []byte) error

// SubscribeReadings routes messages on topic, e.g. devices/+/readings, to h
func SubscribeReadings(client mqtt.Client, topic string, h ReadingHandler) error {
	token := client.Subscribe(topic, 1, messageHandler(h))
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("subscribe %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	log := logger.WithComponent("mqtt")
	log.Info().Str("topic", topic).Msg("subscribed")
	return nil
}

func messageHandler(h ReadingHandler) mqtt.MessageHandler {
	log := logger.WithComponent("mqtt")
	return func(_ mqtt.Client, msg mqtt.Message) {
		deviceID := utils.ParseDeviceID(msg.Topic())
		if deviceID == "" {
			log.Warn().Str("topic", msg.Topic()).Msg("no device id in topic")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		if err := h(ctx, deviceID, msg.Payload()); err != nil {
			log.Warn().Err(err).Str("device_id", deviceID).Msg("reading rejected")
		}
	}
}
