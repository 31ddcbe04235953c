// Package mqtt subscribes to device telemetry on an MQTT broker and hands
// each message to a handler.
package mqtt

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const DefaultTopic = "healthmonitor/vitals/+"

// MessageHandler processes one message. Returned errors are logged; the
// subscription keeps running.
type MessageHandler func(ctx context.Context, topic string, payload []byte) error

type Config struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
	QoS      byte
	// HandlerTimeout bounds the processing of one message.
	HandlerTimeout time.Duration
}

type Subscriber struct {
	cfg     Config
	handler MessageHandler
	logger  zerolog.Logger
	client  paho.Client
}

func NewSubscriber(cfg Config, handler MessageHandler, logger zerolog.Logger) *Subscriber {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "healthmonitor"
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 10 * time.Second
	}
	return &Subscriber{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With().Str("component", "mqtt").Str("topic", cfg.Topic).Logger(),
	}
}

// Start connects and subscribes. The subscription is renewed on every
// reconnect and the client disconnects when ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			s.logger.Warn().Err(err).Msg("mqtt connection lost")
		}).
		SetOnConnectHandler(func(c paho.Client) {
			token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.onMessage(ctx))
			if token.Wait() && token.Error() != nil {
				s.logger.Error().Err(token.Error()).Msg("mqtt subscribe failed")
				return
			}
			s.logger.Info().Msg("mqtt subscribed")
		})
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
	}
	if s.cfg.Password != "" {
		opts.SetPassword(s.cfg.Password)
	}

	s.client = paho.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to mqtt broker %s: %w", s.cfg.Broker, token.Error())
	}

	go func() {
		<-ctx.Done()
		s.client.Disconnect(250)
		s.logger.Info().Msg("mqtt disconnected")
	}()
	return nil
}

func (s *Subscriber) onMessage(ctx context.Context) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		mctx, cancel := context.WithTimeout(ctx, s.cfg.HandlerTimeout)
		defer cancel()

		if err := s.handler(mctx, msg.Topic(), msg.Payload()); err != nil {
			s.logger.Warn().Err(err).
				Str("message_topic", msg.Topic()).
				Int("bytes", len(msg.Payload())).
				Msg("device message rejected")
		}
	}
}
