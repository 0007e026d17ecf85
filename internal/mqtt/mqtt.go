// Package mqtt wraps the paho client used by the mqtt alert channel.
package mqtt

import (
	"context"
	"time"

	"github.com/tphakala/screamguard/internal/conf"
)

// Client is the broker connection the mqtt channel publishes alerts through.
type Client interface {
	// Connect resolves the broker host and opens the session. Calls within
	// ReconnectCooldown of the previous attempt fail immediately.
	Connect(ctx context.Context) error
	// Publish fails fast when no session is open.
	Publish(ctx context.Context, topic string, payload []byte) error
	IsConnected() bool
	Disconnect()
}

// Config is the resolved client configuration.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	Retain   bool
	QoS      byte

	ReconnectCooldown time.Duration
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns the timeouts used when settings leave them out.
func DefaultConfig() Config {
	return Config{
		ClientID:          conf.AppName,
		Topic:             conf.DefaultMQTTTopic,
		ReconnectCooldown: 5 * time.Second,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// ConfigFromSettings applies the MQTT notification settings on top of DefaultConfig.
func ConfigFromSettings(s *conf.MQTTSettings) Config {
	cfg := DefaultConfig()
	cfg.Broker = s.Broker
	cfg.Username = s.Username
	cfg.Password = s.Password
	cfg.Retain = s.Retain
	cfg.QoS = s.QoS
	if s.ClientID != "" {
		cfg.ClientID = s.ClientID
	}
	if s.Topic != "" {
		cfg.Topic = s.Topic
	}
	return cfg
}
