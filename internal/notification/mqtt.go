package notification

import (
	"context"

	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/mqtt"
)

// MQTTChannel publishes the alert as JSON on a broker topic.
type MQTTChannel struct {
	client mqtt.Client
	topic  string
	log    logger.Logger
}

// NewMQTTChannel creates the MQTT channel. The client is connected by the
// caller; the channel never connects on its own.
func NewMQTTChannel(client mqtt.Client, topic string, log logger.Logger) *MQTTChannel {
	return &MQTTChannel{
		client: client,
		topic:  topic,
		log:    channelLogger(log, ChannelMQTT),
	}
}

func (c *MQTTChannel) Name() string { return ChannelMQTT }

func (c *MQTTChannel) Validate() error {
	if c.client == nil || c.topic == "" {
		return misconfigured(ChannelMQTT, "MQTT broker not configured properly")
	}
	return nil
}

func (c *MQTTChannel) Send(ctx context.Context, alert *Alert) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !c.client.IsConnected() {
		return sendFailed(ChannelMQTT, errors.NewStd("MQTT broker not connected"))
	}

	payload, err := MQTTPayload(alert)
	if err != nil {
		return sendFailed(ChannelMQTT, err)
	}
	if err := c.client.Publish(ctx, c.topic, payload); err != nil {
		return sendFailed(ChannelMQTT, err)
	}

	c.log.Info("alert published", logger.String("topic", c.topic))
	return nil
}
