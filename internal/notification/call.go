package notification

import (
	"context"

	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/observability/metrics"
)

// CallConfig configures the emergency call channel.
type CallConfig struct {
	// Simulate logs the call instead of placing it.
	Simulate bool
	// Number is called when the alert does not carry its own.
	Number string
	// From is the caller id for real calls.
	From string
}

// CallChannel calls the emergency number. In simulation mode it only logs
// the call and always succeeds.
type CallChannel struct {
	cfg     CallConfig
	placer  CallPlacer
	log     logger.Logger
	metrics *metrics.NotificationMetrics
}

// NewCallChannel creates the call channel. placer is only used when
// simulation is off.
func NewCallChannel(cfg CallConfig, placer CallPlacer, log logger.Logger, m *metrics.NotificationMetrics) *CallChannel {
	return &CallChannel{
		cfg:     cfg,
		placer:  placer,
		log:     channelLogger(log, ChannelCall),
		metrics: m,
	}
}

func (c *CallChannel) Name() string { return ChannelCall }

func (c *CallChannel) Validate() error {
	if c.cfg.Simulate {
		return nil
	}
	if c.placer == nil || c.cfg.From == "" {
		return misconfigured(ChannelCall, "Twilio credentials not configured properly")
	}
	if c.cfg.Number == "" {
		return misconfigured(ChannelCall, "No emergency number configured")
	}
	return nil
}

func (c *CallChannel) number(alert *Alert) string {
	if alert.EmergencyNumber != "" {
		return alert.EmergencyNumber
	}
	return c.cfg.Number
}

func (c *CallChannel) Send(ctx context.Context, alert *Alert) error {
	number := c.number(alert)
	if c.cfg.Simulate {
		c.log.Info(CallDetails(number, alert), logger.Bool("simulated", true))
		c.metrics.RecordRecipient(ChannelCall, metrics.StatusSuccess)
		return nil
	}

	if err := c.Validate(); err != nil {
		return err
	}
	sid, err := c.placer.PlaceCall(ctx, c.cfg.From, number, CallTwiML(alert))
	if err != nil {
		c.metrics.RecordRecipient(ChannelCall, metrics.StatusError)
		return sendFailed(ChannelCall, err)
	}

	c.log.Info("emergency call placed",
		logger.String("number", logger.MaskPhone(number)),
		logger.String("sid", sid))
	c.metrics.RecordRecipient(ChannelCall, metrics.StatusSuccess)
	return nil
}
