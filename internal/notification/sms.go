package notification

import (
	"context"
	"slices"

	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/observability/metrics"
)

// SMSConfig configures the SMS channel.
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	Recipients []string
}

// SMSChannel sends one text message per recipient. It succeeds when at
// least one recipient received the message.
type SMSChannel struct {
	cfg     SMSConfig
	sender  SMSSender
	log     logger.Logger
	metrics *metrics.NotificationMetrics
}

// NewSMSChannel creates the SMS channel. sender may be nil when Twilio is
// not configured; Send then fails as misconfigured.
func NewSMSChannel(cfg SMSConfig, sender SMSSender, log logger.Logger, m *metrics.NotificationMetrics) *SMSChannel {
	cfg.Recipients = slices.Clone(cfg.Recipients)
	return &SMSChannel{
		cfg:     cfg,
		sender:  sender,
		log:     channelLogger(log, ChannelSMS),
		metrics: m,
	}
}

func (c *SMSChannel) Name() string { return ChannelSMS }

func (c *SMSChannel) Validate() error {
	if c.cfg.AccountSID == "" || c.cfg.AuthToken == "" || c.cfg.From == "" || c.sender == nil {
		return misconfigured(ChannelSMS, "Twilio credentials not configured properly")
	}
	if len(c.cfg.Recipients) == 0 {
		return misconfigured(ChannelSMS, "No recipient phone numbers configured")
	}
	return nil
}

// Send delivers to the recipients in order. A failed recipient is logged
// and skipped.
func (c *SMSChannel) Send(ctx context.Context, alert *Alert) error {
	if err := c.Validate(); err != nil {
		return err
	}

	body := SMSBody(alert)
	var failures []error
	delivered := 0
	for _, to := range c.cfg.Recipients {
		if ctx.Err() != nil {
			failures = append(failures, ctx.Err())
			break
		}
		sid, err := c.sender.SendSMS(ctx, c.cfg.From, to, body)
		if err != nil {
			c.log.Warn("SMS delivery failed",
				logger.String("recipient", logger.MaskPhone(to)),
				logger.Error(err))
			c.metrics.RecordRecipient(ChannelSMS, metrics.StatusError)
			failures = append(failures, err)
			continue
		}
		c.log.Info("SMS sent",
			logger.String("recipient", logger.MaskPhone(to)),
			logger.String("sid", sid))
		c.metrics.RecordRecipient(ChannelSMS, metrics.StatusSuccess)
		delivered++
	}

	if delivered == 0 {
		return sendFailed(ChannelSMS, errors.Join(failures...))
	}
	return nil
}
