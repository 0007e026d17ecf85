package notification

import (
	"github.com/tphakala/screamguard/internal/conf"
	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/mqtt"
	"github.com/tphakala/screamguard/internal/observability/metrics"
)

// NewFromSettings builds the dispatcher for the enabled channels. Missing
// credentials do not fail here: the affected channel reports itself as
// misconfigured on every dispatch and its siblings keep working. mq may be
// nil when MQTT is disabled.
func NewFromSettings(settings *conf.NotificationSettings, emergencyNumber string, mq mqtt.Client, log logger.Logger, m *metrics.NotificationMetrics) *Dispatcher {
	if log == nil {
		log = logger.NewNopLogger()
	}
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = DefaultChannelTimeout
	}

	var twilioClient *TwilioClient
	if settings.SMS.AccountSID != "" && settings.SMS.AuthToken != "" {
		twilioClient = NewTwilioClient(settings.SMS.AccountSID, settings.SMS.AuthToken, timeout)
	}

	var channels []Channel

	if settings.SMS.Enabled {
		cfg := SMSConfig{
			AccountSID: settings.SMS.AccountSID,
			AuthToken:  settings.SMS.AuthToken,
			From:       settings.SMS.From,
			Recipients: settings.SMS.Recipients,
		}
		var sender SMSSender
		if twilioClient != nil {
			sender = twilioClient
		}
		channels = append(channels, NewSMSChannel(cfg, sender, log, m))
	}

	if settings.Email.Enabled {
		cfg := EmailConfig{
			Host:       settings.Email.Host,
			Port:       settings.Email.Port,
			Username:   settings.Email.Username,
			Password:   settings.Email.Password,
			From:       settings.Email.From,
			Recipients: settings.Email.Recipients,
			Encryption: settings.Email.Encryption,
			PlainText:  settings.Email.PlainText,
		}
		var mailer Mailer
		if cfg.complete() && len(cfg.Recipients) > 0 {
			sm, err := NewShoutrrrMailer(&cfg, timeout)
			if err != nil {
				log.Module("notification").Warn("email sender could not be created", logger.Error(err))
			} else {
				mailer = sm
			}
		}
		channels = append(channels, NewEmailChannel(cfg, mailer, log, m))
	}

	if settings.Call.Enabled {
		cfg := CallConfig{
			Simulate: settings.Call.Simulate,
			Number:   emergencyNumber,
			From:     settings.SMS.From,
		}
		var placer CallPlacer
		if twilioClient != nil {
			placer = twilioClient
		}
		channels = append(channels, NewCallChannel(cfg, placer, log, m))
	}

	if settings.MQTT.Enabled {
		channels = append(channels, NewMQTTChannel(mq, settings.MQTT.Topic, log))
	}

	d := NewDispatcher(DispatcherConfig{Timeout: timeout, Logger: log, Metrics: m}, channels...)
	for name, err := range d.Validate() {
		d.log.Warn("notification channel misconfigured",
			logger.String("channel", name),
			logger.Error(err))
	}
	return d
}
