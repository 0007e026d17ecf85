package notification

import (
	"context"
	"io"
	"log"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/k3a/html2text"
	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/observability/metrics"
	"github.com/tphakala/screamguard/internal/privacy"
)

// DefaultSMTPPort is used with implicit TLS when no port is configured.
const DefaultSMTPPort = 465

// EmailConfig configures the email channel.
type EmailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string // defaults to Username
	Recipients []string
	Encryption string // auto, none, explicittls, implicittls
	PlainText  bool   // strip the HTML template down to text
}

func (c *EmailConfig) complete() bool {
	return c.Host != "" && c.Port > 0 && c.Username != "" && c.Password != ""
}

// Mailer sends one message to every configured recipient.
type Mailer interface {
	SendMail(ctx context.Context, subject, body string) error
}

var shoutrrrEncryption = map[string]string{
	"":            "ImplicitTLS",
	"auto":        "Auto",
	"none":        "None",
	"explicittls": "ExplicitTLS",
	"implicittls": "ImplicitTLS",
}

// SMTPURL builds the shoutrrr smtp service URL for cfg. The subject is
// carried in the URL because the smtp service reads it from its config.
func SMTPURL(cfg *EmailConfig, subject string) string {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	port := cfg.Port
	if port <= 0 {
		port = DefaultSMTPPort
	}
	encryption, ok := shoutrrrEncryption[strings.ToLower(cfg.Encryption)]
	if !ok {
		encryption = "Auto"
	}

	q := url.Values{}
	q.Set("fromaddress", from)
	q.Set("toaddresses", strings.Join(cfg.Recipients, ","))
	q.Set("subject", subject)
	if cfg.PlainText {
		q.Set("usehtml", "no")
	} else {
		q.Set("usehtml", "yes")
	}
	q.Set("encryption", encryption)
	q.Set("auth", "Plain")

	u := url.URL{
		Scheme:   "smtp",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     cfg.Host + ":" + strconv.Itoa(port),
		Path:     "/",
		RawQuery: q.Encode(),
	}
	return u.String()
}

// ShoutrrrMailer sends mail through the shoutrrr smtp service.
type ShoutrrrMailer struct {
	sender *router.ServiceRouter
}

// NewShoutrrrMailer validates the smtp URL and prepares the sender.
func NewShoutrrrMailer(cfg *EmailConfig, timeout time.Duration) (*ShoutrrrMailer, error) {
	sender, err := shoutrrr.CreateSender(SMTPURL(cfg, EmailSubject))
	if err != nil {
		// The URL carries the SMTP password.
		return nil, privacy.WrapError(err)
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &ShoutrrrMailer{sender: sender}, nil
}

// SendMail implements Mailer. The subject is fixed when the sender is built.
func (m *ShoutrrrMailer) SendMail(ctx context.Context, _, body string) error {
	_, err := callWithContext(ctx, func() (struct{}, error) {
		params := stypes.Params{}
		for _, e := range m.sender.Send(body, &params) {
			if e != nil {
				return struct{}{}, e
			}
		}
		return struct{}{}, nil
	})
	return privacy.WrapError(err)
}

// EmailChannel sends a single multi-recipient alert, HTML unless PlainText.
type EmailChannel struct {
	cfg     EmailConfig
	mailer  Mailer
	log     logger.Logger
	metrics *metrics.NotificationMetrics
}

// NewEmailChannel creates the email channel. mailer may be nil when SMTP is
// not configured; Send then fails as misconfigured.
func NewEmailChannel(cfg EmailConfig, mailer Mailer, log logger.Logger, m *metrics.NotificationMetrics) *EmailChannel {
	cfg.Recipients = slices.Clone(cfg.Recipients)
	return &EmailChannel{
		cfg:     cfg,
		mailer:  mailer,
		log:     channelLogger(log, ChannelEmail),
		metrics: m,
	}
}

func (c *EmailChannel) Name() string { return ChannelEmail }

func (c *EmailChannel) Validate() error {
	if !c.cfg.complete() || c.mailer == nil {
		return misconfigured(ChannelEmail, "Email not configured properly")
	}
	if len(c.cfg.Recipients) == 0 {
		return misconfigured(ChannelEmail, "No email recipients configured")
	}
	return nil
}

func (c *EmailChannel) Send(ctx context.Context, alert *Alert) error {
	if err := c.Validate(); err != nil {
		return err
	}

	body, err := EmailBody(alert)
	if err != nil {
		return sendFailed(ChannelEmail, err)
	}
	if c.cfg.PlainText {
		body = html2text.HTML2Text(body)
	}
	if err := c.mailer.SendMail(ctx, EmailSubject, body); err != nil {
		c.metrics.RecordRecipient(ChannelEmail, metrics.StatusError)
		return sendFailed(ChannelEmail, err)
	}

	c.metrics.RecordRecipient(ChannelEmail, metrics.StatusSuccess)
	c.log.Info("email alert sent", logger.Int("recipients", len(c.cfg.Recipients)))
	return nil
}
