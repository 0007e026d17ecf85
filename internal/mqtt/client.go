// client.go: paho backed implementation of Client.
package mqtt

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/observability/metrics"
)

// client implements the Client interface.
type client struct {
	config          Config
	internalClient  paho.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	log             logger.Logger
	metrics         *metrics.MQTTMetrics
}

// NewClient creates a new MQTT client with the provided configuration. The
// broker URL is validated here; no connection is made until Connect.
func NewClient(cfg Config, log logger.Logger, m *metrics.MQTTMetrics) (Client, error) {
	if _, err := parseBroker(cfg.Broker); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &client{
		config:  cfg,
		log:     log.Module("mqtt").With(logger.String("broker", cfg.Broker)),
		metrics: m,
	}, nil
}

func parseBroker(broker string) (*url.URL, error) {
	u, err := url.Parse(broker)
	if err == nil && (u.Scheme == "" || u.Hostname() == "") {
		err = errors.NewStd("missing scheme or host")
	}
	if err != nil {
		return nil, errors.New(err).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Context("broker", broker).
			Build()
	}
	return u, nil
}

// Connect attempts to establish a connection to the MQTT broker.
// It first resolves the broker's hostname and then attempts to connect.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if since := time.Since(c.lastConnAttempt); since < c.config.ReconnectCooldown {
		return errors.Newf("connection attempt too recent, last attempt was %v ago", since).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Build()
	}
	c.lastConnAttempt = time.Now()

	u, err := parseBroker(c.config.Broker)
	if err != nil {
		return err
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			c.metrics.RecordError(metrics.StageConnect)
			return errors.New(err).
				Component("mqtt").
				Category(errors.CategoryMQTTConnection).
				Context("host", host).
				Build()
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	// paho takes over reconnecting once the first connection succeeded;
	// the first attempt itself fails fast so startup does not hang.
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetMaxReconnectInterval(5 * time.Minute)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	internal := paho.NewClient(opts)
	if err := wait(ctx, internal.Connect(), c.config.ConnectTimeout); err != nil {
		internal.Disconnect(0)
		c.metrics.RecordError(metrics.StageConnect)
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Build()
	}
	c.internalClient = internal

	c.metrics.SetConnected(true)
	return nil
}

// Publish sends a message to the specified topic on the MQTT broker.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnectedLocked() {
		c.metrics.RecordError(metrics.StagePublish)
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	start := time.Now()
	err := wait(ctx, c.internalClient.Publish(topic, c.config.QoS, c.config.Retain, payload), c.config.PublishTimeout)
	c.metrics.RecordPublish(len(payload), time.Since(start), err)
	if err != nil {
		c.log.Warn("publish failed", logger.String("topic", topic), logger.Error(err))
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	c.log.Debug("published", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnectedLocked()
}

func (c *client) isConnectedLocked() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.internalClient == nil {
		return
	}
	c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
	c.internalClient = nil
	c.metrics.SetConnected(false)
}

func (c *client) onConnect(paho.Client) {
	c.log.Info("connected to MQTT broker")
	c.metrics.SetConnected(true)
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("connection to MQTT broker lost", logger.Error(err))
	c.metrics.SetConnected(false)
	c.metrics.RecordError(metrics.StageConnectionLost)
}

// wait blocks until the token completes, the timeout elapses or ctx is done.
func wait(ctx context.Context, token paho.Token, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultConfig().PublishTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return errors.Newf("mqtt operation timed out after %v", timeout).
			Component("mqtt").
			Category(errors.CategoryTimeout).
			Build()
	case <-ctx.Done():
		return ctx.Err()
	}
}
