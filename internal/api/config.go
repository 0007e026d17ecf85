// Package api provides the HTTP surface of ScreamGuard: clip upload and
// realtime endpoints, location helpers, the per-channel alert endpoints,
// escalation dispatch, health and metrics.
package api

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/screamguard/internal/conf"
	"github.com/tphakala/screamguard/internal/logger"
)

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 60 * time.Second // uploads over slow links
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBodyLimit       = "32M"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Server binding
	Host string
	Port string

	// Security settings
	AllowedOrigins []string
	TrustedProxies []string // CIDRs or addresses whose X-Forwarded-For is honoured

	// MapsAPIKey signs the static and embed map links of client locations.
	MapsAPIKey string

	// Timeouts
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Limits
	BodyLimit string  // Maximum request body size (e.g., "32M")
	RateLimit float64 // requests per second per client IP, 0 disables

	// Logging
	Debug    bool
	LogLevel logger.LogLevel
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:            "5000",
		AllowedOrigins:  []string{"*"},
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       DefaultBodyLimit,
		LogLevel:        logger.LogLevelInfo,
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	ws := settings.WebServer

	cfg.Host = ws.Host
	if ws.Port != "" {
		cfg.Port = ws.Port
	}
	if ws.BodyLimit != "" {
		cfg.BodyLimit = ws.BodyLimit
	}
	cfg.RateLimit = ws.RateLimit
	cfg.TrustedProxies = ws.TrustedProxies
	cfg.MapsAPIKey = settings.Location.GoogleMapsAPIKey
	if ws.ShutdownTimeout > 0 {
		cfg.ShutdownTimeout = ws.ShutdownTimeout
	}

	cfg.Debug = ws.Debug || settings.Debug
	if cfg.Debug {
		cfg.LogLevel = logger.LogLevelDebug
	}

	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if _, err := trustOptions(c.TrustedProxies); err != nil {
		return err
	}
	// Reject limits echo would panic on at startup.
	if c.BodyLimit != "" {
		if err := checkBodyLimit(c.BodyLimit); err != nil {
			return err
		}
	}
	return nil
}

// checkBodyLimit reports whether echo can parse limit.
func checkBodyLimit(limit string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid body limit %q", limit)
		}
	}()
	_ = middleware.BodyLimit(limit)
	return nil
}

// Address returns the full address string for the server to listen on.
func (c *Config) Address() string {
	return c.Host + ":" + c.Port
}

// String returns a human-readable representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf("Server Config: address=%s, body_limit=%s, rate_limit=%g, debug=%v",
		c.Address(), c.BodyLimit, c.RateLimit, c.Debug)
}

// trustOptions turns proxy CIDRs or bare addresses into echo trust ranges.
// They extend echo's loopback, link-local and private defaults.
func trustOptions(proxies []string) ([]echo.TrustOption, error) {
	opts := make([]echo.TrustOption, 0, len(proxies))
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if !strings.Contains(p, "/") {
			ip := net.ParseIP(p)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", p)
			}
			bits := 128
			if ip.To4() != nil {
				bits = 32
			}
			p = fmt.Sprintf("%s/%d", p, bits)
		}
		_, ipNet, err := net.ParseCIDR(p)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", p, err)
		}
		opts = append(opts, echo.TrustIPRange(ipNet))
	}
	return opts, nil
}
