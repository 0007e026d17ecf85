// Package runtime holds state shared by the CLI commands: build metadata,
// the loaded settings and the root logger. It is filled in once by the root
// command before any subcommand runs.
package runtime

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/tphakala/screamguard/internal/buildinfo"
	"github.com/tphakala/screamguard/internal/conf"
	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/logger"
)

// FlagKeys maps persistent CLI flags to their configuration keys.
var FlagKeys = map[string]string{
	"debug": "debug",
	"model": "model.path",
	"port":  "webserver.port",
}

// Context contains runtime state that is not user-configurable.
type Context struct {
	Build    buildinfo.Context
	Settings *conf.Settings
	Log      logger.Logger

	central     *logger.CentralLogger
	flushSentry func()
}

// New returns a Context carrying the build metadata of this binary.
func New() *Context {
	return &Context{
		Build: buildinfo.Current(),
		Log:   logger.NewNopLogger(),
	}
}

// Init loads the configuration, then sets up logging and error telemetry.
// Flags in flags override the config file and the environment.
func (c *Context) Init(configFile string, flags *pflag.FlagSet) error {
	var opts []conf.LoadOption
	if configFile != "" {
		opts = append(opts, conf.WithConfigFile(configFile))
	}
	if flags != nil {
		opts = append(opts, conf.WithFlags(flags, FlagKeys))
	}

	settings, err := conf.Load(opts...)
	if err != nil {
		return err
	}

	if settings.Debug {
		settings.Logging.DefaultLevel = string(logger.LogLevelDebug)
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = string(logger.LogLevelDebug)
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	c.Settings = settings
	c.central = central
	c.Log = central.Module("main")

	c.flushSentry = func() {}
	if settings.Sentry.Enabled {
		flush, err := errors.InitSentry(settings.Sentry.DSN, settings.Sentry.Environment, c.Build.Release())
		if err != nil {
			// telemetry is optional
			c.Log.Warn("sentry disabled", logger.Error(err))
		} else {
			c.flushSentry = flush
		}
	}

	c.Log.Debug("runtime initialized",
		logger.String("version", c.Build.Version),
		logger.String("build_date", c.Build.BuildDate),
		logger.String("node", settings.Main.Name))

	return nil
}

// Logger returns a logger scoped to module.
func (c *Context) Logger(module string) logger.Logger {
	if c.central == nil {
		return c.Log.Module(module)
	}
	return c.central.Module(module)
}

// Close flushes telemetry and closes the log file. Safe to call before Init.
func (c *Context) Close() error {
	if c.flushSentry != nil {
		c.flushSentry()
	}
	if c.central != nil {
		return c.central.Close()
	}
	return nil
}
