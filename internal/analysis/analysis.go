// Package analysis wires configured components together for the CLI
// commands: the detection service, one-off clip classification, location
// lookups and test alerts.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tphakala/screamguard/internal/classifier"
	_ "github.com/tphakala/screamguard/internal/classifier/tflite" // registers the tflite backend
	"github.com/tphakala/screamguard/internal/datastore"
	"github.com/tphakala/screamguard/internal/escalation"
	"github.com/tphakala/screamguard/internal/features"
	"github.com/tphakala/screamguard/internal/httpclient"
	"github.com/tphakala/screamguard/internal/location"
	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/mqtt"
	"github.com/tphakala/screamguard/internal/myaudio"
	"github.com/tphakala/screamguard/internal/notification"
	"github.com/tphakala/screamguard/internal/observability"
	"github.com/tphakala/screamguard/internal/pipeline"
	"github.com/tphakala/screamguard/internal/runtime"
)

// Components is the fully wired detection service.
type Components struct {
	Metrics    *observability.Metrics
	HTTP       *httpclient.Client
	Classifier *classifier.Classifier
	Resolver   *location.Resolver
	Store      datastore.Interface
	MQTT       mqtt.Client
	Dispatcher *notification.Dispatcher
	Clips      *myaudio.ClipStore
	Pipeline   *pipeline.Pipeline

	log     logger.Logger
	closers []func() error
}

// Build creates every component of the service. A model that cannot be
// loaded or a datastore that cannot be opened is fatal; a broker that cannot
// be reached is not, the MQTT channel then reports its own failures.
func Build(ctx context.Context, rt *runtime.Context) (_ *Components, err error) {
	settings := rt.Settings
	c := &Components{log: rt.Logger("analysis")}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	c.Metrics, err = observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("error initializing metrics: %w", err)
	}

	c.Classifier, err = LoadClassifier(rt)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, c.Classifier.Close)

	c.HTTP = NewHTTPClient(rt)
	c.closers = append(c.closers, func() error { c.HTTP.Close(); return nil })

	c.Resolver = location.NewFromSettings(&settings.Location, c.HTTP, rt.Logger("location"), c.Metrics.Location)

	c.Store, err = datastore.New(settings, rt.Logger("datastore"), c.Metrics.Datastore)
	if err != nil {
		return nil, err
	}
	if err := c.Store.Open(ctx); err != nil {
		return nil, err
	}
	c.closers = append(c.closers, c.Store.Close)

	c.MQTT, c.Dispatcher, err = NewDispatcher(ctx, rt, c.Metrics)
	if err != nil {
		return nil, err
	}
	if c.MQTT != nil {
		c.closers = append(c.closers, func() error { c.MQTT.Disconnect(); return nil })
	}

	c.Clips, err = myaudio.NewClipStore(settings.Audio.UploadDir, rt.Logger("myaudio"))
	if err != nil {
		return nil, err
	}
	if settings.Audio.PurgeOnStart {
		if err := c.Clips.Purge(); err != nil {
			c.log.Warn("failed to purge leftover uploads", logger.Error(err))
		}
	}

	aggregator := escalation.New(escalation.Config{
		Window:          settings.Escalation.Window,
		MinDetections:   settings.Escalation.MinDetections,
		EmergencyNumber: settings.Escalation.EmergencyNumber,
	})

	c.Pipeline = pipeline.New(pipeline.Config{
		Extractor:       features.NewExtractor(),
		Classifier:      c.Classifier,
		Locator:         c.Resolver,
		Aggregator:      aggregator,
		Store:           c.Store,
		Dispatcher:      c.Dispatcher,
		SourceNode:      settings.Main.Name,
		EmergencyNumber: settings.Escalation.EmergencyNumber,
		MaxDuration:     time.Duration(settings.Audio.MaxDuration) * time.Second,
		CandidateTTL:    settings.Escalation.CandidateTTL,
		Logger:          rt.Logger("pipeline"),
		Metrics:         c.Metrics.Pipeline,
	})

	c.log.Info("components initialized",
		logger.String("model", c.Classifier.Info().Path),
		logger.Any("channels", c.Dispatcher.Channels()),
		logger.Int("min_detections", aggregator.MinDetections()),
		logger.Duration("window", aggregator.Window()))

	return c, nil
}

// Close releases components in reverse order of creation.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// LoadClassifier loads the configured model artifact.
func LoadClassifier(rt *runtime.Context) (*classifier.Classifier, error) {
	m := rt.Settings.Model
	return classifier.Load(m.Backend, classifier.Options{
		Path:       m.Path,
		ScalerPath: m.ScalerPath,
		Threads:    m.Threads,
	}, rt.Logger("classifier"))
}

// NewHTTPClient returns the shared client for geocoding and IP lookups.
func NewHTTPClient(rt *runtime.Context) *httpclient.Client {
	cfg := httpclient.DefaultConfig()
	cfg.UserAgent = rt.Build.UserAgent()
	if rt.Settings.Location.Timeout > 0 {
		cfg.DefaultTimeout = rt.Settings.Location.Timeout
	}
	return httpclient.New(&cfg)
}

// NewDispatcher builds the notification channels. The MQTT client is nil
// unless the MQTT channel is enabled.
func NewDispatcher(ctx context.Context, rt *runtime.Context, m *observability.Metrics) (mqtt.Client, *notification.Dispatcher, error) {
	settings := rt.Settings

	var mq mqtt.Client
	if settings.Notification.MQTT.Enabled {
		var err error
		mq, err = mqtt.NewClient(mqtt.ConfigFromSettings(&settings.Notification.MQTT), rt.Logger("mqtt"), m.MQTT)
		if err != nil {
			return nil, nil, err
		}
		if err := mq.Connect(ctx); err != nil {
			rt.Logger("mqtt").Warn("failed to connect to MQTT broker", logger.Error(err))
		}
	}

	d := notification.NewFromSettings(&settings.Notification, settings.Escalation.EmergencyNumber, mq, rt.Logger("notification"), m.Notification)
	for name, err := range d.Validate() {
		if err != nil {
			rt.Logger("notification").Warn("notification channel misconfigured",
				logger.String("channel", name),
				logger.Error(err))
		}
	}
	return mq, d, nil
}
