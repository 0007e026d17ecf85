package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/observability/metrics"
)

// DefaultChannelTimeout bounds a single channel send.
const DefaultChannelTimeout = 10 * time.Second

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Timeout time.Duration // per channel
	Logger  logger.Logger
	Metrics *metrics.NotificationMetrics
}

// Dispatcher runs the enabled channels for an alert.
type Dispatcher struct {
	channels []Channel
	timeout  time.Duration
	log      logger.Logger
	metrics  *metrics.NotificationMetrics
}

// NewDispatcher creates a dispatcher over channels. Channel names must be
// unique; a later duplicate replaces the earlier one.
func NewDispatcher(cfg DispatcherConfig, channels ...Channel) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultChannelTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}

	d := &Dispatcher{
		timeout: cfg.Timeout,
		log:     cfg.Logger.Module("notification"),
		metrics: cfg.Metrics,
	}
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		if i := d.index(ch.Name()); i >= 0 {
			d.channels[i] = ch
			continue
		}
		d.channels = append(d.channels, ch)
	}
	return d
}

func (d *Dispatcher) index(name string) int {
	for i, ch := range d.channels {
		if ch.Name() == name {
			return i
		}
	}
	return -1
}

// Channels returns the names of the configured channels in order.
func (d *Dispatcher) Channels() []string {
	names := make([]string, len(d.channels))
	for i, ch := range d.channels {
		names[i] = ch.Name()
	}
	return names
}

// Dispatch sends alert through every channel concurrently. Each channel
// has its own timeout and its failure never cancels the others.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *Alert) Report {
	d.metrics.DispatchStarted()
	defer d.metrics.DispatchFinished()

	report := make(Report, len(d.channels))
	var mu sync.Mutex

	// Plain Group: no shared cancellation between channels.
	var g errgroup.Group
	for _, ch := range d.channels {
		g.Go(func() error {
			res := d.run(ctx, ch, alert)
			mu.Lock()
			report[ch.Name()] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	d.log.Info("alert dispatched",
		logger.String("candidate_id", alert.CandidateID),
		logger.Int("channels", len(report)),
		logger.Int("succeeded", len(report.Succeeded())))
	return report
}

// DispatchChannel sends alert through the named channel only.
func (d *Dispatcher) DispatchChannel(ctx context.Context, name string, alert *Alert) (Result, error) {
	i := d.index(name)
	if i < 0 {
		return Result{}, errors.Newf("notification channel %q is not enabled", name).
			Component("notification").
			Category(errors.CategoryNotFound).
			Context("channel", name).
			Build()
	}
	return d.run(ctx, d.channels[i], alert), nil
}

// Validate returns the configuration problems of every channel, keyed by
// channel name.
func (d *Dispatcher) Validate() map[string]error {
	problems := make(map[string]error)
	for _, ch := range d.channels {
		if err := ch.Validate(); err != nil {
			problems[ch.Name()] = err
		}
	}
	return problems
}

func (d *Dispatcher) run(ctx context.Context, ch Channel, alert *Alert) (res Result) {
	name := ch.Name()
	log := d.log.With(logger.String("channel", name))

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := sendFailed(name, fmt.Errorf("channel panicked: %v", r))
			res = d.failure(log, name, err, time.Since(start))
		}
	}()

	if err := ch.Send(ctx, alert); err != nil {
		return d.failure(log, name, err, time.Since(start))
	}

	elapsed := time.Since(start)
	d.metrics.RecordDelivery(name, metrics.StatusSuccess, elapsed.Seconds())
	log.Debug("channel delivered", logger.Duration("duration", elapsed))
	return Result{Success: true, Duration: elapsed}
}

func (d *Dispatcher) failure(log logger.Logger, name string, err error, elapsed time.Duration) Result {
	status := metrics.StatusError
	if errors.Is(err, context.DeadlineExceeded) {
		status = metrics.StatusTimeout
	}
	d.metrics.RecordDelivery(name, status, elapsed.Seconds())
	d.metrics.RecordError(name, string(errors.CategoryOf(err)))

	log.Error("channel failed",
		logger.String("category", string(errors.CategoryOf(err))),
		logger.Duration("duration", elapsed),
		logger.Error(err))
	return Result{Success: false, Reason: err.Error(), Duration: elapsed}
}

func channelLogger(log logger.Logger, name string) logger.Logger {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return log.Module("notification").With(logger.String("channel", name))
}
