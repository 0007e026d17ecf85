package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/tphakala/screamguard/internal/api"
	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/runtime"
)

// Serve runs the detection service until ctx is cancelled, then drains
// in-flight requests and releases every component.
func Serve(ctx context.Context, rt *runtime.Context) error {
	log := rt.Logger("analysis")
	logSystemDetails(ctx, log, rt)

	c, err := Build(ctx, rt)
	if err != nil {
		return err
	}
	defer closeComponents(c, log)

	server, err := api.New(rt.Settings,
		api.WithLogger(rt.Logger("api")),
		api.WithProcessor(c.Pipeline),
		api.WithResolver(c.Resolver),
		api.WithClipStore(c.Clips),
		api.WithMetrics(c.Metrics),
	)
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("HTTP server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	// ctx is already cancelled; the shutdown gets its own deadline.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errChan
}

// logSystemDetails logs the platform we are running on.
func logSystemDetails(ctx context.Context, log logger.Logger, rt *runtime.Context) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		log.Warn("error retrieving host info", logger.Error(err))
		return
	}
	log.Info("starting screamguard",
		logger.String("version", rt.Build.Version),
		logger.String("node", rt.Settings.Main.Name),
		logger.String("os", info.OS),
		logger.String("platform", info.Platform),
		logger.String("platform_version", info.PlatformVersion),
		logger.String("arch", info.KernelArch))
}

// closeComponents closes the components and logs the result.
func closeComponents(c *Components, log logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close components", logger.Error(err))
		return
	}
	log.Info("components closed")
}
