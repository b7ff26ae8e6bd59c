//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	Hz      int
	Ticks   uint64
	Verbose bool

	// Logger overrides the default stderr logger.
	Logger *zap.Logger
}

// RunHeadless runs the kernel without opening a window. Every frame advances
// the tick stream, samples the interrupt sources and calls the app's step
// function.
func RunHeadless(ctx context.Context, newApp func(HAL) func() error, cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 1000
	}
	z := cfg.Logger
	if z == nil {
		z = newZapLogger(cfg.Verbose)
	}
	defer func() { _ = z.Sync() }()

	h := newHost(z)
	step := newApp(h)

	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}
	t := time.NewTicker(d)
	defer t.Stop()

	var frame uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			h.poll()
			if step != nil {
				if err := step(); err != nil {
					return err
				}
			}
			frame++
			if cfg.Ticks > 0 && frame >= cfg.Ticks {
				return nil
			}
		}
	}
}
