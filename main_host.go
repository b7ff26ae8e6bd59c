//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"bitrt/app"
	"bitrt/config"
	"bitrt/hal"
)

func main() {
	var cfg hal.HeadlessConfig
	var path string
	var trace bool
	flag.BoolVar(&cfg.Enabled, "headless", false, "Run without a window.")
	flag.IntVar(&cfg.Hz, "hz", 1000, "Frame rate in headless mode.")
	flag.Uint64Var(&cfg.Ticks, "ticks", 0, "Stop after N frames in headless mode (0 = run forever).")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Log at debug level.")
	flag.StringVar(&path, "config", "", "YAML system description (default: built-in demo).")
	flag.BoolVar(&trace, "trace", false, "Log every kernel trace record.")
	flag.Parse()

	appCfg := app.Config{Monitor: !cfg.Enabled, TraceLog: trace}
	if path != "" {
		f, err := config.Load(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		appCfg.File = f
	}
	newApp := func(h hal.HAL) func() error { return app.NewWithConfig(h, appCfg) }

	if cfg.Enabled {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := hal.RunHeadless(ctx, newApp, cfg); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := hal.RunWindow(newApp); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
