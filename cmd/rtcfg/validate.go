package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"bitrt/app"
	"bitrt/config"
	"bitrt/kernel"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watch bool

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Check system descriptions against the kernel's table rules",
	Long: `Loads each YAML system description, binds its behaviours and builds a
kernel from it. Any configuration error is reported with the offending item.

With --watch the files are checked again every time they change.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-validate when a file changes")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		if !report(out, path) {
			failed++
		}
	}
	if watch {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return watchFiles(ctx, out, args)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed validation", failed, len(args))
	}
	return nil
}

func report(out io.Writer, path string) bool {
	if _, err := check(path); err != nil {
		fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
		return false
	}
	fmt.Fprintf(out, "OK   %s\n", path)
	return true
}

// check loads a file and builds a kernel from it.
func check(path string) (*kernel.Kernel, error) {
	f, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return build(f)
}

func build(f *config.File) (*kernel.Kernel, error) {
	tb, _, err := f.Resolve(app.Registry())
	if err != nil {
		return nil, err
	}
	return kernel.New(tb, f.KernelConfig())
}

// watchFiles re-validates a file when it is written. Editors that replace a
// file on save show up as a create, so the parent directories are watched.
func watchFiles(ctx context.Context, out io.Writer, paths []string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	files := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		files[abs] = true
		if err := w.Add(filepath.Dir(abs)); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
	}
	logger.Info("watching", zap.Int("files", len(files)))

	const debounce = 100 * time.Millisecond
	pending := make(map[string]bool)
	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !files[ev.Name] || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Debug("file changed", zap.String("path", ev.Name), zap.Stringer("op", ev.Op))
			pending[ev.Name] = true
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))
		case <-timer.C:
			for p := range pending {
				report(out, p)
				delete(pending, p)
			}
		}
	}
}
