package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

var (
	consolePort   string
	consoleBaud   int
	consoleList   bool
	consoleFilter string
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Print the kernel log of a board over its serial port",
	Long: `Opens the board's UART and prints every line the kernel logs, including
trace records and fault reports. Use --list to see the available ports.`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func init() {
	consoleCmd.Flags().StringVarP(&consolePort, "port", "p", "", "Serial port of the board")
	consoleCmd.Flags().IntVarP(&consoleBaud, "baud", "b", 115200, "Baud rate")
	consoleCmd.Flags().BoolVarP(&consoleList, "list", "l", false, "List serial ports and exit")
	consoleCmd.Flags().StringVar(&consoleFilter, "grep", "", "Only print lines containing this text")
}

func runConsole(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if consoleList {
		ports, err := serial.GetPortsList()
		if err != nil {
			return fmt.Errorf("list ports: %w", err)
		}
		if len(ports) == 0 {
			fmt.Fprintln(out, "no serial ports found")
		}
		for _, p := range ports {
			fmt.Fprintln(out, p)
		}
		return nil
	}
	if consolePort == "" {
		return errors.New("--port is required")
	}

	port, err := serial.Open(consolePort, &serial.Mode{BaudRate: consoleBaud})
	if err != nil {
		return fmt.Errorf("open %s: %w", consolePort, err)
	}
	defer port.Close()
	if err := port.SetReadTimeout(200 * time.Millisecond); err != nil {
		return fmt.Errorf("configure %s: %w", consolePort, err)
	}
	logger.Info("console attached", zap.String("port", consolePort), zap.Int("baud", consoleBaud))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return copyLines(ctx, out, port, consoleFilter)
}

// timeoutReader ends a read that saw no data with zero bytes and no error,
// the way a serial port with a read timeout does.
type timeoutReader struct {
	ctx context.Context
	r   io.Reader
}

func (t timeoutReader) Read(p []byte) (int, error) {
	for {
		if err := t.ctx.Err(); err != nil {
			return 0, io.EOF
		}
		n, err := t.r.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
	}
}

// copyLines prints every complete line read from r that contains filter.
func copyLines(ctx context.Context, out io.Writer, r io.Reader, filter string) error {
	sc := bufio.NewScanner(timeoutReader{ctx: ctx, r: r})
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if filter != "" && !strings.Contains(line, filter) {
			continue
		}
		fmt.Fprintln(out, line)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read console: %w", err)
	}
	return nil
}
