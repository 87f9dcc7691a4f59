package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mattt/mailbridge/internal/bridge"
	"github.com/mattt/mailbridge/mcp"
)

var rootCmd = &cobra.Command{
	Use:   "mailbridge",
	Short: "A stdio bridge to the mail host",
	Long: `mailbridge is a CLI tool that provides an MCP stdio transport for a running mail host.
It reads JSON-RPC requests from stdin, one per line, forwards them to the host over HTTP
and writes each JSON-RPC response to stdout on its own line.

The host URL defaults to $MAILBRIDGE_URL, or http://127.0.0.1:8765/ when unset.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Signals end the process without waiting for in-flight requests
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		g, ctx := errgroup.WithContext(ctx)

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		if !verbose {
			logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}

		g.Go(func() error {
			logger.Info("forwarding to host", "url", url, "timeout", timeout, "retries", retries)

			b := bridge.New(url,
				bridge.WithTimeout(timeout),
				bridge.WithRetries(retries),
				bridge.WithServerInfo("mailbridge", version),
				bridge.WithLogger(logger),
			)

			transport := mcp.NewStdioTransport(b, os.Stdin, os.Stdout, mcp.WithTransportLogger(logger))
			return transport.Run(ctx)
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

var (
	url     string
	verbose bool
	retries int
	timeout time.Duration

	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func defaultURL() string {
	if v := os.Getenv("MAILBRIDGE_URL"); v != "" {
		return v
	}
	return bridge.DefaultURL
}

func init() {
	rootCmd.Flags().StringVar(&url, "url", defaultURL(), "URL of the mail host")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging to stderr")
	rootCmd.Flags().IntVar(&retries, "retries", bridge.DefaultRetries, "Maximum number of retries when the host cannot be reached")
	rootCmd.Flags().DurationVar(&timeout, "timeout", bridge.DefaultTimeout, "Request timeout, including retries")

	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built at: %s)", version, commit, date)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
