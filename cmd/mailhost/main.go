package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mattt/mailbridge/internal/config"
	"github.com/mattt/mailbridge/internal/httpapi"
	"github.com/mattt/mailbridge/internal/mailstore/maildir"
	"github.com/mattt/mailbridge/mcp"
)

const shutdownTimeout = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:   "mailhost",
	Short: "Serve mail tools over a loopback HTTP transport",
	Long: `mailhost serves the mail tools (search, read, compose, reply, forward,
mark-read, accounts, calendars and contacts) over JSON-RPC on a loopback HTTP
endpoint, backed by a Maildir-style directory tree.

Settings are read from --config, then from the environment (optionally loaded
from --env-file), then from flags:
- MAILBRIDGE_ADDR
- MAILBRIDGE_MAIL_ROOT
- MAILBRIDGE_DRAFTS_DIR

With --stdio the tools are served on stdin/stdout instead of HTTP.
With --write-config the resolved settings are saved as YAML and nothing is served.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		if !verbose {
			logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if writeConfig != "" {
			if err := cfg.Save(writeConfig); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", writeConfig)
			return nil
		}

		store := maildir.New(cfg.MailRoot,
			maildir.WithDraftsDir(cfg.DraftsPath()),
			maildir.WithLogger(logger),
		)

		server, err := mcp.NewServer(store,
			mcp.WithServerInfo(cfg.Server.Name, cfg.Server.Version),
			mcp.WithLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("error creating server: %w", err)
		}

		g, ctx := errgroup.WithContext(ctx)

		if stdio {
			g.Go(func() error {
				transport := mcp.NewStdioTransport(mcp.JSONRPCLines(server), os.Stdin, os.Stdout, mcp.WithTransportLogger(logger))
				return transport.Run(ctx)
			})
		} else {
			if verbose {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}

			httpServer := &http.Server{
				Addr:              cfg.Addr,
				Handler:           httpapi.New(server, httpapi.WithLogger(logger)),
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext:       func(net.Listener) context.Context { return ctx },
			}

			g.Go(func() error {
				logger.Info("listening", "addr", cfg.Addr, "mailRoot", cfg.MailRoot)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("error serving HTTP: %w", err)
				}
				return nil
			})

			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			})
		}

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

// loadConfig layers the config file, the environment and explicit flags
func loadConfig(cmd *cobra.Command) (*config.HostConfig, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = addr
	}
	if flags.Changed("mail-root") {
		cfg.MailRoot = mailRoot
	}
	if flags.Changed("drafts-dir") {
		cfg.DraftsDir = draftsDir
	}
	if cfg.Server.Version == "" || cfg.Server.Version == "dev" {
		cfg.Server.Version = version
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

var (
	configPath  string
	envFile     string
	addr        string
	mailRoot    string
	draftsDir   string
	stdio       bool
	writeConfig string
	verbose     bool

	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func init() {
	defaults := config.DefaultConfig()

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.Flags().StringVar(&envFile, "env-file", "", "Path to a dotenv file to load before reading the environment")
	rootCmd.Flags().StringVar(&addr, "addr", defaults.Addr, "Loopback address to listen on")
	rootCmd.Flags().StringVar(&mailRoot, "mail-root", defaults.MailRoot, "Mail directory tree")
	rootCmd.Flags().StringVar(&draftsDir, "drafts-dir", "", "Directory for staged drafts (default <mail-root>/drafts)")
	rootCmd.Flags().BoolVar(&stdio, "stdio", false, "Serve JSON-RPC on stdin/stdout instead of HTTP")
	rootCmd.Flags().StringVar(&writeConfig, "write-config", "", "Write the resolved configuration to this path and exit")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging to stderr")

	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built at: %s)", version, commit, date)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
