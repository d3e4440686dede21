// Package main provides the CLI entry point for the relay server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/riftlink/relay/internal/central"
	"github.com/riftlink/relay/internal/config"
	"github.com/riftlink/relay/internal/logging"
	"github.com/riftlink/relay/internal/metrics"
	"github.com/riftlink/relay/internal/protocol"
	"github.com/riftlink/relay/internal/relay"
	"github.com/riftlink/relay/internal/wizard"
)

var (
	// Version is set at build time
	Version = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "relay",
		Short: "Relay - real-time multiplayer game relay server",
		Long: `Relay is the UDP game server players connect to for real-time
multiplayer sessions. It authenticates players against a central
server, establishes per-connection encrypted channels and relays
voice traffic between players.`,
		Version: Version,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(setupCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long:  "Generate a configuration file by answering a few questions.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := wizard.New().Run()
			return err
		},
	}
}

func runCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run [address [central-url central-password]]",
		Short: "Run the relay server",
		Long: `Start the relay server. Settings come from the optional config file,
the positional arguments and RELAY_* environment variables, in that
order of precedence.`,
		Args: cobra.MaximumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, args)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	return cmd
}

func loadConfig(path string, args []string) (*config.Config, error) {
	var cfg *config.Config
	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		def := config.Default()
		cfg = &def
	}

	if err := cfg.ApplyArgs(args); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServer(cfg *config.Config) error {
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if cfg.LogFile != "" {
		fileLogger, closeLog, err := logging.NewFileLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer closeLog()
		logger = fileLogger
	}

	logger.Debug("configuration loaded",
		slog.String("bind_address", cfg.BindAddress),
		slog.String("central_url", cfg.CentralURL),
		slog.String("central_password", censorKey(cfg.CentralPassword)),
		slog.String("log_level", cfg.LogLevel),
		slog.String("log_format", cfg.LogFormat))

	bridge := central.New(cfg.CentralURL, cfg.CentralPassword, protocol.Version, logger)

	var boot *central.BootData
	if bridge.Standalone() {
		logger.Warn("no central server configured, running in standalone mode: authentication is disabled and anyone can join")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		data, err := bridge.RequestBootData(ctx)
		cancel()
		if err != nil {
			return bootDataError(err)
		}
		boot = data

		logger.Info("central server configuration received",
			slog.Uint64("tps", uint64(boot.TPS)),
			slog.Uint64("token_expiry", uint64(boot.TokenExpiry)),
			slog.String("secret_key", censorKey(boot.SecretKey)),
			slog.Int(logging.KeyCount, len(boot.ChatBlocked)))

		if boot.Maintenance {
			logger.Warn("the central server is in maintenance mode, all logins will be rejected")
		}
	}

	addr, err := config.ResolveBindAddress(cfg.BindAddress)
	if err != nil {
		return err
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		if addr.Port < 1024 && errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("failed to bind to %s: ports below 1024 need elevated privileges, pick a higher port or run with the required capability: %w", addr, err)
		}
		return fmt.Errorf("failed to bind to %s: %w", addr, err)
	}
	defer conn.Close()

	m := metrics.NewMetrics()
	srv, err := relay.New(conn, bridge, boot, relay.DefaultConfig(), logger, m)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	var health *metrics.Server
	if cfg.HealthAddress != "" {
		health = metrics.NewServer(cfg.HealthAddress, func() metrics.HealthStatus {
			return metrics.HealthStatus{
				Status:     "ok",
				Players:    srv.PlayerCount(),
				Actors:     srv.ActorCount(),
				UptimeSecs: int64(srv.Uptime().Seconds()),
			}
		}, logger)
		if err := health.Start(); err != nil {
			return fmt.Errorf("failed to start the monitoring endpoint: %w", err)
		}
		logger.Info("monitoring endpoint listening", slog.String(logging.KeyAddress, health.Addr()))
	}

	logger.Info("server listening", slog.String(logging.KeyAddress, conn.LocalAddr().String()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- srv.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
		srv.BroadcastNotice("Server is shutting down.")
	case err := <-runErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	cancel()
	srv.Stop()

	if health != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := health.Stop(shutdownCtx); err != nil {
			logger.Warn("monitoring endpoint shutdown failed", slog.String(logging.KeyError, err.Error()))
		}
	}

	logger.Info("server stopped")
	return nil
}

// bootDataError turns a boot data failure into an actionable message for
// the operator.
func bootDataError(err error) error {
	var (
		reqErr      *central.RequestError
		centralErr  *central.CentralError
		magicErr    *central.InvalidMagicError
		dataErr     *central.MalformedDataError
		mismatchErr *central.ProtocolMismatchError
	)

	switch {
	case errors.As(err, &reqErr):
		return fmt.Errorf("could not reach the central server, check the URL and your network connection: %w", err)
	case errors.As(err, &centralErr):
		if centralErr.Code == 401 || centralErr.Code == 403 {
			return fmt.Errorf("the central server rejected the password, check the configured central password: %w", err)
		}
		return fmt.Errorf("the central server returned an error: %w", err)
	case errors.As(err, &magicErr):
		return fmt.Errorf("the configured URL does not appear to be a central server: %w", err)
	case errors.As(err, &dataErr):
		return fmt.Errorf("the central server sent unparseable configuration, it may be running an incompatible version: %w", err)
	case errors.As(err, &mismatchErr):
		if mismatchErr.Central > mismatchErr.Ours {
			return fmt.Errorf("this relay server is outdated, update it to match the central server: %w", err)
		}
		return fmt.Errorf("the central server is outdated, update it to match this relay server: %w", err)
	default:
		return fmt.Errorf("failed to fetch the central server configuration: %w", err)
	}
}

// censorKey masks a secret for log output, keeping just enough to tell
// configured keys apart.
func censorKey(key string) string {
	if key == "" {
		return "<unset>"
	}
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}
