package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petems/streamcap/internal/app"
	"github.com/petems/streamcap/internal/audio"
	"github.com/petems/streamcap/internal/config"
	"github.com/petems/streamcap/internal/hotkey"
	"github.com/petems/streamcap/internal/logging"
	"github.com/petems/streamcap/internal/permissions"
	"github.com/petems/streamcap/internal/tray"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

// statsInterval is how often headless mode logs capture statistics.
const statsInterval = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "streamcap",
		Short:         "Keep a rolling window of microphone audio",
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file (default is the platform config dir)")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error")
	flags.Bool("headless", false, "run without the tray icon")

	cmd.AddCommand(newDevicesCmd())
	return cmd
}

// loadConfig layers command line flags over the environment, the config
// file and the defaults.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	path, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}

	v, err := config.New(path)
	if err != nil {
		return nil, err
	}

	for key, flag := range map[string]string{"log_level": "log-level", "headless": "headless"} {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	return config.FromViper(v)
}

func run(parent context.Context, cfg *config.Config) error {
	// Initialize logger with configured level
	log := logging.NewWithLevel(cfg.LogLevel)

	// macOS requires explicit microphone approval before capture works
	if err := permissions.EnsurePermissions(log); err != nil {
		log.Error().Err(err).Msg("Required permissions not granted")
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := audio.New(cfg.Audio.Backend, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize audio")
		return err
	}
	defer backend.Terminate()

	application := app.New(app.Config{
		Backend: backend,
		Config:  cfg,
		Logger:  log,
	})

	// Initialize hotkey manager
	hkManager, err := hotkey.New()
	switch {
	case errors.Is(err, hotkey.ErrUnsupported):
		log.Warn().Msg("Global hotkey unavailable on this platform")
	case err != nil:
		log.Error().Err(err).Msg("Failed to initialize hotkeys")
	default:
		defer hkManager.Close()
		if err := hkManager.Register(cfg.PlatformHotkey(), application.OnHotkey); err != nil {
			log.Error().Err(err).Str("hotkey", cfg.PlatformHotkey()).Msg("Failed to register hotkey")
		}
	}

	log.Info().
		Str("version", Version).
		Str("backend", backend.Name()).
		Str("config", cfg.Path()).
		Bool("headless", cfg.Headless).
		Msg("StreamCap starting...")

	if cfg.Headless {
		return runHeadless(ctx, application, log)
	}

	trayUI := tray.New(nil, log, Version, Commit) // App reference set below
	application.SetStatusUpdater(trayUI)
	trayUI.SetApp(application)

	// Start tray UI - MUST run on main thread
	return trayUI.Run(ctx)
}

func runHeadless(ctx context.Context, application *app.App, log zerolog.Logger) error {
	if err := application.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to start capture")
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				log.Info().Msg(application.Status())
			}
		}
	})

	err := g.Wait()
	log.Info().Msg("Shutting down...")
	return errors.Join(err, application.Shutdown(context.Background()))
}
