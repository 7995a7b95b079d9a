package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/rescp17/intrusionViewer/internal/config"
)

type rootFlags struct {
	configPath string
	logFile    string
	logLevel   string

	signalURL string
	saveDir   string
	record    string
}

func main() {
	var flags rootFlags
	var closeLog func()

	cmd := &cobra.Command{
		Use:   "intrusionviewer",
		Short: "Browse, play and save intrusion clips from a smart camera",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := setupLogging(flags.logFile, flags.logLevel)
			if err != nil {
				return err
			}
			closeLog = c
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if closeLog != nil {
				closeLog()
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Config file (default is the user config dir)")
	pf.StringVar(&flags.logFile, "log-file", "debug.log", "File to write logs to")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")
	pf.StringVar(&flags.signalURL, "signal-url", "", "Signaling relay websocket url (overrides config)")
	pf.StringVar(&flags.saveDir, "save-dir", "", "Directory saved clips are written to (overrides config)")
	pf.StringVar(&flags.record, "record", "", "Directory the live video is recorded to (overrides config)")

	cmd.AddCommand(
		newWatchCmd(&flags),
		newListCmd(&flags),
		newFetchCmd(&flags),
		newRelayCmd(&flags),
		newSavedCmd(&flags),
		newConfigCmd(&flags),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := fang.Execute(ctx, cmd); err != nil {
		os.Exit(1)
	}
}

// setupLogging sends slog and the standard logger to path, since the TUI owns the terminal.
func setupLogging(path, level string) (func(), error) {
	if level != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		logLevel.Set(lvl)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel})))
	log.SetOutput(f)
	return func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close log file", "error", err)
		}
	}, nil
}

// loadConfig layers the command-line overrides on top of the file and the
// environment, then validates the result.
// loadConfig reads the config file and env, applies the root flags and then
// any command specific overrides, and validates the result.
func loadConfig(flags *rootFlags, overrides ...func(*config.Config)) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return cfg, err
	}
	if flags.signalURL != "" {
		cfg.SignalURL = flags.signalURL
	}
	if flags.saveDir != "" {
		cfg.SaveDir = flags.saveDir
	}
	if flags.record != "" {
		cfg.Live.RecordPath = flags.record
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	for _, override := range overrides {
		override(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if flags.logLevel == "" {
		applyLogLevel(cfg.LogLevel)
	}
	slog.Debug("Configuration loaded", "signal_url", cfg.SignalURL, "save_dir", cfg.SaveDir, "player_dir", cfg.PlayerDir)
	return cfg, nil
}

var logLevel = new(slog.LevelVar)

// applyLogLevel raises or lowers the level of the default logger after the
// config file has been read.
func applyLogLevel(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return
	}
	logLevel.Set(lvl)
}
