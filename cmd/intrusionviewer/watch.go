package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rescp17/intrusionViewer/pkg/discovery"
	"github.com/rescp17/intrusionViewer/pkg/ui"
	"github.com/rescp17/intrusionViewer/pkg/viewer"
)

func newWatchCmd(flags *rootFlags) *cobra.Command {
	var (
		discover bool
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Connect to the camera and browse its clips interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if discover {
				svc, err := discovery.FirstRelay(ctx, &discovery.MDNSAdapter{}, timeout)
				if err != nil {
					return err
				}
				flags.signalURL = svc.SignalURL()
				slog.Info("Discovered relay", "name", svc.Name, "url", flags.signalURL)
			}
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			app := viewer.NewApp(cfg, viewer.WithLogger(slog.Default()))
			slog.Info("Starting viewer", "session", app.SessionID(), "signal_url", cfg.SignalURL)

			p := tea.NewProgram(ui.InitialModel(ctx, app, cfg.SignalURL), tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("alas, there's been an error: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&discover, "discover", false, "Find a signaling relay on the local network over mDNS")
	cmd.Flags().DurationVar(&timeout, "discover-timeout", 5*time.Second, "How long to browse for a relay")
	return cmd
}
