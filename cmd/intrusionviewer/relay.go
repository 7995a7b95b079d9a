package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rescp17/intrusionViewer/internal/config"
	"github.com/rescp17/intrusionViewer/pkg/discovery"
	"github.com/rescp17/intrusionViewer/pkg/relay"
)

func newRelayCmd(flags *rootFlags) *cobra.Command {
	var (
		listen   string
		announce bool
	)
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run a signaling relay for the camera and the viewer on this network",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags, func(c *config.Config) {
				if cmd.Flags().Changed("listen") {
					c.Relay.Listen = listen
				}
				if cmd.Flags().Changed("announce") {
					c.Relay.Announce = announce
				}
			})
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", cfg.Relay.Listen)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", cfg.Relay.Listen, err)
			}
			_, port, err := relay.Addr(ln)
			if err != nil {
				ln.Close()
				return err
			}

			server := relay.NewServer(slog.Default())
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return server.Serve(ctx, ln)
			})
			if cfg.Relay.Announce {
				name, err := os.Hostname()
				if err != nil {
					name = "intrusion-relay"
				}
				g.Go(func() error {
					return (&discovery.MDNSAdapter{}).Announce(ctx, discovery.ServiceInfo{
						Name:   name,
						Type:   discovery.RelayServiceType,
						Domain: discovery.DefaultDomain,
						Port:   port,
						Path:   discovery.DefaultPath,
					})
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Relay listening on %s (ws path %s)\n", ln.Addr(), discovery.DefaultPath)
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Address to listen on (overrides relay.listen)")
	cmd.Flags().BoolVar(&announce, "announce", true, "Announce the relay over mDNS (overrides relay.announce)")
	return cmd
}
