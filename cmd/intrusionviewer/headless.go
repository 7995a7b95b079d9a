package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	appevents "github.com/rescp17/intrusionViewer/internal/app_events"
	viewerevents "github.com/rescp17/intrusionViewer/internal/app_events/viewer"
	"github.com/rescp17/intrusionViewer/internal/config"
	"github.com/rescp17/intrusionViewer/internal/util"
	"github.com/rescp17/intrusionViewer/pkg/control"
	"github.com/rescp17/intrusionViewer/pkg/viewer"
)

func newListCmd(flags *rootFlags) *cobra.Command {
	var (
		amount  int
		plain   bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the most recent clips and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags, func(c *config.Config) {
				if cmd.Flags().Changed("amount") {
					c.DefaultAmount = amount
				}
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			app := viewer.NewApp(cfg, viewer.WithLogger(slog.Default()))
			var videos control.VideoList
			err = app.RunUntil(ctx, func(msg tea.Msg) (bool, error) {
				switch msg := msg.(type) {
				case appevents.AppErrorMsg:
					return false, msg.Err
				case viewerevents.VideosMsg:
					videos = msg.Videos
					return true, nil
				}
				return false, nil
			})
			if err != nil {
				return err
			}
			if plain {
				printVideosPlain(os.Stdout, videos)
				return nil
			}
			printVideos(os.Stdout, videos)
			return nil
		},
	}
	cmd.Flags().IntVarP(&amount, "amount", "n", 0, "Number of clips to ask for (default from config)")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print one clip per line without a table")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Give up after this long")
	return cmd
}

func printVideos(w io.Writer, videos control.VideoList) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Clip", "Objects"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for i, v := range videos {
		table.Append([]string{fmt.Sprint(i + 1), v.Path, v.DisplayDescription()})
	}
	table.Render()
}

func printVideosPlain(w io.Writer, videos control.VideoList) {
	for _, v := range videos {
		fmt.Fprintln(w, util.Columns([]int{48}, v.Path, v.DisplayDescription()))
	}
}

func newFetchCmd(flags *rootFlags) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "fetch <clip>",
		Short: "Download one clip into the save directory and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			clip := args[0]

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			app := viewer.NewApp(cfg, viewer.WithLogger(slog.Default()))
			requested := false
			var saved viewerevents.SavedMsg
			err = app.RunUntil(ctx, func(msg tea.Msg) (bool, error) {
				switch msg := msg.(type) {
				case appevents.AppErrorMsg:
					return false, msg.Err
				case viewerevents.VideosMsg, viewerevents.CatalogMsg:
					// The first listing means the side channel is open.
					if !requested {
						requested = true
						select {
						case app.AppEvents() <- viewerevents.SaveMsg{Filename: clip}:
						case <-ctx.Done():
							return false, ctx.Err()
						}
					}
				case viewerevents.SavedMsg:
					saved = msg
					return true, nil
				}
				return false, nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Saved %s (%s) to %s\n", saved.Filename, util.FormatSize(saved.Size), saved.Path)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Give up after this long")
	return cmd
}
