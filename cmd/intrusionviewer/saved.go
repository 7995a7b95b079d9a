package main

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rescp17/intrusionViewer/internal/config"
	"github.com/rescp17/intrusionViewer/internal/util"
	"github.com/rescp17/intrusionViewer/pkg/fileInfo"
)

func newSavedCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "saved",
		Short: "List clips already saved to the save directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			nodes, err := fileInfo.ScanDir(cfg.SaveDir)
			if err != nil {
				return err
			}
			if len(nodes) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Nothing saved yet in %s\n", cfg.SaveDir)
				return nil
			}
			printSaved(cmd.OutOrStdout(), nodes, time.Now())
			return nil
		},
	}
}

func printSaved(w io.Writer, nodes []fileInfo.FileNode, now time.Time) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Clip", "Size", "Type", "Saved"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, n := range nodes {
		table.Append([]string{n.Name, util.FormatSize(n.Size), n.MimeType, util.FormatAge(now, n.ModTime)})
	}
	table.Render()
}

func newConfigCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flags.configPath
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}
			exists, _, err := util.CheckDirectory(path)
			if err != nil {
				return err
			}
			if exists && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite it", path)
			}
			if err := config.Default().Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if cfg.TURN.Credential != "" {
				cfg.TURN.Credential = "********"
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
