package main

import (
	"fmt"

	"media-preparser/internal/startup"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init [PATH]",
		Short: "Write an annotated example configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "preparser.toml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := startup.CreateConfigFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := startup.Load(opts.configPath, osGetenv)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if config.Source != "" {
				fmt.Fprintf(out, "# loaded from %s\n", config.Source)
			}
			fmt.Fprintf(out, "# enabled domains: %s\n", config.Types)
			fmt.Fprintf(out, "# parser threads: %d, thumbnailer threads: %d\n\n", config.ParserWorkers, config.ThumbnailerWorkers)
			return toml.NewEncoder(out).Encode(config)
		},
	})
	return cmd
}
