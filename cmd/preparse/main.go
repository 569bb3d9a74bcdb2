package main

import (
	"fmt"
	"io"
	"os"

	"media-preparser/internal/logging"
	"media-preparser/internal/preparser"
	"media-preparser/internal/startup"

	"github.com/spf13/cobra"
)

// osGetenv is swapped out by tests.
var osGetenv = os.Getenv

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	debug      bool
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "preparse",
		Short: "Parse media, fetch metadata and generate thumbnails",
		Long: `preparse runs media items through the preparser: parsing, local and
network metadata lookup, and thumbnail generation.`,
		Version:      startup.Version,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logging.SetOutput(stderr)
			if opts.debug {
				logging.SetLevel(logging.LevelDebug)
			} else {
				logging.SetLevel(logging.LevelWarn)
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("PREPARSER_CONFIG"), "Path to a TOML config file")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newParseCmd(opts),
		newThumbnailCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := startup.GetBuildInfo()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "preparse %s\n", info.Version)
			fmt.Fprintf(out, "Build time: %s\n", info.BuildTime)
			fmt.Fprintf(out, "Git commit: %s\n", info.Commit)
			fmt.Fprintf(out, "Go version: %s (%s/%s)\n", info.GoVersion, info.OS, info.Arch)
		},
	}
}

// loadConfig reads the configuration without the server's directory setup.
// Disk caches stay off so the tool never writes outside its output.
func loadConfig(opts *options) (*startup.Config, error) {
	config, err := startup.Load(opts.configPath, osGetenv)
	if err != nil {
		return nil, err
	}
	config.ThumbnailDir = ""
	config.ArtDir = ""
	return config, nil
}

// newPreparser builds a preparser for the given domains on top of the
// loaded configuration. adjust, when non-nil, may edit the configuration
// first.
func newPreparser(opts *options, domains preparser.Type, adjust func(*startup.Config)) (*preparser.Preparser, *startup.Config, error) {
	config, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	if missing := domains &^ config.Types; missing != 0 {
		return nil, nil, fmt.Errorf("%w: %s", preparser.ErrDomainDisabled, missing)
	}
	config.Types = domains
	if adjust != nil {
		adjust(config)
	}
	pp, err := startup.NewPreparser(config, nil, nil)
	if err != nil {
		return nil, nil, err
	}
	return pp, config, nil
}
