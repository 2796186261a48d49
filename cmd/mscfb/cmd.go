package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asalih/go-mscfb-scan/config"
	"github.com/asalih/go-mscfb-scan/internal/util"
)

const version = "v0.1.0"

// Main runs the command
func Main(args []string) error {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args[1:])
	return rootCmd.Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mscfb",
		Short: "Inspect compound files and report embedded OLE objects",
		Long: `mscfb reads Compound File Binary containers (OLE structured storage)
such as report definitions, lists their entries and reports embedded
OLE object streams with their size and MD5 hash.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	root.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (repeatable)")
	root.PersistentFlags().String("config", "", "Config file (.yaml, .yml or .json)")
	root.PersistentFlags().Bool("strict", false, "Reject containers that violate the format instead of repairing them")

	root.AddCommand(
		versionCmd(),
		embedsCmd(),
		lsCmd(),
		catCmd(),
	)

	return root
}

// versionCmd returns the version command
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mscfb %s\n", version)
		},
	}
}

// loadConfig builds the configuration from the optional config file and the
// flags that were set explicitly, then sets up logging to stderr.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewDefaultConfig()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		override, err := config.LoadConfigOverrideFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg.Merge(override)
	}

	flags := cmd.Flags()
	override := &config.ConfigOverride{}
	if flags.Changed("verbose") {
		count, _ := flags.GetCount("verbose")
		override.LogLvl = util.Pointer(config.DefaultVerbose + count)
	}
	if flags.Changed("strict") {
		if strict, _ := flags.GetBool("strict"); strict {
			override.Validation = util.Pointer("strict")
		}
	}
	if flags.Lookup("marker") != nil && flags.Changed("marker") {
		marker, _ := flags.GetString("marker")
		override.Marker = &marker
	}
	if flags.Lookup("workers") != nil && flags.Changed("workers") {
		workers, _ := flags.GetInt("workers")
		override.Workers = &workers
	}
	if flags.Lookup("ignore-errors") != nil && flags.Changed("ignore-errors") {
		ignore, _ := flags.GetBool("ignore-errors")
		override.IgnoreErrors = &ignore
	}
	cfg.Merge(override)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	util.InitializeLoggerTo(cmd.ErrOrStderr(), cfg.LogLvl)
	return cfg, nil
}
