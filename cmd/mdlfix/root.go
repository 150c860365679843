package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Faultbox/mdlfix/internal/config"
	"github.com/Faultbox/mdlfix/internal/logger"
)

var rootFlags struct {
	configPath string
	logLevel   string
	logFile    string
}

// cfg is the merged configuration every subcommand reads; it is populated
// by the root PersistentPreRunE before any RunE fires.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "mdlfix",
	Short: "Repair MDLB model assets",
	Long: `mdlfix repairs MDLB model assets, loose or inside BNDL bundles:
node flags and ordering, sibling chains, skeleton completion, faceset
winding, canonical LOD slots, decal UVs and collection compaction.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(rootFlags.configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Logging.Level = rootFlags.logLevel
		}
		if cmd.Flags().Changed("log-file") {
			cfg.Logging.LogFile = rootFlags.logFile
		}
		return logger.Init(cfg.Logging.Level, cfg.Logging.LogFile)
	},
}

func init() {
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	rootCmd.PersistentFlags().StringVar(&rootFlags.configPath, "config", "",
		fmt.Sprintf("path to the config file (default: ./mdlfix.yaml, then %s)", config.ConfigDir()))
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "info",
		"log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logFile, "log-file", "",
		"also write logs to this file, with rotation")
}
