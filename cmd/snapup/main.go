package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/v0xg/snapup/internal/config"
	"github.com/v0xg/snapup/internal/logging"
)

var (
	configPath string
	envFile    string
	logLevel   string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "snapup",
		Short: "Replay recorded browser actions against a live site",
		Long: `snapup drives Chrome through a list of recorded actions, waiting for
elements, retrying flaky interactions, and reporting failures to LINE Notify.

Example:
  snapup run actions.json --jq '.[0]'
  snapup import recording.side -o actions.json
  snapup generate "https://example.com" "search for cats"`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file, ignored when IN_DOCKER=true")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed progress")

	rootCmd.AddCommand(newRunCmd(), newImportCmd(), newGenerateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig builds the configuration and the logger every command shares.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.NewLoader().WithConfigPath(configPath).WithEnvFile(envFile).Load()
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(cfg.Log), nil
}

func step(format string, args ...any) {
	fmt.Printf("%s %s... ", color.CyanString("→"), fmt.Sprintf(format, args...))
}

func done(format string, args ...any) {
	if format == "" {
		fmt.Println("done")
		return
	}
	fmt.Printf("done (%s)\n", fmt.Sprintf(format, args...))
}

func failed() {
	fmt.Println(color.RedString("failed"))
}

func logVerbose(format string, args ...any) {
	if verbose {
		fmt.Printf(format+"\n", args...)
	}
}
