// Package cmd implements the command-line interface for the application.
package cmd

import (
	"fmt"
	"os"

	"github.com/jmcc0nn3ll/test/internal/config"
	"github.com/jmcc0nn3ll/test/internal/logger"
	"github.com/jmcc0nn3ll/test/internal/run"
	"github.com/jmcc0nn3ll/test/layout"
	"github.com/jmcc0nn3ll/test/memcompiler"
	"github.com/jmcc0nn3ll/test/testfs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose    bool
	logLevel   string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "testkit",
	Short: "testkit - test fixture toolkit",
	Long: `testkit maintains the build-output layout used by tests.

It resolves target and test resource paths, keeps the target/tests scratch
area clean and compiles Go unit fixtures in memory, recording every
compilation in a local ledger.`,
	Version: "0.1.0", // Set this from build flags
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// initConfig initialises configuration and logger.
func initConfig() {
	// Load configuration with optional override
	if err := config.Load(configFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// An explicit --log-level wins over the configured one
	if !rootCmd.PersistentFlags().Changed("log-level") && config.C.LogLevel != "" {
		logLevel = config.C.LogLevel
	}

	// Override log level if verbose flag set
	if verbose {
		logLevel = "debug"
	}

	loggerConfig := logger.Config{
		Level:      logLevel,
		Format:     config.C.LogFormat,
		OutputFile: config.C.Paths.LogsFile,
	}

	if err := logger.Init(loggerConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logger: %v\n", err)
		os.Exit(1)
	}

	logger.L().Debug("configuration loaded", zap.String("config_path", configFile), zap.String("basedir", config.C.BaseDir))
	logger.L().Debug("logger initialised", zap.String("level", logLevel))
}

// currentLayout returns the layout of the loaded configuration.
func currentLayout() (*layout.Layout, error) {
	return layout.FromConfig(config.C)
}

// currentScratch returns the guard for the configured scratch area.
func currentScratch() *testfs.Scratch {
	return testfs.NewScratch(config.C.TestingDir())
}

// openStore opens the compile run ledger.
func openStore() (*run.Store, error) {
	dbPath := config.C.Paths.Database
	store, err := run.NewStore(dbPath)
	if err != nil {
		logger.L().Error("failed to initialise run store", zap.String("path", dbPath), zap.Error(err))
		return nil, fmt.Errorf("failed to initialise run store: %w", err)
	}
	return store, nil
}

// loadFixture resolves name against the test resources directory and loads it.
func loadFixture(name string) (*memcompiler.Fixture, string, error) {
	path, err := memcompiler.FindFixture(config.C.ResourcesDir(), name)
	if err != nil {
		logger.L().Error("fixture not found", zap.String("fixture", name), zap.Error(err))
		return nil, "", err
	}
	fx, err := memcompiler.LoadFixture(path)
	if err != nil {
		return nil, path, err
	}
	return fx, path, nil
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (overrides defaults)")

	// Help is called by default for -h/--help
	rootCmd.CompletionOptions.DisableDefaultCmd = false
}
