package cmd

import (
	"fmt"
	"os"

	"github.com/jmcc0nn3ll/test/internal/config"
	"github.com/jmcc0nn3ll/test/internal/logger"
	"github.com/jmcc0nn3ll/test/testfs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// initCmd creates the target, scratch and test resources directories, the
// run ledger and a default config file.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialise the project layout and run ledger",
	Long:  "Create the target, scratch and test resources directories and initialise the SQLite run ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		dirs := []string{
			config.C.TargetDir(),
			config.C.TestingDir(),
			config.C.ResourcesDir(),
		}

		for _, dir := range dirs {
			if err := testfs.EnsureDirExists(dir); err != nil {
				logger.L().Error("failed to create directory", zap.String("path", dir), zap.Error(err))
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
			logger.L().Debug("directory created or already exists", zap.String("path", dir))
		}

		// Initialise SQLite database
		store, err := openStore()
		if err != nil {
			return err
		}
		store.Close()

		cfgFile := config.ConfigFile(config.C.BaseDir)
		if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
			if err := os.WriteFile(cfgFile, []byte(config.DefaultConfig()), 0644); err != nil {
				logger.L().Error("failed to write config file", zap.String("path", cfgFile), zap.Error(err))
				return fmt.Errorf("failed to write config file: %w", err)
			}
			logger.L().Info("config file created", zap.String("path", cfgFile))
		} else {
			logger.L().Info("config file already exists, skipping creation", zap.String("path", cfgFile))
		}

		// Print summary
		fmt.Println("\n✓ Project initialised successfully")
		fmt.Printf("  Config file: %s\n", cfgFile)
		fmt.Printf("  Target:      %s\n", config.C.TargetDir())
		fmt.Printf("  Scratch:     %s\n", config.C.TestingDir())
		fmt.Printf("  Resources:   %s\n", config.C.ResourcesDir())
		fmt.Printf("  Database:    %s\n", config.C.Paths.Database)
		fmt.Println("\nConfigure paths via TESTKIT_* environment variables or the config file.")

		logger.L().Info("project initialised",
			zap.String("config_file", cfgFile),
			zap.String("target_dir", config.C.TargetDir()),
			zap.String("scratch_dir", config.C.TestingDir()),
			zap.String("database", config.C.Paths.Database),
		)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
