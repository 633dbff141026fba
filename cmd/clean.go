package cmd

import (
	"fmt"
	"os"

	"github.com/jmcc0nn3ll/test/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cleanDryRun bool

// cleanCmd empties the scratch area, leaving the scratch directory itself.
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Empty the scratch area",
	Long:  "Delete everything below the target/tests scratch directory. Nothing outside it is touched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		scratch := currentScratch()

		if cleanDryRun {
			entries, err := os.ReadDir(scratch.Root())
			if os.IsNotExist(err) {
				fmt.Printf("Scratch area %s does not exist\n", scratch.Root())
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read scratch area: %w", err)
			}
			fmt.Printf("Would delete %d entries in %s\n", len(entries), scratch.Root())
			for _, e := range entries {
				fmt.Printf("  %s\n", e.Name())
			}
			return nil
		}

		n, err := scratch.Clean()
		if err != nil {
			logger.L().Error("failed to clean scratch area", zap.String("path", scratch.Root()), zap.Error(err))
			return err
		}

		logger.L().Info("scratch area cleaned", zap.String("path", scratch.Root()), zap.Int("entries", n))
		fmt.Printf("✓ Removed %d entries from %s\n", n, scratch.Root())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "List what would be deleted")
}
