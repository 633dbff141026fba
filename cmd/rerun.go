package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/jmcc0nn3ll/test/internal/executor"
	"github.com/jmcc0nn3ll/test/internal/logger"
	"github.com/jmcc0nn3ll/test/internal/run"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rerunForce bool

var rerunCmd = &cobra.Command{
	Use:   "rerun <run_id>",
	Short: "Compile the fixture of an earlier run again",
	Long:  "Compile the fixture of a failed run again as a new run. Use --force to rerun a successful run.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		// Verify run exists
		cr, err := store.Load(runID)
		if err != nil {
			logger.L().Error("run not found", zap.String("run_id", runID), zap.Error(err))
			return fmt.Errorf("run '%s' not found: %w", runID, err)
		}

		if cr.Status != run.StatusFailed && !rerunForce {
			logger.L().Warn("compile run is not in a rerunnable state", zap.String("run_id", runID), zap.String("status", string(cr.Status)))
			return fmt.Errorf("run '%s' is not in a rerunnable state (current status: %s)", runID, cr.Status)
		}

		// Setup context with cancellation
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Handle Ctrl+C
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt)
		go func() {
			<-sigChan
			fmt.Println("\n✖ Received interrupt. Cancelling compile run...")
			cancel()
		}()

		exec := executor.NewExecutor(store, currentScratch())
		if _, err := exec.Rerun(ctx, runID); err != nil {
			logger.L().Error("failed to rerun compile run", zap.String("run_id", runID), zap.Error(err))
			return fmt.Errorf("failed to rerun '%s': %w", runID, err)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(rerunCmd)

	rerunCmd.Flags().BoolVar(&rerunForce, "force", false, "Rerun even if the run succeeded")
}
