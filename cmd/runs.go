package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/jmcc0nn3ll/test/internal/logger"
	"github.com/jmcc0nn3ll/test/internal/run"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runsFixture string
	runsStatus  string
	runsLimit   int
	runsOffset  int
	runsJSON    bool
)

// runsCmd lists compile runs with filtering and pagination.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List compile runs",
	Long:  "List all compile runs with optional filtering by fixture name and status",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(runsFixture, runsStatus, runsLimit, runsOffset)
		if err != nil {
			logger.L().Error("failed to list runs", zap.Error(err))
			return fmt.Errorf("failed to list runs: %w", err)
		}

		if len(runs) == 0 {
			fmt.Println("No runs found")
			return nil
		}

		if runsJSON {
			return printRunsJSON(runs)
		}

		return printRunsTable(runs)
	},
}

// printRunsTable displays runs in a formatted table.
func printRunsTable(runs []*run.CompileRun) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "RUN ID\tFIXTURE\tSTATUS\tUNITS\tSIZE\tSTARTED\tDURATION\n")
	fmt.Fprintf(w, "------\t-------\t------\t-----\t----\t-------\t--------\n")

	for _, r := range runs {
		duration := "-"
		if r.EndedAt.Valid {
			duration = fmt.Sprintf("%.2fs", r.Duration().Seconds())
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.ID,
			r.Fixture,
			coloriseStatus(r.Status),
			r.Units,
			humanize.Bytes(uint64(r.Bytes)),
			humanize.Time(r.StartedAt),
			duration,
		)
	}

	logger.L().Info("displayed runs", zap.Int("count", len(runs)))

	w.Flush()
	return nil
}

// printRunsJSON outputs runs in JSON format.
func printRunsJSON(runs []*run.CompileRun) error {
	for _, r := range runs {
		data, err := run.MarshalRun(r, nil)
		if err != nil {
			return err
		}

		var out bytes.Buffer
		json.Indent(&out, data, "", "  ")
		fmt.Println(out.String())
	}

	logger.L().Info("displayed runs in JSON", zap.Int("count", len(runs)))

	return nil
}

// coloriseStatus adds a marker to status strings for better readability.
func coloriseStatus(status run.RunStatus) string {
	switch status {
	case run.StatusSuccess:
		return "✓ " + string(status)
	case run.StatusFailed:
		return "✗ " + string(status)
	case run.StatusRunning:
		return "⟳ " + string(status)
	default:
		return string(status)
	}
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().StringVarP(&runsFixture, "fixture", "f", "", "Filter by fixture name")
	runsCmd.Flags().StringVarP(&runsStatus, "status", "s", "", "Filter by status (pending|running|success|failed)")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "l", 10, "Limit number of results")
	runsCmd.Flags().IntVarP(&runsOffset, "offset", "o", 0, "Offset for pagination")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "Output in JSON format")
}
