package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/jmcc0nn3ll/test/internal/config"
	"github.com/jmcc0nn3ll/test/internal/logger"
	"github.com/jmcc0nn3ll/test/internal/run"
	"github.com/jmcc0nn3ll/test/memcompiler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// fixtureInfo holds metadata about a fixture.
type fixtureInfo struct {
	Name         string `json:"name"`
	File         string `json:"file"`
	Units        int    `json:"units"`
	Valid        bool   `json:"valid"`
	LastRun      string `json:"last_run,omitempty"`
	TotalRuns    int    `json:"total_runs,omitempty"`
	SuccessCount int    `json:"success_count,omitempty"`
	FailedCount  int    `json:"failed_count,omitempty"`
}

// runStats holds statistics about compile runs.
type runStats struct {
	LastRun      string
	TotalRuns    int
	SuccessCount int
	FailedCount  int
}

var (
	listJSON     bool
	listDetailed bool
)

// listCmd lists all fixtures in the test resources directory, optionally with
// run statistics from the ledger.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List unit fixtures",
	Long:  "List all unit fixtures in the test resources directory with optional run statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := config.C.ResourcesDir()
		paths, err := memcompiler.ListFixtures(dir)
		if err != nil {
			logger.L().Error("list command failed", zap.Error(err))
			return fmt.Errorf("failed to read resources directory: %w", err)
		}

		var store *run.Store
		if listDetailed {
			if store, err = openStore(); err != nil {
				return err
			}
			defer store.Close()
		}

		var fixtures []*fixtureInfo
		for _, path := range paths {
			info := &fixtureInfo{Name: fixtureName(path), File: path}

			fx, err := memcompiler.LoadFixture(path)
			if err != nil {
				logger.L().Warn("failed to load fixture", zap.String("path", path), zap.Error(err))
			} else {
				info.Name = fx.Name
				info.Units = len(fx.Units)
				info.Valid = true
			}

			if store != nil {
				if stats, err := getRunStats(store, info.Name); err == nil {
					info.LastRun = stats.LastRun
					info.TotalRuns = stats.TotalRuns
					info.SuccessCount = stats.SuccessCount
					info.FailedCount = stats.FailedCount
				}
			}

			fixtures = append(fixtures, info)
		}

		if len(fixtures) == 0 {
			logger.L().Debug("no fixtures found", zap.String("directory", dir))
			fmt.Printf("No fixtures found in %s\n", dir)
			return nil
		}

		logger.L().Info("listing available fixtures",
			zap.String("directory", dir),
			zap.Int("count", len(fixtures)),
		)

		if listJSON {
			return printFixturesJSON(fixtures)
		}

		if listDetailed {
			return printFixturesDetailedTable(fixtures)
		}

		return printFixturesTable(fixtures)
	},
}

// getRunStats queries the ledger for compile run statistics.
func getRunStats(store *run.Store, fixture string) (*runStats, error) {
	runs, err := store.ListRuns(fixture, "", 1000, 0)
	if err != nil {
		return nil, err
	}

	stats := &runStats{
		TotalRuns: len(runs),
	}

	if len(runs) > 0 {
		stats.LastRun = humanize.Time(runs[0].CreatedAt)

		for _, r := range runs {
			switch r.Status {
			case run.StatusSuccess:
				stats.SuccessCount++
			case run.StatusFailed:
				stats.FailedCount++
			}
		}
	}

	return stats, nil
}

// printFixturesTable displays fixtures in simple table format.
func printFixturesTable(fixtures []*fixtureInfo) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "FIXTURE\tUNITS\tSTATUS\n")
	fmt.Fprintf(w, "-------\t-----\t------\n")

	for _, fx := range fixtures {
		status := "✓ valid"
		if !fx.Valid {
			status = "✗ invalid"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", fx.Name, fx.Units, status)
	}

	w.Flush()
	return nil
}

// printFixturesDetailedTable displays fixtures with run statistics.
func printFixturesDetailedTable(fixtures []*fixtureInfo) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "FIXTURE\tUNITS\tTOTAL RUNS\tSUCCESS\tFAILED\tLAST RUN\n")
	fmt.Fprintf(w, "-------\t-----\t----------\t-------\t------\t--------\n")

	for _, fx := range fixtures {
		lastRun := "-"
		if fx.LastRun != "" {
			lastRun = fx.LastRun
		}

		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
			fx.Name,
			fx.Units,
			fx.TotalRuns,
			fx.SuccessCount,
			fx.FailedCount,
			lastRun,
		)
	}

	w.Flush()
	return nil
}

// printFixturesJSON outputs fixtures in JSON format.
func printFixturesJSON(fixtures []*fixtureInfo) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(fixtures)
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().BoolVarP(&listDetailed, "detailed", "d", false, "Show detailed statistics including run history")
}
