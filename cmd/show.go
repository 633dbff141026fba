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

var showJSON bool

// showCmd shows a compile run with its units and, for failed runs, the
// recorded diagnostics.
var showCmd = &cobra.Command{
	Use:   "show <run_id> [unit]",
	Short: "Show a compile run or one of its units",
	Long:  "Display a compile run with its unit records, or the record of a single unit",
	Args:  cobra.RangeArgs(1, 2),
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

		if len(args) == 2 {
			return showUnit(store, cr, args[1])
		}
		if showJSON {
			return printRunJSON(store, runID)
		}

		units, err := store.LoadUnits(runID)
		if err != nil {
			logger.L().Error("failed to load units for run", zap.String("run_id", runID), zap.Error(err))
			return fmt.Errorf("failed to load units for run '%s': %w", runID, err)
		}
		return showRun(cr, units)
	},
}

// showRun displays a run and all of its units.
func showRun(cr *run.CompileRun, units []run.UnitRecord) error {
	fmt.Printf("=== Run '%s' (%s) ===\n\n", cr.ID, cr.Fixture)
	fmt.Printf("Fixture:  %s\n", cr.FixturePath)
	fmt.Printf("Status:   %s\n", coloriseStatus(cr.Status))
	fmt.Printf("Started:  %s (%s)\n", cr.StartedAt.Format("2006-01-02 15:04:05"), humanize.Time(cr.StartedAt))
	if cr.EndedAt.Valid {
		fmt.Printf("Duration: %.2fs\n", cr.Duration().Seconds())
	}
	fmt.Printf("Units:    %d (%s)\n", cr.Units, humanize.Bytes(uint64(cr.Bytes)))

	meta, err := cr.UnmarshalMeta()
	if err != nil {
		logger.L().Warn("failed to decode run metadata", zap.String("run_id", cr.ID), zap.Error(err))
	}
	if prev, ok := meta["rerun_of"].(string); ok {
		fmt.Printf("Rerun of: %s\n", prev)
	}

	if len(units) > 0 {
		fmt.Println("\n--- Units ---")
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "UNIT\tSIZE\tDIGEST\tEXPORT FILE\n")
		fmt.Fprintf(w, "----\t----\t------\t-----------\n")
		for _, u := range units {
			export := "-"
			if u.ExportFile.Valid {
				export = u.ExportFile.String
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.Name, humanize.Bytes(uint64(u.Size)), shortDigest(u.Digest), export)
		}
		w.Flush()
	}

	if diags, ok := meta["diagnostics"].([]interface{}); ok && len(diags) > 0 {
		fmt.Println("\n--- Diagnostics ---")
		for _, d := range diags {
			if m, ok := d.(map[string]interface{}); ok {
				fmt.Printf("%v: %v\n", m["pos"], m["msg"])
			}
		}
	} else if cr.LastError.Valid {
		fmt.Println("\n--- Error ---")
		fmt.Println(cr.LastError.String)
	}

	logger.L().Info("displayed run", zap.String("run_id", cr.ID))
	return nil
}

// showUnit displays the record of a single unit.
func showUnit(store *run.Store, cr *run.CompileRun, name string) error {
	u, err := store.GetUnit(cr.ID, name)
	if err != nil {
		logger.L().Error("unit not found in run", zap.String("run_id", cr.ID), zap.String("unit", name), zap.Error(err))
		return fmt.Errorf("unit '%s' not found in run '%s'", name, cr.ID)
	}

	fmt.Printf("=== Unit '%s' in Run '%s' ===\n\n", u.Name, cr.ID)
	fmt.Printf("Source: %s\n", u.SourceFile)
	fmt.Printf("Size:   %s (%d bytes)\n", humanize.Bytes(uint64(u.Size)), u.Size)
	fmt.Printf("Digest: %s\n", u.Digest)
	if u.ExportFile.Valid {
		fmt.Printf("Export: %s\n", u.ExportFile.String)
	} else {
		fmt.Println("Export: (kept in memory)")
	}

	logger.L().Info("displayed unit", zap.String("run_id", cr.ID), zap.String("unit", name))
	return nil
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

// printRunJSON outputs a run with its units in JSON format.
func printRunJSON(store *run.Store, runID string) error {
	cr, err := store.Load(runID)
	if err != nil {
		return err
	}
	units, err := store.LoadUnits(runID)
	if err != nil {
		return err
	}

	data, err := run.MarshalRun(cr, units)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return err
	}
	fmt.Println(out.String())
	return nil
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output in JSON format")
}
