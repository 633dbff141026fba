package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/jmcc0nn3ll/test/internal/config"
	"github.com/jmcc0nn3ll/test/internal/executor"
	"github.com/jmcc0nn3ll/test/internal/logger"
	"github.com/jmcc0nn3ll/test/memcompiler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	compileDryRun bool
	compileJSON   bool
	compileOut    string
)

// unitPlan describes one unit in compilation order.
type unitPlan struct {
	Order   int      `json:"order"`
	Name    string   `json:"name"`
	Imports []string `json:"imports,omitempty"`
	Lines   int      `json:"lines"`
}

// compilePlan describes how a fixture would be compiled.
type compilePlan struct {
	Fixture string     `json:"fixture"`
	Path    string     `json:"path"`
	Source  string     `json:"source,omitempty"`
	Target  string     `json:"target"`
	Units   []unitPlan `json:"units"`
}

// compileCmd compiles a unit fixture in memory, handling interrupts (Ctrl+C),
// and records the run in the ledger.
var compileCmd = &cobra.Command{
	Use:   "compile <fixture>",
	Short: "Compile a unit fixture in memory",
	Long: `Compile all units of a fixture in memory and record the run.

The fixture is a file path or a name looked up in the test resources
directory (name.toml or name.txtar). With --out the export data of every unit
is also written below DIR/<run id>; DIR must lie inside the scratch area and
relative paths are resolved against it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fixtureName := args[0]

		fx, path, err := loadFixture(fixtureName)
		if err != nil {
			logger.L().Error("failed to load fixture", zap.String("fixture", fixtureName), zap.Error(err))
			return err
		}

		if compileDryRun {
			plan, err := planCompile(fx, path)
			if err != nil {
				logger.L().Error("failed to generate compile plan", zap.String("fixture", fixtureName), zap.Error(err))
				return fmt.Errorf("failed to generate compile plan: %w", err)
			}
			if compileJSON {
				return printPlanJSON(plan)
			}

			printPlan(plan)
			fmt.Println("\nNo units were compiled.")
			return nil
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

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		exec := executor.NewExecutor(store, currentScratch())
		if compileOut != "" {
			exec.OutputDir = outputDir(compileOut)
		}
		if compileJSON {
			exec.Out = nil
		}

		cr, err := exec.Run(ctx, fx, path)
		if err != nil {
			logger.L().Error("compile run failed", zap.String("fixture", fixtureName), zap.Error(err))
			if cr != nil && compileJSON {
				_ = printRunJSON(store, cr.ID)
			}
			return err
		}

		if compileJSON {
			return printRunJSON(store, cr.ID)
		}
		fmt.Printf("  %d unit(s), %s of export data\n", cr.Units, humanize.Bytes(uint64(cr.Bytes)))
		return nil
	},
}

// outputDir resolves a relative --out directory against the scratch area.
func outputDir(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(config.C.TestingDir(), dir)
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().BoolVar(&compileDryRun, "dry-run", false, "Print compile plan without compiling")
	compileCmd.Flags().BoolVar(&compileJSON, "json", false, "Output in JSON format")
	compileCmd.Flags().StringVar(&compileOut, "out", "", "Write export files below this directory (inside the scratch area)")
}

func planCompile(fx *memcompiler.Fixture, path string) (*compilePlan, error) {
	order, err := fx.Order()
	if err != nil {
		return nil, err
	}
	imports, err := fx.Imports()
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*memcompiler.Unit, len(fx.Units))
	for _, u := range fx.Units {
		byName[u.Name] = u
	}

	compiler := fx.Compiler()
	plan := &compilePlan{
		Fixture: fx.Name,
		Path:    path,
		Source:  compiler.Source(),
		Target:  compiler.Target(),
		Units:   []unitPlan{},
	}

	for i, name := range order {
		plan.Units = append(plan.Units, unitPlan{
			Order:   i + 1,
			Name:    name,
			Imports: imports[name],
			Lines:   countLines(byName[name].Source),
		})
	}
	return plan, nil
}

func countLines(s string) int {
	n := 0
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	if len(s) > 0 && s[len(s)-1] != '\n' {
		n++
	}
	return n
}

func printPlan(plan *compilePlan) {
	fmt.Print("========== DRY RUN MODE ==========\n\n")
	fmt.Printf("Compile Plan for Fixture: %s\n", plan.Fixture)
	fmt.Printf("  File:   %s\n", plan.Path)
	if plan.Source != "" {
		fmt.Printf("  Go:     %s\n", plan.Source)
	}
	fmt.Printf("  Arch:   %s\n", plan.Target)
	fmt.Println("--------------------------------------------------")
	for _, u := range plan.Units {
		fmt.Printf("Unit %d: %s\n", u.Order, u.Name)
		fmt.Printf("  Lines: %d\n", u.Lines)
		if len(u.Imports) > 0 {
			fmt.Printf("  Imports: %v\n", u.Imports)
		}
		fmt.Println("--------------------------------------------------")
	}
}

func printPlanJSON(plan *compilePlan) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(plan)
}
