package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jmcc0nn3ll/test/internal/logger"
	"github.com/jmcc0nn3ll/test/memcompiler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	graphFormat string
	graphDetail bool
)

// graphCmd displays the import graph between the units of a fixture.
// Supports multiple output formats: ascii, dot (Graphviz), and json.
var graphCmd = &cobra.Command{
	Use:   "graph <fixture>",
	Short: "Display the unit import graph of a fixture",
	Long:  "Visualise the imports between the units of a fixture in various formats",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		fx, _, err := loadFixture(name)
		if err != nil {
			return fmt.Errorf("failed to load fixture %s: %w", name, err)
		}

		logger.L().Info("rendering fixture graph",
			zap.String("fixture", fx.Name),
			zap.String("format", graphFormat),
			zap.Int("units", len(fx.Units)),
		)

		switch graphFormat {
		case "ascii":
			return renderASCII(fx, graphDetail)
		case "dot":
			return renderDot(fx)
		case "json":
			return renderJSON(fx)
		default:
			return fmt.Errorf("unsupported format: %s (supported: ascii, dot, json)", graphFormat)
		}
	},
}

// renderASCII displays the import graph as an ASCII tree.
func renderASCII(fx *memcompiler.Fixture, detailed bool) error {
	tree, err := fx.RenderASCII()
	if err != nil {
		return err
	}
	fmt.Println(tree)

	if detailed {
		fmt.Println("--- Unit Details ---")
		order, err := fx.Order()
		if err != nil {
			return err
		}
		imports, err := fx.Imports()
		if err != nil {
			return err
		}

		for i, name := range order {
			fmt.Printf("\n[%d] %s\n", i+1, name)
			if deps := imports[name]; len(deps) > 0 {
				fmt.Printf("    Imports:  %v\n", deps)
			} else {
				fmt.Printf("    Imports:  none (leaf unit)\n")
			}
		}
	}

	return nil
}

// renderDot generates Graphviz DOT format for the fixture.
func renderDot(fx *memcompiler.Fixture) error {
	dot, err := fx.RenderDOT()
	if err != nil {
		return err
	}
	fmt.Print(dot)

	fmt.Fprintf(os.Stderr, "\nℹ Tip: Visualise with: dot -Tpng fixture.dot -o fixture.png\n")

	return nil
}

// renderJSON outputs the units in compilation order with their imports.
func renderJSON(fx *memcompiler.Fixture) error {
	type unitJSON struct {
		Name    string   `json:"name"`
		Imports []string `json:"imports,omitempty"`
	}

	type graphJSON struct {
		Name  string     `json:"name"`
		Units []unitJSON `json:"units"`
	}

	order, err := fx.Order()
	if err != nil {
		return err
	}
	imports, err := fx.Imports()
	if err != nil {
		return err
	}

	var units []unitJSON
	for _, name := range order {
		units = append(units, unitJSON{Name: name, Imports: imports[name]})
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(graphJSON{
		Name:  fx.Name,
		Units: units,
	})
}

func init() {
	rootCmd.AddCommand(graphCmd)

	graphCmd.Flags().StringVarP(&graphFormat, "format", "f", "ascii", "Output format: ascii, dot (Graphviz), or json")
	graphCmd.Flags().BoolVarP(&graphDetail, "detail", "d", false, "Show per-unit imports (ASCII only)")
}
