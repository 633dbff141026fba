package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/jmcc0nn3ll/test/internal/config"
	"github.com/jmcc0nn3ll/test/internal/logger"
	"github.com/jmcc0nn3ll/test/memcompiler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	validateJSON    bool
	validateCompile bool
)

// validateResult holds the result of validating a single fixture.
type validateResult struct {
	Name  string `json:"name"`
	Units int    `json:"units"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// validateCmd checks unit fixtures for well-formed unit names and an acyclic
// import graph, optionally type-checking them as well.
var validateCmd = &cobra.Command{
	Use:   "validate [fixture]",
	Short: "Validate unit fixtures",
	Long:  "Validate all fixtures or a specific fixture in the test resources directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return validateSingleFixture(args[0])
		}

		return validateAllFixtures()
	},
}

// validateFixture loads the fixture at path and, with --compile, compiles it.
func validateFixture(path string) (validateResult, error) {
	result := validateResult{Name: fixtureName(path)}

	fx, err := memcompiler.LoadFixture(path)
	if err == nil {
		result.Name = fx.Name
		result.Units = len(fx.Units)
		if validateCompile {
			_, err = fx.Compile()
		}
	}
	if err != nil {
		result.Error = err.Error()
		return result, err
	}

	result.Valid = true
	return result, nil
}

// validateSingleFixture validates a specific fixture.
func validateSingleFixture(name string) error {
	path, err := memcompiler.FindFixture(config.C.ResourcesDir(), name)
	if err != nil {
		logger.L().Error("fixture not found", zap.String("fixture", name), zap.Error(err))
		return err
	}

	result, err := validateFixture(path)
	if validateJSON {
		if jerr := printValidateJSON([]validateResult{result}); jerr != nil {
			return jerr
		}
		return err
	}

	if err != nil {
		logger.L().Error("fixture validation failed", zap.String("fixture", name), zap.Error(err))
		fmt.Printf("✗ %s: %v\n", result.Name, err)
		return err
	}

	logger.L().Info("fixture validation successful", zap.String("fixture", result.Name), zap.Int("units", result.Units))
	fmt.Printf("✓ %s: valid (%d units)\n", result.Name, result.Units)
	return nil
}

// validateAllFixtures validates all fixtures in the resources directory.
func validateAllFixtures() error {
	dir := config.C.ResourcesDir()
	paths, err := memcompiler.ListFixtures(dir)
	if err != nil {
		logger.L().Error("failed to read resources directory", zap.String("directory", dir), zap.Error(err))
		return fmt.Errorf("failed to read resources directory: %w", err)
	}

	var results []validateResult
	var failedCount int

	for _, path := range paths {
		result, err := validateFixture(path)
		if err != nil {
			logger.L().Warn("fixture validation failed", zap.String("path", path), zap.Error(err))
			failedCount++
		}
		results = append(results, result)
	}

	if validateJSON {
		if err := printValidateJSON(results); err != nil {
			return err
		}
		if failedCount > 0 {
			return fmt.Errorf("%d fixture(s) failed validation", failedCount)
		}
		return nil
	}

	return printValidateTable(results, failedCount)
}

// printValidateTable displays validation results in table format.
func printValidateTable(results []validateResult, failedCount int) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "FIXTURE\tUNITS\tSTATUS\tERROR\n")
	fmt.Fprintf(w, "-------\t-----\t------\t-----\n")

	for _, r := range results {
		status := "✓ valid"
		errMsg := "-"

		if !r.Valid {
			status = "✗ invalid"
			errMsg = truncateError(r.Error, 50)
		}

		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.Name, r.Units, status, errMsg)
	}

	w.Flush()

	fmt.Printf("\n%d/%d fixtures valid\n", len(results)-failedCount, len(results))

	if failedCount > 0 {
		logger.L().Error("validation failed", zap.Int("failed_count", failedCount), zap.Int("total_count", len(results)))
		return fmt.Errorf("%d fixture(s) failed validation", failedCount)
	}

	logger.L().Info("all fixtures validated successfully", zap.Int("count", len(results)))
	return nil
}

// printValidateJSON outputs validation results in JSON format.
func printValidateJSON(results []validateResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

// truncateError truncates error messages to a maximum length.
func truncateError(msg string, maxLen int) string {
	msg, _, _ = strings.Cut(msg, "\n")
	if len(msg) > maxLen {
		return msg[:maxLen-3] + "..."
	}
	return msg
}

// fixtureName returns the file name of path without its extension.
func fixtureName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output in JSON format")
	validateCmd.Flags().BoolVar(&validateCompile, "compile", false, "Also type-check the units")
}
