package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jmcc0nn3ll/test/internal/config"
	"github.com/jmcc0nn3ll/test/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var pathsJSON bool

// pathInfo is one resolved layout path.
type pathInfo struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Print the resolved project layout",
	Long:  "Print the base, target, scratch and test resources directories as resolved from config and environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := currentLayout()
		if err != nil {
			logger.L().Error("failed to resolve layout", zap.Error(err))
			return err
		}

		var paths []pathInfo
		for _, p := range []struct{ name, path string }{
			{"base", l.BaseDir()},
			{"target", l.TargetDir()},
			{"scratch", l.TargetTestingDir()},
			{"resources", l.TestResourcePath("")},
			{"database", config.C.Paths.Database},
			{"log", config.C.Paths.LogsFile},
		} {
			_, err := os.Stat(p.path)
			paths = append(paths, pathInfo{Name: p.name, Path: p.path, Exists: err == nil})
		}

		if pathsJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(paths)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "NAME\tPATH\tEXISTS\n")
		fmt.Fprintf(w, "----\t----\t------\n")
		for _, p := range paths {
			exists := "✗"
			if p.Exists {
				exists = "✓"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Path, exists)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(pathsCmd)

	pathsCmd.Flags().BoolVar(&pathsJSON, "json", false, "Output in JSON format")
}
