package memcompiler

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/scanner"
	"go/token"
	"go/types"
	"go/version"
	"runtime"
	"strings"

	"github.com/jmcc0nn3ll/test/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/tools/go/gcexportdata"
)

// ErrCompilationFailed is wrapped by every *CompileError.
var ErrCompilationFailed = errors.New("compilation failed")

// Diagnostic is a single syntax or type error reported for a unit.
type Diagnostic struct {
	Unit string `json:"unit"`
	Pos  string `json:"pos"`
	Msg  string `json:"msg"`
}

func (d Diagnostic) String() string {
	return d.Pos + ": " + d.Msg
}

// CompileError carries all diagnostics of a failed compilation.
type CompileError struct {
	Diagnostics []Diagnostic
}

func (e *CompileError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d error(s)", ErrCompilationFailed, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		b.WriteString("\n\t" + d.String())
	}
	return b.String()
}

func (e *CompileError) Unwrap() error {
	return ErrCompilationFailed
}

// Compiler type-checks units and captures their export data in memory. The
// zero value is not usable; call New.
type Compiler struct {
	source string // Go language version, "" = toolchain default
	target string // GOARCH used for type sizes
	err    error

	fset *token.FileSet
	std  types.Importer
}

// New returns a compiler for the running toolchain's language version and
// architecture.
func New() *Compiler {
	fset := token.NewFileSet()
	return &Compiler{
		target: runtime.GOARCH,
		fset:   fset,
		std:    importer.ForCompiler(fset, "source", nil),
	}
}

// SetSourceTarget selects the Go language version units are checked against
// (for example "go1.21" or "1.21") and the target architecture (for example
// "amd64"). An empty value keeps the current setting. Invalid values are
// reported by the next Compile.
func (c *Compiler) SetSourceTarget(source, target string) *Compiler {
	c.err = nil
	if source != "" {
		if !strings.HasPrefix(source, "go") {
			source = "go" + source
		}
		if !version.IsValid(source) {
			c.err = fmt.Errorf("invalid source version %q", source)
			return c
		}
		c.source = source
	}
	if target != "" {
		if types.SizesFor("gc", target) == nil {
			c.err = fmt.Errorf("unsupported target architecture %q", target)
			return c
		}
		c.target = target
	}
	return c
}

// Source returns the configured language version.
func (c *Compiler) Source() string {
	return c.source
}

// Target returns the configured architecture.
func (c *Compiler) Target() string {
	return c.target
}

// FileSet returns the file set positions of compiled and loaded units refer to.
func (c *Compiler) FileSet() *token.FileSet {
	return c.fset
}

// Compile type-checks all units together and fills in their Export field.
// Units may import each other and the standard library; nothing else is
// visible. The units are returned in input order.
func (c *Compiler) Compile(units []*Unit) ([]*Unit, error) {
	if c.err != nil {
		return nil, c.err
	}
	if len(units) == 0 {
		return nil, ErrNoUnits
	}

	var diags []Diagnostic
	files := make(map[string]*ast.File, len(units))
	owner := make(map[string]string, len(units))

	for _, u := range units {
		if err := u.Validate(); err != nil {
			return nil, err
		}
		if _, dup := owner[u.SourceFilename()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateUnit, u.Name)
		}
		owner[u.SourceFilename()] = u.Name

		f, err := parser.ParseFile(c.fset, u.SourceFilename(), u.Source, parser.SkipObjectResolution)
		if err != nil {
			diags = append(diags, syntaxDiagnostics(u.Name, err)...)
			continue
		}
		files[u.Name] = f
	}
	if len(diags) > 0 {
		return nil, c.failed(diags)
	}

	g, err := newGraph(units, func(u *Unit) []string { return imports(files[u.Name]) })
	if err != nil {
		return nil, err
	}
	order, err := g.order()
	if err != nil {
		return nil, err
	}

	checked := make(map[string]*types.Package, len(units))
	conf := types.Config{
		GoVersion: c.source,
		Sizes:     types.SizesFor("gc", c.target),
		Importer:  &unitImporter{units: checked, std: c.std},
		Error: func(err error) {
			var terr types.Error
			if !errors.As(err, &terr) {
				diags = append(diags, Diagnostic{Msg: err.Error()})
				return
			}
			pos := terr.Fset.Position(terr.Pos)
			diags = append(diags, Diagnostic{Unit: owner[pos.Filename], Pos: pos.String(), Msg: terr.Msg})
		},
	}

	for _, u := range order {
		// Errors are collected by conf.Error; a partially checked package is
		// still registered so dependents report their own errors.
		pkg, _ := conf.Check(u.Name, c.fset, []*ast.File{files[u.Name]}, nil)
		checked[u.Name] = pkg
	}
	if len(diags) > 0 {
		return nil, c.failed(diags)
	}

	for _, u := range order {
		var buf bytes.Buffer
		if err := gcexportdata.Write(&buf, c.fset, checked[u.Name]); err != nil {
			return nil, fmt.Errorf("failed to write export data of %s: %w", u.Name, err)
		}
		u.Export = buf.Bytes()
		logger.L().Debug("unit compiled", zap.String("unit", u.Name), zap.Int("bytes", len(u.Export)))
	}

	return units, nil
}

func (c *Compiler) failed(diags []Diagnostic) error {
	for _, d := range diags {
		logger.L().Error("compile error", zap.String("unit", d.Unit), zap.String("pos", d.Pos), zap.String("msg", d.Msg))
	}
	return &CompileError{Diagnostics: diags}
}

func syntaxDiagnostics(unit string, err error) []Diagnostic {
	var list scanner.ErrorList
	if !errors.As(err, &list) {
		return []Diagnostic{{Unit: unit, Msg: err.Error()}}
	}
	diags := make([]Diagnostic, 0, len(list))
	for _, e := range list {
		diags = append(diags, Diagnostic{Unit: unit, Pos: e.Pos.String(), Msg: e.Msg})
	}
	return diags
}

// unitImporter resolves imports against already checked units first and the
// standard library second.
type unitImporter struct {
	units map[string]*types.Package
	std   types.Importer
}

func (i *unitImporter) Import(path string) (*types.Package, error) {
	if pkg, ok := i.units[path]; ok {
		return pkg, nil
	}
	if !isStd(path) {
		return nil, fmt.Errorf("package %s is neither a unit nor part of the standard library", path)
	}
	return i.std.Import(path)
}

// isStd reports whether path looks like a standard library import path: the
// first element has no dot.
func isStd(path string) bool {
	first, _, _ := strings.Cut(path, "/")
	return !strings.Contains(first, ".")
}
