package memcompiler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmcc0nn3ll/test/internal/logger"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"golang.org/x/tools/txtar"
)

// Fixture formats, selected by file extension.
const (
	FormatTOML  = "toml"
	FormatTxtar = "txtar"
)

// FixtureExts lists the recognised fixture file extensions.
var FixtureExts = []string{".toml", ".txtar"}

// Fixture is a named set of units compiled together, optionally pinned to a
// language version and architecture.
type Fixture struct {
	Name   string  `json:"name"`
	Source string  `json:"source,omitempty"`
	Target string  `json:"target,omitempty"`
	Units  []*Unit `json:"units"`
}

// rawFixture is the TOML representation of a fixture.
type rawFixture struct {
	Name   string `toml:"name"`
	Source string `toml:"go"`
	Target string `toml:"arch"`
	Units  []struct {
		Name   string `toml:"name"`
		Source string `toml:"source"`
	} `toml:"unit"`
}

// LoadFixture reads and validates a fixture file. The format follows the
// file extension; a fixture without a name is named after its file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.L().Error("failed to read fixture file", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("failed to read fixture file %s: %w", path, err)
	}

	ext := filepath.Ext(path)
	name := strings.TrimSuffix(filepath.Base(path), ext)
	fx, err := ParseFixture(name, data, strings.TrimPrefix(ext, "."))
	if err != nil {
		logger.L().Error("failed to load fixture", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	logger.L().Info("fixture loaded", zap.String("fixture", fx.Name), zap.Int("units", len(fx.Units)))
	return fx, nil
}

// ParseFixture decodes fixture data in the given format and validates it.
// name is used when the data does not name the fixture itself.
func ParseFixture(name string, data []byte, format string) (*Fixture, error) {
	var (
		fx  *Fixture
		err error
	)
	switch format {
	case FormatTOML:
		fx, err = parseTOML(data)
	case FormatTxtar:
		fx, err = parseTxtar(data)
	default:
		return nil, fmt.Errorf("unknown fixture format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if fx.Name == "" {
		fx.Name = name
	}

	if err := fx.Validate(); err != nil {
		return nil, fmt.Errorf("fixture validation failed: %w", err)
	}
	return fx, nil
}

func parseTOML(data []byte) (*Fixture, error) {
	var raw rawFixture
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal TOML: %w", err)
	}

	fx := &Fixture{Name: raw.Name, Source: raw.Source, Target: raw.Target}
	for _, u := range raw.Units {
		fx.Units = append(fx.Units, NewUnit(u.Name, u.Source))
	}
	return fx, nil
}

// parseTxtar reads an archive whose comment holds "key: value" settings
// (name, go, arch) and whose files are units, "pkg/path.go" naming unit
// "pkg/path".
func parseTxtar(data []byte) (*Fixture, error) {
	ar := txtar.Parse(data)

	fx := &Fixture{}
	for _, line := range strings.Split(string(ar.Comment), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "name":
			fx.Name = value
		case "go":
			fx.Source = value
		case "arch":
			fx.Target = value
		}
	}

	for _, f := range ar.Files {
		if !strings.HasSuffix(f.Name, SourceExt) {
			return nil, fmt.Errorf("archive file %s is not a %s file", f.Name, SourceExt)
		}
		fx.Units = append(fx.Units, NewUnit(strings.TrimSuffix(f.Name, SourceExt), string(f.Data)))
	}
	return fx, nil
}

// Validate checks the unit names and that the units form an acyclic import
// graph. Sources are only parsed for their imports; type errors are left to
// Compile.
func (f *Fixture) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("fixture name is required")
	}
	for _, u := range f.Units {
		if err := u.Validate(); err != nil {
			return err
		}
	}
	g, err := f.graph()
	if err != nil {
		return err
	}
	_, err = g.order()
	return err
}

// Compiler returns a compiler configured for the fixture's version and
// architecture.
func (f *Fixture) Compiler() *Compiler {
	return New().SetSourceTarget(f.Source, f.Target)
}

// Compile compiles all units of the fixture.
func (f *Fixture) Compile() ([]*Unit, error) {
	return f.Compiler().Compile(f.Units)
}

// Order returns unit names in compilation order.
func (f *Fixture) Order() ([]string, error) {
	g, err := f.graph()
	if err != nil {
		return nil, err
	}
	units, err := g.order()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(units))
	for i, u := range units {
		names[i] = u.Name
	}
	return names, nil
}

// Imports returns, for every unit, the other units it imports.
func (f *Fixture) Imports() (map[string][]string, error) {
	g, err := f.graph()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(f.Units))
	for _, u := range f.Units {
		deps := append([]string{}, g.deps[u.Name]...)
		sort.Strings(deps)
		out[u.Name] = deps
	}
	return out, nil
}

// RenderASCII draws the import tree of the fixture.
func (f *Fixture) RenderASCII() (string, error) {
	g, err := f.graph()
	if err != nil {
		return "", err
	}
	return g.renderASCII(), nil
}

// RenderDOT writes the import graph in Graphviz format.
func (f *Fixture) RenderDOT() (string, error) {
	imports, err := f.Imports()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", f.Name)
	for _, u := range f.Units {
		fmt.Fprintf(&b, "  %q;\n", u.Name)
		for _, dep := range imports[u.Name] {
			fmt.Fprintf(&b, "  %q -> %q;\n", u.Name, dep)
		}
	}
	b.WriteString("}\n")
	return b.String(), nil
}

// Hash returns a SHA-256 digest of the fixture contents that does not depend
// on unit order.
func (f *Fixture) Hash() (string, error) {
	type unitSnapshot struct {
		Name   string `json:"name"`
		Source string `json:"source"`
	}

	type fixtureSnapshot struct {
		Name   string         `json:"name"`
		Source string         `json:"source"`
		Target string         `json:"target"`
		Units  []unitSnapshot `json:"units"`
	}

	units := make([]unitSnapshot, 0, len(f.Units))
	for _, u := range f.Units {
		units = append(units, unitSnapshot{Name: u.Name, Source: u.Source})
	}
	sort.Slice(units, func(i, j int) bool {
		return units[i].Name < units[j].Name
	})

	data, err := json.Marshal(fixtureSnapshot{
		Name:   f.Name,
		Source: f.Source,
		Target: f.Target,
		Units:  units,
	})
	if err != nil {
		return "", err
	}

	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), nil
}

// graph parses only the import clauses of each unit.
func (f *Fixture) graph() (*graph, error) {
	fset := token.NewFileSet()
	deps := make(map[string][]string, len(f.Units))
	for _, u := range f.Units {
		file, err := parser.ParseFile(fset, u.SourceFilename(), u.Source, parser.ImportsOnly)
		if err != nil {
			return nil, fmt.Errorf("failed to parse unit %s: %w", u.Name, err)
		}
		deps[u.Name] = imports(file)
	}
	return newGraph(f.Units, func(u *Unit) []string { return deps[u.Name] })
}

// FindFixture resolves name to a fixture file: name itself when it exists,
// otherwise name with each known extension inside dir.
func FindFixture(dir, name string) (string, error) {
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		return name, nil
	}
	for _, ext := range FixtureExts {
		p := filepath.Join(dir, strings.TrimSuffix(name, ext)+ext)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("fixture %s not found in %s: %w", name, dir, os.ErrNotExist)
}

// ListFixtures returns the fixture files in dir sorted by name.
func ListFixtures(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !isFixtureFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// ValidateAll loads every fixture in dir and reports how many failed.
func ValidateAll(dir string) error {
	paths, err := ListFixtures(dir)
	if err != nil {
		logger.L().Error("failed to read fixtures directory", zap.String("dir", dir), zap.Error(err))
		return err
	}

	var invalid int
	for _, p := range paths {
		if _, err := LoadFixture(p); err != nil {
			logger.L().Error("invalid fixture", zap.String("path", p), zap.Error(err))
			invalid++
		}
	}
	if invalid > 0 {
		return fmt.Errorf("validation failed: %d fixture(s) invalid", invalid)
	}

	logger.L().Info("all fixtures validated successfully", zap.Int("count", len(paths)))
	return nil
}

func isFixtureFile(name string) bool {
	for _, ext := range FixtureExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
