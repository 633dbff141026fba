// Package memcompiler compiles Go source units entirely in memory. Each unit
// is one package; its compiled export data is captured in a byte slice
// instead of an object file on disk.
package memcompiler

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strconv"

	"golang.org/x/mod/module"
	"golang.org/x/tools/go/gcexportdata"
)

const (
	SourceExt = ".go"
	ExportExt = ".export"
)

// Unit pairs a package import path with its source and, after compilation,
// its export data.
type Unit struct {
	Name   string `json:"name" toml:"name"`
	Source string `json:"source" toml:"source"`
	Export []byte `json:"-" toml:"-"`
}

// NewUnit returns a unit for the package name with the given source.
func NewUnit(name, source string) *Unit {
	return &Unit{Name: name, Source: source}
}

// SourceFilename returns the slash-separated file name of the unit source.
func (u *Unit) SourceFilename() string {
	return u.Name + SourceExt
}

// ExportFilename returns the slash-separated file name of the compiled unit.
func (u *Unit) ExportFilename() string {
	return u.Name + ExportExt
}

// Validate checks that the unit name is a well-formed import path.
func (u *Unit) Validate() error {
	if u.Name == "" {
		return fmt.Errorf("unit name is required")
	}
	if err := module.CheckImportPath(u.Name); err != nil {
		return fmt.Errorf("invalid unit name %q: %w", u.Name, err)
	}
	return nil
}

// Compiled reports whether the unit carries export data.
func (u *Unit) Compiled() bool {
	return len(u.Export) > 0
}

// Load decodes the export data of a compiled unit. Packages referenced by the
// unit are added to imports, which may be shared between calls.
func (u *Unit) Load(fset *token.FileSet, imports map[string]*types.Package) (*types.Package, error) {
	if !u.Compiled() {
		return nil, fmt.Errorf("unit %s has not been compiled", u.Name)
	}
	pkg, err := gcexportdata.Read(bytes.NewReader(u.Export), fset, imports, u.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to read export data of %s: %w", u.Name, err)
	}
	return pkg, nil
}

// imports returns the import paths of a parsed unit file.
func imports(f *ast.File) []string {
	var paths []string
	for _, spec := range f.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		paths = append(paths, p)
	}
	return paths
}
