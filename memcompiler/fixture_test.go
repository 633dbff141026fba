package memcompiler

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestLoadFixtureTOML tests loading a TOML fixture and compiling it.
func TestLoadFixtureTOML(t *testing.T) {
	fx, err := LoadFixture(filepath.Join("testdata", "pizza.toml"))
	if err != nil {
		t.Fatalf("LoadFixture failed: %v", err)
	}
	if fx.Name != "pizza" || fx.Source != "1.22" {
		t.Errorf("unexpected fixture header %s/%s", fx.Name, fx.Source)
	}
	if len(fx.Units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(fx.Units))
	}

	order, err := fx.Order()
	if err != nil {
		t.Fatalf("Order failed: %v", err)
	}
	if order[0] != "example.com/pizza/oven" || order[1] != "example.com/pizza/menu" {
		t.Errorf("unexpected order %v", order)
	}

	units, err := fx.Compile()
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	for _, u := range units {
		if !u.Compiled() {
			t.Errorf("expected %s to be compiled", u.Name)
		}
	}
}

// TestLoadFixtureTxtar tests loading a txtar fixture.
func TestLoadFixtureTxtar(t *testing.T) {
	fx, err := LoadFixture(filepath.Join("testdata", "breakfast.txtar"))
	if err != nil {
		t.Fatalf("LoadFixture failed: %v", err)
	}
	if fx.Name != "breakfast" || fx.Target != "arm64" {
		t.Errorf("unexpected fixture header %s/%s", fx.Name, fx.Target)
	}

	imports, err := fx.Imports()
	if err != nil {
		t.Fatalf("Imports failed: %v", err)
	}
	if got := imports["breakfast/plate"]; len(got) != 1 || got[0] != "breakfast/eggs" {
		t.Errorf("unexpected imports of plate: %v", got)
	}

	if _, err := fx.Compile(); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
}

// TestLoadFixtureCycle tests that cyclic fixtures fail validation.
func TestLoadFixtureCycle(t *testing.T) {
	_, err := LoadFixture(filepath.Join("testdata", "cycle.toml"))
	if !errors.Is(err, ErrImportCycle) {
		t.Fatalf("expected ErrImportCycle, got %v", err)
	}
}

// TestParseFixtureErrors tests malformed fixtures.
func TestParseFixtureErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format string
		want   error
	}{
		{"no units", `name = "empty"`, FormatTOML, ErrNoUnits},
		{"bad toml", `name = `, FormatTOML, nil},
		{"bad format", ``, "yaml", nil},
		{"non go file", "-- notes.txt --\nhello\n", FormatTxtar, nil},
		{"duplicate", "-- a.go --\npackage a\n-- a.go --\npackage a\n", FormatTxtar, ErrDuplicateUnit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixture("fixture", []byte(tt.data), tt.format)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestParseFixtureDefaultName tests that unnamed fixtures take the given name.
func TestParseFixtureDefaultName(t *testing.T) {
	fx, err := ParseFixture("lunch", []byte("-- lunch.go --\npackage lunch\n"), FormatTxtar)
	if err != nil {
		t.Fatalf("ParseFixture failed: %v", err)
	}
	if fx.Name != "lunch" {
		t.Errorf("expected name lunch, got %s", fx.Name)
	}
}

// TestFixtureHash tests that the hash ignores unit order but not content.
func TestFixtureHash(t *testing.T) {
	a := &Fixture{Name: "pizza", Units: []*Unit{NewUnit("a", "package a\n"), NewUnit("b", "package b\n")}}
	b := &Fixture{Name: "pizza", Units: []*Unit{NewUnit("b", "package b\n"), NewUnit("a", "package a\n")}}
	c := &Fixture{Name: "pizza", Units: []*Unit{NewUnit("a", "package a\n"), NewUnit("b", "package b // changed\n")}}

	ha, err := a.Hash()
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	hb, _ := b.Hash()
	hc, _ := c.Hash()

	if ha != hb {
		t.Error("expected hash to ignore unit order")
	}
	if ha == hc {
		t.Error("expected hash to change with unit source")
	}
	if len(ha) != 64 {
		t.Errorf("expected hex sha256, got %q", ha)
	}
}

// TestFixtureRender tests the ASCII and DOT renderings.
func TestFixtureRender(t *testing.T) {
	fx, err := LoadFixture(filepath.Join("testdata", "pizza.toml"))
	if err != nil {
		t.Fatalf("LoadFixture failed: %v", err)
	}

	ascii, err := fx.RenderASCII()
	if err != nil {
		t.Fatalf("RenderASCII failed: %v", err)
	}
	want := "example.com/pizza/menu\n└── example.com/pizza/oven\n"
	if ascii != want {
		t.Errorf("unexpected tree:\n%s\nwant:\n%s", ascii, want)
	}

	dot, err := fx.RenderDOT()
	if err != nil {
		t.Fatalf("RenderDOT failed: %v", err)
	}
	if !strings.Contains(dot, `"example.com/pizza/menu" -> "example.com/pizza/oven";`) {
		t.Errorf("expected edge in DOT output:\n%s", dot)
	}
}

// TestFindAndListFixtures tests fixture name resolution.
func TestFindAndListFixtures(t *testing.T) {
	p, err := FindFixture("testdata", "pizza")
	if err != nil {
		t.Fatalf("FindFixture failed: %v", err)
	}
	if p != filepath.Join("testdata", "pizza.toml") {
		t.Errorf("unexpected path %s", p)
	}

	if p, err = FindFixture("testdata", "breakfast.txtar"); err != nil || p != filepath.Join("testdata", "breakfast.txtar") {
		t.Errorf("unexpected result %s, %v", p, err)
	}
	if _, err := FindFixture("testdata", "dinner"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}

	paths, err := ListFixtures("testdata")
	if err != nil {
		t.Fatalf("ListFixtures failed: %v", err)
	}
	if len(paths) != 3 {
		t.Errorf("expected 3 fixtures, got %v", paths)
	}
}

// TestValidateAll tests that one bad fixture fails the directory.
func TestValidateAll(t *testing.T) {
	if err := ValidateAll("testdata"); err == nil {
		t.Error("expected cycle.toml to fail validation")
	}

	dir := t.TempDir()
	data, err := os.ReadFile(filepath.Join("testdata", "pizza.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pizza.toml"), data, 0644); err != nil {
		t.Fatal(err)
	}
	if err := ValidateAll(dir); err != nil {
		t.Errorf("ValidateAll failed: %v", err)
	}
}
