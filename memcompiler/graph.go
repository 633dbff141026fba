package memcompiler

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrImportCycle   = errors.New("import cycle between units")
	ErrDuplicateUnit = errors.New("duplicate unit")
	ErrNoUnits       = errors.New("no units defined")
)

// graph holds the import edges between units; edges to packages that are not
// units (the standard library) are dropped.
type graph struct {
	units   []*Unit
	index   map[string]int
	deps    map[string][]string
	parents map[string][]string
}

func newGraph(units []*Unit, importsOf func(*Unit) []string) (*graph, error) {
	if len(units) == 0 {
		return nil, ErrNoUnits
	}

	g := &graph{
		units:   units,
		index:   make(map[string]int, len(units)),
		deps:    make(map[string][]string, len(units)),
		parents: make(map[string][]string, len(units)),
	}
	for i, u := range units {
		if _, ok := g.index[u.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateUnit, u.Name)
		}
		g.index[u.Name] = i
	}

	for _, u := range units {
		seen := map[string]bool{}
		for _, p := range importsOf(u) {
			if _, ok := g.index[p]; !ok || seen[p] {
				continue
			}
			seen[p] = true
			g.deps[u.Name] = append(g.deps[u.Name], p)
			g.parents[p] = append(g.parents[p], u.Name)
		}
	}
	return g, nil
}

// order returns units so that every unit comes after the units it imports.
// Ties keep the input order.
func (g *graph) order() ([]*Unit, error) {
	inDegree := make(map[string]int, len(g.units))
	for _, u := range g.units {
		inDegree[u.Name] = len(g.deps[u.Name])
	}

	// Initialise queue with units importing no other unit
	queue := []string{}
	for _, u := range g.units {
		if inDegree[u.Name] == 0 {
			queue = append(queue, u.Name)
		}
	}

	result := make([]*Unit, 0, len(g.units))

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		result = append(result, g.units[g.index[n]])

		for _, parent := range g.parents[n] {
			inDegree[parent]--
			if inDegree[parent] == 0 {
				queue = append(queue, parent)
			}
		}
	}

	// If result doesn't include all units then a cycle exists
	if len(result) != len(g.units) {
		var stuck []string
		for _, u := range g.units {
			if inDegree[u.Name] > 0 {
				stuck = append(stuck, u.Name)
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrImportCycle, strings.Join(stuck, ", "))
	}

	return result, nil
}

// roots returns the units no other unit depends on, in input order.
func (g *graph) roots() []string {
	var roots []string
	for _, u := range g.units {
		if len(g.parents[u.Name]) == 0 {
			roots = append(roots, u.Name)
		}
	}
	return roots
}

// renderASCII draws each root unit with the units it imports below it.
func (g *graph) renderASCII() string {
	var b strings.Builder

	var render func(node string, prefix string, path map[string]bool)
	render = func(node string, prefix string, path map[string]bool) {
		b.WriteString(node + "\n")
		if path[node] {
			return
		}
		path[node] = true
		defer delete(path, node)

		kids := append([]string(nil), g.deps[node]...)
		sort.Strings(kids)
		for i, k := range kids {
			last := i == len(kids)-1
			edge := "├── "
			next := prefix + "│   "
			if last {
				edge = "└── "
				next = prefix + "    "
			}
			b.WriteString(prefix + edge)
			render(k, next, path)
		}
	}

	for _, root := range g.roots() {
		render(root, "", map[string]bool{})
	}

	return b.String()
}
