// Package graph discovers every module reachable from an entry file and
// assigns each one a dense integer id in breadth-first order.
package graph

import (
	"fmt"
	"slices"

	"github.com/fluxbase-eu/fluxpack/internal/asset"
	"github.com/fluxbase-eu/fluxpack/internal/resolver"
)

// Graph is the ordered list of assets of one build. Asset i has id i and the
// entry is asset 0. A Graph is read-only once built.
type Graph struct {
	assets []*asset.Asset
	byPath map[resolver.AbsolutePath]int
}

// Edge is a derived import edge, used for display
type Edge struct {
	From      int    `json:"from" yaml:"from"`
	To        int    `json:"to" yaml:"to"`
	Specifier string `json:"specifier" yaml:"specifier"`
}

func newGraph(assets []*asset.Asset) *Graph {
	byPath := make(map[resolver.AbsolutePath]int, len(assets))
	for _, a := range assets {
		byPath[a.Path] = a.ID
	}
	return &Graph{assets: assets, byPath: byPath}
}

// Len returns the number of assets
func (g *Graph) Len() int {
	return len(g.assets)
}

// Assets returns the assets in id order
func (g *Graph) Assets() []*asset.Asset {
	return slices.Clone(g.assets)
}

// Entry returns the entry asset
func (g *Graph) Entry() *asset.Asset {
	if len(g.assets) == 0 {
		return nil
	}
	return g.assets[0]
}

// Asset returns the asset with the given id
func (g *Graph) Asset(id int) (*asset.Asset, bool) {
	if id < 0 || id >= len(g.assets) {
		return nil, false
	}
	return g.assets[id], true
}

// ByPath returns the asset for a file
func (g *Graph) ByPath(p resolver.AbsolutePath) (*asset.Asset, bool) {
	id, ok := g.byPath[p]
	if !ok {
		return nil, false
	}
	return g.assets[id], true
}

// Edges lists one edge per import site, in id then source order
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, a := range g.assets {
		for _, dep := range a.Dependencies {
			edges = append(edges, Edge{From: a.ID, To: a.SpecifierToID[dep.Specifier], Specifier: dep.Specifier})
		}
	}
	return edges
}

// TotalSize returns the summed source size of all assets
func (g *Graph) TotalSize() int {
	total := 0
	for _, a := range g.assets {
		total += a.Size()
	}
	return total
}

// Validate checks the graph invariants: ids are dense and match positions,
// paths are unique, and every mapping entry points at the asset its
// specifier resolves to.
func (g *Graph) Validate() error {
	seen := make(map[resolver.AbsolutePath]int, len(g.assets))
	for i, a := range g.assets {
		if a.ID != i {
			return fmt.Errorf("asset %s has id %d at position %d", a.Path, a.ID, i)
		}
		if prev, dup := seen[a.Path]; dup {
			return fmt.Errorf("assets %d and %d share path %s", prev, i, a.Path)
		}
		seen[a.Path] = i
	}

	for _, a := range g.assets {
		specs := make(map[string]struct{}, len(a.Dependencies))
		for _, dep := range a.Dependencies {
			specs[dep.Specifier] = struct{}{}

			id, ok := a.SpecifierToID[dep.Specifier]
			if !ok {
				return fmt.Errorf("asset %d: specifier %q has no mapping", a.ID, dep.Specifier)
			}
			target, err := resolver.Resolve(a.Path, dep.Specifier)
			if err != nil {
				return fmt.Errorf("asset %d: %w", a.ID, err)
			}
			mapped, ok := g.Asset(id)
			if !ok {
				return fmt.Errorf("asset %d: specifier %q maps to unknown id %d", a.ID, dep.Specifier, id)
			}
			if mapped.Path != target {
				return fmt.Errorf("asset %d: specifier %q maps to %s, resolves to %s", a.ID, dep.Specifier, mapped.Path, target)
			}
		}
		if len(specs) != len(a.SpecifierToID) {
			return fmt.Errorf("asset %d: mapping has %d entries for %d specifiers", a.ID, len(a.SpecifierToID), len(specs))
		}
	}
	return nil
}
