package nodal

import "sort"

// Edge is a vertex pair with A < B
type Edge struct {
	A, B int
}

// EdgeDetect returns the open wireframe of a set of polygons: every vertex
// pair of every entity is toggled, so pairs shared by an even number of
// entities cancel. The result is sorted.
func EdgeDetect(entities [][]int) []Edge {
	store := make(map[Edge]bool)
	toggle := func(a, b int) {
		if b < a {
			a, b = b, a
		}
		e := Edge{A: a, B: b}
		if store[e] {
			delete(store, e)
			return
		}
		store[e] = true
	}
	for _, iv := range entities {
		for i := 0; i < len(iv); i++ {
			for j := i + 1; j < len(iv); j++ {
				toggle(iv[i], iv[j])
			}
		}
	}
	edges := make([]Edge, 0, len(store))
	for e := range store {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
	return edges
}

// EdgeIndices flattens edges into consecutive (A, B) index pairs
func EdgeIndices(edges []Edge) []int {
	idx := make([]int, 0, 2*len(edges))
	for _, e := range edges {
		idx = append(idx, e.A, e.B)
	}
	return idx
}
