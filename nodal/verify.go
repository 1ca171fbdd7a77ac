package nodal

import "fmt"

// Verify checks index validity and weight conservation of the table
func (t *Table) Verify() error {
	nv := t.NumVertices()

	// Verify 1: inverse indices point back at the referenced vertices
	if len(t.Inverse) != len(t.Refs) {
		return fmt.Errorf("inverse covers %d entities, selection has %d", len(t.Inverse), len(t.Refs))
	}
	for i, r := range t.Refs {
		if len(t.Inverse[i]) != len(r) {
			return fmt.Errorf("entity %d: %d inverse indices for %d vertices", i, len(t.Inverse[i]), len(r))
		}
		for j, v := range r {
			idx := t.Inverse[i][j]
			if idx < 0 || idx >= nv || t.Vertices[idx] != v {
				return fmt.Errorf("entity %d slot %d: inverse index %d does not map to vertex %d", i, j, idx, v)
			}
		}
	}

	// Verify 2: element arrays are aligned and slot pairs are in bounds
	ne := len(t.ElementIDs)
	if len(t.Elements) != ne || len(t.Attributes) != ne || len(t.ElemVerts) != ne {
		return fmt.Errorf("element arrays misaligned: ids %d, elements %d, attributes %d, pairs %d",
			ne, len(t.Elements), len(t.Attributes), len(t.ElemVerts))
	}
	for k, pairs := range t.ElemVerts {
		if t.Elements[k] != Inactive && t.Elements[k] != t.ElementIDs[k] {
			return fmt.Errorf("element %d: active id %d != mesh id %d", k, t.Elements[k], t.ElementIDs[k])
		}
		for _, ev := range pairs {
			if ev.Index < 0 || ev.Index >= nv || ev.Slot < 0 {
				return fmt.Errorf("element %d: invalid slot pair (%d, %d)", t.ElementIDs[k], ev.Slot, ev.Index)
			}
		}
	}

	// Verify 3: conservation, weights equal the active contributions
	count := make([]float64, nv)
	for k, pairs := range t.ElemVerts {
		if t.Elements[k] == Inactive {
			continue
		}
		for _, ev := range pairs {
			count[ev.Index]++
		}
	}
	for i := range count {
		if count[i] != t.Weights[i] {
			return fmt.Errorf("vertex %d: weight %g != %g active contributions", t.Vertices[i], t.Weights[i], count[i])
		}
		if !t.masked && count[i] < 1 {
			return fmt.Errorf("vertex %d is referenced but no active element touches it", t.Vertices[i])
		}
	}
	return nil
}
