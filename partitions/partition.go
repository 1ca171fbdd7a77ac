package partitions

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Key is a sorted, deduplicated set of subdomain or boundary identifiers
type Key []int

// NewKey sorts and deduplicates ids
func NewKey(ids ...int) Key {
	k := append(Key(nil), ids...)
	sort.Ints(k)
	out := k[:0]
	for i, id := range k {
		if i == 0 || id != k[i-1] {
			out = append(out, id)
		}
	}
	return out
}

// ParseKey reads a comma separated identifier list such as "1, 3,2"
func ParseKey(s string) (Key, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty identifier list %q", s)
	}
	ids := make([]int, len(fields))
	for i, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("identifier list %q: %w", s, err)
		}
		ids[i] = id
	}
	return NewKey(ids...), nil
}

// Contains reports whether id is in the key
func (k Key) Contains(id int) bool {
	i := sort.SearchInts(k, id)
	return i < len(k) && k[i] == id
}

func (k Key) Equal(o Key) bool {
	if len(k) != len(o) {
		return false
	}
	for i := range k {
		if k[i] != o[i] {
			return false
		}
	}
	return true
}

func (k Key) String() string {
	parts := make([]string, len(k))
	for i, id := range k {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// Partition is the set of elements whose attribute belongs to Key
type Partition struct {
	// Position of the key in registration order
	ID  int
	Key Key

	// Element membership
	Elements    []int // Global element indices in this partition
	NumElements int
}

// Layout assigns the elements of a mesh to attribute partitions. Partitions
// may overlap; EToP records the last registered partition containing each
// element.
type Layout struct {
	Partitions []Partition

	TotalElements int
	NumPartitions int

	// EToP is the winning partition of each element, -1 when uncovered
	EToP []int
}

// NewLayout builds the layout of elements with the given attributes over
// keys in registration order
func NewLayout(attrs []int, keys []Key) *Layout {
	layout := &Layout{
		Partitions:    make([]Partition, len(keys)),
		TotalElements: len(attrs),
		NumPartitions: len(keys),
		EToP:          make([]int, len(attrs)),
	}
	for p, key := range keys {
		layout.Partitions[p] = Partition{ID: p, Key: key, Elements: make([]int, 0)}
	}
	for elem, attr := range attrs {
		layout.EToP[elem] = -1
		for p := range layout.Partitions {
			part := &layout.Partitions[p]
			if !part.Key.Contains(attr) {
				continue
			}
			part.Elements = append(part.Elements, elem)
			part.NumElements++
			layout.EToP[elem] = p
		}
	}
	return layout
}

// GetPartition returns the winning partition of element k
func (l *Layout) GetPartition(elementID int) int {
	if elementID < 0 || elementID >= len(l.EToP) {
		return -1
	}
	return l.EToP[elementID]
}

// Uncovered lists the elements outside every partition
func (l *Layout) Uncovered() []int {
	var out []int
	for elem, p := range l.EToP {
		if p < 0 {
			out = append(out, elem)
		}
	}
	return out
}

// Overlapping lists the elements claimed by more than one partition
func (l *Layout) Overlapping() []int {
	count := make([]int, l.TotalElements)
	for _, p := range l.Partitions {
		for _, elem := range p.Elements {
			count[elem]++
		}
	}
	var out []int
	for elem, c := range count {
		if c > 1 {
			out = append(out, elem)
		}
	}
	return out
}

// ValidateLayout checks partition consistency
func (l *Layout) ValidateLayout() error {
	if len(l.Partitions) != l.NumPartitions {
		return fmt.Errorf("%d partitions, NumPartitions %d", len(l.Partitions), l.NumPartitions)
	}
	if len(l.EToP) != l.TotalElements {
		return fmt.Errorf("EToP covers %d elements, TotalElements %d", len(l.EToP), l.TotalElements)
	}
	for i, p := range l.Partitions {
		if p.NumElements != len(p.Elements) {
			return fmt.Errorf("partition %d: NumElements %d != %d members",
				p.ID, p.NumElements, len(p.Elements))
		}
		for j := 0; j < i; j++ {
			if l.Partitions[j].Key.Equal(p.Key) {
				return fmt.Errorf("partitions %d and %d share key [%v]", j, i, p.Key)
			}
		}
	}
	for elem, p := range l.EToP {
		if p < -1 || p >= l.NumPartitions {
			return fmt.Errorf("element %d: partition %d out of range", elem, p)
		}
	}
	return nil
}
