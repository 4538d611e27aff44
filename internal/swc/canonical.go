package swc

import (
	"fmt"
	"sort"
)

// Canonicalize normalizes a record sequence into canonical form: duplicate
// ids are dropped (first occurrence wins), only the first tree is retained
// (everything from a second root onward is discarded), records are sorted by
// original id only when an out-of-order insertion was observed, and ids are
// renumbered densely from 0 with parent references rewritten through the
// renumbering map. Canonical input passes through unchanged, so the
// operation is idempotent.
func Canonicalize(records []Record) ([]Record, error) {
	seen := make(map[int]bool, len(records))
	out := make([]Record, 0, len(records))

	trees := 0
	lastID := -1
	needSort := false
	for _, r := range records {
		if r.Parent == NoParent {
			trees++
			if trees > 1 {
				break
			}
		}
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
		if !needSort && r.ID < lastID {
			needSort = true
		}
		lastID = r.ID
	}

	if needSort {
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	}

	// Dense renumbering. Parents renumber strictly before their children
	// because records are now in ascending id order.
	idmap := make(map[int]int)
	for i := range out {
		if out[i].ID != i {
			idmap[out[i].ID] = i
			out[i].ID = i
		}
		if p, ok := idmap[out[i].Parent]; ok {
			out[i].Parent = p
		}
		if err := out[i].Validate(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ParentIndex converts a canonical record sequence into the parent-index
// array consumed by the tree builder. The root maps to itself.
func ParentIndex(records []Record) ([]int, error) {
	pi := make([]int, len(records))
	for i, r := range records {
		if r.ID != i {
			return nil, fmt.Errorf("swc: records not canonical: record %d has id %d", i, r.ID)
		}
		switch {
		case r.Parent == NoParent:
			if i != 0 {
				return nil, fmt.Errorf("swc: records not canonical: root at position %d", i)
			}
			pi[i] = i
		case r.Parent >= 0 && r.Parent < i:
			pi[i] = r.Parent
		default:
			return nil, fmt.Errorf("swc: record %d: parent %d out of range", i, r.Parent)
		}
	}
	return pi, nil
}
