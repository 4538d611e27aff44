// Package swc reads, validates and canonicalizes SWC morphology records.
//
// SWC is the de facto interchange format for reconstructed neuron
// morphologies: one node per line, each holding an id, a structure kind, a
// 3D position, a radius and a parent reference. Files in the wild are
// frequently unsorted, duplicated or hold more than one tree, so ingestion
// normalizes them into a canonical single-tree sequence with dense
// zero-based ids before anything downstream sees them.
package swc

import "fmt"

// Kind is the SWC structure identifier of a record.
type Kind int

const (
	KindUndefined Kind = iota
	KindSoma
	KindAxon
	KindDendrite
	KindApicalDendrite
	KindForkPoint
	KindEndPoint
	KindCustom
)

var kindNames = map[Kind]string{
	KindUndefined:      "undefined",
	KindSoma:           "soma",
	KindAxon:           "axon",
	KindDendrite:       "dendrite",
	KindApicalDendrite: "apical-dendrite",
	KindForkPoint:      "fork-point",
	KindEndPoint:       "end-point",
	KindCustom:         "custom",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// NoParent marks a record with no parent, i.e. a tree root.
const NoParent = -1

// Record is one SWC node with zero-based ids. Positions and radii are µm.
type Record struct {
	ID      int
	Kind    Kind
	X, Y, Z float64
	Radius  float64
	Parent  int
}

// StructureError reports a record that violates the SWC structural rules.
type StructureError struct {
	ID     int
	Reason string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("swc: record %d: %s", e.ID, e.Reason)
}

// Validate checks the structural validity of a single record: the kind must
// be a known code, ids must be non-negative, the parent must be NoParent or
// a strictly smaller id, and the radius must be non-negative.
func (r Record) Validate() error {
	if r.Kind < KindUndefined || r.Kind > KindCustom {
		return &StructureError{ID: r.ID, Reason: fmt.Sprintf("unknown kind %d", int(r.Kind))}
	}
	if r.ID < 0 {
		return &StructureError{ID: r.ID, Reason: "negative id"}
	}
	if r.Parent < NoParent {
		return &StructureError{ID: r.ID, Reason: fmt.Sprintf("parent %d < -1", r.Parent)}
	}
	if r.Parent >= r.ID {
		return &StructureError{ID: r.ID, Reason: fmt.Sprintf("parent %d not before record", r.Parent)}
	}
	if r.Radius < 0 {
		return &StructureError{ID: r.ID, Reason: fmt.Sprintf("negative radius %g", r.Radius)}
	}
	return nil
}
