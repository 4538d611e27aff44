package morph

import (
	"fmt"
	"math"
)

// Point is a morphology sample: a 3D position with a cable radius, in µm.
type Point struct {
	X, Y, Z float64
	Radius  float64
}

func distance(a, b Point) float64 {
	dx, dy, dz := b.X-a.X, b.Y-a.Y, b.Z-a.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// pwSegment is one linear piece of a branch, spanning normalized positions
// [p0, p1] with endpoint samples a and b.
type pwSegment struct {
	p0, p1 float64
	a, b   Point
}

// Embedding is a piecewise-linear embedding of a branch tree in space:
// each branch maps relative positions in [0,1] to interpolated positions
// and radii. Proximal ends of non-root branches attach to the distal node
// of the parent branch, so branch geometry is continuous across forks.
type Embedding struct {
	segs    [][]pwSegment
	lengths []float64
}

// NewEmbedding builds the embedding of tree where points[i] is the sample
// for node id i.
func NewEmbedding(tree *Tree, points []Point) (*Embedding, error) {
	if len(points) != tree.NumNodes() {
		return nil, fmt.Errorf("morph: %d points for %d nodes", len(points), tree.NumNodes())
	}

	e := &Embedding{
		segs:    make([][]pwSegment, tree.NumBranches()),
		lengths: make([]float64, tree.NumBranches()),
	}

	for bid := range tree.branches {
		samples := e.branchSamples(tree, bid, points)

		// Cumulative arc length along the branch, then normalized to [0,1].
		pos := make([]float64, len(samples))
		for i := 1; i < len(samples); i++ {
			pos[i] = pos[i-1] + distance(samples[i-1], samples[i])
		}
		length := pos[len(pos)-1]
		e.lengths[bid] = length

		if length == 0 {
			// Zero-length branch: constant interpolation at its sole point.
			p := samples[0]
			e.segs[bid] = []pwSegment{{p0: 0, p1: 1, a: p, b: p}}
			continue
		}

		for i := range pos {
			pos[i] /= length
		}
		for i := 1; i < len(samples); i++ {
			if pos[i-1] == pos[i] {
				continue
			}
			e.segs[bid] = append(e.segs[bid], pwSegment{
				p0: pos[i-1], p1: pos[i],
				a: samples[i-1], b: samples[i],
			})
		}
	}

	return e, nil
}

// branchSamples collects the sample points spanned by branch bid, prefixed
// with the distal node of the parent branch for non-root branches.
func (e *Embedding) branchSamples(tree *Tree, bid int, points []Point) []Point {
	br := tree.branches[bid]
	samples := make([]Point, 0, len(br.nodes)+1)
	if bid != 0 {
		parent := tree.branches[br.parent]
		samples = append(samples, points[parent.nodes[len(parent.nodes)-1]])
	}
	for _, n := range br.nodes {
		samples = append(samples, points[n])
	}
	return samples
}

// BranchLength returns the arc length of branch b in µm.
func (e *Embedding) BranchLength(b int) (float64, error) {
	if b < 0 || b >= len(e.lengths) {
		return 0, fmt.Errorf("morph: branch index %d out of range [0,%d)", b, len(e.lengths))
	}
	return e.lengths[b], nil
}

// At interpolates the position and radius at relative position pos in
// [0, 1] along branch b.
func (e *Embedding) At(b int, pos float64) (Point, error) {
	if b < 0 || b >= len(e.segs) {
		return Point{}, fmt.Errorf("morph: branch index %d out of range [0,%d)", b, len(e.segs))
	}
	if pos < 0 || pos > 1 {
		return Point{}, fmt.Errorf("morph: relative position %g outside [0,1]", pos)
	}

	segs := e.segs[b]
	// Binary search is overkill: branches rarely exceed a few dozen pieces.
	seg := segs[len(segs)-1]
	for _, s := range segs {
		if pos <= s.p1 {
			seg = s
			break
		}
	}

	if seg.p0 == seg.p1 {
		return seg.a, nil
	}
	u := (pos - seg.p0) / (seg.p1 - seg.p0)
	return Point{
		X:      seg.a.X + u*(seg.b.X-seg.a.X),
		Y:      seg.a.Y + u*(seg.b.Y-seg.a.Y),
		Z:      seg.a.Z + u*(seg.b.Z-seg.a.Z),
		Radius: seg.a.Radius + u*(seg.b.Radius-seg.a.Radius),
	}, nil
}
