package morph

import (
	"math"
	"testing"
)

func approx(t *testing.T, got, want, tol float64, what string) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %g, want %g", what, got, want)
	}
}

func TestNewEmbedding_PointCountMismatch(t *testing.T) {
	tree := mustTree(t, []int{0, 0})
	if _, err := NewEmbedding(tree, []Point{{}}); err == nil {
		t.Error("expected error for point count mismatch")
	}
}

func TestEmbedding_StraightCable(t *testing.T) {
	// Root node, then a 10 µm chain along x with a radius taper 2 -> 1.
	tree := mustTree(t, []int{0, 0, 1})
	points := []Point{
		{X: 0, Radius: 2},
		{X: 5, Radius: 1.5},
		{X: 10, Radius: 1},
	}
	emb, err := NewEmbedding(tree, points)
	if err != nil {
		t.Fatalf("NewEmbedding: %v", err)
	}

	// Branch 0 holds only the root node and has zero extent.
	l0, err := emb.BranchLength(0)
	if err != nil {
		t.Fatalf("BranchLength(0): %v", err)
	}
	approx(t, l0, 0, 1e-12, "BranchLength(0)")

	// Branch 1 spans the parent's distal node through both chain nodes.
	l1, err := emb.BranchLength(1)
	if err != nil {
		t.Fatalf("BranchLength(1): %v", err)
	}
	approx(t, l1, 10, 1e-12, "BranchLength(1)")

	mid, err := emb.At(1, 0.5)
	if err != nil {
		t.Fatalf("At(1, 0.5): %v", err)
	}
	approx(t, mid.X, 5, 1e-12, "midpoint x")
	approx(t, mid.Radius, 1.5, 1e-12, "midpoint radius")

	q, err := emb.At(1, 0.75)
	if err != nil {
		t.Fatalf("At(1, 0.75): %v", err)
	}
	approx(t, q.X, 7.5, 1e-12, "three-quarter x")
	approx(t, q.Radius, 1.25, 1e-12, "three-quarter radius")
}

func TestEmbedding_ZeroLengthBranch(t *testing.T) {
	tree := mustTree(t, []int{0})
	points := []Point{{X: 1, Y: 2, Z: 3, Radius: 4}}
	emb, err := NewEmbedding(tree, points)
	if err != nil {
		t.Fatalf("NewEmbedding: %v", err)
	}
	for _, pos := range []float64{0, 0.5, 1} {
		p, err := emb.At(0, pos)
		if err != nil {
			t.Fatalf("At(0, %g): %v", pos, err)
		}
		if p != points[0] {
			t.Errorf("At(0, %g) = %+v, want %+v", pos, p, points[0])
		}
	}
}

func TestEmbedding_Endpoints(t *testing.T) {
	tree := mustTree(t, []int{0, 0, 1, 2})
	points := []Point{
		{X: 0, Radius: 1},
		{X: 0, Y: 3, Radius: 1},
		{X: 0, Y: 7, Radius: 1},
		{X: 0, Y: 12, Radius: 1},
	}
	emb, err := NewEmbedding(tree, points)
	if err != nil {
		t.Fatalf("NewEmbedding: %v", err)
	}

	start, err := emb.At(1, 0)
	if err != nil {
		t.Fatalf("At(1, 0): %v", err)
	}
	approx(t, start.Y, 0, 1e-12, "proximal y")

	end, err := emb.At(1, 1)
	if err != nil {
		t.Fatalf("At(1, 1): %v", err)
	}
	approx(t, end.Y, 12, 1e-12, "distal y")
}

func TestEmbedding_AtRangeErrors(t *testing.T) {
	tree := mustTree(t, []int{0, 0})
	points := []Point{{}, {X: 1}}
	emb, err := NewEmbedding(tree, points)
	if err != nil {
		t.Fatalf("NewEmbedding: %v", err)
	}
	if _, err := emb.At(5, 0.5); err == nil {
		t.Error("At(5, 0.5): expected branch range error")
	}
	if _, err := emb.At(1, -0.1); err == nil {
		t.Error("At(1, -0.1): expected position range error")
	}
	if _, err := emb.At(1, 1.1); err == nil {
		t.Error("At(1, 1.1): expected position range error")
	}
	if _, err := emb.BranchLength(-1); err == nil {
		t.Error("BranchLength(-1): expected range error")
	}
}
