// Package morph represents neuron morphologies as trees of unbranched
// cable sections ("branches") built from a flat parent-index array.
//
// Branch indices are dense and start at 0 (the root branch). They are not
// stable across Balance: re-rooting renumbers branches while node ids keep
// their meaning.
package morph

import "fmt"

// branch is a maximal unbranched run of morphology nodes.
// Branches are stored in a flat arena and refer to each other by index.
type branch struct {
	// nodes lists member node ids from proximal to distal.
	nodes []int

	// parent is the index of the parent branch. The root branch is its
	// own parent.
	parent int

	// children are the indices of branches attached to the distal node.
	children []int
}

// Tree is an immutable-after-construction branch decomposition of a neuron
// morphology. Build one with NewTree; Balance returns a re-rooted copy.
type Tree struct {
	branches   []branch
	parentIdx  []int // node-level parent index, as supplied (or normalized)
	nodeBranch []int // node id -> branch index
}

// NewTree builds a branch tree from a parent-index array where
// parent[i] <= i and parent[i] == i only for the root (index 0).
//
// An empty or single-entry array is the trivial single-compartment cell: it
// yields exactly one branch with no children.
func NewTree(parentIndex []int) (*Tree, error) {
	if len(parentIndex) <= 1 {
		return &Tree{
			branches:   []branch{{nodes: []int{0}, parent: 0}},
			parentIdx:  []int{0},
			nodeBranch: []int{0},
		}, nil
	}

	n := len(parentIndex)
	for i, p := range parentIndex {
		if i == 0 {
			if p != 0 {
				return nil, fmt.Errorf("morph: root entry parent_index[0] = %d, want 0", p)
			}
			continue
		}
		if p < 0 || p >= i {
			return nil, fmt.Errorf("morph: parent_index[%d] = %d violates parent < index", i, p)
		}
	}

	// Child lists in node-id order.
	children := make([][]int, n)
	for i := 1; i < n; i++ {
		p := parentIndex[i]
		children[p] = append(children[p], i)
	}

	t := &Tree{
		parentIdx:  append([]int(nil), parentIndex...),
		nodeBranch: make([]int, n),
	}

	// The root node is always a branch by itself. Every child of the root
	// and every child of a fork starts a new branch; a branch runs through
	// single-child nodes and terminates at a leaf or at a fork node
	// (the fork is included).
	t.branches = append(t.branches, branch{nodes: []int{0}, parent: 0})
	t.nodeBranch[0] = 0

	type startPoint struct {
		node         int
		parentBranch int
	}
	stack := make([]startPoint, 0, len(children[0]))
	for i := len(children[0]) - 1; i >= 0; i-- {
		stack = append(stack, startPoint{children[0][i], 0})
	}

	for len(stack) > 0 {
		sp := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		bid := len(t.branches)
		b := branch{parent: sp.parentBranch}

		node := sp.node
		for {
			b.nodes = append(b.nodes, node)
			t.nodeBranch[node] = bid
			if len(children[node]) != 1 {
				break
			}
			node = children[node][0]
		}

		t.branches = append(t.branches, b)
		t.branches[sp.parentBranch].children = append(t.branches[sp.parentBranch].children, bid)

		for i := len(children[node]) - 1; i >= 0; i-- {
			stack = append(stack, startPoint{children[node][i], bid})
		}
	}

	return t, nil
}

// NumNodes returns the number of morphology nodes in the tree.
func (t *Tree) NumNodes() int { return len(t.parentIdx) }

// NumBranches returns the number of branches.
func (t *Tree) NumBranches() int { return len(t.branches) }

// NumChildren returns the out-degree of branch b.
func (t *Tree) NumChildren(b int) (int, error) {
	if b < 0 || b >= len(t.branches) {
		return 0, fmt.Errorf("morph: branch index %d out of range [0,%d)", b, len(t.branches))
	}
	return len(t.branches[b].children), nil
}

// Parent returns the parent branch index of b. The root branch (0) is its
// own parent.
func (t *Tree) Parent(b int) (int, error) {
	if b < 0 || b >= len(t.branches) {
		return 0, fmt.Errorf("morph: branch index %d out of range [0,%d)", b, len(t.branches))
	}
	return t.branches[b].parent, nil
}

// Children returns the child branch indices of b in order.
func (t *Tree) Children(b int) ([]int, error) {
	if b < 0 || b >= len(t.branches) {
		return nil, fmt.Errorf("morph: branch index %d out of range [0,%d)", b, len(t.branches))
	}
	return append([]int(nil), t.branches[b].children...), nil
}

// BranchNodes returns the node ids belonging to branch b, proximal first.
func (t *Tree) BranchNodes(b int) ([]int, error) {
	if b < 0 || b >= len(t.branches) {
		return nil, fmt.Errorf("morph: branch index %d out of range [0,%d)", b, len(t.branches))
	}
	return append([]int(nil), t.branches[b].nodes...), nil
}

// BranchOf returns the branch index that node id belongs to.
func (t *Tree) BranchOf(node int) (int, error) {
	if node < 0 || node >= len(t.nodeBranch) {
		return 0, fmt.Errorf("morph: node id %d out of range [0,%d)", node, len(t.nodeBranch))
	}
	return t.nodeBranch[node], nil
}

// ParentIndex returns a copy of the node-level parent-index array.
func (t *Tree) ParentIndex() []int {
	return append([]int(nil), t.parentIdx...)
}

// Depth returns the maximum branch depth, with the root branch at depth 0.
func (t *Tree) Depth() int {
	depth := make([]int, len(t.branches))
	max := 0
	// Child branches always have a larger index than their parent, so a
	// single forward pass suffices.
	for b := 1; b < len(t.branches); b++ {
		depth[b] = depth[t.branches[b].parent] + 1
		if depth[b] > max {
			max = depth[b]
		}
	}
	return max
}
