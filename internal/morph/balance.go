package morph

import "fmt"

// Balance re-roots the branch tree at the branch that minimizes the
// maximum branch depth, which flattens skewed computational trees produced
// by SWC files rooted far from the morphological center. Ties are broken
// toward the smallest branch index.
//
// The branch set is unchanged: every branch keeps its member nodes, and
// only parent/child links and branch indices are recomputed. The returned
// permutation maps new branch indices to the branch indices of the
// receiver, so callers can carry per-branch attributes across the
// re-rooting.
func (t *Tree) Balance() (*Tree, []int, error) {
	return t.BalanceAround(t.centerBranch())
}

// BalanceAround re-roots the branch tree at the given branch. Branches are
// renumbered in breadth-first discovery order from the new root so that a
// parent branch always has a smaller index than its children.
func (t *Tree) BalanceAround(root int) (*Tree, []int, error) {
	n := len(t.branches)
	if root < 0 || root >= n {
		return nil, nil, fmt.Errorf("morph: balance root %d out of range [0,%d)", root, n)
	}

	adj := t.branchAdjacency()

	perm := make([]int, 0, n) // new index -> old index
	newID := make([]int, n)   // old index -> new index
	for i := range newID {
		newID[i] = -1
	}
	newParent := make([]int, 0, n)

	queue := []int{root}
	newID[root] = 0
	perm = append(perm, root)
	newParent = append(newParent, 0)

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range adj[u] {
			if newID[v] >= 0 {
				continue
			}
			newID[v] = len(perm)
			perm = append(perm, v)
			newParent = append(newParent, newID[u])
			queue = append(queue, v)
		}
	}

	balanced := &Tree{
		branches:   make([]branch, n),
		parentIdx:  append([]int(nil), t.parentIdx...),
		nodeBranch: make([]int, len(t.nodeBranch)),
	}
	for newB, oldB := range perm {
		src := t.branches[oldB]
		dst := branch{
			nodes:  append([]int(nil), src.nodes...),
			parent: newParent[newB],
		}
		for _, v := range adj[oldB] {
			if c := newID[v]; c != newB && newParent[c] == newB {
				dst.children = append(dst.children, c)
			}
		}
		balanced.branches[newB] = dst
		for _, node := range src.nodes {
			balanced.nodeBranch[node] = newB
		}
	}

	return balanced, perm, nil
}

// centerBranch returns the branch with minimum eccentricity in the branch
// tree (a tree center), breaking ties toward the smallest branch index.
// Eccentricities come from two sweeps: in a tree, every vertex's
// eccentricity is its distance to one of the two endpoints of a diameter.
func (t *Tree) centerBranch() int {
	n := len(t.branches)
	if n <= 2 {
		return 0
	}

	adj := t.branchAdjacency()

	u, _ := farthest(adj, 0)
	v, distU := farthest(adj, u)
	_, distV := farthest(adj, v)

	best, bestEcc := 0, n
	for i := 0; i < n; i++ {
		ecc := distU[i]
		if distV[i] > ecc {
			ecc = distV[i]
		}
		if ecc < bestEcc {
			best, bestEcc = i, ecc
		}
	}
	return best
}

// branchAdjacency builds undirected adjacency lists over branches.
func (t *Tree) branchAdjacency() [][]int {
	n := len(t.branches)
	adj := make([][]int, n)
	for b := 1; b < n; b++ {
		p := t.branches[b].parent
		adj[p] = append(adj[p], b)
		adj[b] = append(adj[b], p)
	}
	return adj
}

// farthest runs a BFS from src and returns the smallest vertex at maximum
// distance along with the distance vector.
func farthest(adj [][]int, src int) (int, []int) {
	dist := make([]int, len(adj))
	for i := range dist {
		dist[i] = -1
	}
	dist[src] = 0
	far := src

	queue := []int{src}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range adj[u] {
			if dist[v] >= 0 {
				continue
			}
			dist[v] = dist[u] + 1
			if dist[v] > dist[far] {
				far = v
			}
			queue = append(queue, v)
		}
	}
	return far, dist
}
