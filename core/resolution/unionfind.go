package resolution

import "github.com/google/uuid"

// UnionFind is a disjoint-set structure over mention IDs with path
// compression. Union always parents the lexicographically smaller root, so
// the resulting forest does not depend on union order.
type UnionFind struct {
	parent map[uuid.UUID]uuid.UUID
}

// NewUnionFind creates a union-find with every given ID in its own set.
func NewUnionFind(ids []uuid.UUID) *UnionFind {
	parent := make(map[uuid.UUID]uuid.UUID, len(ids))
	for _, id := range ids {
		parent[id] = id
	}
	return &UnionFind{parent: parent}
}

// Find returns the representative of the set containing id.
func (u *UnionFind) Find(id uuid.UUID) uuid.UUID {
	root := id
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[id] != root {
		u.parent[id], id = root, u.parent[id]
	}
	return root
}

// Union merges the sets containing a and b.
func (u *UnionFind) Union(a, b uuid.UUID) {
	rootA, rootB := u.Find(a), u.Find(b)
	if rootA == rootB {
		return
	}
	if rootB.String() < rootA.String() {
		rootA, rootB = rootB, rootA
	}
	u.parent[rootB] = rootA
}

// Connected reports whether a and b are in the same set.
func (u *UnionFind) Connected(a, b uuid.UUID) bool {
	return u.Find(a) == u.Find(b)
}

// Components returns the sets as a map from representative to members.
// Member order within a component is unspecified.
func (u *UnionFind) Components() map[uuid.UUID][]uuid.UUID {
	components := make(map[uuid.UUID][]uuid.UUID)
	for id := range u.parent {
		root := u.Find(id)
		components[root] = append(components[root], id)
	}
	return components
}
