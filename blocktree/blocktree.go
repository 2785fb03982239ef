// Package blocktree implements a structurally-shared, copy-on-write binary
// tree over a byte range: given a previous tree and the new flat bytes,
// Build produces a tree that reads back identically to the new bytes while
// maximally sharing subtrees with the previous one. This is the algorithmic
// heart of snapshotting, ported from
// original_source/src/snapshot.cpp's BlockTree/Node.
package blocktree

// MinLeaf is the smallest leaf a tree ever splits down to.
const MinLeaf = 64

// node is either a leaf (bytes != nil) or an inner node (left/right set).
// Nodes are immutable once built and freely shared across trees: a Tree
// never mutates a node it did not just allocate.
type node struct {
	offset uint64
	size   uint64
	bytes  []byte // leaf only
	left   *node  // inner only
	right  *node  // inner only
}

func (n *node) isLeaf() bool { return n.left == nil && n.right == nil }

// Tree is a BlockTree: one shared root plus the total byte size it
// describes.
type Tree struct {
	root *node
	size uint64
}

// Size returns the total number of bytes this tree describes.
func (t *Tree) Size() uint64 { return t.size }

// Build constructs a new Tree from data (exactly size bytes), reusing
// subtrees of base wherever the corresponding range of data is unchanged.
// base may be nil, in which case the result is one full-size leaf: leaves
// are only ever split against an existing base, so a nil base always
// yields a single leaf, matching the original: "first snapshots are one
// leaf".
func Build(base *Tree, data []byte) *Tree {
	size := uint64(len(data))

	var baseRoot *node
	if base != nil {
		baseRoot = base.root
	}

	return &Tree{root: build(baseRoot, data, 0, size), size: size}
}

func build(base *node, data []byte, offset, size uint64) *node {
	if base == nil {
		leaf := make([]byte, size)
		copy(leaf, data[offset:offset+size])

		return &node{offset: offset, size: size, bytes: leaf}
	}

	current := readNode(base, 0, size)
	if bytesEqual(current, data[offset:offset+size]) {
		return base
	}

	if size == MinLeaf {
		leaf := make([]byte, size)
		copy(leaf, data[offset:offset+size])

		return &node{offset: offset, size: size, bytes: leaf}
	}

	half := size / 2

	var baseLeft, baseRight *node
	if !base.isLeaf() {
		baseLeft, baseRight = base.left, base.right
	}

	left := build(baseLeft, data, offset, half)
	right := build(baseRight, data, offset+half, half)

	return &node{offset: offset, size: size, left: left, right: right}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

// Read returns exactly size bytes starting at offset. Reads past the end
// of the tree's described range return zero bytes; a request that starts
// beyond the end returns all zeroes: a read never fails, it clamps and
// zero-pads.
func (t *Tree) Read(offset, size uint64) []byte {
	out := make([]byte, size)

	if offset >= t.size {
		return out
	}

	toRead := size
	if offset+toRead > t.size {
		toRead = t.size - offset
	}

	copy(out, readNode(t.root, offset-t.root.offset, toRead))

	return out
}

// readNode reads length bytes starting relOff bytes into node's range.
func readNode(n *node, relOff, length uint64) []byte {
	if n.isLeaf() {
		return n.bytes[relOff : relOff+length]
	}

	half := n.size / 2
	out := make([]byte, length)

	end := relOff + length

	if relOff < half {
		leftLen := min64(half, end) - relOff
		copy(out[:leftLen], readNode(n.left, relOff, leftLen))
	}

	if end > half {
		rightStart := max64(relOff, half)
		rightLen := end - rightStart
		copy(out[rightStart-relOff:], readNode(n.right, rightStart-half, rightLen))
	}

	return out
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}

	return b
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}

	return b
}

// CountUniqueLeaves returns the number of leaf nodes reachable from t's
// root that are not reachable from other's root (by pointer identity).
// Exists only to make the sharing testable property checkable
// without reaching into package internals from a _test.go file outside the
// package.
func (t *Tree) CountUniqueLeaves(other *Tree) int {
	var otherRoot *node
	if other != nil {
		otherRoot = other.root
	}

	seen := map[*node]bool{}
	countUnique(t.root, otherRoot, seen)

	return len(seen)
}

func countUnique(n, other *node, seen map[*node]bool) {
	if n == other {
		return
	}

	if n.isLeaf() {
		seen[n] = true

		return
	}

	var otherLeft, otherRight *node
	if other != nil && !other.isLeaf() {
		otherLeft, otherRight = other.left, other.right
	}

	countUnique(n.left, otherLeft, seen)
	countUnique(n.right, otherRight, seen)
}
