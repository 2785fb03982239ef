package blocktree_test

import (
	"bytes"
	"math/rand"
	"testing"

	"x86lab/blocktree"
)

func pattern(size int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	b := make([]byte, size)
	r.Read(b)

	return b
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	b := pattern(4096, 1)
	tree := blocktree.Build(nil, b)

	if got := tree.Read(0, uint64(len(b))); !bytes.Equal(got, b) {
		t.Fatalf("round trip mismatch")
	}
}

func TestChainedRoundTrip(t *testing.T) {
	t.Parallel()

	bufs := [][]byte{pattern(4096, 1), pattern(4096, 2), pattern(4096, 3)}

	var tree *blocktree.Tree
	for _, b := range bufs {
		tree = blocktree.Build(tree, b)

		if got := tree.Read(0, uint64(len(b))); !bytes.Equal(got, b) {
			t.Fatalf("chained round trip mismatch")
		}
	}
}

func TestReadPastEndIsZeroPadded(t *testing.T) {
	t.Parallel()

	b := pattern(128, 1)
	tree := blocktree.Build(nil, b)

	got := tree.Read(64, 128)
	if !bytes.Equal(got[:64], b[64:128]) {
		t.Fatalf("in-range prefix mismatch")
	}

	for i, v := range got[64:] {
		if v != 0 {
			t.Fatalf("byte %d past end = %#x, want 0", i, v)
		}
	}

	allZero := tree.Read(1024, 64)
	for _, v := range allZero {
		if v != 0 {
			t.Fatalf("fully out of range read should be all zero")
		}
	}
}

func TestIdenticalDataSharesRoot(t *testing.T) {
	t.Parallel()

	b := pattern(4096, 1)
	t1 := blocktree.Build(nil, b)
	t2 := blocktree.Build(t1, append([]byte(nil), b...))

	if t1.CountUniqueLeaves(t2) != 0 || t2.CountUniqueLeaves(t1) != 0 {
		t.Fatalf("expected full sharing between identical trees")
	}
}

func TestSingleRangeChangeShareIsBounded(t *testing.T) {
	t.Parallel()

	size := 4096
	b1 := pattern(size, 1)
	t1 := blocktree.Build(nil, b1)

	b2 := append([]byte(nil), b1...)
	// Flip one MIN_LEAF-aligned range.
	for i := 512; i < 512+blocktree.MinLeaf; i++ {
		b2[i] ^= 0xFF
	}

	t2 := blocktree.Build(t1, b2)

	unique := t2.CountUniqueLeaves(t1)
	if unique < 1 || unique > size/blocktree.MinLeaf {
		t.Fatalf("unique leaf count %d out of plausible bounds", unique)
	}

	if got := t2.Read(512, blocktree.MinLeaf); !bytes.Equal(got, b2[512:512+blocktree.MinLeaf]) {
		t.Fatalf("changed range did not read back correctly")
	}

	if got := t2.Read(0, 512); !bytes.Equal(got, b2[:512]) {
		t.Fatalf("unchanged prefix did not read back correctly")
	}
}
