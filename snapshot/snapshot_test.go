package snapshot_test

import (
	"bytes"
	"testing"

	"x86lab/regval"
	"x86lab/snapshot"
)

func TestChainFollowsBaseToRoot(t *testing.T) {
	t.Parallel()

	mem := make([]byte, 4096)
	root := snapshot.New(regval.RegisterSet{RIP: 0}, regval.Long64, mem)

	cur := root
	for i := 1; i <= 5; i++ {
		mem2 := append([]byte(nil), mem...)
		mem2[0] = byte(i)
		cur = snapshot.Next(cur, regval.RegisterSet{RIP: uint64(i)}, regval.Long64, mem2)
	}

	n := 0
	for s := cur; s != nil; s = s.Base() {
		n++
	}

	if n != 6 {
		t.Fatalf("chain length = %d, want 6 (root + 5 steps)", n)
	}

	if cur.Base().Base().Base().Base().Base() != root {
		t.Fatalf("following Base() 5 times did not reach the root snapshot")
	}
}

func TestReadLinearFourLevelWalk(t *testing.T) {
	t.Parallel()

	// Build a full 4-level, 4 KiB-page map of linear page 0: PML4 -> PDPT ->
	// PD -> PT -> a 4 KiB frame at physical 0x2000. ReadLinear only ever decodes
	// this shape; a PDPT-level 1 GiB huge page (the shortcut VmEngine's own
	// Long64 setup uses) is not something this walker special-cases.
	mem := make([]byte, 0x10000)

	const pml4Base = 0x3000
	const pdptBase = 0x4000
	const pdBase = 0x5000
	const ptBase = 0x6000
	const frame = 0x2000

	putEntry(mem, pml4Base, pdptBase|1)
	putEntry(mem, pdptBase, pdBase|1)
	putEntry(mem, pdBase, ptBase|1)
	putEntry(mem, ptBase, frame|1)

	copy(mem[frame:], []byte("hello, linear memory"))

	rs := regval.RegisterSet{CR3: pml4Base}
	s := snapshot.New(rs, regval.Long64, mem)

	got := s.ReadLinear(0, 20)
	if !bytes.Equal(got, []byte("hello, linear memory")) {
		t.Fatalf("ReadLinear = %q, want %q", got, "hello, linear memory")
	}
}

func TestReadLinearStopsAtUnmappedPage(t *testing.T) {
	t.Parallel()

	mem := make([]byte, 0x10000)

	const pml4Base = 0x3000
	const pdptBase = 0x4000
	const pdBase = 0x5000
	const ptBase = 0x6000
	const frame = 0x2000

	putEntry(mem, pml4Base, pdptBase|1)
	putEntry(mem, pdptBase, pdBase|1)
	putEntry(mem, pdBase, ptBase|1)
	putEntry(mem, ptBase, frame|1)
	// Second page's PT entry (index 1) is left absent (not present).

	rs := regval.RegisterSet{CR3: pml4Base}
	s := snapshot.New(rs, regval.Long64, mem)

	// Request spans from the last 8 bytes of the mapped page into the
	// unmapped second page: the read must stop at the page boundary, not
	// skip past the hole.
	got := s.ReadLinear(4096-8, 16)
	if len(got) != 8 {
		t.Fatalf("ReadLinear returned %d bytes, want a short read of 8", len(got))
	}
}

func putEntry(mem []byte, off int, entry uint64) {
	for i := 0; i < 8; i++ {
		mem[off+i] = byte(entry >> (8 * i))
	}
}
