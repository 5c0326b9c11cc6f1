package engine

import "github.com/chizhov-citadel/citadel/pkg/common"

const (
	boundLower = 1 << iota
	boundUpper
)

const boundExact = boundLower | boundUpper

func roundPowerOfTwo(size int) int {
	x := 1
	for (x << 1) <= size {
		x <<= 1
	}
	return x
}

// ttEntry is deliberately compact; Move is 5 bytes instead of the packed
// 32-bit int the source engine uses, since Citadel's composite actions
// don't fit a from/to/piece/promotion bit layout.
type ttEntry struct {
	key32 uint32
	move  common.Move
	score int32
	depth int8
	bound uint8
}

const approxEntrySize = 24

// TransTable is a single-writer, direct-mapped table: Citadel's search
// core runs on one goroutine (see SPEC_FULL.md §4.9), so there is no
// concurrent-access race to guard against the way the source engine's
// atomic-gated table does.
type TransTable struct {
	megabytes int
	entries   []ttEntry
	mask      uint32
}

func NewTransTable(megabytes int) *TransTable {
	if megabytes < 1 {
		megabytes = 1
	}
	if megabytes > 1024 {
		megabytes = 1024
	}
	size := roundPowerOfTwo(1024 * 1024 * megabytes / approxEntrySize)
	if size < 1 {
		size = 1
	}
	return &TransTable{
		megabytes: megabytes,
		entries:   make([]ttEntry, size),
		mask:      uint32(size - 1),
	}
}

func (tt *TransTable) Size() int { return tt.megabytes }

func (tt *TransTable) Clear() {
	for i := range tt.entries {
		tt.entries[i] = ttEntry{}
	}
}

func (tt *TransTable) Read(key uint64) (depth, score, bound int, move common.Move, ok bool) {
	e := &tt.entries[uint32(key)&tt.mask]
	if e.key32 != 0 && e.key32 == uint32(key>>32) {
		return int(e.depth), int(e.score), int(e.bound), e.move, true
	}
	return 0, 0, 0, common.Move{}, false
}

func (tt *TransTable) Update(key uint64, depth, score, bound int, move common.Move) {
	e := &tt.entries[uint32(key)&tt.mask]
	key32 := uint32(key >> 32)
	if e.key32 == 0 || e.key32 == key32 || depth >= int(e.depth) {
		e.key32 = key32
		e.move = move
		e.score = int32(score)
		e.depth = int8(depth)
		e.bound = uint8(bound)
	}
}
