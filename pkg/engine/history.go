package engine

import "github.com/chizhov-citadel/citadel/pkg/common"

const historyMax = 1_000_000

// historyTable scores quiet moves by how often they have caused a beta
// cutoff, weighted by depth squared, indexed by [side][move-type][from][to] per
// SPEC_FULL.md §4.5. Simpler than the source engine's
// continuation-history/EMA scheme: Citadel has no equivalent of
// piece-to-square continuation patterns worth the extra bookkeeping.
type historyTable struct {
	table [2][6][common.SqN][common.SqN]int32
}

func (h *historyTable) Get(side common.Color, m common.Move) int32 {
	return h.table[side][m.Type][m.From][m.To]
}

func (h *historyTable) Update(side common.Color, m common.Move, depth int) {
	bonus := int32(depth * depth)
	v := &h.table[side][m.Type][m.From][m.To]
	*v += bonus
	if *v > historyMax {
		*v = historyMax
	}
}

func (h *historyTable) Clear() {
	h.table = [2][6][common.SqN][common.SqN]int32{}
}

// killerTable keeps the two most recent quiet moves that caused a beta
// cutoff at each ply.
type killerTable struct {
	moves [stackSize][2]common.Move
}

func (k *killerTable) Get(height int) (common.Move, common.Move) {
	return k.moves[height][0], k.moves[height][1]
}

func (k *killerTable) Update(height int, m common.Move) {
	if common.SameMove(k.moves[height][0], m) {
		return
	}
	k.moves[height][1] = k.moves[height][0]
	k.moves[height][0] = m
}

func (k *killerTable) ClearFrom(height int) {
	if height < stackSize {
		k.moves[height] = [2]common.Move{}
	}
}

func (k *killerTable) Clear() {
	k.moves = [stackSize][2]common.Move{}
}
