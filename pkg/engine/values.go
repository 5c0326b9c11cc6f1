package engine

import "github.com/chizhov-citadel/citadel/pkg/common"

const (
	stackSize = common.MaxPly + 1
	maxHeight = stackSize - 1
	valueDraw = 0
	// valueMate matches the MATE sentinel from SPEC_FULL.md §4.6 (10^8),
	// chosen far above any plausible static eval so mate scores never
	// collide with material scores.
	valueMate     = 100_000_000
	valueInfinity = valueMate + 1
	valueWin      = valueMate - 2*maxHeight
	valueLoss     = -valueWin
)

func winIn(height int) int {
	return valueMate - height
}

func lossIn(height int) int {
	return -valueMate + height
}

// valueToTT normalizes a mate/loss score found at `height` plies from the
// search root into one relative to the position stored in the table, and
// valueFromTT reverses it — mate scores must be shifted by the distance
// from THIS node, not the node where the table entry was written.
func valueToTT(v, height int) int {
	if v >= valueWin {
		return v + height
	}
	if v <= valueLoss {
		return v - height
	}
	return v
}

func valueFromTT(v, height int) int {
	if v >= valueWin {
		return v - height
	}
	if v <= valueLoss {
		return v + height
	}
	return v
}

// Score is a UCI-style rendering of a raw search value: either a plain
// centipawn number or a mate-in-N count.
type Score struct {
	Centipawns int
	Mate       int
	IsMate     bool
}

func newScore(v int) Score {
	if v >= valueWin {
		return Score{Mate: (valueMate - v + 1) / 2, IsMate: true}
	}
	if v <= valueLoss {
		return Score{Mate: (-valueMate - v) / 2, IsMate: true}
	}
	return Score{Centipawns: v}
}
