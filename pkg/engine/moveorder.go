package engine

import (
	"golang.org/x/exp/slices"

	"github.com/chizhov-citadel/citadel/pkg/common"
)

// pieceOrderValue is a coarse piece-value table used only for ordering
// captures, grounded on the source engine's mvvlva table in the
// now-superseded moveiterator.go. It does not need to match either
// evaluator's values.
var pieceOrderValue = [6]int{
	common.Mason:     100,
	common.Catapult:  330,
	common.Lancer:    340,
	common.Pegasus:   300,
	common.Minister:  520,
	common.Sovereign: 100_000,
}

const (
	scoreTT             = 1_000_000_000
	scoreCaptureBase    = 10_000
	scoreRangedDemolish = 8_000
	scoreMasonConstruct = 6_000
	scoreKiller0        = 900_000
	scoreKiller1        = 800_000
)

func isCapture(p *common.Position, m common.Move) bool {
	switch m.Type {
	case common.Normal, common.MasonCommand, common.CatapultMove:
		v := p.RawAt(m.To)
		return v != 0 && common.IsPieceVal(v) && common.ColorOf(v) != p.Turn()
	default:
		return false
	}
}

// isNoisy reports whether m is worth searching in quiescence: any
// capture (including of the Sovereign), a ranged demolish, a
// wall-adjacent Catapult move, a Sovereign move touching Keep geometry,
// or a Mason construct adjacent to the enemy Sovereign (SPEC_FULL.md
// §4.7 Quiescence).
func isNoisy(p *common.Position, m common.Move) bool {
	if isCapture(p, m) {
		return true
	}
	switch m.Type {
	case common.CatapultRangedDemolish:
		return true
	case common.CatapultMove:
		return m.Aux1 != common.SqNone
	case common.MasonConstruct:
		return isAdjacentToEnemySovereign(p, m.To, p.Turn())
	case common.Normal:
		if common.PieceOf(p.RawAt(m.From)) == common.Sovereign {
			return common.IsKeepSq(m.To) || common.IsKeepSq(m.From)
		}
	}
	return false
}

func isAdjacentToEnemySovereign(p *common.Position, sq uint8, us common.Color) bool {
	enemySov := p.SovereignSq(us.Other())
	if enemySov == common.SqNone {
		return false
	}
	n := common.Tbl.KingCount[sq]
	for i := uint8(0); i < n; i++ {
		if common.Tbl.KingTargets[sq][i] == enemySov {
			return true
		}
	}
	return false
}

func captureScore(p *common.Position, m common.Move) int {
	v := p.RawAt(m.To)
	if v == 0 || !common.IsPieceVal(v) {
		return 0
	}
	return scoreCaptureBase + pieceOrderValue[common.PieceOf(v)]
}

// orderScores fills scores[i] for moves[i] per SPEC_FULL.md §4.5: the TT
// move scores highest; captures score scoreCaptureBase plus the victim's
// value (Sovereign captures dominating other captures); then ranged
// demolish and mason construct; every other move gets a killer bonus or
// its history score. The killer bonuses and history scores (capped at
// historyMax) exceed every capture score, so killers and high-history
// moves are ordered ahead of captures.
func orderScores(p *common.Position, moves *common.MoveList, height int, ttMove common.Move, killers *killerTable, history *historyTable, scores []int32) {
	k0, k1 := killers.Get(height)
	us := p.Turn()
	for i := 0; i < moves.Size; i++ {
		m := moves.Buf[i]
		switch {
		case common.SameMove(m, ttMove):
			scores[i] = scoreTT
		case isCapture(p, m):
			scores[i] = int32(captureScore(p, m))
		case m.Type == common.CatapultRangedDemolish:
			scores[i] = scoreRangedDemolish
		case m.Type == common.MasonConstruct:
			scores[i] = scoreMasonConstruct
		case common.SameMove(m, k0):
			scores[i] = scoreKiller0
		case common.SameMove(m, k1):
			scores[i] = scoreKiller1
		default:
			scores[i] = int32(history.Get(us, m))
		}
	}
}

// moveToTop selection-sorts moves[from:] one step, swapping the highest
// remaining score into position `from`. Same pattern as the source
// engine's moveiterator moveToTop, adapted to score a slice rather than
// hold running iterator state.
func moveToTop(moves *common.MoveList, scores []int32, from int) {
	best := from
	for i := from + 1; i < moves.Size; i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	if best != from {
		moves.Buf[from], moves.Buf[best] = moves.Buf[best], moves.Buf[from]
		scores[from], scores[best] = scores[best], scores[from]
	}
}

// sortRootMoves orders a root move list by descending score with one
// library sort. Its only caller is Engine.fallbackResult, which runs at
// most once per search, so the allocation is fine here, unlike the
// per-node selection sort above which must avoid any allocation.
func sortRootMoves(moves []common.Move, scores []int32) {
	idx := make([]int, len(moves))
	for i := range idx {
		idx[i] = i
	}
	slices.SortFunc(idx, func(a, b int) bool {
		return scores[a] > scores[b]
	})
	sortedMoves := make([]common.Move, len(moves))
	sortedScores := make([]int32, len(scores))
	for i, j := range idx {
		sortedMoves[i] = moves[j]
		sortedScores[i] = scores[j]
	}
	copy(moves, sortedMoves)
	copy(scores, sortedScores)
}
