package engine

import "github.com/chizhov-citadel/citadel/pkg/common"

// Perft counts leaf nodes reachable in exactly depth plies from p, used to
// cross-check move generation against known node counts the way the
// source engine's perft_test.go does. Unlike that copy-based version,
// this walks p in place with MakeMove/UndoMove since GenerateMoves
// already returns only legal moves (SPEC_FULL.md §4.1).
func Perft(p *common.Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}
	var moves common.MoveList
	p.GenerateMoves(&moves)
	if depth == 1 {
		return uint64(moves.Size)
	}
	var u common.Undo
	var result uint64
	for i := 0; i < moves.Size; i++ {
		m := moves.Buf[i]
		p.MakeMove(m, &u)
		result += Perft(p, depth-1)
		p.UndoMove(&u)
	}
	return result
}

// Divide breaks Perft(p, depth) down per root move, for diagnosing
// move-generation bugs against a reference perft tool.
func Divide(p *common.Position, depth int) map[common.Move]uint64 {
	var moves common.MoveList
	p.GenerateMoves(&moves)
	out := make(map[common.Move]uint64, moves.Size)
	var u common.Undo
	for i := 0; i < moves.Size; i++ {
		m := moves.Buf[i]
		p.MakeMove(m, &u)
		if depth <= 1 {
			out[m] = 1
		} else {
			out[m] = Perft(p, depth-1)
		}
		p.UndoMove(&u)
	}
	return out
}
