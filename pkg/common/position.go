package common

import (
	"fmt"
	"strconv"
	"strings"
)

// Cell encoding (signed int8): 0 empty; ±1..±6 piece (abs(v)-1 => PieceType,
// sign => color); ±7 wall hp1; ±8 wall hp2.

func IsPieceVal(v int8) bool {
	a := v
	if a < 0 {
		a = -a
	}
	return a >= 1 && a <= 6
}

func IsWallVal(v int8) bool {
	a := v
	if a < 0 {
		a = -a
	}
	return a >= 7
}

func ColorOf(v int8) Color {
	if v > 0 {
		return White
	}
	return Black
}

func PieceOf(v int8) PieceType {
	a := v
	if a < 0 {
		a = -a
	}
	return PieceType(a - 1)
}

func WallHp(v int8) int {
	a := v
	if a < 0 {
		a = -a
	}
	return int(a) - 6
}

func MakePiece(c Color, p PieceType) int8 {
	n := int8(1 + int(p))
	if c == Black {
		n = -n
	}
	return n
}

func MakeWall(c Color, hp int) int8 {
	n := int8(6 + hp)
	if c == Black {
		n = -n
	}
	return n
}

func forwardDiagDirs(c Color) [2]int {
	if c == White {
		return [2]int{4, 5} // NW, NE
	}
	return [2]int{6, 7} // SW, SE
}

// MoveList is a fixed-capacity move buffer, same shape as the source
// engine's — allocated once per ply slot by the search, never per
// recursion frame (see Design Notes in SPEC_FULL.md §9).
type MoveList struct {
	Buf  [MaxMove]Move
	Size int
}

func (ml *MoveList) Clear() { ml.Size = 0 }

func (ml *MoveList) Empty() bool { return ml.Size == 0 }

func (ml *MoveList) Push(m Move) {
	ml.Buf[ml.Size] = m
	ml.Size++
}

// Undo stores everything needed to reverse exactly one MakeMove call.
// Flags and counters are restored wholesale rather than re-derived from
// the per-square diff, by design (see SPEC_FULL.md §9 Design Notes).
type Undo struct {
	PrevTurn          Color
	PrevBastionRight  [2]bool
	PrevWallBuiltLast [2]bool
	PrevSovereignSq   [2]uint8
	PrevWallTokens    [2]int
	PrevHalfmove      int
	PrevFullmove      int
	PrevWinner        uint8
	PrevWinReason     WinReason

	Sq      [6]uint8
	Prev    [6]int8
	SqCount uint8
}

// NullUndo reverses MakeNullMove, used only by the search's null-move
// pruning.
type NullUndo struct {
	PrevTurn     Color
	PrevFullmove int
}

// Position is the authoritative, mutable game state. It is mutated in
// place by MakeMove/UndoMove and MakeNullMove/UndoNullMove; a search
// descent is simply a stack of Undo records that can unwind back to the
// root.
type Position struct {
	b [SqN]int8

	turn          Color
	bastionRight  [2]bool
	wallBuiltLast [2]bool
	sovereignSq   [2]uint8
	wallTokens    [2]int
	halfmove      int
	fullmove      int
	winner        uint8 // SqNone => no winner, else Color(0/1)
	winReason     WinReason

	pieceBB      [2][6]Bitboard81
	piecesBB     [2]Bitboard81
	wallsBB      [2]Bitboard81
	wallsReinfBB [2]Bitboard81

	hash    uint64
	history []uint64
}

const initialFEN = "CLPISIPLC/MMMMMMMMM/9/9/9/9/9/mmmmmmmmm/clpisiplc w Bb - 0 1"

func Initial() Position {
	p, err := FromFEN(initialFEN)
	if err != nil {
		panic("common: bad built-in initial FEN: " + err.Error())
	}
	return p
}

func (p *Position) Turn() Color                 { return p.turn }
func (p *Position) BastionRight(c Color) bool   { return p.bastionRight[c] }
func (p *Position) WallBuiltLast(c Color) bool  { return p.wallBuiltLast[c] }
func (p *Position) WallTokens(c Color) int      { return p.wallTokens[c] }
func (p *Position) SovereignSq(c Color) uint8   { return p.sovereignSq[c] }
func (p *Position) Hash() uint64                { return p.hash }
func (p *Position) RawAt(s uint8) int8          { return p.b[s] }
func (p *Position) GameOver() bool              { return p.winner != SqNone }
func (p *Position) WinReason() WinReason        { return p.winReason }
func (p *Position) HistoryLen() int             { return len(p.history) }

func (p *Position) Winner() (Color, bool) {
	if p.winner == SqNone {
		return White, false
	}
	return Color(p.winner), true
}

func (p *Position) PieceCount(c Color, pt PieceType) int {
	return p.pieceBB[c][pt].PopCount()
}

func (p *Position) HasDominance(c Color) bool {
	s := p.sovereignSq[c]
	return s != SqNone && IsKeepSq(s)
}

func (p *Position) IsEntombed(victim Color) bool {
	return p.isEntombedInternal(victim)
}

func (p *Position) isEntombedInternal(victim Color) bool {
	s := p.sovereignSq[victim]
	if s == SqNone {
		return false
	}
	n := Tbl.KingCount[s]
	if n == 0 {
		return false
	}
	for i := uint8(0); i < n; i++ {
		t := Tbl.KingTargets[s][i]
		v := p.b[t]
		if v == 0 || IsPieceVal(v) {
			return false
		}
	}
	return true
}

// IsRepetition reports whether the current hash has occurred at least
// twice previously in history (i.e. this would be the third occurrence).
func (p *Position) IsRepetition() bool {
	count := 0
	for _, h := range p.history {
		if h == p.hash {
			count++
			if count >= 2 {
				return true
			}
		}
	}
	return false
}

// HashFromScratch recomputes the Zobrist hash from the grid and flags
// without mutating the position; used to verify incremental-hash
// correctness (P4).
func (p *Position) HashFromScratch() uint64 {
	var h uint64
	for s := 0; s < SqN; s++ {
		v := p.b[s]
		if v == 0 {
			continue
		}
		if IsPieceVal(v) {
			c, pt := ColorOf(v), PieceOf(v)
			h ^= Tbl.PieceKeys[c][pt][s]
		} else {
			c, hp := ColorOf(v), WallHp(v)
			h ^= Tbl.WallKeys[c][hp-1][s]
		}
	}
	if p.turn == Black {
		h ^= Tbl.TurnKey
	}
	for c := 0; c < 2; c++ {
		if p.bastionRight[c] {
			h ^= Tbl.BastionKeys[c]
		}
		if p.wallBuiltLast[c] {
			h ^= Tbl.WallBuiltLastKeys[c]
		}
	}
	return h
}

func (p *Position) setBastionRight(c Color, val bool) {
	if p.bastionRight[c] == val {
		return
	}
	p.bastionRight[c] = val
	p.hash ^= Tbl.BastionKeys[c]
}

func (p *Position) setWallBuiltLast(c Color, val bool) {
	if p.wallBuiltLast[c] == val {
		return
	}
	p.wallBuiltLast[c] = val
	p.hash ^= Tbl.WallBuiltLastKeys[c]
}

// setSquareRaw overwrites one board cell, keeping every derived bitboard,
// the sovereign-square cache, the wall-token counters and the Zobrist
// hash in lock-step (P1, P2, P3, P4).
func (p *Position) setSquareRaw(s uint8, v int8) {
	old := p.b[s]
	if old == v {
		return
	}
	if old != 0 {
		p.removeFromDerived(s, old)
	}
	p.b[s] = v
	if v != 0 {
		p.addToDerived(s, v)
	}
}

func (p *Position) addToDerived(s uint8, v int8) {
	if IsPieceVal(v) {
		c, pt := ColorOf(v), PieceOf(v)
		p.pieceBB[c][pt].Set(s)
		p.piecesBB[c].Set(s)
		if pt == Sovereign {
			p.sovereignSq[c] = s
		}
		p.hash ^= Tbl.PieceKeys[c][pt][s]
		return
	}
	c, hp := ColorOf(v), WallHp(v)
	p.wallsBB[c].Set(s)
	if hp == 2 {
		p.wallsReinfBB[c].Set(s)
	}
	p.wallTokens[c] += hp
	p.hash ^= Tbl.WallKeys[c][hp-1][s]
}

func (p *Position) removeFromDerived(s uint8, v int8) {
	if IsPieceVal(v) {
		c, pt := ColorOf(v), PieceOf(v)
		p.pieceBB[c][pt].Reset(s)
		p.piecesBB[c].Reset(s)
		if pt == Sovereign && p.sovereignSq[c] == s {
			p.sovereignSq[c] = SqNone
		}
		p.hash ^= Tbl.PieceKeys[c][pt][s]
		return
	}
	c, hp := ColorOf(v), WallHp(v)
	p.wallsBB[c].Reset(s)
	if hp == 2 {
		p.wallsReinfBB[c].Reset(s)
	}
	p.wallTokens[c] -= hp
	p.hash ^= Tbl.WallKeys[c][hp-1][s]
}

func (p *Position) rebuildDerived() {
	for c := 0; c < 2; c++ {
		for pt := 0; pt < 6; pt++ {
			p.pieceBB[c][pt] = Bitboard81{}
		}
		p.piecesBB[c] = Bitboard81{}
		p.wallsBB[c] = Bitboard81{}
		p.wallsReinfBB[c] = Bitboard81{}
		p.sovereignSq[c] = SqNone
		p.wallTokens[c] = 0
	}
	p.hash = 0
	for s := 0; s < SqN; s++ {
		v := p.b[s]
		if v == 0 {
			continue
		}
		p.addToDerived(uint8(s), v)
	}
	if p.turn == Black {
		p.hash ^= Tbl.TurnKey
	}
	for c := 0; c < 2; c++ {
		if p.bastionRight[c] {
			p.hash ^= Tbl.BastionKeys[c]
		}
		if p.wallBuiltLast[c] {
			p.hash ^= Tbl.WallBuiltLastKeys[c]
		}
	}
}

func (p *Position) saveSquare(u *Undo, s uint8) {
	u.Sq[u.SqCount] = s
	u.Prev[u.SqCount] = p.b[s]
	u.SqCount++
}

// attackedAfterHypotheticalMove checks whether checkSq would be attacked
// by attacker if removeSq became empty and addSq took on addVal. The
// board is mutated and restored via setSquareRaw, which is its own
// inverse for a pair of value-preserving writes.
func (p *Position) attackedAfterHypotheticalMove(removeSq, addSq uint8, addVal int8, checkSq uint8, attacker Color) bool {
	origAdd := p.b[addSq]
	origRemove := p.b[removeSq]
	p.setSquareRaw(removeSq, 0)
	p.setSquareRaw(addSq, addVal)
	result := p.ComputeAttacks(attacker).Test(checkSq)
	p.setSquareRaw(addSq, origAdd)
	p.setSquareRaw(removeSq, origRemove)
	return result
}

func (p *Position) masonMoveRange(masonSq uint8, c Color) int {
	if p.HasDominance(c) && IsKeepSq(masonSq) {
		return 2
	}
	return 1
}

func (p *Position) ministerMoveRange(s uint8, c Color) int {
	if p.HasDominance(c) && IsKeepSq(s) {
		return 3
	}
	return 2
}

func (p *Position) sovereignMoveRange(s uint8, c Color) int {
	if p.HasDominance(c) && IsKeepSq(s) {
		return 2
	}
	return 1
}

// slideReach walks ray `dir` from `s` up to maxRange squares, optionally
// passing through friendly Masons (Lancer only). It returns the square
// where a non-empty, non-pass-through blocker was found, or (SqNone,
// false) if the ray reached its range/edge unobstructed, or if a wall
// blocked it first (walls always stop the ray without being reported).
func (p *Position) slideReach(s uint8, dir int, maxRange int, passFriendlyMason bool, us Color) (uint8, bool) {
	length := int(Tbl.RayLen[s][dir])
	if maxRange < length {
		length = maxRange
	}
	for i := 0; i < length; i++ {
		t := Tbl.Ray[s][dir][i]
		v := p.b[t]
		if v == 0 {
			continue
		}
		if IsWallVal(v) {
			return SqNone, false
		}
		if passFriendlyMason && ColorOf(v) == us && PieceOf(v) == Mason {
			continue
		}
		return t, true
	}
	return SqNone, false
}

// ComputeAttacks returns the union of squares attacker's pieces could
// capture on right now, honoring the same walls-block rules as move
// generation (P9).
func (p *Position) ComputeAttacks(attacker Color) Bitboard81 {
	var out Bitboard81

	tmp := p.pieceBB[attacker][Mason]
	for tmp.Any() {
		s := tmp.PopLSB()
		for _, dIdx := range forwardDiagDirs(attacker) {
			if Tbl.RayLen[s][dIdx] == 0 {
				continue
			}
			t := Tbl.Ray[s][dIdx][0]
			v := p.b[t]
			if v != 0 && IsPieceVal(v) && ColorOf(v) != attacker {
				out.Set(t)
			}
		}
	}

	tmp = p.pieceBB[attacker][Pegasus]
	for tmp.Any() {
		s := tmp.PopLSB()
		n := Tbl.KnightCount[s]
		for i := uint8(0); i < n; i++ {
			t := Tbl.KnightTargets[s][i]
			v := p.b[t]
			if v != 0 && IsPieceVal(v) && ColorOf(v) != attacker {
				out.Set(t)
			}
		}
	}

	tmp = p.pieceBB[attacker][Lancer]
	for tmp.Any() {
		s := tmp.PopLSB()
		for dIdx := 4; dIdx < 8; dIdx++ {
			t, blocked := p.slideReach(s, dIdx, int(Tbl.RayLen[s][dIdx]), true, attacker)
			if blocked && IsPieceVal(p.b[t]) && ColorOf(p.b[t]) != attacker {
				out.Set(t)
			}
		}
	}

	tmp = p.pieceBB[attacker][Minister]
	for tmp.Any() {
		s := tmp.PopLSB()
		rng := p.ministerMoveRange(s, attacker)
		for dIdx := 0; dIdx < 8; dIdx++ {
			t, blocked := p.slideReach(s, dIdx, rng, false, attacker)
			if blocked && IsPieceVal(p.b[t]) && ColorOf(p.b[t]) != attacker {
				out.Set(t)
			}
		}
	}

	if p.wallTokens[attacker] <= 15 {
		s := p.sovereignSq[attacker]
		if s != SqNone {
			rng := p.sovereignMoveRange(s, attacker)
			for dIdx := 0; dIdx < 8; dIdx++ {
				t, blocked := p.slideReach(s, dIdx, rng, false, attacker)
				if blocked && IsPieceVal(p.b[t]) && ColorOf(p.b[t]) != attacker {
					out.Set(t)
				}
			}
		}
	}

	return out
}

func (p *Position) genSliderPieceMoves(out *MoveList, fromSq uint8, us Color, maxRange int, passFriendlyMason bool) {
	for dIdx := 0; dIdx < 8; dIdx++ {
		length := int(Tbl.RayLen[fromSq][dIdx])
		if maxRange < length {
			length = maxRange
		}
		for i := 0; i < length; i++ {
			t := Tbl.Ray[fromSq][dIdx][i]
			v := p.b[t]
			if v == 0 {
				out.Push(Move{Type: Normal, From: fromSq, To: t, Aux1: SqNone, Aux2: SqNone})
				continue
			}
			if IsWallVal(v) {
				break
			}
			if passFriendlyMason && ColorOf(v) == us && PieceOf(v) == Mason {
				continue
			}
			if ColorOf(v) != us {
				out.Push(Move{Type: Normal, From: fromSq, To: t, Aux1: SqNone, Aux2: SqNone})
			}
			break
		}
	}
}

func (p *Position) genNormalMovesForPiece(out *MoveList, fromSq uint8, pt PieceType, us Color) {
	switch pt {
	case Mason:
		rng := p.masonMoveRange(fromSq, us)
		for dIdx := 0; dIdx < 4; dIdx++ {
			length := int(Tbl.RayLen[fromSq][dIdx])
			if rng < length {
				length = rng
			}
			for i := 0; i < length; i++ {
				t := Tbl.Ray[fromSq][dIdx][i]
				if p.b[t] != 0 {
					break
				}
				out.Push(Move{Type: Normal, From: fromSq, To: t, Aux1: SqNone, Aux2: SqNone})
			}
		}
		for _, dIdx := range forwardDiagDirs(us) {
			if Tbl.RayLen[fromSq][dIdx] == 0 {
				continue
			}
			t := Tbl.Ray[fromSq][dIdx][0]
			v := p.b[t]
			if v != 0 && IsPieceVal(v) && ColorOf(v) != us {
				out.Push(Move{Type: Normal, From: fromSq, To: t, Aux1: SqNone, Aux2: SqNone})
			}
		}
	case Pegasus:
		n := Tbl.KnightCount[fromSq]
		for i := uint8(0); i < n; i++ {
			t := Tbl.KnightTargets[fromSq][i]
			v := p.b[t]
			if IsWallVal(v) {
				continue
			}
			if v == 0 || ColorOf(v) != us {
				out.Push(Move{Type: Normal, From: fromSq, To: t, Aux1: SqNone, Aux2: SqNone})
			}
		}
	case Lancer:
		for dIdx := 4; dIdx < 8; dIdx++ {
			length := int(Tbl.RayLen[fromSq][dIdx])
			for i := 0; i < length; i++ {
				t := Tbl.Ray[fromSq][dIdx][i]
				v := p.b[t]
				if v == 0 {
					out.Push(Move{Type: Normal, From: fromSq, To: t, Aux1: SqNone, Aux2: SqNone})
					continue
				}
				if IsWallVal(v) {
					break
				}
				if ColorOf(v) == us && PieceOf(v) == Mason {
					continue
				}
				if ColorOf(v) != us {
					out.Push(Move{Type: Normal, From: fromSq, To: t, Aux1: SqNone, Aux2: SqNone})
				}
				break
			}
		}
	case Minister:
		p.genSliderPieceMoves(out, fromSq, us, p.ministerMoveRange(fromSq, us), false)
	case Sovereign:
		if p.wallTokens[us] > 15 {
			return
		}
		p.genSliderPieceMoves(out, fromSq, us, p.sovereignMoveRange(fromSq, us), false)
	}
}

func (p *Position) genMasonExtras(out *MoveList, masonSq uint8, us Color, enemyAttacks Bitboard81) {
	if !p.wallBuiltLast[us] && !enemyAttacks.Test(masonSq) {
		for dIdx := 0; dIdx < 4; dIdx++ {
			if Tbl.RayLen[masonSq][dIdx] == 0 {
				continue
			}
			t := Tbl.Ray[masonSq][dIdx][0]
			if p.b[t] == 0 {
				out.Push(Move{Type: MasonConstruct, From: masonSq, To: t, Aux1: SqNone, Aux2: SqNone})
			}
		}
	}

	hasMinister := false
	for dIdx := 0; dIdx < 4; dIdx++ {
		if Tbl.RayLen[masonSq][dIdx] == 0 {
			continue
		}
		nb := Tbl.Ray[masonSq][dIdx][0]
		v := p.b[nb]
		if v != 0 && IsPieceVal(v) && ColorOf(v) == us && PieceOf(v) == Minister {
			hasMinister = true
			break
		}
	}
	if !hasMinister {
		return
	}

	type dest struct {
		sq                uint8
		captured          bool
		capturesSovereign bool
	}
	var dests []dest
	for dIdx := 0; dIdx < 4; dIdx++ {
		if Tbl.RayLen[masonSq][dIdx] == 0 {
			continue
		}
		t := Tbl.Ray[masonSq][dIdx][0]
		if p.b[t] == 0 {
			dests = append(dests, dest{sq: t})
		}
	}
	for _, dIdx := range forwardDiagDirs(us) {
		if Tbl.RayLen[masonSq][dIdx] == 0 {
			continue
		}
		t := Tbl.Ray[masonSq][dIdx][0]
		v := p.b[t]
		if v != 0 && IsPieceVal(v) && ColorOf(v) != us {
			dests = append(dests, dest{sq: t, captured: true, capturesSovereign: PieceOf(v) == Sovereign})
		}
	}

	for _, d := range dests {
		out.Push(Move{Type: MasonCommand, From: masonSq, To: d.sq, Aux1: SqNone, Aux2: SqNone})
		if p.wallBuiltLast[us] || d.capturesSovereign {
			continue
		}
		if p.attackedAfterHypotheticalMove(masonSq, d.sq, MakePiece(us, Mason), d.sq, us.Other()) {
			continue
		}
		for dIdx := 0; dIdx < 4; dIdx++ {
			if Tbl.RayLen[d.sq][dIdx] == 0 {
				continue
			}
			bSq := Tbl.Ray[d.sq][dIdx][0]
			emptyAfter := bSq == masonSq || p.b[bSq] == 0
			if emptyAfter {
				out.Push(Move{Type: MasonCommand, From: masonSq, To: d.sq, Aux1: bSq, Aux2: SqNone})
			}
		}
	}
}

func (p *Position) genCatapultLandingOptions(out *MoveList, catSq, dst uint8, us Color, capturesSovereign bool) {
	out.Push(Move{Type: CatapultMove, From: catSq, To: dst, Aux1: SqNone, Aux2: SqNone})
	if capturesSovereign {
		return
	}
	n := Tbl.KingCount[dst]
	for i := uint8(0); i < n; i++ {
		wSq := Tbl.KingTargets[dst][i]
		var v int8
		if wSq == catSq {
			v = 0
		} else {
			v = p.b[wSq]
		}
		if IsWallVal(v) {
			out.Push(Move{Type: CatapultMove, From: catSq, To: dst, Aux1: wSq, Aux2: SqNone})
		}
	}
}

func (p *Position) genCatapultExtras(out *MoveList, catSq uint8, us Color) {
	for dIdx := 0; dIdx < 4; dIdx++ {
		length := Tbl.RayLen[catSq][dIdx]
		for i := uint8(0); i < length; i++ {
			t := Tbl.Ray[catSq][dIdx][i]
			v := p.b[t]
			if v == 0 {
				continue
			}
			if IsWallVal(v) {
				out.Push(Move{Type: CatapultRangedDemolish, From: catSq, To: t, Aux1: SqNone, Aux2: SqNone})
			}
			break
		}
	}

	for dIdx := 0; dIdx < 4; dIdx++ {
		length := Tbl.RayLen[catSq][dIdx]
		for i := uint8(0); i < length; i++ {
			t := Tbl.Ray[catSq][dIdx][i]
			v := p.b[t]
			if v == 0 {
				p.genCatapultLandingOptions(out, catSq, t, us, false)
				continue
			}
			if IsWallVal(v) {
				break
			}
			if ColorOf(v) != us {
				p.genCatapultLandingOptions(out, catSq, t, us, PieceOf(v) == Sovereign)
			}
			break
		}
	}
}

func (p *Position) genBastion(out *MoveList, sovSq uint8, us Color) {
	if !p.bastionRight[us] || p.wallBuiltLast[us] || p.wallTokens[us] > 15 {
		return
	}
	n := Tbl.KingCount[sovSq]
	for i := uint8(0); i < n; i++ {
		ministerSq := Tbl.KingTargets[sovSq][i]
		v := p.b[ministerSq]
		if v == 0 || !IsPieceVal(v) || ColorOf(v) != us || PieceOf(v) != Minister {
			continue
		}

		m := Tbl.KingCount[ministerSq]
		var candidates []uint8
		for j := uint8(0); j < m; j++ {
			t := Tbl.KingTargets[ministerSq][j]
			if t == sovSq {
				continue
			}
			if p.b[t] == 0 {
				candidates = append(candidates, t)
			}
		}
		for a := 0; a < len(candidates); a++ {
			for b := a + 1; b < len(candidates); b++ {
				out.Push(Move{Type: Bastion, From: sovSq, To: ministerSq, Aux1: candidates[a], Aux2: candidates[b]})
			}
		}
	}
}

// GenerateMoves fills out with every legal turn-action for the side to
// move. The list is cleared first; no moves are generated once the game
// is over.
func (p *Position) GenerateMoves(out *MoveList) {
	out.Clear()
	if p.GameOver() {
		return
	}
	us := p.turn
	enemyAttacks := p.ComputeAttacks(us.Other())

	tmp := p.pieceBB[us][Mason]
	for tmp.Any() {
		s := tmp.PopLSB()
		p.genNormalMovesForPiece(out, s, Mason, us)
		p.genMasonExtras(out, s, us, enemyAttacks)
	}

	tmp = p.pieceBB[us][Catapult]
	for tmp.Any() {
		s := tmp.PopLSB()
		p.genCatapultExtras(out, s, us)
	}

	tmp = p.pieceBB[us][Lancer]
	for tmp.Any() {
		s := tmp.PopLSB()
		p.genNormalMovesForPiece(out, s, Lancer, us)
	}

	tmp = p.pieceBB[us][Pegasus]
	for tmp.Any() {
		s := tmp.PopLSB()
		p.genNormalMovesForPiece(out, s, Pegasus, us)
	}

	tmp = p.pieceBB[us][Minister]
	for tmp.Any() {
		s := tmp.PopLSB()
		p.genNormalMovesForPiece(out, s, Minister, us)
	}

	if p.sovereignSq[us] != SqNone {
		s := p.sovereignSq[us]
		p.genNormalMovesForPiece(out, s, Sovereign, us)
		p.genBastion(out, s, us)
	}
}

func (p *Position) hitWall(u *Undo, wallSq uint8) {
	v := p.b[wallSq]
	c := ColorOf(v)
	hp := WallHp(v)
	p.saveSquare(u, wallSq)
	if hp == 2 {
		p.setSquareRaw(wallSq, MakeWall(c, 1))
	} else {
		p.setSquareRaw(wallSq, 0)
	}
}

func (p *Position) finalizeTurn(us Color) {
	enemy := us.Other()
	if p.isEntombedInternal(enemy) {
		p.winner = uint8(us)
		p.winReason = Entombment
		p.halfmove = 0
		return
	}
	p.turn = enemy
	p.hash ^= Tbl.TurnKey
	if us == Black {
		p.fullmove++
	}
}

// MakeMove applies m in place, recording how to reverse it in u. The
// caller must have obtained m from GenerateMoves (or otherwise know it is
// legal): MakeMove performs no legality validation.
func (p *Position) MakeMove(m Move, u *Undo) {
	*u = Undo{
		PrevTurn:          p.turn,
		PrevBastionRight:  p.bastionRight,
		PrevWallBuiltLast: p.wallBuiltLast,
		PrevSovereignSq:   p.sovereignSq,
		PrevWallTokens:    p.wallTokens,
		PrevHalfmove:      p.halfmove,
		PrevFullmove:      p.fullmove,
		PrevWinner:        p.winner,
		PrevWinReason:     p.winReason,
	}
	p.history = append(p.history, p.hash)

	us := p.turn

	switch m.Type {
	case Normal:
		captured := p.b[m.To] != 0 && IsPieceVal(p.b[m.To]) && ColorOf(p.b[m.To]) != us
		capturesSovereign := captured && PieceOf(p.b[m.To]) == Sovereign
		p.saveSquare(u, m.To)
		p.saveSquare(u, m.From)
		piece := p.b[m.From]
		p.setSquareRaw(m.From, 0)
		p.setSquareRaw(m.To, piece)
		if capturesSovereign {
			p.winner = uint8(us)
			p.winReason = Regicide
			p.halfmove = 0
			return
		}
		if captured {
			p.halfmove = 0
		} else {
			p.halfmove++
		}
		p.setWallBuiltLast(us, false)
		p.finalizeTurn(us)

	case MasonConstruct:
		p.saveSquare(u, m.To)
		hp := 1
		if IsKeepSq(m.From) {
			hp = 2
		}
		p.setSquareRaw(m.To, MakeWall(us, hp))
		p.halfmove = 0
		p.setWallBuiltLast(us, true)
		p.finalizeTurn(us)

	case MasonCommand:
		captured := p.b[m.To] != 0 && IsPieceVal(p.b[m.To]) && ColorOf(p.b[m.To]) != us
		capturesSovereign := captured && PieceOf(p.b[m.To]) == Sovereign
		p.saveSquare(u, m.To)
		p.saveSquare(u, m.From)
		piece := p.b[m.From]
		p.setSquareRaw(m.From, 0)
		p.setSquareRaw(m.To, piece)
		if capturesSovereign {
			p.winner = uint8(us)
			p.winReason = Regicide
			p.halfmove = 0
			return
		}
		wallBuilt := false
		if m.Aux1 != SqNone {
			p.saveSquare(u, m.Aux1)
			p.setSquareRaw(m.Aux1, MakeWall(us, 1))
			wallBuilt = true
		}
		if captured || wallBuilt {
			p.halfmove = 0
		} else {
			p.halfmove++
		}
		p.setWallBuiltLast(us, wallBuilt)
		p.finalizeTurn(us)

	case CatapultRangedDemolish:
		p.hitWall(u, m.To)
		p.halfmove = 0
		p.setWallBuiltLast(us, false)
		p.finalizeTurn(us)

	case CatapultMove:
		captured := p.b[m.To] != 0 && IsPieceVal(p.b[m.To]) && ColorOf(p.b[m.To]) != us
		capturesSovereign := captured && PieceOf(p.b[m.To]) == Sovereign
		p.saveSquare(u, m.To)
		p.saveSquare(u, m.From)
		piece := p.b[m.From]
		p.setSquareRaw(m.From, 0)
		p.setSquareRaw(m.To, piece)
		if capturesSovereign {
			p.winner = uint8(us)
			p.winReason = Regicide
			p.halfmove = 0
			return
		}
		wallDemolished := false
		if m.Aux1 != SqNone {
			p.hitWall(u, m.Aux1)
			wallDemolished = true
		}
		if captured || wallDemolished {
			p.halfmove = 0
		} else {
			p.halfmove++
		}
		p.setWallBuiltLast(us, false)
		p.finalizeTurn(us)

	case Bastion:
		sovSq, ministerSq := m.From, m.To
		p.saveSquare(u, sovSq)
		p.saveSquare(u, ministerSq)
		sovVal := p.b[sovSq]
		minVal := p.b[ministerSq]
		p.setSquareRaw(sovSq, 0)
		p.setSquareRaw(ministerSq, 0)
		p.setSquareRaw(ministerSq, sovVal)
		p.setSquareRaw(sovSq, minVal)
		p.saveSquare(u, m.Aux1)
		p.saveSquare(u, m.Aux2)
		p.setSquareRaw(m.Aux1, MakeWall(us, 1))
		p.setSquareRaw(m.Aux2, MakeWall(us, 1))
		p.setBastionRight(us, false)
		p.setWallBuiltLast(us, true)
		p.halfmove = 0
		p.finalizeTurn(us)
	}
}

// UndoMove exactly reverses the MakeMove call that produced u.
func (p *Position) UndoMove(u *Undo) {
	for i := int(u.SqCount) - 1; i >= 0; i-- {
		p.setSquareRaw(u.Sq[i], u.Prev[i])
	}
	p.turn = u.PrevTurn
	p.bastionRight = u.PrevBastionRight
	p.wallBuiltLast = u.PrevWallBuiltLast
	p.sovereignSq = u.PrevSovereignSq
	p.wallTokens = u.PrevWallTokens
	p.halfmove = u.PrevHalfmove
	p.fullmove = u.PrevFullmove
	p.winner = u.PrevWinner
	p.winReason = u.PrevWinReason

	p.hash = p.history[len(p.history)-1]
	p.history = p.history[:len(p.history)-1]
}

// MakeNullMove passes the turn without altering the board; used only by
// null-move pruning in search.
func (p *Position) MakeNullMove(u *NullUndo) {
	u.PrevTurn = p.turn
	u.PrevFullmove = p.fullmove
	if p.turn == Black {
		p.fullmove++
	}
	p.turn = p.turn.Other()
	p.hash ^= Tbl.TurnKey
}

func (p *Position) UndoNullMove(u *NullUndo) {
	p.turn = u.PrevTurn
	p.fullmove = u.PrevFullmove
	p.hash ^= Tbl.TurnKey
}

// ToFEN renders the position using the board/turn/rights/wallBuiltLast/
// halfmove/fullmove grammar described in SPEC_FULL.md §6.
func (p *Position) ToFEN() string {
	var sb strings.Builder
	for r := 0; r < N; r++ {
		empty := 0
		for c := 0; c < N; c++ {
			s := Sq(r, c)
			v := p.b[s]
			if v == 0 {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			var ch byte
			switch {
			case IsPieceVal(v):
				switch PieceOf(v) {
				case Mason:
					ch = 'M'
				case Catapult:
					ch = 'C'
				case Lancer:
					ch = 'L'
				case Pegasus:
					ch = 'P'
				case Minister:
					ch = 'I'
				case Sovereign:
					ch = 'S'
				}
			case IsWallVal(v):
				if WallHp(v) == 2 {
					ch = 'R'
				} else {
					ch = 'W'
				}
			}
			if v < 0 {
				ch = ch - 'A' + 'a'
			}
			sb.WriteByte(ch)
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if r != N-1 {
			sb.WriteByte('/')
		}
	}

	sb.WriteByte(' ')
	if p.turn == White {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}
	sb.WriteByte(' ')

	rights := ""
	if p.bastionRight[White] {
		rights += "B"
	}
	if p.bastionRight[Black] {
		rights += "b"
	}
	if rights == "" {
		rights = "-"
	}
	sb.WriteString(rights)
	sb.WriteByte(' ')

	wallSeq := ""
	if p.wallBuiltLast[White] {
		wallSeq += "w"
	}
	if p.wallBuiltLast[Black] {
		wallSeq += "b"
	}
	if wallSeq == "" {
		wallSeq = "-"
	}
	sb.WriteString(wallSeq)
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.halfmove))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.fullmove))

	return sb.String()
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

// FromFEN parses the grammar described in SPEC_FULL.md §6. The
// wall-built-last token is optional for backward compatibility with
// shorter FENs; when absent it is taken as "-".
func FromFEN(fen string) (Position, error) {
	fields := strings.Fields(fen)
	if len(fields) < 2 {
		return Position{}, fmt.Errorf("citadel: invalid FEN: expected <board> <turn> ...")
	}
	boardStr, turnStr := fields[0], fields[1]
	rest := fields[2:]

	rightsStr := "Bb"
	wallStr := "-"
	halfmove := 0
	fullmove := 1

	if len(rest) > 0 {
		rightsStr = rest[0]
		rest = rest[1:]
		if len(rest) > 0 {
			if isAllDigits(rest[0]) {
				wallStr = "-"
				if v, err := strconv.Atoi(rest[0]); err == nil {
					halfmove = v
				}
				rest = rest[1:]
			} else {
				wallStr = rest[0]
				rest = rest[1:]
				if len(rest) > 0 {
					if v, err := strconv.Atoi(rest[0]); err == nil {
						halfmove = v
					}
					rest = rest[1:]
				}
			}
			if len(rest) > 0 {
				if v, err := strconv.Atoi(rest[0]); err == nil {
					fullmove = v
				}
			}
		}
	}

	var p Position
	p.winner = SqNone
	p.winReason = NoWin

	if turnStr == "" {
		return Position{}, fmt.Errorf("citadel: invalid FEN: empty turn field")
	}
	switch turnStr[0] {
	case 'w', 'W':
		p.turn = White
	case 'b', 'B':
		p.turn = Black
	default:
		return Position{}, fmt.Errorf("citadel: invalid FEN: turn must be 'w' or 'b'")
	}

	if rightsStr != "-" {
		for _, rc := range rightsStr {
			switch rc {
			case 'B':
				p.bastionRight[White] = true
			case 'b':
				p.bastionRight[Black] = true
			}
		}
	}

	if wallStr != "-" {
		for _, rc := range strings.ToLower(wallStr) {
			switch rc {
			case 'w':
				p.wallBuiltLast[White] = true
			case 'b':
				p.wallBuiltLast[Black] = true
			}
		}
	}

	p.halfmove = halfmove
	p.fullmove = fullmove

	r, c := 0, 0
	for i := 0; i < len(boardStr); i++ {
		ch := boardStr[i]
		if ch == '/' {
			if c != N {
				return Position{}, fmt.Errorf("citadel: invalid FEN: rank does not have %d files", N)
			}
			r++
			c = 0
			continue
		}
		if r >= N {
			return Position{}, fmt.Errorf("citadel: invalid FEN: too many ranks")
		}
		if ch >= '1' && ch <= '9' {
			c += int(ch - '0')
			if c > N {
				return Position{}, fmt.Errorf("citadel: invalid FEN: file overflow")
			}
			continue
		}
		if c >= N {
			return Position{}, fmt.Errorf("citadel: invalid FEN: too many files in rank")
		}

		isWhite := ch >= 'A' && ch <= 'Z'
		upper := ch
		if ch >= 'a' && ch <= 'z' {
			upper = ch - 'a' + 'A'
		}
		col := Black
		if isWhite {
			col = White
		}
		var v int8
		switch upper {
		case 'M':
			v = MakePiece(col, Mason)
		case 'C':
			v = MakePiece(col, Catapult)
		case 'L':
			v = MakePiece(col, Lancer)
		case 'P':
			v = MakePiece(col, Pegasus)
		case 'I':
			v = MakePiece(col, Minister)
		case 'S':
			v = MakePiece(col, Sovereign)
		case 'W':
			v = MakeWall(col, 1)
		case 'R':
			v = MakeWall(col, 2)
		default:
			return Position{}, fmt.Errorf("citadel: invalid FEN: unknown piece %q", ch)
		}
		p.b[Sq(r, c)] = v
		c++
	}

	if r != N-1 || c != N {
		return Position{}, fmt.Errorf("citadel: invalid FEN: board must be %d ranks of %d files", N, N)
	}

	p.rebuildDerived()
	return p, nil
}

// Pretty renders a human-readable ASCII board dump, for debugging.
func (p *Position) Pretty() string {
	var sb strings.Builder
	for r := 0; r < N; r++ {
		fmt.Fprintf(&sb, "%d ", N-r)
		for c := 0; c < N; c++ {
			v := p.b[Sq(r, c)]
			ch := byte('.')
			switch {
			case v == 0:
				ch = '.'
			case IsPieceVal(v):
				switch PieceOf(v) {
				case Mason:
					ch = 'M'
				case Catapult:
					ch = 'C'
				case Lancer:
					ch = 'L'
				case Pegasus:
					ch = 'P'
				case Minister:
					ch = 'I'
				case Sovereign:
					ch = 'S'
				}
				if v < 0 {
					ch = ch - 'A' + 'a'
				}
			case IsWallVal(v):
				if WallHp(v) == 2 {
					ch = 'R'
				} else {
					ch = 'W'
				}
				if v < 0 {
					ch = ch - 'A' + 'a'
				}
			}
			sb.WriteByte(' ')
			sb.WriteByte(ch)
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  ")
	for c := 0; c < N; c++ {
		sb.WriteByte(' ')
		sb.WriteByte(byte('A' + c))
	}
	sb.WriteByte('\n')
	return sb.String()
}
