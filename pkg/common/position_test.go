package common

import "testing"

func mustFEN(t *testing.T, fen string) Position {
	t.Helper()
	p, err := FromFEN(fen)
	if err != nil {
		t.Fatalf("FromFEN(%q) failed: %v", fen, err)
	}
	return p
}

// P8: from_fen(F).to_fen() == F for the canonical initial position.
func TestInitialPositionFENRoundTrip(t *testing.T) {
	p := Initial()
	if got := p.ToFEN(); got != initialFEN {
		t.Fatalf("ToFEN() = %q, want %q", got, initialFEN)
	}
}

// P7 (partial): generate_moves produces a nonzero move count for the
// initial position.
func TestInitialPerftDepth1(t *testing.T) {
	p := Initial()
	var moves MoveList
	p.GenerateMoves(&moves)
	if moves.Size == 0 {
		t.Fatalf("initial position generated zero moves")
	}
}

// P6: make_move then undo_move restores the position byte-exactly,
// including hash and history length, for every move the initial
// position generates.
func TestMakeUndoRestoresPosition(t *testing.T) {
	p := Initial()
	var moves MoveList
	p.GenerateMoves(&moves)

	before := p.ToFEN()
	beforeHash := p.Hash()
	beforeHistLen := p.HistoryLen()

	var u Undo
	for i := 0; i < moves.Size; i++ {
		m := moves.Buf[i]
		p.MakeMove(m, &u)
		p.UndoMove(&u)

		if got := p.ToFEN(); got != before {
			t.Fatalf("move %v: ToFEN() after undo = %q, want %q", m, got, before)
		}
		if p.Hash() != beforeHash {
			t.Fatalf("move %v: Hash() after undo = %d, want %d", m, p.Hash(), beforeHash)
		}
		if p.HistoryLen() != beforeHistLen {
			t.Fatalf("move %v: HistoryLen() after undo = %d, want %d", m, p.HistoryLen(), beforeHistLen)
		}
	}
}

// P4/S5: the incrementally maintained hash always matches a from-scratch
// recomputation, before and after every generated move.
func TestHashMatchesFromScratch(t *testing.T) {
	p := Initial()
	if p.Hash() != p.HashFromScratch() {
		t.Fatalf("initial Hash() = %d, HashFromScratch() = %d", p.Hash(), p.HashFromScratch())
	}

	var moves MoveList
	p.GenerateMoves(&moves)
	var u Undo
	for i := 0; i < moves.Size; i++ {
		m := moves.Buf[i]
		p.MakeMove(m, &u)
		if p.Hash() != p.HashFromScratch() {
			t.Fatalf("move %v: Hash() = %d, HashFromScratch() = %d", m, p.Hash(), p.HashFromScratch())
		}
		p.UndoMove(&u)
	}
}

// Scenario 2: a lone White Mason on D2 can build on any empty orthogonal
// neighbor, and the resulting wall has hp=1 off the Keep.
func TestMasonConstructOffKeep(t *testing.T) {
	p := mustFEN(t, "i3s4/9/9/9/4S4/9/9/3M5/9 w Bb - 0 1")

	var moves MoveList
	p.GenerateMoves(&moves)

	masonSq := Sq(7, 3) // D2
	want := map[uint8]bool{
		Sq(6, 3): false, // D3
		Sq(7, 4): false, // E2
		Sq(7, 2): false, // C2
	}
	for i := 0; i < moves.Size; i++ {
		m := moves.Buf[i]
		if m.Type == MasonConstruct && m.From == masonSq {
			if _, ok := want[m.To]; ok {
				want[m.To] = true
			}
		}
	}
	for sq, found := range want {
		if !found {
			t.Errorf("missing expected mason construct to square %d", sq)
		}
	}

	var u Undo
	m := Move{Type: MasonConstruct, From: masonSq, To: Sq(6, 3), Aux1: SqNone, Aux2: SqNone}
	p.MakeMove(m, &u)
	if v := p.RawAt(Sq(6, 3));!IsWallVal(v) || WallHp(v) != 1 {
		t.Fatalf("constructed wall = %d, want hp=1 wall", v)
	}
}

// Scenario 3: Bastion generates swap+build pairs, and making one clears
// bastion_right and sets wall_built_last for the mover.
func TestBastionSwapAndBuild(t *testing.T) {
	p := mustFEN(t, "s8/9/9/9/9/3IS4/9/9/9 w Bb - 0 1")

	var moves MoveList
	p.GenerateMoves(&moves)

	var bastionMove Move
	found := false
	for i := 0; i < moves.Size; i++ {
		if moves.Buf[i].Type == Bastion {
			bastionMove = moves.Buf[i]
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected at least one Bastion move")
	}

	var u Undo
	p.MakeMove(bastionMove, &u)
	if p.BastionRight(White) {
		t.Errorf("BastionRight(White) still true after Bastion move")
	}
	if !p.WallBuiltLast(White) {
		t.Errorf("WallBuiltLast(White) should be true after Bastion move")
	}
}

// Scenario 4: capturing the enemy Sovereign is Regicide and ends the
// game immediately in the mover's favor.
func TestRegicideEndsGame(t *testing.T) {
	// White Minister one square south of the Black Sovereign captures it.
	p := mustFEN(t, "9/9/9/4s4/4I4/9/9/9/8S w Bb - 0 1")

	sovSq := p.SovereignSq(Black)
	if sovSq == SqNone {
		t.Fatalf("test position has no black sovereign")
	}

	var moves MoveList
	p.GenerateMoves(&moves)

	var capture Move
	found := false
	for i := 0; i < moves.Size; i++ {
		if moves.Buf[i].To == sovSq {
			capture = moves.Buf[i]
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected a move capturing the black sovereign")
	}

	var u Undo
	p.MakeMove(capture, &u)
	if !p.GameOver() {
		t.Fatalf("position should be GameOver() after Regicide")
	}
	w, ok := p.Winner()
	if !ok || w != White {
		t.Fatalf("Winner() = %v, %v, want White, true", w, ok)
	}
	if p.WinReason() != Regicide {
		t.Fatalf("WinReason() = %v, want Regicide", p.WinReason())
	}
}

// Scenario 5: a Sovereign boxed in on all sides by non-piece cells
// (walls) is entombed the moment the opponent's move calls finalizeTurn.
func TestEntombmentOnFinalizeTurn(t *testing.T) {
	p := mustFEN(t, "sW7/WW7/9/9/4M4/9/9/9/8S w Bb - 0 1")

	m := Move{Type: Normal, From: Sq(4, 4), To: Sq(3, 4), Aux1: SqNone, Aux2: SqNone}
	var u Undo
	p.MakeMove(m, &u)

	if !p.GameOver() {
		t.Fatalf("expected GameOver() after entombing move")
	}
	w, ok := p.Winner()
	if !ok || w != White {
		t.Fatalf("Winner() = %v, %v, want White, true", w, ok)
	}
	if p.WinReason() != Entombment {
		t.Fatalf("WinReason() = %v, want Entombment", p.WinReason())
	}
}

// Scenario 6: Siege Attrition (wall-tokens > 15) disables Sovereign
// movement and forbids Bastion even when a minister sits beside it.
func TestSiegeAttritionDisablesSovereignAndBastion(t *testing.T) {
	p := mustFEN(t, "RRRRRRRR1/9/9/9/3IS4/9/9/9/8s w Bb - 0 1")

	if p.WallTokens(White) <= 15 {
		t.Fatalf("WallTokens(White) = %d, want > 15", p.WallTokens(White))
	}

	sovSq := p.SovereignSq(White)
	var moves MoveList
	p.GenerateMoves(&moves)

	for i := 0; i < moves.Size; i++ {
		m := moves.Buf[i]
		if m.Type == Bastion {
			t.Errorf("unexpected Bastion move %v under siege attrition", m)
		}
		if m.From == sovSq {
			t.Errorf("unexpected sovereign move %v under siege attrition", m)
		}
	}
}

// Threefold repetition: IsRepetition only becomes true on the third
// occurrence of the current hash, not the second.
func TestIsRepetitionThirdOccurrence(t *testing.T) {
	p := mustFEN(t, "9/9/9/9/4M4/9/9/4m4/9 w Bb - 0 1")

	var u [4]Undo
	shuttle := func(from, to uint8, slot int) {
		m := Move{Type: Normal, From: from, To: to, Aux1: SqNone, Aux2: SqNone}
		p.MakeMove(m, &u[slot])
	}

	whiteSq := Sq(4, 4)
	whiteBack := Sq(3, 4)
	blackSq := Sq(7, 4)
	blackBack := Sq(6, 4)

	if p.IsRepetition() {
		t.Fatalf("IsRepetition() true at the start")
	}

	// First round trip: back to the original position (2nd occurrence).
	shuttle(whiteSq, whiteBack, 0)
	shuttle(blackSq, blackBack, 1)
	shuttle(whiteBack, whiteSq, 2)
	shuttle(blackBack, blackSq, 3)
	if p.IsRepetition() {
		t.Fatalf("IsRepetition() true after only the 2nd occurrence")
	}

	// Second round trip: 3rd occurrence of the original position.
	shuttle(whiteSq, whiteBack, 0)
	shuttle(blackSq, blackBack, 1)
	shuttle(whiteBack, whiteSq, 2)
	shuttle(blackBack, blackSq, 3)
	if !p.IsRepetition() {
		t.Fatalf("IsRepetition() false after the 3rd occurrence")
	}
}
