package engine

import (
	"github.com/chizhov-citadel/citadel/pkg/common"
)

// pvLine is a fixed-capacity principal-variation buffer for one height,
// same shape as the source engine's pv type.
type pvLine struct {
	items [stackSize]common.Move
	size  int
}

func (pv *pvLine) clear() { pv.size = 0 }

func (pv *pvLine) assign(m common.Move, child *pvLine) {
	pv.items[0] = m
	pv.size = 1
	if child.size > 0 {
		copy(pv.items[1:], child.items[:child.size])
		pv.size += child.size
	}
}

func (pv *pvLine) toSlice() []common.Move {
	out := make([]common.Move, pv.size)
	copy(out, pv.items[:pv.size])
	return out
}

// searchContext is a single search descent's mutable state: one Position
// mutated in place, a per-height Undo stack reversing it, and the usual
// move-ordering/PV/TT scratch space. There is exactly one of these per
// search (the core is single-threaded; see SPEC_FULL.md §5), unlike the
// source engine's array-of-threads.
type searchContext struct {
	position *common.Position

	undo     [stackSize]common.Undo
	moveList [stackSize]common.MoveList
	scores   [stackSize][common.MaxMove]int32
	pv       [stackSize]pvLine
	killers  killerTable
	history  historyTable

	staticEval [stackSize]int

	eval    Evaluator
	tt      *TransTable
	options *Options

	nodes   uint64
	stop    func() bool
	aborted bool

	rootDepth int
	rootTurn  common.Color
}

// sideToMoveAt returns who the score at this recursion height is
// relative to. Regicide and Entombment both end the game inside
// MakeMove/finalizeTurn without flipping p.Turn() (the position simply
// stops changing once winner is set), so height parity against the
// root's side to move is used instead of p.Turn() directly — p.Turn()
// would otherwise report the already-moved side at the exact node a
// win is detected and invert the score's sign one level up.
func (ctx *searchContext) sideToMoveAt(height int) common.Color {
	if height%2 == 0 {
		return ctx.rootTurn
	}
	return ctx.rootTurn.Other()
}

func (ctx *searchContext) outOfTime() bool {
	return ctx.stop != nil && ctx.stop()
}

// pollNodes is called once per visited node. Per SPEC_FULL.md §5 the
// stop flag and deadline are checked only every 2048 nodes; the search
// thread never blocks between polls.
func (ctx *searchContext) pollNodes() {
	ctx.nodes++
	if ctx.nodes&2047 == 0 && ctx.outOfTime() {
		ctx.aborted = true
	}
}

func nonSovereignPieceCount(p *common.Position, c common.Color) int {
	return p.PieceCount(c, common.Mason) + p.PieceCount(c, common.Catapult) +
		p.PieceCount(c, common.Lancer) + p.PieceCount(c, common.Pegasus) +
		p.PieceCount(c, common.Minister)
}

// aspirationWindow runs depth around the previous iteration's score with
// a narrow window that widens (doubling) on fail-low/fail-high, per
// SPEC_FULL.md §4.7.
func aspirationWindow(ctx *searchContext, depth, prevScore int) int {
	ctx.rootDepth = depth
	if ctx.options.AspirationWindows && depth >= 2 && prevScore > valueLoss && prevScore < valueWin {
		window := 90
		if depth == 2 {
			window = 140
		}
		for {
			alpha := prevScore - window
			if alpha < -valueInfinity {
				alpha = -valueInfinity
			}
			beta := prevScore + window
			if beta > valueInfinity {
				beta = valueInfinity
			}
			score := ctx.alphaBeta(alpha, beta, depth, 0)
			if ctx.aborted {
				return score
			}
			if score > alpha && score < beta {
				return score
			}
			if alpha <= -valueInfinity && beta >= valueInfinity {
				return ctx.alphaBeta(-valueInfinity, valueInfinity, depth, 0)
			}
			window *= 2
		}
	}
	return ctx.alphaBeta(-valueInfinity, valueInfinity, depth, 0)
}

// alphaBeta is the principal-variation search. height 0 is always the
// root; root and PV nodes skip the pruning heuristics per SPEC_FULL.md
// §4.7's node-type rules.
func (ctx *searchContext) alphaBeta(alpha, beta, depth, height int) int {
	if ctx.aborted {
		return 0
	}
	if depth <= 0 {
		return ctx.quiescence(alpha, beta, height, 0)
	}
	ctx.pv[height].clear()
	ctx.pollNodes()
	if ctx.aborted {
		return 0
	}

	p := ctx.position
	rootNode := height == 0
	pvNode := beta-alpha > 1
	isNNUE := ctx.eval.IsNNUE()
	drawClaimAvailable := false

	if !rootNode {
		if height >= maxHeight {
			return ctx.eval.Evaluate(p)
		}
		if p.GameOver() {
			w, _ := p.Winner()
			if w == ctx.sideToMoveAt(height) {
				return winIn(height)
			}
			return lossIn(height)
		}

		if p.IsRepetition() {
			drawClaimAvailable = true
			if alpha < valueDraw {
				alpha = valueDraw
			}
		}

		// mate distance pruning
		if a := -valueMate + height; alpha < a {
			alpha = a
		}
		if b := valueMate - height - 1; beta > b {
			beta = b
		}
		if alpha >= beta {
			return alpha
		}
	}

	var ttMove common.Move
	ttDepth, ttScore, ttBound, ttHitMove, ttHit := ctx.tt.Read(p.Hash())
	if ttHit {
		ttMove = ttHitMove
		if !rootNode && ttDepth >= depth {
			value := valueFromTT(ttScore, height)
			if drawClaimAvailable && value < 0 {
				value = 0
			}
			switch {
			case ttBound == boundExact:
				if !(drawClaimAvailable && value == 0) {
					return value
				}
			case ttBound&boundLower != 0 && value >= beta:
				return value
			case ttBound&boundUpper != 0 && value <= alpha:
				return value
			}
		}
	}

	staticEval := ctx.eval.Evaluate(p)
	ctx.staticEval[height] = staticEval

	if height+2 <= maxHeight {
		ctx.killers.ClearFrom(height + 2)
	}

	if !rootNode && !pvNode {
		if ctx.options.Razoring && !isNNUE && depth <= 2 {
			margin := 220 + (depth-1)*180
			if staticEval+margin <= alpha {
				return ctx.quiescence(alpha, beta, height, 0)
			}
		}

		if ctx.options.ReverseFutility && !isNNUE && depth <= 2 {
			margin := 160 + depth*120
			if staticEval-margin >= beta {
				return staticEval
			}
		}

		nullMoveMinDepth, nullMoveMinPieces := 3, 3
		if isNNUE {
			nullMoveMinDepth, nullMoveMinPieces = 4, 4
		}
		if ctx.options.NullMovePruning && depth >= nullMoveMinDepth && beta < valueWin &&
			nonSovereignPieceCount(p, p.Turn()) >= nullMoveMinPieces {
			r := 2
			if isNNUE {
				r = 1
			}
			nullMoveDepthBump := 6
			if isNNUE {
				nullMoveDepthBump = 7
			}
			if depth >= nullMoveDepthBump {
				r++
			}
			var nu common.NullUndo
			p.MakeNullMove(&nu)
			ctx.eval.PushNullMove(p, &nu)
			score := -ctx.alphaBeta(-beta, -beta+1, depth-1-r, height+1)
			ctx.eval.Pop()
			p.UndoNullMove(&nu)
			if ctx.aborted {
				return 0
			}
			if score >= beta {
				if score >= valueWin {
					score = beta
				}
				return score
			}
		}
	}

	moves := &ctx.moveList[height]
	p.GenerateMoves(moves)
	scores := ctx.scores[height][:moves.Size]
	orderScores(p, moves, height, ttMove, &ctx.killers, &ctx.history, scores)

	futilityMargin, lmpIndex, lmpMargin := 220, 20, 140
	if isNNUE {
		futilityMargin, lmpIndex, lmpMargin = 340, 32, 200
	}

	us := p.Turn()
	movesSearched := 0
	best := -valueInfinity
	var bestMove common.Move
	oldAlpha := alpha
	quietIndex := 0

	for i := 0; i < moves.Size; i++ {
		moveToTop(moves, scores, i)
		m := moves.Buf[i]
		noisy := isNoisy(p, m)
		if !noisy {
			quietIndex++
		}

		if !rootNode && !pvNode && movesSearched > 0 && best > valueLoss {
			k0, k1 := ctx.killers.Get(height)
			isKiller := common.SameMove(m, k0) || common.SameMove(m, k1)

			if ctx.options.Lmp && depth == 2 && !noisy && !isKiller &&
				quietIndex > lmpIndex && staticEval+lmpMargin <= alpha {
				continue
			}
			if ctx.options.Futility && depth == 1 && !noisy && !isKiller &&
				staticEval+futilityMargin <= alpha {
				continue
			}
		}

		ctx.position.MakeMove(m, &ctx.undo[height])
		ctx.eval.PushMove(ctx.position, &ctx.undo[height])
		movesSearched++

		reduction := 0
		if ctx.options.Lmr && !pvNode && depth >= 3 && movesSearched >= 4 && !noisy {
			reduction = 1
			if movesSearched >= 8 {
				reduction++
			}
			if depth >= 6 {
				reduction++
			}
			if reduction > depth-1 {
				reduction = depth - 1
			}
		}

		newDepth := depth - 1
		var score int
		switch {
		case reduction > 0:
			score = -ctx.alphaBeta(-(alpha + 1), -alpha, newDepth-reduction, height+1)
			if score > alpha {
				score = -ctx.alphaBeta(-(alpha + 1), -alpha, newDepth, height+1)
			}
			if score > alpha && pvNode {
				score = -ctx.alphaBeta(-beta, -alpha, newDepth, height+1)
			}
		case pvNode && movesSearched > 1:
			score = -ctx.alphaBeta(-(alpha + 1), -alpha, newDepth, height+1)
			if score > alpha {
				score = -ctx.alphaBeta(-beta, -alpha, newDepth, height+1)
			}
		default:
			score = -ctx.alphaBeta(-beta, -alpha, newDepth, height+1)
		}

		ctx.eval.Pop()
		ctx.position.UndoMove(&ctx.undo[height])

		if ctx.aborted {
			return 0
		}

		if score > best {
			best = score
			bestMove = m
		}
		if score > alpha {
			alpha = score
			ctx.pv[height].assign(m, &ctx.pv[height+1])
			if alpha >= beta {
				if !noisy {
					ctx.killers.Update(height, m)
					ctx.history.Update(us, m, depth)
				}
				break
			}
		}
	}

	if movesSearched == 0 {
		// Citadel has no stalemate rule in SPEC_FULL.md, but a side can
		// in principle be left with zero generated moves; treat it as a
		// draw rather than inventing a third win condition.
		return valueDraw
	}

	bound := 0
	if best > oldAlpha {
		bound |= boundLower
	}
	if best < beta {
		bound |= boundUpper
	}
	if !(rootNode && bound == boundUpper) {
		ctx.tt.Update(p.Hash(), depth, valueToTT(best, height), bound, bestMove)
	}

	return best
}

// quiescence explores noisy replies only, capped at 4 plies beyond the
// node that entered quiescence (SPEC_FULL.md §4.7).
func (ctx *searchContext) quiescence(alpha, beta, height, qdepth int) int {
	ctx.pv[height].clear()
	ctx.pollNodes()
	if ctx.aborted {
		return 0
	}

	p := ctx.position
	if p.GameOver() {
		w, _ := p.Winner()
		if w == ctx.sideToMoveAt(height) {
			return winIn(height)
		}
		return lossIn(height)
	}
	if height >= maxHeight {
		return ctx.eval.Evaluate(p)
	}
	if p.IsRepetition() && alpha < valueDraw {
		alpha = valueDraw
		if alpha >= beta {
			return alpha
		}
	}

	standPat := ctx.eval.Evaluate(p)
	best := standPat
	if standPat > alpha {
		alpha = standPat
		if alpha >= beta {
			return alpha
		}
	}
	if qdepth >= 4 {
		return best
	}

	moves := &ctx.moveList[height]
	p.GenerateMoves(moves)
	scores := ctx.scores[height][:moves.Size]
	orderScores(p, moves, height, common.NullMove(), &ctx.killers, &ctx.history, scores)

	for i := 0; i < moves.Size; i++ {
		moveToTop(moves, scores, i)
		m := moves.Buf[i]
		if !isNoisy(p, m) {
			continue
		}

		ctx.position.MakeMove(m, &ctx.undo[height])
		ctx.eval.PushMove(ctx.position, &ctx.undo[height])
		score := -ctx.quiescence(-beta, -alpha, height+1, qdepth+1)
		ctx.eval.Pop()
		ctx.position.UndoMove(&ctx.undo[height])

		if ctx.aborted {
			return 0
		}

		if score > best {
			best = score
		}
		if score > alpha {
			alpha = score
			ctx.pv[height].assign(m, &ctx.pv[height+1])
			if alpha >= beta {
				break
			}
		}
	}

	return best
}
