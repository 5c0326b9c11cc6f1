package engine

import (
	"context"
	"time"

	"github.com/chizhov-citadel/citadel/pkg/common"
	"github.com/chizhov-citadel/citadel/pkg/eval/nnue"
)

// SearchParams bundles one search request: the position to search from,
// the time/depth/node limits, and optional progress/stop callbacks.
type SearchParams struct {
	Position common.Position
	Limits   LimitsType
	Progress func(SearchInfo)
	Stop     func() bool
}

// SearchInfo is emitted once per completed iterative-deepening depth and
// as the final return value of Search.
type SearchInfo struct {
	Depth    int
	MainLine []common.Move
	Score    Score
	Nodes    int64
	Time     time.Duration
}

// Engine wraps the options, transposition table and evaluator choice
// behind one Search entry point, same role as the source engine's
// Engine but holding a single searchContext instead of a thread pool
// (the core is single-threaded; see SPEC_FULL.md §5).
type Engine struct {
	Options Options
	Hash    int
	net     *nnue.Network
	tt      *TransTable
}

// NewEngine builds an Engine. net may be nil, in which case every
// search falls back to the handcrafted evaluator.
func NewEngine(net *nnue.Network) *Engine {
	return &Engine{Options: NewOptions(), Hash: 16, net: net}
}

func (e *Engine) Prepare() {
	if e.tt == nil || e.tt.Size() != e.Hash {
		e.tt = NewTransTable(e.Hash)
	}
}

func (e *Engine) Clear() {
	if e.tt != nil {
		e.tt.Clear()
	}
}

// Search runs iterative deepening from depth 1 to the limits' depth (or
// MAX_PLY-1), using aspiration windows from depth 2 on, and
// returns the last fully completed depth's result. If no depth
// completes before the time/stop signal fires, it falls back to a TT
// probe or a raw static evaluation (SPEC_FULL.md §4.7).
func (e *Engine) Search(parentCtx context.Context, params SearchParams) SearchInfo {
	start := time.Now()
	e.Prepare()

	pos := params.Position
	evaluator := buildEvaluator(e.net, &pos)

	// SPEC_FULL.md §6: an unspecified depth (the Go zero value) defaults
	// to 4; a negative depth is treated as depth 1.
	limits := params.Limits
	switch {
	case limits.Depth == 0:
		limits.Depth = 4
	case limits.Depth < 0:
		limits.Depth = 1
	}

	goCtx, tm := newSimpleTimeManager(parentCtx, start, limits, pos.Turn() == common.White)
	defer tm.Close()

	sc := &searchContext{
		position: &pos,
		eval:     evaluator,
		tt:       e.tt,
		options:  &e.Options,
		rootTurn: pos.Turn(),
	}
	extStop := params.Stop
	sc.stop = func() bool {
		if goCtx.Err() != nil {
			return true
		}
		return extStop != nil && extStop()
	}

	maxDepth := maxHeight - 1
	if limits.Depth > 0 && limits.Depth < maxDepth {
		maxDepth = limits.Depth
	}

	var result SearchInfo
	prevScore := 0
	completed := false

	for depth := 1; depth <= maxDepth; depth++ {
		score := aspirationWindow(sc, depth, prevScore)
		if sc.aborted {
			break
		}
		prevScore = score
		completed = true
		result = SearchInfo{
			Depth:    depth,
			MainLine: sc.pv[0].toSlice(),
			Score:    newScore(score),
			Nodes:    int64(sc.nodes),
			Time:     time.Since(start),
		}
		if params.Progress != nil {
			params.Progress(result)
		}
		if sc.aborted {
			break
		}
		if tm.OnNodesChanged(int64(sc.nodes)) {
			break
		}
		if tm.OnIterationComplete(depth, score) {
			break
		}
	}

	if !completed {
		result = e.fallbackResult(&pos, sc, start)
	}
	return result
}

// fallbackResult covers the "very short time" case from SPEC_FULL.md
// §4.7: no depth finished, so answer with the TT's best move if one is
// already stored, otherwise the highest-ordered root move by the same
// heuristic used inside search.
func (e *Engine) fallbackResult(pos *common.Position, sc *searchContext, start time.Time) SearchInfo {
	var moves common.MoveList
	pos.GenerateMoves(&moves)

	score := sc.eval.Evaluate(pos)
	var best common.Move = common.NullMove()

	if moves.Size > 0 {
		ttMove := common.NullMove()
		if _, ttScore, _, m, ok := sc.tt.Read(pos.Hash()); ok {
			ttMove = m
			score = valueFromTT(ttScore, 0)
		}

		ordered := make([]common.Move, moves.Size)
		copy(ordered, moves.Buf[:moves.Size])
		scores := make([]int32, moves.Size)
		orderScores(pos, &moves, 0, ttMove, &sc.killers, &sc.history, scores)
		sortRootMoves(ordered, scores)
		best = ordered[0]
	}

	return SearchInfo{
		Depth:    0,
		MainLine: []common.Move{best},
		Score:    newScore(score),
		Nodes:    int64(sc.nodes),
		Time:     time.Since(start),
	}
}
