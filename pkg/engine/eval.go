package engine

import (
	"github.com/chizhov-citadel/citadel/pkg/common"
	"github.com/chizhov-citadel/citadel/pkg/eval/hce"
	"github.com/chizhov-citadel/citadel/pkg/eval/nnue"
)

// Evaluator is the search's view of a leaf evaluator. Reset/PushMove/
// PushNullMove/Pop mirror Position's own make/undo calls so a stateful
// evaluator (NNUE) can keep an incremental accumulator in lock-step with
// the search descent; a stateless evaluator (HCE) implements them as
// no-ops. Evaluate always returns a side-to-move-relative centipawn
// score, same contract for both backends.
type Evaluator interface {
	Reset(p *common.Position)
	PushMove(p *common.Position, u *common.Undo)
	PushNullMove(p *common.Position, u *common.NullUndo)
	Pop()
	Evaluate(p *common.Position) int
	IsNNUE() bool
}

type hceAdapter struct {
	svc *hce.EvaluationService
}

func newHCEAdapter() *hceAdapter {
	return &hceAdapter{svc: hce.NewEvaluationService()}
}

func (a *hceAdapter) Reset(p *common.Position)                          {}
func (a *hceAdapter) PushMove(p *common.Position, u *common.Undo)       {}
func (a *hceAdapter) PushNullMove(p *common.Position, u *common.NullUndo) {}
func (a *hceAdapter) Pop()                                              {}
func (a *hceAdapter) Evaluate(p *common.Position) int                   { return a.svc.Evaluate(p) }
func (a *hceAdapter) IsNNUE() bool                                      { return false }

type nnueAdapter struct {
	net   *nnue.Network
	stack *nnue.AccumulatorStack
}

func newNNUEAdapter(net *nnue.Network, p *common.Position) *nnueAdapter {
	return &nnueAdapter{net: net, stack: net.NewAccumulatorStack(p)}
}

func (a *nnueAdapter) Reset(p *common.Position)                              { a.stack.Reset(p) }
func (a *nnueAdapter) PushMove(p *common.Position, u *common.Undo)           { a.stack.PushMove(p, u) }
func (a *nnueAdapter) PushNullMove(p *common.Position, u *common.NullUndo)   { a.stack.PushNullMove(p, u) }
func (a *nnueAdapter) Pop()                                                  { a.stack.Pop() }
func (a *nnueAdapter) Evaluate(p *common.Position) int                      { return a.stack.EvaluateStm(p) }
func (a *nnueAdapter) IsNNUE() bool                                          { return true }

// buildEvaluator picks NNUE when a weight file was found at startup,
// falling back to the handcrafted evaluator otherwise (see DESIGN.md's
// Open Question on silent NNUE fallback).
func buildEvaluator(net *nnue.Network, p *common.Position) Evaluator {
	if net != nil {
		return newNNUEAdapter(net, p)
	}
	return newHCEAdapter()
}

// EvaluatePositionStm scores p from the side to move's perspective using
// whichever backend net selects, with no search at all. Grounded on the
// original engine's evaluatePositionStm, kept as a cheap entry point for
// callers (and tests) that just want a static read of a position.
func EvaluatePositionStm(net *nnue.Network, p *common.Position) int {
	return buildEvaluator(net, p).Evaluate(p)
}
