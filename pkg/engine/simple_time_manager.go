package engine

import (
	"context"
	"time"
)

// LimitsType mirrors the source engine's LimitsType: at most one of
// MoveTime or the clock fields is meaningful for a given search call.
type LimitsType struct {
	Depth          int
	Nodes          int64
	MoveTime       int // milliseconds
	WhiteTime      int
	BlackTime      int
	WhiteIncrement int
	BlackIncrement int
	MovesToGo      int
	Infinite       bool
}

type simpleTimeManager struct {
	start     time.Time
	limits    LimitsType
	softLimit time.Duration
	hardLimit time.Duration
	cancel    context.CancelFunc
}

func newSimpleTimeManager(ctx context.Context, start time.Time, limits LimitsType, sideToMoveIsWhite bool) (context.Context, *simpleTimeManager) {
	tm := &simpleTimeManager{start: start, limits: limits}

	switch {
	case limits.MoveTime > 0:
		tm.hardLimit = time.Duration(limits.MoveTime) * time.Millisecond
	case limits.WhiteTime > 0 || limits.BlackTime > 0:
		var main, inc time.Duration
		if sideToMoveIsWhite {
			main = time.Duration(limits.WhiteTime) * time.Millisecond
			inc = time.Duration(limits.WhiteIncrement) * time.Millisecond
		} else {
			main = time.Duration(limits.BlackTime) * time.Millisecond
			inc = time.Duration(limits.BlackIncrement) * time.Millisecond
		}
		tm.softLimit, tm.hardLimit = calcLimits(main, inc, limits.MovesToGo)
	}

	var cancel context.CancelFunc
	if tm.hardLimit != 0 {
		ctx, cancel = context.WithDeadline(ctx, start.Add(tm.hardLimit))
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	tm.cancel = cancel
	return ctx, tm
}

func (tm *simpleTimeManager) OnNodesChanged(nodes int64) bool {
	return tm.limits.Nodes > 0 && nodes >= tm.limits.Nodes
}

// OnIterationComplete reports whether the search should stop after the
// just-finished depth: depth limit reached, a forced mate was found, or
// the soft time budget was exceeded.
func (tm *simpleTimeManager) OnIterationComplete(depth, score int) bool {
	if tm.limits.Infinite {
		return false
	}
	if tm.limits.Depth != 0 && depth >= tm.limits.Depth {
		return true
	}
	if depth > 5 && (score >= winIn(depth-5) || score <= lossIn(depth-5)) {
		return true
	}
	if tm.softLimit != 0 && time.Since(tm.start) >= tm.softLimit {
		return true
	}
	return false
}

func (tm *simpleTimeManager) Close() {
	tm.cancel()
}

func calcLimits(main, inc time.Duration, moves int) (soft, hard time.Duration) {
	const (
		defaultMovesToGo = 40
		moveOverhead     = 300 * time.Millisecond
		minTimeLimit     = 1 * time.Millisecond
	)

	main -= moveOverhead
	if main < minTimeLimit {
		main = minTimeLimit
	}

	if moves == 0 {
		ideal := main/35 + inc/2
		soft = ideal * 7 / 10
		hard = ideal * 21 / 10
	} else {
		if moves > defaultMovesToGo {
			moves = defaultMovesToGo
		}
		soft = (main/time.Duration(moves+1) + inc) * 7 / 10
		hard = (main/time.Duration(moves+1) + inc) * 21 / 10
	}

	hard = clampDuration(hard, minTimeLimit, main)
	soft = clampDuration(soft, minTimeLimit, main)
	return
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
