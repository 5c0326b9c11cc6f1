package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/chizhov-citadel/citadel/pkg/common"
	"github.com/chizhov-citadel/citadel/pkg/eval/nnue"
)

// DatagenSample is one self-play position/score pair, the unit an
// external training pipeline would consume. The actual wire format and
// self-play policy are out of scope (see SPEC_FULL.md §1); this is only
// the record shape the worker harness below produces.
type DatagenSample struct {
	FEN   string
	Score int
}

// DatagenConfig bounds one datagen run: how many workers search in
// parallel, how many samples to collect in total, and how deep each
// worker's private search goes per position.
type DatagenConfig struct {
	Workers    int
	NumSamples int64
	Depth      int
	Positions  []common.Position
	Net        *nnue.Network
}

// RunDatagenWorkers sketches the external datagen driver's concurrency
// contract from SPEC_FULL.md §5.2: independent workers, each with its
// own private, TT-disabled-in-spirit Engine (a fresh small table per
// worker rather than a shared one, since the production search core is
// single-writer only), a single atomic sample counter shared across
// workers, and one mutex serializing the calls to write, which receives
// every accepted sample.
func RunDatagenWorkers(ctx context.Context, cfg DatagenConfig, write func(DatagenSample)) (int64, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if len(cfg.Positions) == 0 {
		return 0, nil
	}

	var produced int64
	var writeMu sync.Mutex
	var nextPosition int64

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Workers; w++ {
		g.Go(func() error {
			engine := NewEngine(cfg.Net)
			engine.Hash = 1
			engine.Prepare()

			for {
				if gctx.Err() != nil {
					return nil
				}
				if atomic.LoadInt64(&produced) >= cfg.NumSamples {
					return nil
				}

				i := atomic.AddInt64(&nextPosition, 1) - 1
				if i >= int64(len(cfg.Positions)) {
					return nil
				}
				pos := cfg.Positions[i]

				info := engine.Search(gctx, SearchParams{
					Position: pos,
					Limits:   LimitsType{Depth: cfg.Depth},
				})

				sample := DatagenSample{FEN: pos.ToFEN(), Score: info.Score.Centipawns}

				writeMu.Lock()
				write(sample)
				writeMu.Unlock()

				atomic.AddInt64(&produced, 1)
			}
		})
	}

	err := g.Wait()
	return atomic.LoadInt64(&produced), err
}
