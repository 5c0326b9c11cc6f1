package engine

// Options toggles the search's pruning and reduction heuristics, same
// shape as the source engine's Options type: a plain struct of booleans.
// Unlike the source engine, the late-move reduction amount is a fixed
// formula (computed inline in alphaBeta in search.go) rather than a precomputed
// table, since SPEC_FULL.md §4.7 pins its exact shape.
type Options struct {
	Hash              int
	AspirationWindows bool
	NullMovePruning   bool
	Razoring          bool
	ReverseFutility   bool
	Futility          bool
	Lmp               bool
	Lmr               bool
}

func NewOptions() Options {
	return Options{
		Hash:              16,
		AspirationWindows: true,
		NullMovePruning:   true,
		Razoring:          true,
		ReverseFutility:   true,
		Futility:          true,
		Lmp:               true,
		Lmr:               true,
	}
}
