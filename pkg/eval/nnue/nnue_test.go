package nnue

import (
	"testing"

	"github.com/chizhov-citadel/citadel/pkg/common"
)

// buildTestNetwork fills every weight/bias array with small, deterministic,
// bounded values so the forward pass is reproducible without a real
// trained weight file.
func buildTestNetwork() *Network {
	n := &Network{ActMax: 127, Shift2: 6, Shift3: 6, OutBias: 7}
	for i := range n.FtWeights {
		n.FtWeights[i] = int16((i%13)-6)
	}
	for i := range n.FtBiases {
		n.FtBiases[i] = int32((i%5)-2)
	}
	for i := range n.L2Weights {
		n.L2Weights[i] = int8((i%7)-3)
	}
	for i := range n.L2Biases {
		n.L2Biases[i] = int32((i%4)-2)
	}
	for i := range n.OutWeights {
		n.OutWeights[i] = int8((i%5)-2)
	}
	return n
}

// forwardFromFeatures recomputes the full forward pass directly from a
// feature list, independent of initLayer/EvaluateWhite, as a cross-check
// on the accumulator path.
func forwardFromFeatures(n *Network, feats []int) int {
	var l1raw [H1Size]int32
	copy(l1raw[:], n.FtBiases[:])
	for _, f := range feats {
		base := f * H1Size
		w := n.FtWeights[base : base+H1Size]
		for i := 0; i < H1Size; i++ {
			l1raw[i] += int32(w[i])
		}
	}

	var l1 [H1Size]int32
	for i := 0; i < H1Size; i++ {
		l1[i] = clip(l1raw[i], n.ActMax)
	}

	var l2 [H2Size]int32
	for j := 0; j < H2Size; j++ {
		sum := n.L2Biases[j]
		row := n.L2Weights[j*H1Size : j*H1Size+H1Size]
		for i := 0; i < H1Size; i++ {
			sum += int32(row[i]) * l1[i]
		}
		l2[j] = clip(arshift(sum, n.Shift2), n.ActMax)
	}

	out := n.OutBias
	for j := 0; j < H2Size; j++ {
		out += int32(n.OutWeights[j]) * l2[j]
	}
	return int(arshift(out, n.Shift3))
}

// N1: the accumulator built by NewAccumulatorStack for a position equals
// an independently recomputed forward pass over that position's active
// features.
func TestAccumulatorMatchesFromScratchForward(t *testing.T) {
	net := buildTestNetwork()
	p, err := common.FromFEN("CLPISIPLC/MMMMMMMMM/9/9/9/9/9/mmmmmmmmm/clpisiplc w Bb - 0 1")
	if err != nil {
		t.Fatalf("FromFEN: %v", err)
	}

	stack := net.NewAccumulatorStack(&p)
	got := stack.EvaluateWhite()
	want := forwardFromFeatures(net, activeFeatures(&p))

	if got != want {
		t.Fatalf("EvaluateWhite() = %d, want %d (from-scratch forward pass)", got, want)
	}
}

// N2: pushing a move's delta onto an existing accumulator produces the
// same evaluation, byte-exactly, as building a fresh accumulator for the
// resulting position from scratch.
func TestPushMoveMatchesFreshAccumulator(t *testing.T) {
	net := buildTestNetwork()
	p, err := common.FromFEN("CLPISIPLC/MMMMMMMMM/9/9/9/9/9/mmmmmmmmm/clpisiplc w Bb - 0 1")
	if err != nil {
		t.Fatalf("FromFEN: %v", err)
	}

	var moves common.MoveList
	p.GenerateMoves(&moves)
	if moves.Size == 0 {
		t.Fatalf("no moves generated from initial position")
	}
	m := moves.Buf[0]

	stack := net.NewAccumulatorStack(&p)

	var u common.Undo
	p.MakeMove(m, &u)
	stack.PushMove(&p, &u)

	got := stack.EvaluateWhite()
	want := net.NewAccumulatorStack(&p).EvaluateWhite()

	if got != want {
		t.Fatalf("move %v: incremental EvaluateWhite() = %d, want %d (fresh accumulator)", m, got, want)
	}
}

// N2, continued: popping the pushed layer and undoing the move restores
// the original evaluation too.
func TestPopRestoresPriorEvaluation(t *testing.T) {
	net := buildTestNetwork()
	p, err := common.FromFEN("CLPISIPLC/MMMMMMMMM/9/9/9/9/9/mmmmmmmmm/clpisiplc w Bb - 0 1")
	if err != nil {
		t.Fatalf("FromFEN: %v", err)
	}

	var moves common.MoveList
	p.GenerateMoves(&moves)
	m := moves.Buf[0]

	stack := net.NewAccumulatorStack(&p)
	before := stack.EvaluateWhite()

	var u common.Undo
	p.MakeMove(m, &u)
	stack.PushMove(&p, &u)
	stack.Pop()
	p.UndoMove(&u)

	after := stack.EvaluateWhite()
	if after != before {
		t.Fatalf("EvaluateWhite() after pop/undo = %d, want %d", after, before)
	}
}

// N3: arshift is floor division, not Go's truncating >> on a sign-lost
// value — the negative case is the one that would silently break under a
// naive uint conversion.
func TestArshiftIsFloorDivision(t *testing.T) {
	cases := []struct {
		x     int32
		shift uint32
		want  int32
	}{
		{0, 3, 0},
		{8, 0, 8},
		{5, 1, 2},
		{-5, 1, -3},
		{-7, 2, -2},
		{-1, 4, -1},
	}
	for _, c := range cases {
		if got := arshift(c.x, c.shift); got != c.want {
			t.Errorf("arshift(%d, %d) = %d, want %d", c.x, c.shift, got, c.want)
		}
	}
}
