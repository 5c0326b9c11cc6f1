// Package nnue implements the quantized evaluation network: a binary
// feature set over the 81-square board, a 256-unit linear accumulator
// maintained incrementally as moves are made and unmade, and a small
// int8 feed-forward head (256->32->1).
package nnue

import "github.com/chizhov-citadel/citadel/pkg/common"

const (
	NumChannels = 16 // per color: 6 piece types + wall-hp1 + wall-hp2, white block then black block
	NumSquares  = common.SqN
	InputDim    = NumChannels*NumSquares + 3 // + stm-is-white, bastionRight[white], bastionRight[black]
	H1Size      = 256
	H2Size      = 32

	featStmWhite     = NumChannels * NumSquares
	featBastionWhite = featStmWhite + 1
	featBastionBlack = featStmWhite + 2
)

// Network holds quantized weights loaded from a .nnue weight file (see
// load.go for the on-disk format). Zero-valued Network is invalid; use
// LoadFromReader/LoadFromFile or NewDefault.
type Network struct {
	FtWeights [InputDim * H1Size]int16 // feature-major: [feature*H1Size + unit]
	FtBiases  [H1Size]int32

	L2Weights [H2Size * H1Size]int8 // output-major: [outUnit*H1Size + inUnit]
	L2Biases  [H2Size]int32

	OutWeights [H2Size]int8
	OutBias    int32

	ActMax int32
	Shift2 uint32
	Shift3 uint32
}

// featureOf maps one occupied board cell to its binary input index. Per
// square, channels run white's six piece types then its two wall-hp
// levels, followed by the same eight slots for black.
func featureOf(v int8, s uint8) int {
	if common.IsPieceVal(v) {
		c, pt := common.ColorOf(v), common.PieceOf(v)
		channel := int(c)*8 + int(pt)
		return channel*NumSquares + int(s)
	}
	c, hp := common.ColorOf(v), common.WallHp(v)
	channel := int(c)*8 + 6 + (hp - 1)
	return channel*NumSquares + int(s)
}

func activeFeatures(p *common.Position) []int {
	feats := make([]int, 0, 34)
	for s := uint8(0); s < common.SqN; s++ {
		v := p.RawAt(s)
		if v == 0 {
			continue
		}
		feats = append(feats, featureOf(v, s))
	}
	if p.Turn() == common.White {
		feats = append(feats, featStmWhite)
	}
	if p.BastionRight(common.White) {
		feats = append(feats, featBastionWhite)
	}
	if p.BastionRight(common.Black) {
		feats = append(feats, featBastionBlack)
	}
	return feats
}

func (n *Network) addFeatureInto(layer *[H1Size]int32, f int) {
	base := f * H1Size
	w := n.FtWeights[base : base+H1Size]
	for i := 0; i < H1Size; i++ {
		layer[i] += int32(w[i])
	}
}

func (n *Network) removeFeatureInto(layer *[H1Size]int32, f int) {
	base := f * H1Size
	w := n.FtWeights[base : base+H1Size]
	for i := 0; i < H1Size; i++ {
		layer[i] -= int32(w[i])
	}
}

// AccumulatorStack is a per-search-thread stack of accumulator layers,
// one per ply, mirroring the source engine's updatable-evaluator stack
// (compare pkg/eval/nnue's sibling hiddenOutputs/currentHidden pattern):
// making a move pushes a new layer derived from the current one by a
// cheap incremental delta; unmaking a move just pops the index back.
type AccumulatorStack struct {
	net    *Network
	layers [common.MaxPly + 2][H1Size]int32
	depth  int
}

func (n *Network) NewAccumulatorStack(p *common.Position) *AccumulatorStack {
	s := &AccumulatorStack{net: n}
	s.initLayer(&s.layers[0], p)
	return s
}

func (s *AccumulatorStack) initLayer(layer *[H1Size]int32, p *common.Position) {
	for i := 0; i < H1Size; i++ {
		layer[i] = s.net.FtBiases[i]
	}
	for _, f := range activeFeatures(p) {
		s.net.addFeatureInto(layer, f)
	}
}

// Reset reinitializes the stack at depth 0 for a new root position.
func (s *AccumulatorStack) Reset(p *common.Position) {
	s.depth = 0
	s.initLayer(&s.layers[0], p)
}

// PushMove derives the ply+1 accumulator from the ply accumulator given
// the Undo record MakeMove just produced (p already reflects the new
// position).
func (s *AccumulatorStack) PushMove(p *common.Position, u *common.Undo) {
	s.layers[s.depth+1] = s.layers[s.depth]
	s.depth++
	top := &s.layers[s.depth]

	for i := 0; i < int(u.SqCount); i++ {
		sq := u.Sq[i]
		prevVal := u.Prev[i]
		newVal := p.RawAt(sq)
		if prevVal == newVal {
			continue
		}
		if prevVal != 0 {
			s.net.removeFeatureInto(top, featureOf(prevVal, sq))
		}
		if newVal != 0 {
			s.net.addFeatureInto(top, featureOf(newVal, sq))
		}
	}

	for c := 0; c < 2; c++ {
		before := u.PrevBastionRight[c]
		after := p.BastionRight(common.Color(c))
		if before == after {
			continue
		}
		idx := featBastionWhite + c
		if after {
			s.net.addFeatureInto(top, idx)
		} else {
			s.net.removeFeatureInto(top, idx)
		}
	}

	if u.PrevTurn != p.Turn() {
		if p.Turn() == common.White {
			s.net.addFeatureInto(top, featStmWhite)
		} else {
			s.net.removeFeatureInto(top, featStmWhite)
		}
	}
}

// PushNullMove derives the ply+1 accumulator for a null move: only the
// side-to-move bit changes.
func (s *AccumulatorStack) PushNullMove(p *common.Position, u *common.NullUndo) {
	s.layers[s.depth+1] = s.layers[s.depth]
	s.depth++
	top := &s.layers[s.depth]
	if u.PrevTurn != p.Turn() {
		if p.Turn() == common.White {
			s.net.addFeatureInto(top, featStmWhite)
		} else {
			s.net.removeFeatureInto(top, featStmWhite)
		}
	}
}

func (s *AccumulatorStack) Pop() {
	s.depth--
}

func clip(v int32, max int32) int32 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// arshift is a floor-division arithmetic right shift: correct for
// negative operands, unlike Go's native >> on a converted unsigned value.
func arshift(x int32, shift uint32) int32 {
	if shift == 0 {
		return x
	}
	if x >= 0 {
		return x >> shift
	}
	return -((-x + (1 << shift) - 1) >> shift)
}

// EvaluateWhite runs the forward pass over the top-of-stack accumulator
// and returns the network's raw, White-perspective output.
func (s *AccumulatorStack) EvaluateWhite() int {
	n := s.net
	acc := &s.layers[s.depth]

	var l1 [H1Size]int32
	for i := 0; i < H1Size; i++ {
		l1[i] = clip(acc[i], n.ActMax)
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

// EvaluateStm returns the network's output from the side-to-move's
// perspective.
func (s *AccumulatorStack) EvaluateStm(p *common.Position) int {
	v := s.EvaluateWhite()
	if p.Turn() == common.Black {
		v = -v
	}
	return v
}
