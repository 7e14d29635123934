package evaluator

import (
	"math/bits"

	"github.com/domino14/reversi/board"
)

type Phase int

const (
	Opening Phase = iota
	Midgame
	LateMidgame
	Endgame
)

func (p Phase) String() string {
	switch p {
	case Opening:
		return "opening"
	case Midgame:
		return "midgame"
	case LateMidgame:
		return "late-midgame"
	}
	return "endgame"
}

// PhaseOf classifies a position by its number of empty squares.
func PhaseOf(empties int) Phase {
	switch {
	case empties > 44:
		return Opening
	case empties > 28:
		return Midgame
	case empties > 16:
		return LateMidgame
	}
	return Endgame
}

// Weights multiply each evaluation term. Mobility, frontier and stability
// terms are ratios in [-100, 100]; Corners is per corner; DiscDiff is per
// disc. All but Corners are divided by 10 after weighting.
type Weights struct {
	Mobility   int
	Frontier   int
	Stability  int
	Corners    int
	Positional int
	DiscDiff   int
}

var DefaultWeights = [4]Weights{
	Opening:     {Mobility: 8, Frontier: 4, Stability: 2, Corners: 30, Positional: 3},
	Midgame:     {Mobility: 6, Frontier: 4, Stability: 6, Corners: 35, Positional: 2},
	LateMidgame: {Mobility: 5, Frontier: 2, Stability: 10, Corners: 35, Positional: 1, DiscDiff: 2},
	Endgame:     {Mobility: 3, Frontier: 1, Stability: 12, Corners: 25, DiscDiff: 10},
}

// positionalTable is the classic piece-square table. Corners are good,
// X- and C-squares are bad.
var positionalTable = [64]int{
	100, -20, 10, 5, 5, 10, -20, 100,
	-20, -50, -2, -2, -2, -2, -50, -20,
	10, -2, -1, -1, -1, -1, -2, 10,
	5, -2, -1, -1, -1, -1, -2, 5,
	5, -2, -1, -1, -1, -1, -2, 5,
	10, -2, -1, -1, -1, -1, -2, 10,
	-20, -50, -2, -2, -2, -2, -50, -20,
	100, -20, 10, 5, 5, 10, -20, 100,
}

func PositionalWeight(sq board.Square) int {
	if sq >= board.NoSquare {
		return 0
	}
	return positionalTable[sq]
}

const (
	diagA1H8 uint64 = 0x8040201008040201
	diagA8H1 uint64 = 0x0102040810204080
)

// PhasedEvaluator is the default static evaluator.
type PhasedEvaluator struct {
	Weights [4]Weights
}

func NewPhasedEvaluator() *PhasedEvaluator {
	return &PhasedEvaluator{Weights: DefaultWeights}
}

func (pe *PhasedEvaluator) Type() string { return "PhasedEvaluator" }

func (pe *PhasedEvaluator) Evaluate(b *board.Board, side board.Side) int {
	own, opp := b.Own(side), b.Opp(side)
	empty := b.Empty()
	w := pe.Weights[PhaseOf(bits.OnesCount64(empty))]

	ownMob := bits.OnesCount64(board.MoveMask(own, opp))
	oppMob := bits.OnesCount64(board.MoveMask(opp, own))

	adjEmpty := board.Neighbors(empty)
	ownFront := bits.OnesCount64(own & adjEmpty)
	oppFront := bits.OnesCount64(opp & adjEmpty)

	ownStable := bits.OnesCount64(StableDiscs(own))
	oppStable := bits.OnesCount64(StableDiscs(opp))

	corners := bits.OnesCount64(own&board.CornerMask) - bits.OnesCount64(opp&board.CornerMask)

	pos := 0
	for m := own; m != 0; m &= m - 1 {
		pos += positionalTable[bits.TrailingZeros64(m)]
	}
	for m := opp; m != 0; m &= m - 1 {
		pos -= positionalTable[bits.TrailingZeros64(m)]
	}

	score := w.Mobility*ratio(ownMob, oppMob) +
		w.Frontier*ratio(oppFront, ownFront) +
		w.Stability*ratio(ownStable, oppStable) +
		w.Positional*pos +
		w.DiscDiff*(bits.OnesCount64(own)-bits.OnesCount64(opp))
	score = score/10 + w.Corners*corners
	return Clamp(score)
}

// ratio returns 100*(a-b)/(a+b), or 0 when both are zero.
func ratio(a, b int) int {
	if a+b == 0 {
		return 0
	}
	return 100 * (a - b) / (a + b)
}

// StableDiscs approximates the stable discs of one colour: discs connected to
// an owned corner by an unbroken run along an edge or a main diagonal.
func StableDiscs(own uint64) uint64 {
	stable := own & board.CornerMask
	if stable == 0 {
		return 0
	}
	edges := own & board.EdgeMask
	diags := own & (diagA1H8 | diagA8H1)
	for i := 0; i < 7; i++ {
		prev := stable
		stable |= (board.Shift(stable, board.East) | board.Shift(stable, board.West) |
			board.Shift(stable, board.North) | board.Shift(stable, board.South)) & edges
		stable |= (board.Shift(stable, board.NorthEast) | board.Shift(stable, board.NorthWest) |
			board.Shift(stable, board.SouthEast) | board.Shift(stable, board.SouthWest)) & diags
		if stable == prev {
			break
		}
	}
	return stable
}
