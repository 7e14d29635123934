package search

import (
	"math/bits"
	"sort"

	"github.com/domino14/reversi/board"
	"github.com/domino14/reversi/evaluator"
)

// Move ordering offsets. Higher is searched first.
const (
	HashMoveOffset  = 1 << 24
	Killer0Offset   = 1 << 23
	Killer1Offset   = 1<<23 - 1<<20
	HintOffset      = 1 << 22
	CornerOffset    = 1 << 19
	XSquarePenalty  = 1 << 19
	CSquarePenalty  = 1 << 18
	positionalScale = 16

	historyMax = 1 << 16
)

type scoredMove struct {
	sq    board.Square
	score int32
}

// orderMoves fills the ply's move buffer with the moves in mask, best
// first. Ties keep ascending square order.
func (s *Solver) orderMoves(mask uint64, ply int, side board.Side, ttMove board.Square) []scoredMove {
	buf := s.moveBuf[ply][:0]
	for m := mask; m != 0; m &= m - 1 {
		sq := board.Square(bits.TrailingZeros64(m))
		buf = append(buf, scoredMove{sq: sq, score: s.moveScore(sq, ply, side, ttMove)})
	}
	sort.SliceStable(buf, func(i, j int) bool {
		return buf[i].score > buf[j].score
	})
	return buf
}

func (s *Solver) moveScore(sq board.Square, ply int, side board.Side, ttMove board.Square) int32 {
	var score int32
	if sq == ttMove {
		score += HashMoveOffset
	}
	if s.killerPlayOptim {
		if sq == s.killers[ply][0] {
			score += Killer0Offset
		} else if sq == s.killers[ply][1] {
			score += Killer1Offset
		}
	}
	if ply == 0 && s.hintMask&sq.Mask() != 0 {
		score += HintOffset
	}
	m := sq.Mask()
	switch {
	case m&board.CornerMask != 0:
		score += CornerOffset
	case evaluator.IsDangerous(&s.b, sq):
		if m&board.XSquareMask != 0 {
			score -= XSquarePenalty
		} else {
			score -= CSquarePenalty
		}
	}
	score += s.history[side][sq]
	score += int32(evaluator.PositionalWeight(sq) * positionalScale)
	return score
}

func (s *Solver) storeKiller(ply int, sq board.Square) {
	if ply >= MaxPly || s.killers[ply][0] == sq {
		return
	}
	s.killers[ply][1] = s.killers[ply][0]
	s.killers[ply][0] = sq
}

func (s *Solver) ClearKillers() {
	for i := range s.killers {
		for j := range s.killers[i] {
			s.killers[i][j] = board.NoSquare
		}
	}
}

// updateHistory rewards a move that caused a cutoff by depth squared.
func (s *Solver) updateHistory(side board.Side, sq board.Square, depth int) {
	s.history[side][sq] += int32(depth * depth)
	if s.history[side][sq] > historyMax {
		for i := range s.history {
			for j := range s.history[i] {
				s.history[i][j] >>= 1
			}
		}
	}
}

// ageHistory decays history between searches so stale cutoffs fade.
func (s *Solver) ageHistory() {
	for i := range s.history {
		for j := range s.history[i] {
			s.history[i][j] >>= s.historyDecay
		}
	}
}

func (s *Solver) ClearHistory() {
	s.history = [2][64]int32{}
}

// orderByMobility sorts endgame moves so that replies leaving the
// opponent the fewest options come first.
func (s *Solver) orderByMobility(mask uint64, ply int, side board.Side, ttMove board.Square) []scoredMove {
	buf := s.moveBuf[ply][:0]
	own, opp := s.b.Own(side), s.b.Opp(side)
	for m := mask; m != 0; m &= m - 1 {
		sq := board.Square(bits.TrailingZeros64(m))
		f := board.Flips(sq, own, opp)
		newOwn := own | f | sq.Mask()
		newOpp := opp &^ f
		score := -int32(bits.OnesCount64(board.MoveMask(newOpp, newOwn))) << 8
		if sq == ttMove {
			score += HashMoveOffset
		}
		if sq.Mask()&board.CornerMask != 0 {
			score += 1 << 7
		}
		buf = append(buf, scoredMove{sq: sq, score: score})
	}
	sort.SliceStable(buf, func(i, j int) bool {
		return buf[i].score > buf[j].score
	})
	return buf
}
