package search

import (
	"context"
	"fmt"
	"math/bits"
	"strings"

	"github.com/domino14/reversi/board"
	"github.com/domino14/reversi/evaluator"
)

// thanks Wikipedia:
/*
function negamax(node, depth, α, β, color) is
    if depth = 0 or node is a terminal node then
        return color × the heuristic value of node

    childNodes := generateMoves(node)
    childNodes := orderMoves(childNodes)
    value := −∞
    foreach child in childNodes do
        value := max(value, −negamax(child, depth − 1, −β, −α, −color))
        α := max(α, value)
        if α ≥ β then
            break (* cut-off *)
    return value
**/

// noisy move thresholds for quiescence
const (
	quiescenceMinFlips    = 6
	quiescenceMaxMobility = 3
)

func max16(x, y int16) int16 {
	if x < y {
		return y
	}
	return x
}

func min16(x, y int16) int16 {
	if x < y {
		return x
	}
	return y
}

func (s *Solver) evaluate(side board.Side) int16 {
	return int16(evaluator.Clamp(s.eval.Evaluate(&s.b, side)))
}

func (s *Solver) negamax(ctx context.Context, nodeKey uint64, depth, ply int, α, β int16,
	side board.Side, pv *PVLine) (int16, error) {

	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	s.nodes.Add(1)

	alphaOrig := α
	ttMove := board.NoSquare

	if s.transpositionTableOptim {
		ttEntry := s.ttable.lookup(nodeKey)
		if ttEntry.valid() {
			ttMove = ttEntry.move()
			// The root always searches so that it can report a move.
			if ply > 0 && ttEntry.depth() >= uint8(depth) {
				score := ttEntry.score
				flag := ttEntry.flag()
				if flag == TTExact {
					return score, nil
				} else if flag == TTLower {
					α = max16(α, score)
				} else if flag == TTUpper {
					β = min16(β, score)
				}
				if α >= β {
					return score, nil
				}
			}
		}
	}

	var moves uint64
	if ply == 0 {
		moves = s.rootMask
	} else {
		moves = s.b.ValidMoveMask(side)
	}
	if moves&ttMove.Mask() == 0 {
		ttMove = board.NoSquare
	}

	if moves == 0 {
		opp := side.Opponent()
		if !s.b.HasMoves(opp) {
			return finalScore(s.b.DiscDiff(side)), nil
		}
		// Passing does not use up depth.
		childPV := PVLine{}
		v, err := s.negamax(ctx, s.zobrist.AddPass(nodeKey), depth, ply+1, -β, -α, opp, &childPV)
		if err != nil {
			return v, err
		}
		pv.Update(board.NoSquare, childPV, -v)
		return -v, nil
	}

	if depth <= 0 || ply >= MaxPly-1 {
		if s.quiescenceOptim && s.quiescenceDepth > 0 && ply < MaxPly-s.quiescenceDepth {
			return s.quiescence(ctx, s.quiescenceDepth, ply, α, β, side)
		}
		return s.evaluate(side), nil
	}

	childPV := PVLine{}
	children := s.orderMoves(moves, ply, side, ttMove)
	bestValue := -HugeNumber
	bestMove := board.NoSquare
	indent := 2 * ply
	if s.logStream != nil && ply < 2 {
		fmt.Fprintf(s.logStream, "  %vplays:\n", strings.Repeat(" ", indent))
	}

	for i, child := range children {
		tok, ok := s.b.ApplySquare(child.sq, side)
		if !ok {
			// only a corrupted move mask could get here.
			panic(fmt.Sprintf("illegal move %s generated at ply %d", child.sq, ply))
		}
		childKey := s.zobrist.AddMove(nodeKey, tok)
		childPV.Clear()

		var value int16
		var err error
		if i == 0 {
			value, err = s.negamax(ctx, childKey, depth-1, ply+1, -β, -α, side.Opponent(), &childPV)
			value = -value
		} else {
			reduction := 0
			if s.lateMoveReductionOptim && depth >= 3 && i >= 3 &&
				child.sq.Mask()&board.CornerMask == 0 &&
				child.sq != s.killers[ply][0] && child.sq != s.killers[ply][1] {
				reduction = lmrTable[min(depth, 63)][min(i, 63)]
				if reduction > depth-2 {
					reduction = depth - 2
				}
			}
			// null window first; only promising moves get the full window.
			value, err = s.negamax(ctx, childKey, depth-1-reduction, ply+1, -α-1, -α, side.Opponent(), &childPV)
			value = -value
			if err == nil && value > α && reduction > 0 {
				value, err = s.negamax(ctx, childKey, depth-1, ply+1, -α-1, -α, side.Opponent(), &childPV)
				value = -value
			}
			if err == nil && value > α && value < β {
				value, err = s.negamax(ctx, childKey, depth-1, ply+1, -β, -α, side.Opponent(), &childPV)
				value = -value
			}
		}
		s.b.UndoMove(tok)
		if err != nil {
			return 0, err
		}
		if s.logStream != nil && ply < 2 {
			fmt.Fprintf(s.logStream, "  %v- play: %v value: %v\n", strings.Repeat(" ", indent), child.sq, value)
		}

		if value > bestValue {
			bestValue = value
			bestMove = child.sq
			pv.Update(child.sq, childPV, bestValue)
		}
		α = max16(α, bestValue)
		if bestValue >= β {
			if s.killerPlayOptim {
				s.storeKiller(ply, child.sq)
			}
			s.updateHistory(side, child.sq, depth)
			break // beta cut-off
		}
	}

	if s.transpositionTableOptim && (ply > 0 || !s.rootRestricted) {
		var flag uint8
		if bestValue <= alphaOrig {
			flag = TTUpper
		} else if bestValue >= β {
			flag = TTLower
		} else {
			flag = TTExact
		}
		s.ttable.store(nodeKey, newEntry(bestValue, flag, depth, bestMove))
	}
	return bestValue, nil
}

// quiescence extends a leaf with noisy moves only: corners, big flips, and
// moves that leave the opponent almost nothing to play.
func (s *Solver) quiescence(ctx context.Context, qdepth, ply int, α, β int16, side board.Side) (int16, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	s.nodes.Add(1)

	own, opp := s.b.Own(side), s.b.Opp(side)
	moves := board.MoveMask(own, opp)
	if moves == 0 && board.MoveMask(opp, own) == 0 {
		return finalScore(s.b.DiscDiff(side)), nil
	}
	standPat := s.evaluate(side)
	if qdepth == 0 || moves == 0 || standPat >= β {
		return standPat, nil
	}
	α = max16(α, standPat)
	best := standPat

	for m := moves; m != 0; m &= m - 1 {
		sq := board.Square(bits.TrailingZeros64(m))
		flips := board.Flips(sq, own, opp)
		corner := sq.Mask()&board.CornerMask != 0
		tok, _ := s.b.ApplySquare(sq, side)
		noisy := corner || bits.OnesCount64(flips) >= quiescenceMinFlips ||
			bits.OnesCount64(s.b.ValidMoveMask(side.Opponent())) <= quiescenceMaxMobility
		if !noisy {
			s.b.UndoMove(tok)
			continue
		}
		v, err := s.quiescence(ctx, qdepth-1, ply+1, -β, -α, side.Opponent())
		s.b.UndoMove(tok)
		if err != nil {
			return 0, err
		}
		v = -v
		if v > best {
			best = v
		}
		α = max16(α, v)
		if α >= β {
			break
		}
	}
	return best, nil
}
