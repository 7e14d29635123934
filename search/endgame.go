package search

import (
	"context"
	"fmt"
	"math/bits"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/domino14/reversi/board"
)

// Below this many empties, move ordering costs more than it saves.
const mobilityOrderingMinEmpties = 7

// Solve searches to the end of the game and scores positions by final disc
// difference only. If the deadline passes, the best root move whose value
// was fully established is returned. If none was, the earliest legal move
// is returned with the current disc difference as its score.
func (s *Solver) Solve(ctx context.Context, b *board.Board, side board.Side, rootMoves []board.Square) (*Result, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedBoard, err)
	}
	tstart := time.Now()
	s.ensureTable()
	s.setRoot(b, side, Options{RootMoves: rootMoves})
	s.ttable.Clear()
	s.ttHoldsExact = true
	s.ClearKillers()
	s.nodes.Store(0)
	empties := s.b.EmptiesCount()
	log.Debug().Int("empties", empties).Str("side", side.String()).Msg("endgame-solve-config")

	var res *Result
	err := s.withNodeTicker(func() error {
		var err error
		res, err = s.solveRoot(ctx)
		return err
	})
	res.Nodes = s.nodes.Load()
	res.TimeUsed = time.Since(tstart)
	stats := s.ttable.Stats()
	log.Debug().
		Uint64("ttable-created", stats.Created).
		Uint64("ttable-lookups", stats.Lookups).
		Uint64("ttable-hits", stats.Hits).
		Int16("score", res.Score).
		Str("best", res.BestMove.String()).
		Bool("exact", res.Exact).
		Float64("time-elapsed-sec", res.TimeUsed.Seconds()).
		Msg("solve-returning")
	return res, deadlineIsNotAnError(err)
}

func (s *Solver) solveRoot(ctx context.Context) (*Result, error) {
	side := s.rootSide
	rootKey := s.zobrist.Hash(&s.b, side)
	empties := s.b.EmptiesCount()
	fallback := &Result{
		BestMove: board.FirstSquare(s.rootMask),
		Score:    int16(s.b.DiscDiff(side)),
	}

	if s.rootMask == 0 {
		fallback.BestMove = board.NoSquare
		if s.b.GameOver() {
			fallback.Exact = true
			return fallback, nil
		}
		pv := PVLine{}
		v, err := s.endgameNegamax(ctx, rootKey, 0, -HugeNumber, HugeNumber, side, &pv)
		if err != nil {
			return fallback, err
		}
		return &Result{BestMove: board.NoSquare, Score: v, Depth: empties, PV: pv.Copy(), Exact: true}, nil
	}

	children := s.orderByMobility(s.rootMask, 0, side, board.NoSquare)
	// copy; deeper plies reuse the ply buffers.
	order := append([]scoredMove(nil), children...)

	α, β := -HugeNumber, HugeNumber
	bestValue := -HugeNumber
	bestMove := board.NoSquare
	pv := PVLine{}
	childPV := PVLine{}
	completed := 0
	var err error

	for i, child := range order {
		tok, _ := s.b.ApplySquare(child.sq, side)
		childKey := s.zobrist.AddMove(rootKey, tok)
		childPV.Clear()
		var v int16
		if i == 0 {
			v, err = s.endgameNegamax(ctx, childKey, 1, -β, -α, side.Opponent(), &childPV)
			v = -v
		} else {
			v, err = s.endgameNegamax(ctx, childKey, 1, -α-1, -α, side.Opponent(), &childPV)
			v = -v
			if err == nil && v > α {
				v, err = s.endgameNegamax(ctx, childKey, 1, -β, -α, side.Opponent(), &childPV)
				v = -v
			}
		}
		s.b.UndoMove(tok)
		if err != nil {
			break
		}
		completed++
		if s.logStream != nil {
			fmt.Fprintf(s.logStream, "- play: %v value: %v\n", child.sq, v)
		}
		if v > bestValue {
			bestValue = v
			bestMove = child.sq
			pv.Update(child.sq, childPV, v)
		}
		α = max16(α, bestValue)
	}

	if completed == 0 {
		fallback.PV = PVLine{Moves: []board.Square{fallback.BestMove}}
		return fallback, err
	}
	return &Result{
		BestMove: bestMove,
		Score:    bestValue,
		Depth:    empties,
		PV:       pv.Copy(),
		Exact:    completed == len(order),
	}, err
}

func (s *Solver) endgameNegamax(ctx context.Context, nodeKey uint64, ply int, α, β int16,
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

	own, opp := s.b.Own(side), s.b.Opp(side)
	moves := board.MoveMask(own, opp)
	if moves == 0 {
		if board.MoveMask(opp, own) == 0 {
			return int16(s.b.DiscDiff(side)), nil
		}
		childPV := PVLine{}
		v, err := s.endgameNegamax(ctx, s.zobrist.AddPass(nodeKey), ply+1, -β, -α, side.Opponent(), &childPV)
		if err != nil {
			return v, err
		}
		pv.Update(board.NoSquare, childPV, -v)
		return -v, nil
	}
	if moves&ttMove.Mask() == 0 {
		ttMove = board.NoSquare
	}

	empties := bits.OnesCount64(^(own | opp))
	var children []scoredMove
	if empties >= mobilityOrderingMinEmpties {
		children = s.orderByMobility(moves, ply, side, ttMove)
	} else {
		children = s.moveBuf[ply][:0]
		if ttMove != board.NoSquare {
			children = append(children, scoredMove{sq: ttMove})
		}
		for m := moves &^ ttMove.Mask(); m != 0; m &= m - 1 {
			children = append(children, scoredMove{sq: board.Square(bits.TrailingZeros64(m))})
		}
	}

	childPV := PVLine{}
	bestValue := -HugeNumber
	bestMove := board.NoSquare
	for i, child := range children {
		tok, _ := s.b.ApplySquare(child.sq, side)
		childKey := s.zobrist.AddMove(nodeKey, tok)
		childPV.Clear()
		var v int16
		var err error
		if i == 0 {
			v, err = s.endgameNegamax(ctx, childKey, ply+1, -β, -α, side.Opponent(), &childPV)
			v = -v
		} else {
			v, err = s.endgameNegamax(ctx, childKey, ply+1, -α-1, -α, side.Opponent(), &childPV)
			v = -v
			if err == nil && v > α && v < β {
				v, err = s.endgameNegamax(ctx, childKey, ply+1, -β, -α, side.Opponent(), &childPV)
				v = -v
			}
		}
		s.b.UndoMove(tok)
		if err != nil {
			return 0, err
		}
		if v > bestValue {
			bestValue = v
			bestMove = child.sq
			pv.Update(child.sq, childPV, v)
		}
		α = max16(α, bestValue)
		if bestValue >= β {
			break
		}
	}

	if s.transpositionTableOptim {
		var flag uint8
		if bestValue <= alphaOrig {
			flag = TTUpper
		} else if bestValue >= β {
			flag = TTLower
		} else {
			flag = TTExact
		}
		s.ttable.store(nodeKey, newEntry(bestValue, flag, empties, bestMove))
	}
	return bestValue, nil
}
