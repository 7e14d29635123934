package worker

import (
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/domino14/reversi/board"
	"github.com/domino14/reversi/evaluator"
	"github.com/domino14/reversi/search"
)

// partitionRoundRobin deals moves out to n workers like cards: move i goes
// to worker i%n.
func partitionRoundRobin(moves []board.Square, n int) [][]board.Square {
	if n <= 0 {
		return nil
	}
	idx := lo.PartitionBy(lo.Range(len(moves)), func(i int) int { return i % n })
	return lo.Map(idx, func(group []int, _ int) []board.Square {
		return lo.Map(group, func(i int, _ int) board.Square { return moves[i] })
	})
}

// betterPartial orders partials by score, then by lower square.
func betterPartial(a, b *search.Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.BestMove < b.BestMove
}

// choosePartial picks the highest scoring partial. When that move is a
// dangerous square and a safe move scores within margin of it, the best
// such safe move wins instead. Solved scores are never second-guessed.
func choosePartial(b *board.Board, partials []*search.Result, margin int) *search.Result {
	withMove := lo.Filter(partials, func(r *search.Result, _ int) bool { return r.HasMove() })
	if len(withMove) == 0 {
		if len(partials) == 0 {
			return nil
		}
		return partials[0]
	}
	best := lo.MaxBy(withMove, betterPartial)
	if best.Exact || !evaluator.IsDangerous(b, best.BestMove) {
		return best
	}
	safe := lo.Filter(withMove, func(r *search.Result, _ int) bool {
		return !evaluator.IsDangerous(b, r.BestMove) && int(best.Score)-int(r.Score) <= margin
	})
	if len(safe) == 0 {
		return best
	}
	alt := lo.MaxBy(safe, betterPartial)
	log.Debug().Str("dangerous", best.BestMove.String()).Str("preferred", alt.BestMove.String()).
		Int16("gap", best.Score-alt.Score).Msg("avoiding-dangerous-square")
	return alt
}

// aggregate builds the job's response out of whatever partials have arrived.
// c.mu must be held.
func (c *Coordinator) aggregate(job *Job) *Response {
	chosen := choosePartial(&job.board, job.partials, c.cfg.DangerMargin)
	if chosen == nil {
		return c.fallbackResponse(job)
	}
	resp := &Response{
		Evaluation:    int(chosen.Score),
		NodesSearched: lo.SumBy(job.partials, func(r *search.Result) uint64 { return r.Nodes }),
		DepthReached:  chosen.Depth,
		WorkersUsed:   job.workersUsed,
		PrincipalVariation: lo.Map(chosen.PV.Moves, func(m board.Square, _ int) board.Position {
			return m.Position()
		}),
		Exact: len(job.partials) == job.workersUsed &&
			lo.EveryBy(job.partials, func(r *search.Result) bool { return r.Exact }),
	}
	if chosen.HasMove() {
		p := chosen.BestMove.Position()
		resp.BestMove = &p
	}
	return resp
}

// fallbackResponse answers a job that timed out before any worker reported:
// the first legal move with a static evaluation.
func (c *Coordinator) fallbackResponse(job *Job) *Response {
	b := &job.board
	resp := &Response{WorkersUsed: job.workersUsed, PrincipalVariation: []board.Position{}}
	if b.Validate() != nil {
		return resp
	}
	moves := b.ValidMoveMask(job.side)
	switch {
	case moves != 0:
		sq := board.FirstSquare(moves)
		p := sq.Position()
		resp.BestMove = &p
		resp.PrincipalVariation = []board.Position{p}
		resp.Evaluation = c.staticEval(b, job.side)
	case b.GameOver():
		resp.Evaluation = b.DiscDiff(job.side)
		resp.Exact = true
	default:
		resp.Evaluation = c.staticEval(b, job.side)
	}
	log.Debug().Uint64("job-id", job.id).Msg("no-partials-using-fallback")
	return resp
}

func (c *Coordinator) staticEval(b *board.Board, side board.Side) (score int) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("fallback-evaluation-panic")
			score = b.DiscDiff(side)
		}
	}()
	return evaluator.Clamp(c.cfg.evaluator().Evaluate(b, side))
}
