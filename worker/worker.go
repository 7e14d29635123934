package worker

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"github.com/domino14/reversi/board"
	"github.com/domino14/reversi/search"
)

// task is one worker's share of a job.
type task struct {
	job   *Job
	gen   uint64
	board board.Board
	side  board.Side
	opts  search.Options
}

// slot is a position in the pool. Each respawn gets a new generation so
// that anything the previous goroutine reports can be recognised as stale.
type slot struct {
	id     int
	gen    uint64
	job    *Job
	cancel context.CancelFunc
	tasks  chan task
}

func (s *slot) idle() bool { return s.job == nil }

type searchFunc func(ctx context.Context, solver *search.Solver, t task) (*search.Result, error)

func defaultSearch(ctx context.Context, solver *search.Solver, t task) (*search.Result, error) {
	return solver.Search(ctx, &t.board, t.side, t.opts)
}

// spawnLocked starts a fresh goroutine for sl, discarding whatever the old
// one was doing. c.mu must be held.
func (c *Coordinator) spawnLocked(sl *slot) {
	if sl.cancel != nil {
		sl.cancel()
	}
	sl.gen++
	sl.job = nil
	if c.closed {
		sl.cancel = nil
		return
	}
	ctx, cancel := context.WithCancel(c.baseCtx)
	sl.cancel = cancel
	sl.tasks = make(chan task, 1)

	id, gen, tasks := sl.id, sl.gen, sl.tasks
	c.g.Go(func() error {
		c.runWorker(ctx, id, gen, tasks)
		return nil
	})
	log.Debug().Int("slot", id).Uint64("gen", gen).Msg("worker-spawned")
}

// runWorker owns one solver for its whole life, so its transposition table
// and history carry over between tasks until the slot is respawned.
func (c *Coordinator) runWorker(ctx context.Context, id int, gen uint64, tasks <-chan task) {
	solver := c.newSolver()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Int("slot", id).Uint64("gen", gen).Msg("worker-exiting")
			return
		case t := <-tasks:
			res, err := c.safeSearch(ctx, solver, t)
			c.deliver(id, t.gen, t.job, res, err)
		}
	}
}

// safeSearch turns a panic anywhere in the search into a worker fault.
func (c *Coordinator) safeSearch(ctx context.Context, solver *search.Solver, t task) (res *search.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).
				Uint64("job-id", t.job.id).Msg("worker-panic")
			res = nil
			err = fmt.Errorf("%w: panic: %v", ErrWorkerFault, r)
		}
	}()
	tctx, cancel := context.WithTimeout(ctx, t.opts.TimeLimit)
	defer cancel()
	// the solver enforces the budget through the context
	t.opts.TimeLimit = 0
	res, err = c.runSearch(tctx, solver, t)
	if err == nil && res == nil {
		err = fmt.Errorf("%w: empty result", ErrWorkerFault)
	}
	return res, err
}

func (c *Coordinator) newSolver() *search.Solver {
	s := &search.Solver{}
	s.Init(c.zobrist, c.cfg.evaluator())
	if c.cfg.TTMegabytes > 0 {
		s.SetTranspositionTableSize(c.cfg.TTMegabytes)
	}
	if c.cfg.EndgameThreshold > 0 {
		s.SetEndgameThreshold(c.cfg.EndgameThreshold)
	}
	if c.cfg.QuiescenceDepth > 0 {
		s.SetQuiescenceDepth(c.cfg.QuiescenceDepth)
	}
	s.SetAspirationWindow(c.cfg.AspirationWindow)
	return s
}
