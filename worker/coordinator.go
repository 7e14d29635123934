package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/domino14/reversi/board"
	"github.com/domino14/reversi/search"
	"github.com/domino14/reversi/zobrist"
)

var (
	ErrNoWorkersAvailable = errors.New("no workers available")
	ErrJobCancelled       = errors.New("job cancelled")
	ErrWorkerFault        = errors.New("worker execution fault with no usable partial result")
	ErrClosed             = errors.New("coordinator closed")
)

// Coordinator runs a fixed pool of search workers. Every worker owns its
// own solver; the coordinator only tracks which worker serves which job.
// All job and slot bookkeeping happens under mu.
type Coordinator struct {
	cfg     *WorkerConfig
	zobrist *zobrist.Zobrist

	baseCtx   context.Context
	cancelAll context.CancelFunc
	g         *errgroup.Group
	runSearch searchFunc

	mu        sync.Mutex
	slots     []*slot
	jobs      map[uint64]*Job
	nextJobID uint64
	closed    bool
}

// NewCoordinator starts cfg.Workers workers.
func NewCoordinator(cfg *WorkerConfig) *Coordinator {
	return newCoordinator(cfg, defaultSearch)
}

func newCoordinator(wc *WorkerConfig, run searchFunc) *Coordinator {
	cfg := *wc
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	z := &zobrist.Zobrist{}
	if cfg.ZobristSeed != "" {
		z.InitializeWithSeed(cfg.ZobristSeed)
	} else {
		z.Initialize()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		cfg:       &cfg,
		zobrist:   z,
		baseCtx:   ctx,
		cancelAll: cancel,
		g:         &errgroup.Group{},
		runSearch: run,
		jobs:      make(map[uint64]*Job),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < cfg.Workers; i++ {
		sl := &slot{id: i}
		c.slots = append(c.slots, sl)
		c.spawnLocked(sl)
	}
	log.Info().Int("workers", cfg.Workers).Dur("default-time-limit", cfg.DefaultTimeLimit).
		Msg("coordinator-started")
	return c
}

// Analyze implements Engine.
func (c *Coordinator) Analyze(ctx context.Context, req Request) (*Response, error) {
	job, err := c.Submit(req)
	if err != nil {
		return nil, err
	}
	return job.Wait(ctx)
}

// SearchSingle runs the whole request on one idle worker.
func (c *Coordinator) SearchSingle(ctx context.Context, b *board.Board, side board.Side, opts Options) (*Response, error) {
	opts.Distribute = false
	return c.Analyze(ctx, Request{Board: *b, Side: side, Options: opts})
}

// SearchDistributed splits rootMoves (all legal moves if empty) across the
// idle workers. With fewer than two idle workers or two root moves it runs
// as a single search.
func (c *Coordinator) SearchDistributed(ctx context.Context, b *board.Board, side board.Side,
	opts Options, rootMoves []board.Square) (*Response, error) {

	opts.Distribute = true
	job, err := c.submit(Request{Board: *b, Side: side, Options: opts}, rootMoves)
	if err != nil {
		return nil, err
	}
	return job.Wait(ctx)
}

// Submit starts a job and returns at once.
func (c *Coordinator) Submit(req Request) (*Job, error) {
	return c.submit(req, nil)
}

func (c *Coordinator) submit(req Request, rootMoves []board.Square) (*Job, error) {
	limit := time.Duration(req.Options.TimeLimitMs) * time.Millisecond
	if limit <= 0 {
		limit = c.cfg.DefaultTimeLimit
	}
	depth := req.Options.DepthLimit
	if depth <= 0 {
		depth = c.cfg.MaxDepth
	}
	hints := make([]board.Square, 0, len(req.Options.Hints))
	for _, p := range req.Options.Hints {
		if p.Valid() {
			hints = append(hints, p.Index())
		}
	}

	legal := req.Board.ValidMoveMask(req.Side)
	if len(rootMoves) == 0 {
		rootMoves = board.Squares(legal)
	} else {
		rootMoves = filterLegal(rootMoves, legal)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	idle := c.idleSlotsLocked()
	if len(idle) == 0 {
		return nil, ErrNoWorkersAvailable
	}

	c.nextJobID++
	job := &Job{
		id:          c.nextJobID,
		c:           c,
		done:        make(chan struct{}),
		start:       time.Now(),
		board:       req.Board,
		side:        req.Side,
		state:       jobAssigned,
		outstanding: make(map[int]uint64),
	}
	c.jobs[job.id] = job

	base := search.Options{MaxDepth: depth, Hints: hints}
	if req.Options.Distribute && len(idle) >= 2 && len(rootMoves) >= 2 &&
		req.Board.Validate() == nil {
		n := min(len(idle), len(rootMoves))
		parts := partitionRoundRobin(rootMoves, n)
		budget := c.cfg.budget(limit, n)
		for i, part := range parts {
			opts := base
			opts.RootMoves = part
			opts.TimeLimit = budget
			c.assignLocked(idle[i], job, opts)
		}
		log.Debug().Uint64("job-id", job.id).Int("workers", n).Dur("budget", budget).
			Msg("job-distributed")
	} else {
		opts := base
		opts.TimeLimit = c.cfg.budget(limit, 1)
		if len(rootMoves) > 0 && len(rootMoves) < board.Popcount(legal) {
			opts.RootMoves = rootMoves
		}
		c.assignLocked(idle[0], job, opts)
		log.Debug().Uint64("job-id", job.id).Int("slot", idle[0].id).Msg("job-single")
	}
	job.workersUsed = len(job.outstanding)
	job.timer = time.AfterFunc(limit, func() { c.onDeadline(job) })
	return job, nil
}

func filterLegal(moves []board.Square, legal uint64) []board.Square {
	out := make([]board.Square, 0, len(moves))
	for _, m := range moves {
		if m.Mask()&legal != 0 {
			out = append(out, m)
		}
	}
	return out
}

func (c *Coordinator) idleSlotsLocked() []*slot {
	var idle []*slot
	for _, sl := range c.slots {
		if sl.idle() {
			idle = append(idle, sl)
		}
	}
	return idle
}

func (c *Coordinator) assignLocked(sl *slot, job *Job, opts search.Options) {
	sl.job = job
	job.outstanding[sl.id] = sl.gen
	t := task{job: job, gen: sl.gen, board: job.board, side: job.side, opts: opts}
	select {
	case sl.tasks <- t:
	default:
		// an idle worker always has room; this would be a bookkeeping bug.
		panic(fmt.Sprintf("slot %d has a pending task", sl.id))
	}
}

// IdleWorkers counts workers not serving any job.
func (c *Coordinator) IdleWorkers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.idleSlotsLocked())
}

// Generation reports how many times slot i has been (re)spawned.
func (c *Coordinator) Generation(i int) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slots[i].gen
}

// deliver records a worker's answer. Anything from an older generation of
// the slot is dropped.
func (c *Coordinator) deliver(slotID int, gen uint64, job *Job, res *search.Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sl := c.slots[slotID]
	if sl.gen != gen {
		log.Debug().Int("slot", slotID).Uint64("gen", gen).Uint64("job-id", job.id).
			Msg("discarding-stale-response")
		return
	}
	if sl.job != job {
		return
	}

	if err != nil {
		c.onFaultLocked(sl, job, err)
		return
	}

	sl.job = nil
	delete(job.outstanding, slotID)
	if job.state > jobCollecting {
		return
	}
	job.state = jobCollecting
	job.partials = append(job.partials, res)
	log.Debug().Uint64("job-id", job.id).Int("slot", slotID).Int16("score", res.Score).
		Str("move", res.BestMove.String()).Int("depth", res.Depth).Msg("partial-received")
	if len(job.outstanding) == 0 {
		c.resolveLocked(job, jobResolved, c.aggregate(job), nil)
	}
}

// onFaultLocked respawns the faulty worker. The job survives only if some
// other worker has already answered.
func (c *Coordinator) onFaultLocked(sl *slot, job *Job, err error) {
	log.Error().Err(err).Int("slot", sl.id).Uint64("job-id", job.id).Msg("worker-fault")
	delete(job.outstanding, sl.id)
	c.spawnLocked(sl)
	if job.state > jobCollecting {
		return
	}
	if len(job.partials) == 0 {
		if !errors.Is(err, ErrWorkerFault) {
			err = fmt.Errorf("%w: %w", ErrWorkerFault, err)
		}
		c.resolveLocked(job, jobResolved, nil, err)
		return
	}
	if len(job.outstanding) == 0 {
		c.resolveLocked(job, jobResolved, c.aggregate(job), nil)
	}
}

func (c *Coordinator) onDeadline(job *Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if job.state > jobCollecting {
		return
	}
	log.Debug().Uint64("job-id", job.id).Int("partials", len(job.partials)).
		Int("outstanding", len(job.outstanding)).Msg("job-deadline")
	c.resolveLocked(job, jobTimedOut, c.aggregate(job), nil)
}

func (c *Coordinator) cancelJob(job *Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if job.state > jobCollecting {
		return
	}
	c.resolveLocked(job, jobCancelled, nil, ErrJobCancelled)
}

// resolveLocked finishes the job and hard-cancels any worker still on it,
// so that nothing it computes can leak into a later job.
func (c *Coordinator) resolveLocked(job *Job, state jobState, resp *Response, err error) {
	job.state = state
	if job.timer != nil {
		job.timer.Stop()
	}
	for slotID, gen := range job.outstanding {
		sl := c.slots[slotID]
		if sl.gen == gen && sl.job == job {
			c.spawnLocked(sl)
		}
	}
	clear(job.outstanding)
	if resp != nil {
		resp.TimeUsedMs = time.Since(job.start).Milliseconds()
	}
	job.resp = resp
	job.err = err
	delete(c.jobs, job.id)
	close(job.done)
	log.Debug().Uint64("job-id", job.id).Str("state", state.String()).AnErr("err", err).
		Msg("job-finished")
}

// Close fails every unfinished job with ErrClosed and stops all workers.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for _, job := range c.jobs {
		c.resolveLocked(job, jobCancelled, nil, ErrClosed)
	}
	c.cancelAll()
	c.mu.Unlock()
	return c.g.Wait()
}
