package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/domino14/reversi/board"
	"github.com/domino14/reversi/evaluator"
	"github.com/domino14/reversi/zobrist"
)

const (
	HugeNumber = int16(32767)
	// WinScore offsets decided games in the heuristic search so that any
	// proven win outranks any evaluation.
	WinScore = int16(evaluator.MaxScore + 100)

	MaxPly     = 128
	MaxKillers = 2
	maxMoves   = 64

	DefaultMaxDepth         = 60
	DefaultEndgameThreshold = 17
	DefaultQuiescenceDepth  = 4
	DefaultAspirationWindow = 50
	AspirationMinDepth      = 4
	DefaultTTMegabytes      = 16
	// history values are shifted right by this much between searches.
	DefaultHistoryDecay = 2
)

var (
	ErrMalformedBoard = errors.New("malformed board")
)

var lmrTable [64][64]int

func init() {
	for d := 1; d < 64; d++ {
		for m := 1; m < 64; m++ {
			lmrTable[d][m] = int(0.5 + math.Log(float64(d))*math.Log(float64(m))/2.5)
		}
	}
}

// Options restrict a single search.
type Options struct {
	MaxDepth  int
	TimeLimit time.Duration
	// RootMoves, when non-empty, limits which moves are tried at the root.
	RootMoves []board.Square
	// Hints are tried first at the root.
	Hints []board.Square
}

type Result struct {
	// BestMove is NoSquare when the side to move has to pass.
	BestMove board.Square
	Score    int16
	Depth    int
	Nodes    uint64
	PV       PVLine
	TimeUsed time.Duration
	// Exact is set when the score is a solved game-theoretic value.
	Exact bool
}

func (r *Result) HasMove() bool { return r.BestMove != board.NoSquare }

func (r *Result) String() string {
	return fmt.Sprintf("best %s score %d depth %d nodes %d exact %v (%s)",
		r.BestMove, r.Score, r.Depth, r.Nodes, r.Exact, r.PV.NLBString())
}

// Solver is a single-threaded iterative-deepening alpha-beta searcher. It
// owns its transposition table, killers and history, and must not be used
// from more than one goroutine at a time.
type Solver struct {
	zobrist *zobrist.Zobrist
	ttable  *TranspositionTable
	eval    evaluator.Evaluator

	b        board.Board
	rootSide board.Side
	rootMask uint64
	hintMask uint64
	// the root searches only some of its legal moves, so its score is not
	// the position's value.
	rootRestricted bool

	iterativeDeepeningOptim bool
	transpositionTableOptim bool
	aspirationOptim         bool
	lateMoveReductionOptim  bool
	quiescenceOptim         bool
	killerPlayOptim         bool

	endgameThreshold int
	quiescenceDepth  int
	aspirationWindow int
	historyDecay     uint

	killers [MaxPly][MaxKillers]board.Square
	history [2][64]int32
	moveBuf [MaxPly][maxMoves]scoredMove
	// set while the table holds exact endgame scores, which are on a
	// different scale from heuristic ones.
	ttHoldsExact bool

	currentIDDepth int
	nodes          atomic.Uint64

	logStream io.Writer
}

// Init initializes the solver. A nil zobrist gets a freshly seeded one and a
// nil evaluator gets the default phased evaluator.
func (s *Solver) Init(z *zobrist.Zobrist, eval evaluator.Evaluator) error {
	if z == nil {
		z = &zobrist.Zobrist{}
		z.Initialize()
	}
	if eval == nil {
		eval = evaluator.NewPhasedEvaluator()
	}
	s.zobrist = z
	s.eval = eval
	s.iterativeDeepeningOptim = true
	s.transpositionTableOptim = true
	s.aspirationOptim = true
	s.lateMoveReductionOptim = true
	s.quiescenceOptim = true
	s.killerPlayOptim = true
	s.endgameThreshold = DefaultEndgameThreshold
	s.quiescenceDepth = DefaultQuiescenceDepth
	s.aspirationWindow = DefaultAspirationWindow
	s.historyDecay = DefaultHistoryDecay
	// allocated on first use unless sized explicitly.
	s.ttable = &TranspositionTable{}
	s.ClearKillers()
	s.ClearHistory()
	return nil
}

func (s *Solver) SetIterativeDeepening(d bool)      { s.iterativeDeepeningOptim = d }
func (s *Solver) SetTranspositionTableOptim(d bool) { s.transpositionTableOptim = d }
func (s *Solver) SetAspirationOptim(d bool)         { s.aspirationOptim = d }
func (s *Solver) SetLateMoveReductionOptim(d bool)  { s.lateMoveReductionOptim = d }
func (s *Solver) SetQuiescenceOptim(d bool)         { s.quiescenceOptim = d }
func (s *Solver) SetKillerPlayOptim(d bool)         { s.killerPlayOptim = d }
func (s *Solver) SetLogStream(l io.Writer)          { s.logStream = l }

func (s *Solver) SetEndgameThreshold(n int) { s.endgameThreshold = n }

func (s *Solver) SetQuiescenceDepth(n int) { s.quiescenceDepth = n }

func (s *Solver) SetAspirationWindow(w int) {
	if w > 0 {
		s.aspirationWindow = w
	}
}

func (s *Solver) SetHistoryDecay(shift uint) { s.historyDecay = shift }

// SetTranspositionTableSize reallocates the table. Any cached entries are lost.
func (s *Solver) SetTranspositionTableSize(megabytes int) {
	s.ttable.Reset(megabytes)
	s.ttHoldsExact = false
}

func (s *Solver) ensureTable() {
	if s.ttable.table == nil {
		s.ttable.Reset(DefaultTTMegabytes)
	}
}

func (s *Solver) TranspositionTable() *TranspositionTable { return s.ttable }

func (s *Solver) Evaluator() evaluator.Evaluator { return s.eval }

func (s *Solver) Nodes() uint64 { return s.nodes.Load() }

// Search finds the best move for side. The search stops at opts.MaxDepth,
// at the context deadline, or after opts.TimeLimit, whichever is first. On
// a deadline the deepest fully completed iteration is returned with a nil
// error. Positions with few enough empty squares are solved exactly.
func (s *Solver) Search(ctx context.Context, b *board.Board, side board.Side, opts Options) (*Result, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedBoard, err)
	}
	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeLimit)
		defer cancel()
	}
	if b.EmptiesCount() <= s.endgameThreshold {
		return s.Solve(ctx, b, side, opts.RootMoves)
	}

	tstart := time.Now()
	s.ensureTable()
	s.setRoot(b, side, opts)
	if s.ttHoldsExact {
		s.ttable.Clear()
		s.ttHoldsExact = false
	} else {
		s.ttable.Age()
	}
	s.ageHistory()
	s.ClearKillers()
	s.nodes.Store(0)

	if s.rootMask == 0 {
		return s.noMoveResult(tstart), nil
	}

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if e := s.b.EmptiesCount(); maxDepth > e {
		maxDepth = e
	}
	log.Debug().Int("max-depth", maxDepth).Str("side", side.String()).
		Int("empties", s.b.EmptiesCount()).Msg("search-config")

	var best *Result
	err := s.withNodeTicker(func() error {
		var err error
		best, err = s.iterativelyDeepen(ctx, maxDepth)
		return err
	})

	if best == nil {
		best = s.fallbackResult()
	}
	best.Nodes = s.nodes.Load()
	best.TimeUsed = time.Since(tstart)
	stats := s.ttable.Stats()
	log.Debug().
		Uint64("ttable-created", stats.Created).
		Uint64("ttable-lookups", stats.Lookups).
		Uint64("ttable-hits", stats.Hits).
		Uint64("ttable-t2collisions", stats.T2Collisions).
		Int("depth", best.Depth).
		Int16("score", best.Score).
		Str("best", best.BestMove.String()).
		Float64("time-elapsed-sec", best.TimeUsed.Seconds()).
		Msg("search-returning")
	return best, deadlineIsNotAnError(err)
}

func (s *Solver) setRoot(b *board.Board, side board.Side, opts Options) {
	s.b = *b
	s.rootSide = side
	legal := s.b.ValidMoveMask(side)
	s.rootMask = legal
	if len(opts.RootMoves) > 0 {
		var m uint64
		for _, sq := range opts.RootMoves {
			m |= sq.Mask()
		}
		if legal&m != 0 {
			s.rootMask = legal & m
		}
	}
	s.rootRestricted = s.rootMask != legal
	s.hintMask = 0
	for _, sq := range opts.Hints {
		s.hintMask |= sq.Mask()
	}
}

// noMoveResult covers a root with nothing to play: a pass if the opponent
// can move, otherwise the final disc difference.
func (s *Solver) noMoveResult(tstart time.Time) *Result {
	res := &Result{BestMove: board.NoSquare, TimeUsed: time.Since(tstart)}
	if s.b.GameOver() {
		res.Score = int16(s.b.DiscDiff(s.rootSide))
		res.Exact = true
		return res
	}
	res.Score = int16(evaluator.Clamp(s.eval.Evaluate(&s.b, s.rootSide)))
	res.PV.Moves = []board.Square{board.NoSquare}
	return res
}

// fallbackResult is used when not even the first iteration finished.
func (s *Solver) fallbackResult() *Result {
	mv := board.FirstSquare(s.rootMask)
	return &Result{
		BestMove: mv,
		Score:    int16(evaluator.Clamp(s.eval.Evaluate(&s.b, s.rootSide))),
		Depth:    0,
		PV:       PVLine{Moves: []board.Square{mv}},
	}
}

func (s *Solver) iterativelyDeepen(ctx context.Context, maxDepth int) (*Result, error) {
	rootKey := s.zobrist.Hash(&s.b, s.rootSide)
	startDepth := 1
	if !s.iterativeDeepeningOptim {
		startDepth = maxDepth
	}
	var best *Result
	for depth := startDepth; depth <= maxDepth; depth++ {
		log.Debug().Int("plies", depth).Msg("deepening-iteratively")
		if s.logStream != nil {
			fmt.Fprintf(s.logStream, "- ply: %d\n", depth)
		}
		s.currentIDDepth = depth
		var prev int16
		useWindow := false
		if best != nil {
			prev = best.Score
			useWindow = s.aspirationOptim && depth >= AspirationMinDepth &&
				prev > -WinScore && prev < WinScore
		}
		val, pv, err := s.aspirationSearch(ctx, rootKey, depth, prev, useWindow)
		if err != nil {
			return best, err
		}
		best = &Result{
			BestMove: pv.GetPVMove(),
			Score:    val,
			Depth:    depth,
			PV:       pv,
		}
		log.Debug().Int16("best-val", val).Str("pv", pv.NLBString()).Msg("iteration-complete")
	}
	return best, nil
}

// aspirationSearch searches a window around prev and widens it
// geometrically on a fail high or fail low.
func (s *Solver) aspirationSearch(ctx context.Context, rootKey uint64, depth int,
	prev int16, useWindow bool) (int16, PVLine, error) {

	window := s.aspirationWindow
	for {
		α, β := -HugeNumber, HugeNumber
		if useWindow {
			α = clampScore(int(prev) - window)
			β = clampScore(int(prev) + window)
		}
		pv := PVLine{}
		val, err := s.negamax(ctx, rootKey, depth, 0, α, β, s.rootSide, &pv)
		if err != nil {
			return 0, pv, err
		}
		failed := (val <= α && α > -HugeNumber) || (val >= β && β < HugeNumber)
		if !useWindow || !failed {
			return val, pv.Copy(), nil
		}
		log.Debug().Int16("alpha", α).Int16("beta", β).Int16("val", val).
			Int("depth", depth).Msg("aspiration-fail")
		window *= 2
	}
}

// withNodeTicker logs nodes per second while fn runs. fn runs on the
// calling goroutine so that a panic in it reaches the caller.
func (s *Solver) withNodeTicker(fn func() error) error {
	g := &errgroup.Group{}
	done := make(chan bool)

	g.Go(func() error {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		var lastNodes uint64
		for {
			select {
			case <-done:
				return nil
			case <-ticker.C:
				nodes := s.nodes.Load()
				log.Debug().Uint64("nps", nodes-lastNodes).Msg("nodes-per-second")
				lastNodes = nodes
			}
		}
	})
	defer func() {
		close(done)
		_ = g.Wait()
	}()
	return fn()
}

func deadlineIsNotAnError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func clampScore(v int) int16 {
	if v > int(HugeNumber) {
		return HugeNumber
	}
	if v < -int(HugeNumber) {
		return -HugeNumber
	}
	return int16(v)
}

// finalScore scores a finished game inside the heuristic search.
func finalScore(diff int) int16 {
	switch {
	case diff > 0:
		return WinScore + int16(diff)
	case diff < 0:
		return -WinScore + int16(diff)
	}
	return 0
}
