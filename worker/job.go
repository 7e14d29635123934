package worker

import (
	"context"
	"time"

	"github.com/domino14/reversi/board"
	"github.com/domino14/reversi/search"
)

// Options is the per-request search configuration.
type Options struct {
	// Zero means the pool default.
	TimeLimitMs int64 `json:"time_limit_ms,omitempty" yaml:"time-limit-ms,omitempty"`
	DepthLimit  int   `json:"depth_limit,omitempty" yaml:"depth-limit,omitempty"`
	Distribute  bool  `json:"distribute,omitempty" yaml:"distribute,omitempty"`
	// Hints only bias move ordering at the root.
	Hints []board.Position `json:"hints,omitempty" yaml:"hints,omitempty"`
}

// Request asks for the best move for Side on Board.
type Request struct {
	Board   board.Board `json:"board"`
	Side    board.Side  `json:"side"`
	Options Options     `json:"options"`
}

// Response is the answer to a Request. A nil BestMove means the side to
// move must pass.
type Response struct {
	BestMove           *board.Position  `json:"best_move"`
	Evaluation         int              `json:"evaluation"`
	NodesSearched      uint64           `json:"nodes_searched"`
	DepthReached       int              `json:"depth_reached"`
	TimeUsedMs         int64            `json:"time_used_ms"`
	WorkersUsed        int              `json:"workers_used"`
	PrincipalVariation []board.Position `json:"principal_variation"`
	Exact              bool             `json:"exact,omitempty"`
}

// Engine answers move requests.
type Engine interface {
	Analyze(ctx context.Context, req Request) (*Response, error)
}

type jobState int

const (
	jobAssigned jobState = iota
	jobCollecting
	jobResolved
	jobTimedOut
	jobCancelled
)

func (s jobState) String() string {
	switch s {
	case jobAssigned:
		return "assigned"
	case jobCollecting:
		return "collecting"
	case jobResolved:
		return "resolved"
	case jobTimedOut:
		return "timed-out"
	}
	return "cancelled"
}

// Job is a submitted search. All fields past done are guarded by the
// coordinator mutex.
type Job struct {
	id    uint64
	c     *Coordinator
	done  chan struct{}
	start time.Time

	board board.Board
	side  board.Side

	state       jobState
	workersUsed int
	// slot id -> generation that the slot had when assigned
	outstanding map[int]uint64
	partials    []*search.Result
	timer       *time.Timer

	resp *Response
	err  error
}

func (j *Job) ID() uint64 { return j.id }

// Done is closed once the job has a response or an error.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job resolves. If ctx ends first the job is
// cancelled.
func (j *Job) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-j.done:
	case <-ctx.Done():
		j.Cancel()
		<-j.done
	}
	return j.resp, j.err
}

// Cancel hard-cancels every worker still on the job. It is a no-op once
// the job has resolved.
func (j *Job) Cancel() {
	j.c.cancelJob(j)
}
