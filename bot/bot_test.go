package bot

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/domino14/reversi/board"
	"github.com/domino14/reversi/worker"
)

type fakeEngine struct {
	got  worker.Request
	resp *worker.Response
	err  error
}

func (f *fakeEngine) Analyze(_ context.Context, req worker.Request) (*worker.Response, error) {
	f.got = req
	return f.resp, f.err
}

func TestHandleRoundTrip(t *testing.T) {
	is := is.New(t)
	d3 := board.Position{Row: 2, Col: 3}
	eng := &fakeEngine{resp: &worker.Response{BestMove: &d3, Evaluation: 12, WorkersUsed: 2}}
	b := NewBot(eng)

	req := worker.Request{Board: *board.NewBoard(), Side: board.Black,
		Options: worker.Options{TimeLimitMs: 500, Distribute: true}}
	data, err := MakeRequest("game-1", req)
	is.NoErr(err)

	out := b.Handle(context.Background(), data)
	is.Equal(out.GameID, "game-1")
	is.Equal(out.Error, "")
	is.Equal(eng.got, req)

	enc, err := json.Marshal(out)
	is.NoErr(err)
	resp, err := ParseResponse(enc)
	is.NoErr(err)
	is.Equal(*resp.BestMove, d3)
	is.Equal(resp.Evaluation, 12)
}

func TestHandleWireFormat(t *testing.T) {
	is := is.New(t)
	eng := &fakeEngine{resp: &worker.Response{}}
	b := NewBot(eng)
	data := []byte(`{"game_id":"g","request":{"board":{"black":34628173824,"white":68853694464},` +
		`"side":"white","options":{"time_limit_ms":250,"hints":[{"row":2,"col":4}]}}}`)
	out := b.Handle(context.Background(), data)
	is.Equal(out.Error, "")
	is.Equal(eng.got.Side, board.White)
	is.Equal(eng.got.Board, *board.NewBoard())
	is.Equal(eng.got.Options.TimeLimitMs, int64(250))
	is.Equal(eng.got.Options.Hints, []board.Position{{Row: 2, Col: 4}})

	// the request is nested, not spread over the top level
	enc, err := MakeRequest("g", eng.got)
	is.NoErr(err)
	var top map[string]json.RawMessage
	is.NoErr(json.Unmarshal(enc, &top))
	_, nested := top["request"]
	is.True(nested)
	_, flat := top["board"]
	is.True(!flat)
}

func TestHandleErrors(t *testing.T) {
	is := is.New(t)
	eng := &fakeEngine{err: worker.ErrNoWorkersAvailable}
	b := NewBot(eng)

	out := b.Handle(context.Background(), []byte("{not json"))
	is.True(out.Error != "")

	data, _ := MakeRequest("bad", worker.Request{Board: board.Board{Black: 1, White: 1}})
	out = b.Handle(context.Background(), data)
	is.Equal(out.GameID, "bad")
	is.True(out.Error != "")

	data, _ = MakeRequest("busy", worker.Request{Board: *board.NewBoard()})
	out = b.Handle(context.Background(), data)
	is.Equal(out.Error, "Search failed: no workers available")

	enc, _ := json.Marshal(out)
	_, err := ParseResponse(enc)
	is.True(err != nil)
	_, err = ParseResponse([]byte(`{}`))
	is.True(err != nil)
	is.True(!errors.Is(err, worker.ErrNoWorkersAvailable))
}
