package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/domino14/reversi/board"
	"github.com/domino14/reversi/bot"
	"github.com/domino14/reversi/worker"
)

func TestHandleRequest(t *testing.T) {
	is := is.New(t)
	wc := worker.DefaultWorkerConfig()
	wc.Workers = 2
	wc.TTMegabytes = 1
	coord := worker.NewCoordinator(wc)
	defer coord.Close()
	engine = coord

	var published [][]byte
	calls := 0
	publisher = func(subject string, data []byte) error {
		calls++
		is.Equal(subject, "reply.foo")
		if calls == 1 {
			return errors.New("no responders")
		}
		published = append(published, data)
		return nil
	}

	evt := bot.LambdaEvent{
		GameID:       "foo",
		ReplyChannel: "reply.foo",
		Request: worker.Request{Board: *board.NewBoard(), Side: board.Black,
			Options: worker.Options{TimeLimitMs: 2000, DepthLimit: 3}},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ret, err := HandleRequest(ctx, evt)
	is.NoErr(err)
	// every opening move is legal and symmetric
	is.True(ret == "d3" || ret == "c4" || ret == "f5" || ret == "e6")
	is.Equal(calls, 2)
	is.Equal(len(published), 1)

	resp := bot.BotResponse{}
	is.NoErr(json.Unmarshal(published[0], &resp))
	is.Equal(resp.GameID, "foo")
	is.Equal(resp.Response.BestMove.String(), ret)
}
