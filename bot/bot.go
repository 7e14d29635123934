package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/domino14/reversi/worker"
)

// BotRequest is what the bot receives on its subject.
type BotRequest struct {
	GameID  string         `json:"game_id,omitempty"`
	Request worker.Request `json:"request"`
}

// BotResponse carries either a search response or an error message.
type BotResponse struct {
	GameID   string           `json:"game_id,omitempty"`
	Response *worker.Response `json:"response,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// LambdaEvent is the payload of a lambda invocation. The answer goes to
// ReplyChannel over NATS as well as being returned.
type LambdaEvent struct {
	GameID       string         `json:"game_id"`
	ReplyChannel string         `json:"reply_channel"`
	Request      worker.Request `json:"request"`
}

type Bot struct {
	engine worker.Engine
}

func NewBot(engine worker.Engine) *Bot {
	return &Bot{engine: engine}
}

func errorResponse(gameID, message string, err error) *BotResponse {
	msg := message
	if err != nil {
		msg = fmt.Sprintf("%s: %s", msg, err.Error())
	}
	return &BotResponse{GameID: gameID, Error: msg}
}

// Handle answers one serialized BotRequest.
func (bot *Bot) Handle(ctx context.Context, data []byte) *BotResponse {
	req := BotRequest{}
	if err := json.Unmarshal(data, &req); err != nil {
		return errorResponse("", "Could not parse request", err)
	}
	if err := req.Request.Board.Validate(); err != nil {
		return errorResponse(req.GameID, "Bad board", err)
	}
	resp, err := bot.engine.Analyze(ctx, req.Request)
	if err != nil {
		return errorResponse(req.GameID, "Search failed", err)
	}
	mv := "pass"
	if resp.BestMove != nil {
		mv = resp.BestMove.String()
	}
	log.Info().Str("game-id", req.GameID).Str("move", mv).Int("eval", resp.Evaluation).
		Int("depth", resp.DepthReached).Msg("generated-move")
	return &BotResponse{GameID: req.GameID, Response: resp}
}

// Connect dials NATS, retrying with backoff until ctx ends.
func Connect(ctx context.Context, url string) (*nats.Conn, error) {
	return retry.DoWithData(
		func() (*nats.Conn, error) {
			return nats.Connect(url, nats.Name("reversi-bot"))
		},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.OnRetry(func(n uint, err error) {
			log.Err(err).Uint("n", n).Str("url", url).Msg("nats-connect-retry")
		}),
	)
}

// Main serves requests on channel until ctx is done.
func Main(ctx context.Context, nc *nats.Conn, channel string, bot *Bot) error {
	sub, err := nc.Subscribe(channel, func(m *nats.Msg) {
		log.Info().Msgf("RECV: %d bytes", len(m.Data))
		resp := bot.Handle(ctx, m.Data)
		data, err := json.Marshal(resp)
		if err != nil {
			// Should never happen, ideally, but we need to do something sensible here.
			m.Respond([]byte(err.Error()))
			return
		}
		m.Respond(data)
	})
	if err != nil {
		return err
	}
	if err := nc.Flush(); err != nil {
		return err
	}
	if err := nc.LastError(); err != nil {
		return err
	}
	log.Info().Msgf("Listening on [%s]", channel)

	<-ctx.Done()
	log.Info().Msg("draining-subscription")
	if err := sub.Drain(); err != nil {
		return err
	}
	// give in-flight handlers a moment to reply
	deadline := time.Now().Add(5 * time.Second)
	for sub.IsValid() && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}
