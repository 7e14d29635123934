package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/domino14/reversi/bot"
	"github.com/domino14/reversi/config"
	"github.com/domino14/reversi/worker"
)

// HardTimeLimit caps the time spent on one move.
const HardTimeLimit = 60 * time.Second

var (
	cfg    *config.Config
	nc     *nats.Conn
	engine worker.Engine
)

// publisher sends the reply; tests swap it out.
var publisher = func(subject string, data []byte) error {
	_, err := nc.Request(subject, data, 3*time.Second)
	return err
}

func HandleRequest(ctx context.Context, evt bot.LambdaEvent) (string, error) {
	// Return something but we have to block till we're done.
	logger := log.With().Str("gameID", evt.GameID).Logger()

	req := evt.Request
	limit := time.Duration(req.Options.TimeLimitMs) * time.Millisecond
	if limit <= 0 || limit > HardTimeLimit {
		limit = HardTimeLimit
		req.Options.TimeLimitMs = limit.Milliseconds()
	}
	if dl, ok := ctx.Deadline(); ok {
		// leave room to publish the reply before the invocation is killed
		if left := time.Until(dl) - time.Second; left < limit && left > 0 {
			req.Options.TimeLimitMs = left.Milliseconds()
		}
	}
	logger.Info().Int64("time-limit-ms", req.Options.TimeLimitMs).
		Str("side", req.Side.String()).Msg("time-management")

	resp, err := engine.Analyze(ctx, req)
	if err != nil {
		return "", err
	}
	mv := "pass"
	if resp.BestMove != nil {
		mv = resp.BestMove.String()
	}

	data, err := json.Marshal(&bot.BotResponse{GameID: evt.GameID, Response: resp})
	if err != nil {
		return "", err
	}
	if evt.ReplyChannel != "" {
		logger.Info().Msg("move-success-sending-via-nats")
		err = retry.Do(
			func() error {
				// We're just waiting for an acknowledgement. The actual
				// data doesn't matter.
				return publisher(evt.ReplyChannel, data)
			},
			retry.Context(ctx),
			retry.Attempts(5),
			retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
				logger.Err(err).Uint("n", n).
					Msg("did-not-receive-ack-try-again")
				return retry.BackOffDelay(n, err, config)
			}),
		)
		if err != nil {
			logger.Err(err).Msg("bot-move-failed")
		}
	}
	logger.Info().Msg("exiting-fn")
	return mv, nil
}

func main() {
	cfg = &config.Config{}
	if err := cfg.Load(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("bad-arguments")
	}
	log.Info().Interface("config", cfg.SanitizedSettings()).Msg("loaded-config")
	if cfg.GetBool(config.ConfigDebug) {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	var err error
	nc, err = bot.Connect(context.Background(), cfg.GetString(config.ConfigNatsURL))
	if err != nil {
		log.Fatal().AnErr("natsConnectErr", err).Msg(":(")
	}
	coord := worker.NewCoordinator(worker.NewWorkerConfig(cfg))
	defer coord.Close()
	engine = coord

	lambda.Start(HandleRequest)
}
