package bot

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/domino14/reversi/worker"
)

// replySlack is added to the search time limit when waiting on the bot.
const replySlack = 2 * time.Second

type Client struct {
	// NATS connection
	nc      *nats.Conn
	channel string
}

func NewClient(nc *nats.Conn, channel string) *Client {
	return &Client{nc: nc, channel: channel}
}

func MakeRequest(gameID string, req worker.Request) ([]byte, error) {
	return json.Marshal(&BotRequest{GameID: gameID, Request: req})
}

// ParseResponse decodes a bot reply, turning an error reply into an error.
func ParseResponse(data []byte) (*worker.Response, error) {
	resp := BotResponse{}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	switch {
	case resp.Error != "":
		return nil, errors.New("Bot returned: " + resp.Error)
	case resp.Response == nil:
		return nil, errors.New("bot returned an empty response")
	}
	return resp.Response, nil
}

// RequestMove sends a position to the bot and waits for its answer.
func (c *Client) RequestMove(req worker.Request) (*worker.Response, error) {
	data, err := MakeRequest("", req)
	if err != nil {
		return nil, err
	}
	timeout := 10 * time.Second
	if req.Options.TimeLimitMs > 0 {
		timeout = time.Duration(req.Options.TimeLimitMs)*time.Millisecond + replySlack
	}
	res, err := c.nc.Request(c.channel, data, timeout)
	if err != nil {
		if c.nc.LastError() != nil {
			log.Error().Msgf("%v for request", c.nc.LastError())
		}
		log.Error().Msgf("%v for request", err)
		return nil, err
	}
	log.Debug().Msgf("res: %v", string(res.Data))
	return ParseResponse(res.Data)
}
