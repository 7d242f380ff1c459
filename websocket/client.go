package websocket

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"golang.org/x/net/websocket"
)

// Client sends queries to a query server. Requests are sent one at a time.
type Client struct {
	conn      *websocket.Conn
	mutex     sync.Mutex
	requestID uint32
}

// Dial connects to a query server. Endpoints with an http scheme are dialed
// with the matching ws scheme.
func Dial(ctx context.Context, endpoint string, header http.Header) (*Client, error) {
	if strings.HasPrefix(endpoint, "http") {
		endpoint = "ws" + strings.TrimPrefix(endpoint, "http")
	}

	config, err := websocket.NewConfig(endpoint, "http://localhost")
	if err != nil {
		return nil, errors.New("creating websocket config failed").
			WithTag("endpoint", endpoint).
			Wrap(err)
	}
	for k, v := range header {
		config.Header[k] = v
	}

	conn, err := config.DialContext(ctx)
	if err != nil {
		return nil, errors.New("dialing websocket failed").
			WithTag("endpoint", endpoint).
			Wrap(err)
	}
	return &Client{conn: conn}, nil
}

// Request sends a message and waits for the response with the same request
// id. Messages answering other requests are dropped. The deadline of ctx
// bounds the whole exchange.
func (c *Client) Request(ctx context.Context, msgType string, data any) (Msg, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.requestID++
	req, err := NewMsg(msgType, c.requestID, data)
	if err != nil {
		return Msg{}, err
	}

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return Msg{}, errors.New("setting deadline failed").Wrap(err)
	}
	defer c.conn.SetDeadline(time.Time{})

	if _, err := Send(c.conn, req); err != nil {
		return Msg{}, errors.New("sending request failed").
			WithTag("msg_type", msgType).
			Wrap(err)
	}

	for {
		res, _, err := Receive(c.conn)
		if err != nil {
			return Msg{}, errors.New("receiving response failed").
				WithTag("msg_type", msgType).
				WithTag("request_id", req.RequestID).
				Wrap(err)
		}
		if res.RequestID == req.RequestID {
			return res, nil
		}
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
