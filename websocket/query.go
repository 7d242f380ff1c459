package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/navindex/graph"
	navhttp "github.com/aukilabs/navindex/http"
	"github.com/aukilabs/navindex/models"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
	"golang.org/x/time/rate"
)

// QueryHandler answers node queries of a single client.
type QueryHandler struct {
	// The graph being queried.
	Graph *graph.Graph

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The number of queries per second a client can sustain. Zero disables
	// rate limiting.
	RateLimit rate.Limit

	// The number of queries a client can burst above RateLimit.
	RateBurst int

	conn        *websocket.Conn
	limiter     *rate.Limiter
	clientID    string
	queries     int
	rateLimited int
}

func (h *QueryHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn

	if req := conn.Request(); req != nil {
		h.clientID = req.Header.Get(navhttp.HeaderClientID)
	}
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}

	if h.RateLimit > 0 {
		h.limiter = rate.NewLimiter(h.RateLimit, max(h.RateBurst, 1))
	}
}

func (h *QueryHandler) HandleDisconnect(err error) {
	h.limiter = nil

	entry := logs.WithClientID(h.clientID).
		WithTag("queries", h.queries).
		WithTag("rate_limited", h.rateLimited)
	if err != nil {
		entry = entry.WithTag("reason", err.Error())
	}
	entry.Debug("query client released")
}

func (h *QueryHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	return h.respond(respond, MsgTypePong, msg.RequestID, PongData{
		Timestamp: time.Now().UnixMilli(),
	})
}

func (h *QueryHandler) HandleQueryRange(ctx context.Context, respond ResponseSender, msg Msg) error {
	req, ok := h.decodeQuery(respond, msg)
	if !ok {
		return nil
	}

	matches, err := h.Graph.NodesWithinRange(req.Position, req.Range, req.Types)
	if err != nil {
		respond.Send(NewErrorMsg(msg.RequestID, err))
		return nil
	}

	return h.respond(respond, MsgTypeQueryResult, msg.RequestID, QueryResult{
		Matches: matches,
	})
}

func (h *QueryHandler) HandleQueryFirst(ctx context.Context, respond ResponseSender, msg Msg) error {
	req, ok := h.decodeQuery(respond, msg)
	if !ok {
		return nil
	}

	match, found, err := h.Graph.NodeWithinRange(req.Position, req.Range, req.Types)
	if err != nil {
		respond.Send(NewErrorMsg(msg.RequestID, err))
		return nil
	}

	res := QueryResult{Matches: []graph.Match{}}
	if found {
		res.Matches = append(res.Matches, match)
	}
	return h.respond(respond, MsgTypeQueryResult, msg.RequestID, res)
}

func (h *QueryHandler) HandleNodeGet(ctx context.Context, respond ResponseSender, msg Msg) error {
	if !h.allow(respond, msg) {
		return nil
	}

	var req NodeRequest
	if err := msg.DataTo(&req); err != nil {
		respond.Send(NewErrorMsg(msg.RequestID, err))
		return nil
	}

	n, err := h.Graph.Node(req.Handle)
	if err != nil {
		respond.Send(NewErrorMsg(msg.RequestID, err))
		return nil
	}
	return h.respond(respond, MsgTypeNode, msg.RequestID, n)
}

func (h *QueryHandler) decodeQuery(respond ResponseSender, msg Msg) (QueryRequest, bool) {
	if !h.allow(respond, msg) {
		return QueryRequest{}, false
	}

	req := QueryRequest{Types: models.NavAll}
	if err := msg.DataTo(&req); err != nil {
		respond.Send(NewErrorMsg(msg.RequestID, err))
		return QueryRequest{}, false
	}
	return req, true
}

func (h *QueryHandler) allow(respond ResponseSender, msg Msg) bool {
	if h.limiter == nil || h.limiter.Allow() {
		h.queries++
		return true
	}

	h.rateLimited++
	respond.Send(NewErrorMsg(msg.RequestID, errors.New("too many queries").
		WithType(ErrTypeRateLimit).
		WithTag("msg_type", msg.Type)))
	return false
}

func (h *QueryHandler) respond(respond ResponseSender, msgType string, requestID uint32, data any) error {
	res, err := NewMsg(msgType, requestID, data)
	if err != nil {
		return err
	}
	respond.Send(res)
	return nil
}

func (h *QueryHandler) Receiver() Receiver {
	return func() (Msg, int, error) {
		return Receive(h.conn)
	}
}

func (h *QueryHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		return Send(h.conn, msg)
	}
}

// Close drops the connection and the rate limiter. The handler can't be
// used after.
func (h *QueryHandler) Close() {
	h.conn = nil
	h.limiter = nil
}

func (h *QueryHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *QueryHandler) GetClientID() string {
	return h.clientID
}
