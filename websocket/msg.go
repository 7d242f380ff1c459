package websocket

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/navindex/graph"
	"github.com/aukilabs/navindex/models"
	"github.com/aukilabs/navindex/spatial"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	MsgTypePing        = "ping"
	MsgTypePong        = "pong"
	MsgTypeQueryRange  = "query_range"
	MsgTypeQueryFirst  = "query_first"
	MsgTypeQueryResult = "query_result"
	MsgTypeNodeGet     = "node_get"
	MsgTypeNode        = "node"
	MsgTypeError       = "error"
)

const (
	ErrTypeInvalidMsg = "invalid-msg"
	ErrTypeUnknownMsg = "unknown-msg"
	ErrTypeRateLimit  = "rate-limited"
)

// Msg is a JSON message exchanged with a client. Responses carry the request
// id of the message they answer.
type Msg struct {
	Type      string          `json:"type"`
	RequestID uint32          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMsg creates a message with data encoded as JSON.
func NewMsg(msgType string, requestID uint32, data any) (Msg, error) {
	msg := Msg{
		Type:      msgType,
		RequestID: requestID,
	}
	if data == nil {
		return msg, nil
	}

	b, err := json.Marshal(data)
	if err != nil {
		return Msg{}, errors.New("encoding message data failed").
			WithTag("msg_type", msgType).
			Wrap(err)
	}
	msg.Data = b
	return msg, nil
}

// NewErrorMsg creates an error response to the request with the given id.
func NewErrorMsg(requestID uint32, err error) Msg {
	b, _ := json.Marshal(ErrorData{
		Type:    errors.Type(err),
		Message: err.Error(),
	})

	return Msg{
		Type:      MsgTypeError,
		RequestID: requestID,
		Data:      b,
	}
}

// DataTo decodes the message data into v.
func (m Msg) DataTo(v any) error {
	if len(m.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.New("decoding message data failed").
			WithType(ErrTypeInvalidMsg).
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return nil
}

type PongData struct {
	Timestamp int64 `json:"timestamp"`
}

// QueryRequest is the data of query_range and query_first messages. Omitted
// types match every type.
type QueryRequest struct {
	Position spatial.Vec3   `json:"position"`
	Range    float32        `json:"range"`
	Types    models.NavType `json:"types"`
}

type QueryResult struct {
	Matches []graph.Match `json:"matches"`
}

type NodeRequest struct {
	Handle models.Handle `json:"handle"`
}

type ErrorData struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

// Receiver receives a message and returns the number of bytes read.
type Receiver func() (Msg, int, error)

// Sender sends a message and returns the number of bytes written.
type Sender func(Msg) (int, error)

// ResponseSender queues messages to send to a client.
type ResponseSender interface {
	Send(Msg)
}

// Receive reads a message from a connection.
func Receive(conn *websocket.Conn) (Msg, int, error) {
	var b []byte
	if err := websocket.Message.Receive(conn, &b); err != nil {
		return Msg{}, 0, err
	}

	var msg Msg
	if err := json.Unmarshal(b, &msg); err != nil {
		return Msg{}, len(b), errors.New("decoding message failed").
			WithType(ErrTypeInvalidMsg).
			Wrap(err)
	}
	return msg, len(b), nil
}

// Send writes a message as a text frame.
func Send(conn *websocket.Conn, msg Msg) (int, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return 0, errors.New("encoding message failed").
			WithTag("msg_type", msg.Type).
			Wrap(err)
	}

	if err := websocket.Message.Send(conn, string(b)); err != nil {
		return 0, err
	}
	return len(b), nil
}

// knownMsgType returns t when it is a message type of the protocol, and
// "unknown" otherwise.
func knownMsgType(t string) string {
	switch t {
	case MsgTypePing,
		MsgTypePong,
		MsgTypeQueryRange,
		MsgTypeQueryFirst,
		MsgTypeQueryResult,
		MsgTypeNodeGet,
		MsgTypeNode,
		MsgTypeError:
		return t
	default:
		return "unknown"
	}
}
