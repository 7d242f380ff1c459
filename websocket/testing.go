package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/navindex/graph"
	navhttp "github.com/aukilabs/navindex/http"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// NewTestingServer starts a server handling each connection with a handler
// created by newHandler. Logs are written to the test output.
func NewTestingServer(t *testing.T, newHandler func() Handler) *httptest.Server {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}

	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})

	errors.Encoder = json.Marshal

	server := httptest.NewServer(websocketServer(context.Background(), newHandler))

	t.Cleanup(func() {
		server.Close()

		mutex.Lock()
		defer mutex.Unlock()
		logger = nil
	})
	return server
}

// NewTestingClient connects a client to a server created with
// NewTestingServer.
func NewTestingClient(t *testing.T, server *httptest.Server) *Client {
	header := make(http.Header)
	header.Set("User-Agent", "ted")
	header.Set("X-Forwarded-For", "192.0.0.0")
	header.Set(navhttp.HeaderClientID, uuid.NewString())

	client, err := Dial(context.Background(), server.URL, header)
	if err != nil {
		t.Fatalf("error dialing web socket: %s", err)
	}

	t.Cleanup(func() {
		client.Close()
	})
	return client
}

// NewTestHandler returns a function that creates decorated query handlers
// serving g.
func NewTestHandler(g *graph.Graph) func() Handler {
	return func() Handler {
		var h Handler = &QueryHandler{
			Graph:             g,
			ClientIdleTimeout: time.Minute,
		}

		h = HandlerWithLogs(h, time.Millisecond*100)
		h = HandlerWithMetrics(h, "http://navindex-test.local")
		return h
	}
}

func websocketServer(ctx context.Context, newHandler func() Handler) websocket.Server {
	return websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			handler := newHandler()
			defer handler.Close()

			Handle(ctx, conn, handler)
		},
	}
}
