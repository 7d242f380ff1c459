// Package smoketest checks that a query server answers pings and queries.
package smoketest

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	navhttp "github.com/aukilabs/navindex/http"
	"github.com/aukilabs/navindex/models"
	"github.com/aukilabs/navindex/spatial"
	"github.com/aukilabs/navindex/websocket"
	"github.com/segmentio/encoding/json"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"

	defaultTimeout = time.Second * 10
)

type Options struct {
	// The endpoint tested when a request does not name one.
	Endpoint  string
	UserAgent string

	// The token sent to the tested endpoint.
	Token string

	SendResult func(context.Context, Result) error
}

type Request struct {
	Endpoint string        `json:"endpoint"`
	Timeout  time.Duration `json:"timeout"`
}

type Result struct {
	FromEndpoint    string    `json:"from_endpoint"`
	ToEndpoint      string    `json:"to_endpoint"`
	Status          string    `json:"status"`
	Error           string    `json:"error,omitempty"`
	LatencyMilliSec float64   `json:"latency_ms"`
	Nodes           int       `json:"nodes"`
	Timestamp       time.Time `json:"timestamp"`
}

type testCtxKey string

var testCtxKeyValue testCtxKey = "test-context"

type testContext struct {
	context.Context
	Cancel func()
}

// Run connects to endpoint, sends a ping and a range query around the origin.
// The latency is the ping round trip.
func Run(ctx context.Context, endpoint string, header http.Header, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := Result{
		ToEndpoint: endpoint,
		Status:     StatusFailed,
		Timestamp:  time.Now(),
	}

	fail := func(err error) (Result, error) {
		res.Error = err.Error()
		return res, err
	}

	client, err := websocket.Dial(ctx, endpoint, header)
	if err != nil {
		return fail(err)
	}
	defer client.Close()

	start := time.Now()
	pong, err := client.Request(ctx, websocket.MsgTypePing, nil)
	if err != nil {
		return fail(err)
	}
	if pong.Type != websocket.MsgTypePong {
		return fail(errors.New("unexpected ping response").
			WithTag("msg_type", pong.Type))
	}
	res.LatencyMilliSec = float64(time.Since(start).Microseconds()) / 1000

	msg, err := client.Request(ctx, websocket.MsgTypeQueryRange, websocket.QueryRequest{
		Position: spatial.NewVec3(0, 0, 0),
		Range:    1,
		Types:    models.NavAll,
	})
	if err != nil {
		return fail(err)
	}
	if msg.Type != websocket.MsgTypeQueryResult {
		return fail(errors.New("unexpected query response").
			WithTag("msg_type", msg.Type).
			WithTag("data", string(msg.Data)))
	}

	var result websocket.QueryResult
	if err := msg.DataTo(&result); err != nil {
		return fail(err)
	}

	res.Nodes = len(result.Matches)
	res.Status = StatusSuccess
	return res, nil
}

// HandleSmokeTest starts a smoke test in the background and returns
// immediately. The result is passed to opts.SendResult.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			logs.Warn(errors.New("reading body failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var req Request
		if len(b) != 0 {
			if err := json.Unmarshal(b, &req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}
		if req.Endpoint == "" {
			req.Endpoint = opts.Endpoint
		}

		header := make(http.Header)
		header.Set(navhttp.HeaderClientID, "smoke-test")
		if opts.UserAgent != "" {
			header.Set("User-Agent", opts.UserAgent)
		}
		if opts.Token != "" {
			header.Set("Authorization", "Bearer "+opts.Token)
		}

		go func() {
			defer func() {
				// Signals tests that the smoke test is over.
				if tctx := ctx.Value(testCtxKeyValue); tctx != nil {
					testCtx := tctx.(testContext)
					if testCtx.Cancel != nil {
						testCtx.Cancel()
					}
				}
			}()

			res, err := Run(ctx, req.Endpoint, header, req.Timeout)
			res.FromEndpoint = opts.Endpoint
			if err != nil {
				logs.WithTag("to_endpoint", req.Endpoint).Warn(err)
			}

			if opts.SendResult == nil {
				return
			}
			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("from_endpoint", opts.Endpoint).
					WithTag("to_endpoint", req.Endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

// LogResult is a SendResult function that logs the result.
func LogResult(_ context.Context, res Result) error {
	logs.WithTag("from_endpoint", res.FromEndpoint).
		WithTag("to_endpoint", res.ToEndpoint).
		WithTag("status", res.Status).
		WithTag("latency_ms", res.LatencyMilliSec).
		WithTag("nodes", res.Nodes).
		Info("smoke test done")
	return nil
}
