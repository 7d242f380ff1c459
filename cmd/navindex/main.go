package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	indexconfig "github.com/aukilabs/navindex/config"
	"github.com/aukilabs/navindex/featureflag"
	"github.com/aukilabs/navindex/graph"
	navhttp "github.com/aukilabs/navindex/http"
	"github.com/aukilabs/navindex/smoketest"
	navwebsocket "github.com/aukilabs/navindex/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
	"golang.org/x/time/rate"
)

var (
	// The navindex version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "navindex_info",
		Help:        "Navindex information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"NAVINDEX_ADDR"                 help:"Listening address for API and query connections."`
	AdminAddr          string        `cli:""        env:"NAVINDEX_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"NAVINDEX_PUBLIC_ENDPOINT"      help:"The public endpoint where this server is reachable."`
	IndexConfig        string        `cli:""        env:"NAVINDEX_INDEX_CONFIG"         help:"The YAML file that tunes the node index."`
	Snapshot           string        `cli:""        env:"NAVINDEX_SNAPSHOT"             help:"The node snapshot file loaded at startup."`
	SaveSnapshot       bool          `cli:""        env:"NAVINDEX_SAVE_SNAPSHOT"        help:"Write the nodes to the snapshot file on exit."`
	AuthToken          string        `cli:""        env:"NAVINDEX_AUTH_TOKEN"           help:"The token required to access nodes. Empty disables authentication."`
	LogLevel           string        `cli:""        env:"NAVINDEX_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"NAVINDEX_LOG_INDENT"           help:"Indent logs."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"NAVINDEX_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle client will be disconnected."`
	ClientRateLimit    float64       `cli:",hidden" env:"NAVINDEX_CLIENT_RATE_LIMIT"    help:"The number of queries per second a client can sustain. 0 disables the limit."`
	ClientRateBurst    int           `cli:",hidden" env:"NAVINDEX_CLIENT_RATE_BURST"    help:"The number of queries a client can burst above the rate limit."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"NAVINDEX_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	Events             eventsConfig  `cli:",hidden" env:"-"                             help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"NAVINDEX_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                             help:"Show version."`
	Help               bool          `cli:""        env:"-"                             help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"NAVINDEX_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed. Empty disables events."`
	FlushInterval time.Duration `cli:",hidden" env:"NAVINDEX_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"NAVINDEX_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"NAVINDEX_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4100",
		AdminAddr:          ":18191",
		PublicEndpoint:     "http://localhost:4100",
		LogLevel:           logs.InfoLevel.String(),
		ClientIdleTimeout:  time.Minute * 5,
		ClientRateLimit:    200,
		ClientRateBurst:    50,
		LogSummaryInterval: time.Minute,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts a navigation node index server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "navindex",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	indexConf, err := indexconfig.Load(conf.IndexConfig)
	if err != nil {
		logs.Fatal(err)
	}

	g, err := graph.New(indexConf)
	if err != nil {
		logs.Fatal(errors.New("creating graph failed").Wrap(err))
	}
	defer g.Close()

	featureFlags := featureflag.New(conf.FeatureFlags)
	featureFlags.IfSet(featureflag.FlagCompactAfterRemove, func() {
		g.CompactAfterRemove = true
	})
	featureFlags.IfSet(featureflag.FlagValidateAfterMutation, func() {
		g.ValidateAfterMutation = true
	})

	if conf.Snapshot != "" {
		if err := loadSnapshot(g, conf.Snapshot); err != nil {
			logs.Fatal(err)
		}
	}

	api := navhttp.API{
		Graph:        g,
		Version:      version,
		AuthToken:    conf.AuthToken,
		FeatureFlags: featureFlags,
	}

	featureFlags.IfNotSet(featureflag.FlagDisableWebsocketQueries, func() {
		api.Realtime = websocket.Server{
			Handshake: navhttp.VerifyAuthToken(conf.AuthToken),
			Handler: func(conn *websocket.Conn) {
				defer conn.Close()

				var h navwebsocket.Handler = &navwebsocket.QueryHandler{
					Graph:             g,
					ClientIdleTimeout: conf.ClientIdleTimeout,
					RateLimit:         rate.Limit(conf.ClientRateLimit),
					RateBurst:         conf.ClientRateBurst,
				}
				h = navwebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
				h = navwebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
				defer h.Close()

				navwebsocket.Handle(ctx, conn, h)
			},
		}
	})

	readinessCheck := func() bool {
		return !g.Closed()
	}

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", navhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", navhttp.HandleReadyCheck(readinessCheck))

	featureFlags.IfNotSet(featureflag.FlagDisableSmokeTest, func() {
		admin.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
			Endpoint:   strings.TrimSuffix(conf.PublicEndpoint, "/") + "/ws",
			UserAgent:  fmt.Sprintf("navindex %s", version),
			Token:      conf.AuthToken,
			SendResult: smoketest.LogResult,
		}))
	})

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("graph", g.Name).
		WithTag("nodes", g.Len()).
		WithTag("feature_flags", featureFlags.Strings()).
		Info("starting navindex server")

	navhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(api.Routes(),
			navhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)

	if conf.SaveSnapshot && conf.Snapshot != "" {
		if err := saveSnapshot(g, conf.Snapshot); err != nil {
			logs.Warn(err)
		}
	}
}

func loadSnapshot(g *graph.Graph, filename string) error {
	b, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		logs.WithTag("file_name", filename).Info("no snapshot to load")
		return nil
	}
	if err != nil {
		return errors.New("reading snapshot failed").
			WithTag("file_name", filename).
			Wrap(err)
	}

	if err := g.LoadSnapshot(b); err != nil {
		return errors.New("loading snapshot failed").
			WithTag("file_name", filename).
			Wrap(err)
	}

	logs.WithTag("file_name", filename).
		WithTag("nodes", g.Len()).
		Info("snapshot loaded")
	return nil
}

func saveSnapshot(g *graph.Graph, filename string) error {
	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, g.Snapshot(), 0o644); err != nil {
		return errors.New("writing snapshot failed").
			WithTag("file_name", tmp).
			Wrap(err)
	}

	if err := os.Rename(tmp, filename); err != nil {
		return errors.New("replacing snapshot failed").
			WithTag("file_name", filename).
			Wrap(err)
	}

	logs.WithTag("file_name", filename).Info("snapshot saved")
	return nil
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.ClientRateLimit < 0 {
		return errors.New("client rate limit must not be negative").
			WithTag("rate_limit", conf.ClientRateLimit)
	}

	if conf.SaveSnapshot && conf.Snapshot == "" {
		return errors.New("saving snapshot requires a snapshot file")
	}

	return nil
}
