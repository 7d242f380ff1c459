package http

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aukilabs/navindex/config"
	"github.com/aukilabs/navindex/featureflag"
	"github.com/aukilabs/navindex/graph"
	"github.com/aukilabs/navindex/models"
	"github.com/aukilabs/navindex/spatial"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T, flags ...string) (*API, *httptest.Server) {
	cfg := config.Default()
	cfg.Name = t.Name()
	cfg.CellSize = spatial.NewVec3(10, 10, 10)
	cfg.BucketCount = 64

	g, err := graph.New(cfg)
	require.NoError(t, err)
	t.Cleanup(g.Close)

	api := &API{
		Graph:        g,
		Version:      "v0.0.1-test",
		FeatureFlags: featureflag.New(flags),
	}

	server := httptest.NewServer(api.Routes())
	t.Cleanup(server.Close)
	return api, server
}

func doRequest(t *testing.T, method, url string, body any, out any) int {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	if out != nil {
		err = json.NewDecoder(res.Body).Decode(out)
		require.NoError(t, err)
	}
	return res.StatusCode
}

func TestAPINodes(t *testing.T) {
	_, server := newTestAPI(t)

	var road models.Node
	status := doRequest(t, http.MethodPost, server.URL+"/nodes", map[string]any{
		"type":     "road",
		"position": []float32{1, 2, 3},
	}, &road)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, models.NavRoad, road.Type)
	require.Equal(t, spatial.NewVec3(1, 2, 3), road.Position)

	var flight models.Node
	status = doRequest(t, http.MethodPost, server.URL+"/nodes", map[string]any{
		"type":     "flight",
		"position": []float32{40, 0, 0},
	}, &flight)
	require.Equal(t, http.StatusCreated, status)

	t.Run("get node", func(t *testing.T) {
		var n models.Node
		status := doRequest(t, http.MethodGet, server.URL+"/nodes/1", nil, &n)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, road, n)
	})

	t.Run("get unknown node", func(t *testing.T) {
		var res errorResponse
		status := doRequest(t, http.MethodGet, server.URL+"/nodes/42", nil, &res)
		require.Equal(t, http.StatusNotFound, status)
		require.Equal(t, models.ErrTypeNodeNotFound, res.Type)
	})

	t.Run("get invalid handle", func(t *testing.T) {
		var res errorResponse
		status := doRequest(t, http.MethodGet, server.URL+"/nodes/0", nil, &res)
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, models.ErrTypeInvalidHandle, res.Type)
	})

	t.Run("add node with combined types", func(t *testing.T) {
		var res errorResponse
		status := doRequest(t, http.MethodPost, server.URL+"/nodes", map[string]any{
			"type":     "road|flight",
			"position": []float32{0, 0, 0},
		}, &res)
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, models.ErrTypeInvalidNavType, res.Type)
	})

	t.Run("add node with bad body", func(t *testing.T) {
		res, err := http.Post(server.URL+"/nodes", "application/json", strings.NewReader("{"))
		require.NoError(t, err)
		res.Body.Close()
		require.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("list nodes by type", func(t *testing.T) {
		var res nodesResponse
		status := doRequest(t, http.MethodGet, server.URL+"/nodes?types=flight", nil, &res)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, []models.Node{flight}, res.Nodes)

		status = doRequest(t, http.MethodGet, server.URL+"/nodes", nil, &res)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, res.Nodes, 2)
	})

	t.Run("list nodes with unknown type", func(t *testing.T) {
		status := doRequest(t, http.MethodGet, server.URL+"/nodes?types=boat", nil, nil)
		require.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("move node", func(t *testing.T) {
		var n models.Node
		status := doRequest(t, http.MethodPut, server.URL+"/nodes/1/position", map[string]any{
			"position": []float32{38, 0, 0},
		}, &n)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, spatial.NewVec3(38, 0, 0), n.Position)

		var res matchesResponse
		status = doRequest(t, http.MethodGet, server.URL+"/query/range?x=40&range=5", nil, &res)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, res.Matches, 2)
	})

	t.Run("remove node", func(t *testing.T) {
		status := doRequest(t, http.MethodDelete, server.URL+"/nodes/1", nil, nil)
		require.Equal(t, http.StatusNoContent, status)

		status = doRequest(t, http.MethodDelete, server.URL+"/nodes/1", nil, nil)
		require.Equal(t, http.StatusNotFound, status)
	})
}

func TestAPIQueries(t *testing.T) {
	api, server := newTestAPI(t)

	for i := 0; i < 5; i++ {
		_, err := api.Graph.AddNode(models.NavWaypointHuman, spatial.NewVec3(float32(i), 0, 0))
		require.NoError(t, err)
	}
	_, err := api.Graph.AddNode(models.NavVolume, spatial.NewVec3(0, 1, 0))
	require.NoError(t, err)

	t.Run("range query sorted by distance", func(t *testing.T) {
		var res matchesResponse
		status := doRequest(t, http.MethodGet, server.URL+"/query/range?x=0&y=0&z=0&range=2.5&types=waypoint_human", nil, &res)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, res.Matches, 3)

		for i, m := range res.Matches {
			require.Equal(t, float32(i*i), m.DistanceSquared)
		}
	})

	t.Run("range query with every type", func(t *testing.T) {
		var res matchesResponse
		status := doRequest(t, http.MethodGet, server.URL+"/query/range?range=1", nil, &res)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, res.Matches, 3)
	})

	t.Run("first query", func(t *testing.T) {
		var res matchesResponse
		status := doRequest(t, http.MethodGet, server.URL+"/query/first?y=1&range=0.5&types=volume", nil, &res)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, res.Matches, 1)
		require.Equal(t, models.NavVolume, res.Matches[0].Type)
	})

	t.Run("first query without match", func(t *testing.T) {
		var res matchesResponse
		status := doRequest(t, http.MethodGet, server.URL+"/query/first?x=100&range=1", nil, &res)
		require.Equal(t, http.StatusOK, status)
		require.Empty(t, res.Matches)
	})

	t.Run("invalid parameters", func(t *testing.T) {
		queries := []string{
			"/query/range",
			"/query/range?range=abc",
			"/query/range?range=-1",
			"/query/range?x=NaN&range=1",
			"/query/first?range=1&types=boat",
		}

		for _, q := range queries {
			t.Run(q, func(t *testing.T) {
				var res errorResponse
				status := doRequest(t, http.MethodGet, server.URL+q, nil, &res)
				require.Equal(t, http.StatusBadRequest, status)
				require.NotEmpty(t, res.Message)
			})
		}
	})

	t.Run("stats", func(t *testing.T) {
		var stats graph.Stats
		status := doRequest(t, http.MethodGet, server.URL+"/stats?occupancy=true", nil, &stats)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, 6, stats.Nodes)
		require.Equal(t, 5, stats.NodesByType["waypoint_human"])
		require.Equal(t, 1, stats.NodesByType["volume"])
	})

	t.Run("validate and compact", func(t *testing.T) {
		var res validateResponse
		status := doRequest(t, http.MethodPost, server.URL+"/validate", nil, &res)
		require.Equal(t, http.StatusOK, status)
		require.True(t, res.Valid)

		status = doRequest(t, http.MethodPost, server.URL+"/compact", nil, nil)
		require.Equal(t, http.StatusNoContent, status)
	})
}

func TestAPISnapshot(t *testing.T) {
	src, srcServer := newTestAPI(t)
	for i := 0; i < 10; i++ {
		_, err := src.Graph.AddNode(models.NavTypeAt(i%models.NavTypeCount), spatial.NewVec3(float32(i), float32(i), 0))
		require.NoError(t, err)
	}

	res, err := http.Get(srcServer.URL + "/snapshot")
	require.NoError(t, err)
	snapshot, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	dst, dstServer := newTestAPI(t)

	res, err = http.Post(dstServer.URL+"/snapshot", "application/octet-stream", bytes.NewReader(snapshot))
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusNoContent, res.StatusCode)
	require.Equal(t, 10, dst.Graph.Len())

	t.Run("loading again conflicts", func(t *testing.T) {
		res, err := http.Post(dstServer.URL+"/snapshot", "application/octet-stream", bytes.NewReader(snapshot))
		require.NoError(t, err)
		res.Body.Close()
		require.Equal(t, http.StatusConflict, res.StatusCode)
		require.Equal(t, 10, dst.Graph.Len())
	})

	t.Run("invalid snapshot", func(t *testing.T) {
		res, err := http.Post(dstServer.URL+"/snapshot", "application/octet-stream", bytes.NewReader([]byte{0x0a, 0xff}))
		require.NoError(t, err)
		res.Body.Close()
		require.Equal(t, http.StatusBadRequest, res.StatusCode)
	})
}

func TestAPIMutationsDisabled(t *testing.T) {
	api, server := newTestAPI(t, string(featureflag.FlagDisableNodeMutations))

	var res errorResponse
	status := doRequest(t, http.MethodPost, server.URL+"/nodes", map[string]any{
		"type":     "road",
		"position": []float32{0, 0, 0},
	}, &res)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, ErrTypeMutationDisabled, res.Type)
	require.Equal(t, 0, api.Graph.Len())

	status = doRequest(t, http.MethodGet, server.URL+"/nodes", nil, nil)
	require.Equal(t, http.StatusOK, status)
}

func TestAPIAuth(t *testing.T) {
	api, _ := newTestAPI(t)
	api.AuthToken = "secret"

	server := httptest.NewServer(api.Routes())
	defer server.Close()

	t.Run("missing token", func(t *testing.T) {
		status := doRequest(t, http.MethodGet, server.URL+"/nodes", nil, nil)
		require.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("bearer token", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, server.URL+"/nodes", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer secret")

		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		res.Body.Close()
		require.Equal(t, http.StatusOK, res.StatusCode)
	})

	t.Run("query token", func(t *testing.T) {
		status := doRequest(t, http.MethodGet, server.URL+"/nodes?token=secret", nil, nil)
		require.Equal(t, http.StatusOK, status)
	})

	t.Run("health does not require a token", func(t *testing.T) {
		status := doRequest(t, http.MethodGet, server.URL+"/health", nil, nil)
		require.Equal(t, http.StatusOK, status)
	})
}

func TestAPIStatus(t *testing.T) {
	api, server := newTestAPI(t)

	var version statusResponse
	status := doRequest(t, http.MethodGet, server.URL+"/version", nil, &version)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "v0.0.1-test", version.Version)

	status = doRequest(t, http.MethodGet, server.URL+"/ready", nil, nil)
	require.Equal(t, http.StatusOK, status)

	api.Graph.Close()
	status = doRequest(t, http.MethodGet, server.URL+"/ready", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, status)

	var res errorResponse
	status = doRequest(t, http.MethodPost, server.URL+"/nodes", map[string]any{
		"type":     "road",
		"position": []float32{0, 0, 0},
	}, &res)
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Equal(t, graph.ErrTypeGraphClosed, res.Type)
}

func TestCORS(t *testing.T) {
	_, server := newTestAPI(t)

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/nodes", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()

	require.Less(t, res.StatusCode, 300)
	require.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsPathFormatter(t *testing.T) {
	require.Equal(t, "", MetricsPathFormatter(http.StatusNotFound, "/nodes/1"))
	require.Equal(t, "/nodes/{handle}", MetricsPathFormatter(http.StatusOK, "/nodes/12"))
	require.Equal(t, "/nodes/{handle}/position", MetricsPathFormatter(http.StatusOK, "/nodes/12/position"))
	require.Equal(t, "/nodes", MetricsPathFormatter(http.StatusOK, "/nodes"))
	require.Equal(t, "/query/range", MetricsPathFormatter(http.StatusOK, "/query/range"))
}
