package http

import (
	"io"
	"net/http"
	"strconv"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/navindex/featureflag"
	"github.com/aukilabs/navindex/graph"
	"github.com/aukilabs/navindex/models"
	"github.com/aukilabs/navindex/spatial"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/segmentio/encoding/json"
)

const maxSnapshotSize = 64 << 20

// API exposes a graph over HTTP.
type API struct {
	Graph   *graph.Graph
	Version string

	// The token required by node routes. Empty disables authentication.
	AuthToken string

	FeatureFlags featureflag.FeatureFlag

	// The origins allowed by CORS. Empty allows every origin.
	CORSOrigins []string

	// Mounted on /ws when not nil.
	Realtime http.Handler
}

type addNodeRequest struct {
	Type     models.NavType `json:"type"`
	Position spatial.Vec3   `json:"position"`
}

type moveNodeRequest struct {
	Position spatial.Vec3 `json:"position"`
}

type nodesResponse struct {
	Nodes []models.Node `json:"nodes"`
}

type matchesResponse struct {
	Matches []graph.Match `json:"matches"`
}

type validateResponse struct {
	Valid bool `json:"valid"`
}

// Routes returns the router serving the API.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", HandleHealthCheck)
	r.Get("/ready", HandleReadyCheck(a.ready))
	r.Get("/version", HandleVersion(a.Version))

	if a.Realtime != nil {
		r.Handle("/ws", a.Realtime)
	}

	r.Group(func(r chi.Router) {
		r.Use(VerifyAuthTokenHandler(a.AuthToken))

		r.Get("/nodes", a.handleListNodes)
		r.Get("/nodes/{handle}", a.handleGetNode)
		r.Get("/query/range", a.handleQueryRange)
		r.Get("/query/first", a.handleQueryFirst)
		r.Get("/stats", a.handleStats)
		r.Get("/snapshot", a.handleSnapshot)
		r.Post("/validate", a.handleValidate)

		r.Group(func(r chi.Router) {
			r.Use(a.requireMutations)

			r.Post("/nodes", a.handleAddNode)
			r.Put("/nodes/{handle}/position", a.handleMoveNode)
			r.Delete("/nodes/{handle}", a.handleRemoveNode)
			r.Post("/snapshot", a.handleLoadSnapshot)
			r.Post("/compact", a.handleCompact)
		})
	})

	return HandleWithCORS(r, a.CORSOrigins...)
}

func (a *API) ready() bool {
	return !a.Graph.Closed()
}

func (a *API) requireMutations(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.FeatureFlags.IsSet(featureflag.FlagDisableNodeMutations) {
			writeError(w, errors.New("node mutations are disabled").
				WithType(ErrTypeMutationDisabled).
				WithTag("path", r.URL.Path))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleListNodes(w http.ResponseWriter, r *http.Request) {
	mask, err := models.ParseNavType(r.URL.Query().Get("types"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, nodesResponse{
		Nodes: a.Graph.NodesOfType(mask),
	})
}

func (a *API) handleGetNode(w http.ResponseWriter, r *http.Request) {
	h, err := parseHandle(chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, err)
		return
	}

	n, err := a.Graph.Node(h)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (a *API) handleAddNode(w http.ResponseWriter, r *http.Request) {
	var req addNodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	n, err := a.Graph.AddNode(req.Type, req.Position)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (a *API) handleMoveNode(w http.ResponseWriter, r *http.Request) {
	h, err := parseHandle(chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req moveNodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	n, err := a.Graph.MoveNode(h, req.Position)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (a *API) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	h, err := parseHandle(chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := a.Graph.RemoveNode(h); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleQueryRange(w http.ResponseWriter, r *http.Request) {
	q, err := ParseRangeQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	matches, err := a.Graph.NodesWithinRange(q.Position, q.Range, q.Types)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchesResponse{Matches: matches})
}

func (a *API) handleQueryFirst(w http.ResponseWriter, r *http.Request) {
	q, err := ParseRangeQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	match, ok, err := a.Graph.NodeWithinRange(q.Position, q.Range, q.Types)
	if err != nil {
		writeError(w, err)
		return
	}

	res := matchesResponse{Matches: []graph.Match{}}
	if ok {
		res.Matches = append(res.Matches, match)
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	withOccupancy, _ := strconv.ParseBool(r.URL.Query().Get("occupancy"))
	writeJSON(w, http.StatusOK, a.Graph.Stats(withOccupancy))
}

func (a *API) handleValidate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, validateResponse{Valid: a.Graph.Validate()})
}

func (a *API) handleCompact(w http.ResponseWriter, r *http.Request) {
	a.Graph.Compact()
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(a.Graph.Snapshot())
}

func (a *API) handleLoadSnapshot(w http.ResponseWriter, r *http.Request) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxSnapshotSize))
	if err != nil {
		writeError(w, errors.New("reading body failed").Wrap(err))
		return
	}

	if err := a.Graph.LoadSnapshot(b); err != nil {
		writeError(w, err)
		return
	}

	logs.WithTag("graph", a.Graph.Name).
		WithTag("bytes", len(b)).
		Info("snapshot loaded")
	w.WriteHeader(http.StatusNoContent)
}

// RangeQuery is a radius query read from URL parameters.
type RangeQuery struct {
	Position spatial.Vec3
	Range    float32
	Types    models.NavType
}

// ParseRangeQuery reads the x, y, z, range and types URL parameters. Missing
// coordinates default to zero and missing types match every type.
func ParseRangeQuery(r *http.Request) (RangeQuery, error) {
	values := r.URL.Query()

	var q RangeQuery
	for i, name := range []string{"x", "y", "z"} {
		v, err := parseFloat(name, values.Get(name), true)
		if err != nil {
			return RangeQuery{}, err
		}
		q.Position[i] = v
	}

	rng, err := parseFloat("range", values.Get("range"), false)
	if err != nil {
		return RangeQuery{}, err
	}
	q.Range = rng

	if q.Types, err = models.ParseNavType(values.Get("types")); err != nil {
		return RangeQuery{}, err
	}
	return q, nil
}

func parseFloat(name, s string, optional bool) (float32, error) {
	if s == "" && optional {
		return 0, nil
	}

	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, errors.New("invalid query parameter").
			WithType(graph.ErrTypeInvalidQuery).
			WithTag("param", name).
			WithTag("value", s).
			Wrap(err)
	}
	return float32(v), nil
}

func parseHandle(s string) (models.Handle, error) {
	h, err := strconv.ParseUint(s, 10, 32)
	if err != nil || h == uint64(models.InvalidHandle) {
		return 0, errors.New("invalid node handle").
			WithType(models.ErrTypeInvalidHandle).
			WithTag("handle", s)
	}
	return models.Handle(h), nil
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("decoding request body failed").
			WithType(ErrTypeBadRequest).
			Wrap(err)
	}
	return nil
}
