// Package graph owns the navigation nodes of a graph and their index. It
// serializes every access so that concurrent callers can share a graph.
package graph

import (
	"slices"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/navindex/config"
	"github.com/aukilabs/navindex/models"
	"github.com/aukilabs/navindex/nodeindex"
	"github.com/aukilabs/navindex/spatial"
	"github.com/google/uuid"
)

const (
	ErrTypeInvalidQuery     = "invalid-query"
	ErrTypeInvalidPosition  = "invalid-position"
	ErrTypeInconsistentHash = "inconsistent-hash"
	ErrTypeGraphClosed      = "graph-closed"
)

// Match is a node returned by a radius query.
type Match struct {
	models.Node
	DistanceSquared float32 `json:"distance_squared"`
}

// Stats describes the content of a graph.
type Stats struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Nodes       int               `json:"nodes"`
	NodesByType map[string]int    `json:"nodes_by_type"`
	MemoryBytes int               `json:"memory_bytes"`
	Hash        spatial.DebugInfo `json:"hash"`
}

type Graph struct {
	ID   string
	Name string

	// Releases unused index memory after each node removal.
	CompactAfterRemove bool

	// Checks the index consistency after each node mutation.
	ValidateAfterMutation bool

	mutex  sync.Mutex
	config config.Index
	nodes  *models.NodeStore
	index  *nodeindex.Index
	closed bool
}

// New creates an empty graph.
func New(cfg config.Index) (*Graph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nodes := models.NewNodeStore()

	g := &Graph{
		ID:     uuid.NewString(),
		Name:   cfg.Name,
		config: cfg,
		nodes:  nodes,
		index:  nodeindex.New(nodes, cfg.CellSize, cfg.BucketCount),
	}
	g.instrumentMemory()
	return g, nil
}

func (g *Graph) checkOpen() error {
	if g.closed {
		return errors.New("graph is closed").
			WithType(ErrTypeGraphClosed).
			WithTag("graph", g.Name)
	}
	return nil
}

// checkPosition rejects positions the index cannot place in a cell.
func (g *Graph) checkPosition(pos spatial.Vec3) error {
	if !spatial.InBounds(pos) || !g.index.HashSpace().InRange(pos) {
		return errors.New("position is out of bounds").
			WithType(ErrTypeInvalidPosition).
			WithTag("position", pos).
			WithTag("max_coordinate", spatial.MaxCoordinate)
	}
	return nil
}

func checkQuery(pos spatial.Vec3, r float32) error {
	if !spatial.IsFinite(pos) {
		return errors.New("query position must be finite").
			WithType(ErrTypeInvalidQuery).
			WithTag("position", pos)
	}
	if !(r >= 0) || !spatial.IsFinite(spatial.NewVec3(r, 0, 0)) {
		return errors.New("query range must be a positive number").
			WithType(ErrTypeInvalidQuery).
			WithTag("range", r)
	}
	return nil
}

func nodeNotFound(h models.Handle) error {
	return errors.New("node not found").
		WithType(models.ErrTypeNodeNotFound).
		WithTag("handle", h)
}

// afterMutation runs the optional maintenance after nodes were added or
// removed. The graph mutex must be held.
func (g *Graph) afterMutation(removed bool) error {
	if removed && g.CompactAfterRemove {
		g.index.Compact()
	}
	g.instrumentMemory()

	if g.ValidateAfterMutation {
		return g.validate()
	}
	return nil
}

// AddNode creates a node and indexes it.
func (g *Graph) AddNode(t models.NavType, pos spatial.Vec3) (models.Node, error) {
	if err := g.checkPosition(pos); err != nil {
		return models.Node{}, err
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	if err := g.checkOpen(); err != nil {
		return models.Node{}, err
	}

	n, err := g.nodes.Add(t, pos)
	if err != nil {
		return models.Node{}, err
	}

	g.index.AddNode(n.Handle)
	g.instrumentNodeCount(n.Type, 1)
	return n, g.afterMutation(false)
}

// RemoveNode removes a node from the index and deletes it.
func (g *Graph) RemoveNode(h models.Handle) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if err := g.checkOpen(); err != nil {
		return err
	}

	n, ok := g.nodes.Node(h)
	if !ok {
		return nodeNotFound(h)
	}

	g.index.RemoveNode(h)
	g.nodes.Delete(h)
	g.instrumentNodeCount(n.Type, -1)
	return g.afterMutation(true)
}

// MoveNode changes the position of a node and indexes it at its new
// position.
func (g *Graph) MoveNode(h models.Handle, pos spatial.Vec3) (models.Node, error) {
	if err := g.checkPosition(pos); err != nil {
		return models.Node{}, err
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	if err := g.checkOpen(); err != nil {
		return models.Node{}, err
	}

	n, ok := g.nodes.Node(h)
	if !ok {
		return models.Node{}, nodeNotFound(h)
	}

	g.index.RemoveNode(h)
	if err := g.nodes.SetPosition(h, pos); err != nil {
		g.index.AddNode(h)
		return models.Node{}, err
	}
	g.index.AddNode(h)

	n.Position = pos
	return n, g.afterMutation(false)
}

// Node returns the node with the given handle.
func (g *Graph) Node(h models.Handle) (models.Node, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	n, ok := g.nodes.Node(h)
	if !ok {
		return models.Node{}, nodeNotFound(h)
	}
	return n, nil
}

// NodesWithinRange returns the nodes matching mask within r of pos, nearest
// first.
func (g *Graph) NodesWithinRange(pos spatial.Vec3, r float32, mask models.NavType) ([]Match, error) {
	if err := checkQuery(pos, r); err != nil {
		return nil, err
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	start := time.Now()
	results := g.index.GetAllNodesWithinRange(pos, r, mask)

	matches := make([]Match, 0, len(results))
	for _, res := range results {
		if n, ok := g.nodes.Node(res.Handle); ok {
			matches = append(matches, Match{
				Node:            n,
				DistanceSquared: res.DistanceSquared,
			})
		}
	}

	slices.SortFunc(matches, func(a, b Match) int {
		switch {
		case a.DistanceSquared < b.DistanceSquared:
			return -1
		case a.DistanceSquared > b.DistanceSquared:
			return 1
		default:
			return int(a.Handle) - int(b.Handle)
		}
	})

	g.instrumentQuery(queryRange, start, len(matches))
	return matches, nil
}

// NodeWithinRange returns the first node matching mask found within r of
// pos. It is not necessarily the nearest one.
func (g *Graph) NodeWithinRange(pos spatial.Vec3, r float32, mask models.NavType) (Match, bool, error) {
	if err := checkQuery(pos, r); err != nil {
		return Match{}, false, err
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	start := time.Now()
	res, ok := g.index.GetNodeWithinRange(pos, r, mask)

	var match Match
	if ok {
		match.Node, ok = g.nodes.Node(res.Handle)
		match.DistanceSquared = res.DistanceSquared
	}

	results := 0
	if ok {
		results = 1
	}
	g.instrumentQuery(queryFirst, start, results)
	return match, ok, nil
}

// NodesOfType returns the nodes matching mask, grouped by type and ordered by
// handle.
func (g *Graph) NodesOfType(mask models.NavType) []models.Node {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	start := time.Now()
	nodes := make([]models.Node, 0, g.index.CountByType(mask))
	for h := range g.index.Handles(mask) {
		if n, ok := g.nodes.Node(h); ok {
			nodes = append(nodes, n)
		}
	}

	g.instrumentQuery(queryType, start, len(nodes))
	return nodes
}

// Load adds nodes that keep their handles. Storage is reserved for the whole
// batch before nodes are indexed. Nothing is added when a node is invalid or
// already exists.
func (g *Graph) Load(nodes []models.Node) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if err := g.checkOpen(); err != nil {
		return err
	}

	for _, n := range nodes {
		if err := g.checkPosition(n.Position); err != nil {
			return errors.New("loading nodes failed").
				WithType(ErrTypeInvalidPosition).
				WithTag("handle", n.Handle).
				Wrap(err)
		}
	}

	handles := make([]models.Handle, 0, len(nodes))
	for _, n := range nodes {
		if err := g.nodes.Restore(n); err != nil {
			for _, h := range handles {
				g.nodes.Delete(h)
			}
			return errors.New("loading nodes failed").
				WithType(errors.Type(err)).
				WithTag("handle", n.Handle).
				Wrap(err)
		}
		handles = append(handles, n.Handle)
	}

	slices.Sort(handles)
	g.index.ReserveForBulkLoad(handles)

	for _, n := range nodes {
		g.index.AddNode(n.Handle)
		g.instrumentNodeCount(n.Type, 1)
	}

	logs.WithTag("graph", g.Name).
		WithTag("nodes", len(nodes)).
		Debug("nodes loaded")

	g.instrumentMemory()
	if g.config.ValidateAfterLoad || g.ValidateAfterMutation {
		return g.validate()
	}
	return nil
}

// LoadSnapshot loads the nodes of a snapshot created with Snapshot.
func (g *Graph) LoadSnapshot(b []byte) error {
	nodes, err := models.UnmarshalNodes(b)
	if err != nil {
		return err
	}
	return g.Load(nodes)
}

// Snapshot encodes every node of the graph.
func (g *Graph) Snapshot() []byte {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return models.MarshalNodes(g.nodes.Nodes())
}

// Compact releases the unused memory of the index.
func (g *Graph) Compact() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.index.Compact()
	g.instrumentMemory()
}

// Validate reports whether the index is consistent with the nodes.
func (g *Graph) Validate() bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return g.validate() == nil
}

func (g *Graph) validate() error {
	if g.index.ValidateHashSpace() && g.index.Len() == g.nodes.Len() {
		return nil
	}

	g.instrumentValidationFailure()
	err := errors.New("node index is inconsistent").
		WithType(ErrTypeInconsistentHash).
		WithTag("graph", g.Name).
		WithTag("indexed", g.index.Len()).
		WithTag("nodes", g.nodes.Len())
	logs.Warn(err)
	return err
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return g.nodes.Len()
}

func (g *Graph) Stats(withOccupancy bool) Stats {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	stats := Stats{
		ID:          g.ID,
		Name:        g.Name,
		Nodes:       g.index.Len(),
		NodesByType: make(map[string]int),
		MemoryBytes: g.index.MemStats(),
		Hash:        g.index.HashSpace().DebugInfo(withOccupancy),
	}

	for _, t := range g.index.Types().Split() {
		stats.NodesByType[t.String()] = g.index.CountByType(t)
	}
	return stats
}

// Close releases the graph. Queries on a closed graph return no nodes and
// mutations return an error.
func (g *Graph) Close() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.closed {
		return
	}

	g.closed = true
	g.index.Close()
	g.nodes.Clear()
	g.resetMetrics()
}

// Closed reports whether Close was called.
func (g *Graph) Closed() bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return g.closed
}
