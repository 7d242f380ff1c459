package models

import (
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/navindex/spatial"
	"github.com/tidwall/btree"
)

// Handle is an opaque reference to a node owned by a NodeStore. 0 is never a
// valid handle.
type Handle = uint32

// InvalidHandle is the zero handle.
const InvalidHandle Handle = 0

type Node struct {
	Handle   Handle       `json:"handle"`
	Type     NavType      `json:"type"`
	Position spatial.Vec3 `json:"position"`
}

func nodeLess(a, b Node) bool {
	return a.Handle < b.Handle
}

// NodeStore owns the navigation nodes, ordered by handle.
type NodeStore struct {
	mutex sync.RWMutex
	ids   SequentialIDGenerator
	nodes *btree.BTreeG[Node]
}

func NewNodeStore() *NodeStore {
	s := &NodeStore{
		nodes: btree.NewBTreeG[Node](nodeLess),
	}

	// Called with the store mutex held.
	s.ids.InUse = func(id uint32) bool {
		_, ok := s.nodes.Get(Node{Handle: id})
		return ok
	}
	return s
}

// Add creates a node of type t at the given position.
func (s *NodeStore) Add(t NavType, pos spatial.Vec3) (Node, error) {
	if !t.IsSingle() {
		return Node{}, errors.New("node type must be a single navigation type").
			WithType(ErrTypeInvalidNavType).
			WithTag("type", uint32(t))
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	h, err := s.ids.New()
	if err != nil {
		return Node{}, err
	}

	n := Node{
		Handle:   h,
		Type:     t,
		Position: pos,
	}
	if _, ok := s.nodes.Get(n); ok {
		return Node{}, errors.New("node already exists").
			WithType(ErrTypeNodeExists).
			WithTag("handle", h)
	}

	s.nodes.Set(n)
	instrumentNodeAdd(t)
	return n, nil
}

// Restore inserts a node that keeps its handle, such as one read from a
// snapshot.
func (s *NodeStore) Restore(n Node) error {
	if n.Handle == InvalidHandle {
		return errors.New("invalid node handle").
			WithType(ErrTypeInvalidHandle).
			WithTag("handle", n.Handle)
	}
	if !n.Type.IsSingle() {
		return errors.New("node type must be a single navigation type").
			WithType(ErrTypeInvalidNavType).
			WithTag("handle", n.Handle).
			WithTag("type", uint32(n.Type))
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.nodes.Get(n); ok {
		return errors.New("node already exists").
			WithType(ErrTypeNodeExists).
			WithTag("handle", n.Handle)
	}

	s.ids.Reserve(n.Handle)
	s.nodes.Set(n)
	instrumentNodeAdd(n.Type)
	return nil
}

// Node returns the node with the given handle.
func (s *NodeStore) Node(h Handle) (Node, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.nodes.Get(Node{Handle: h})
}

func (s *NodeStore) SetPosition(h Handle, pos spatial.Vec3) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	n, ok := s.nodes.Get(Node{Handle: h})
	if !ok {
		return errors.New("node not found").
			WithType(ErrTypeNodeNotFound).
			WithTag("handle", h)
	}

	n.Position = pos
	s.nodes.Set(n)
	return nil
}

// Delete removes a node and makes its handle reusable. It returns false when
// the node does not exist.
func (s *NodeStore) Delete(h Handle) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	n, ok := s.nodes.Delete(Node{Handle: h})
	if !ok {
		return false
	}

	s.ids.Reuse(h)
	instrumentNodeDelete(n.Type)
	return true
}

func (s *NodeStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.nodes.Len()
}

// Scan calls fn for every node in handle order until fn returns false. The
// store must not be modified from fn.
func (s *NodeStore) Scan(fn func(Node) bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	s.nodes.Scan(fn)
}

// Nodes returns a copy of every node in handle order.
func (s *NodeStore) Nodes() []Node {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	nodes := make([]Node, 0, s.nodes.Len())
	s.nodes.Scan(func(n Node) bool {
		nodes = append(nodes, n)
		return true
	})
	return nodes
}

// Clear removes every node and resets handle allocation.
func (s *NodeStore) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.nodes.Scan(func(n Node) bool {
		instrumentNodeDelete(n.Type)
		return true
	})
	s.nodes = btree.NewBTreeG[Node](nodeLess)
	s.ids.Reset()
}
