package models

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/navindex/spatial"
	"google.golang.org/protobuf/encoding/protowire"
)

// Snapshot wire format, protobuf compatible:
//
//	message Snapshot { repeated Node nodes = 1; }
//	message Node {
//	  uint32 handle = 1;
//	  uint32 type = 2;
//	  float x = 3;
//	  float y = 4;
//	  float z = 5;
//	}
const (
	snapshotNodesField protowire.Number = 1

	nodeHandleField protowire.Number = 1
	nodeTypeField   protowire.Number = 2
	nodeXField      protowire.Number = 3
	nodeYField      protowire.Number = 4
	nodeZField      protowire.Number = 5
)

// MarshalNodes encodes nodes into a snapshot.
func MarshalNodes(nodes []Node) []byte {
	var b []byte
	var msg []byte

	for _, n := range nodes {
		msg = msg[:0]
		msg = protowire.AppendTag(msg, nodeHandleField, protowire.VarintType)
		msg = protowire.AppendVarint(msg, uint64(n.Handle))
		msg = protowire.AppendTag(msg, nodeTypeField, protowire.VarintType)
		msg = protowire.AppendVarint(msg, uint64(n.Type))
		msg = appendFloat(msg, nodeXField, n.Position[0])
		msg = appendFloat(msg, nodeYField, n.Position[1])
		msg = appendFloat(msg, nodeZField, n.Position[2])

		b = protowire.AppendTag(b, snapshotNodesField, protowire.BytesType)
		b = protowire.AppendBytes(b, msg)
	}

	return b
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

// UnmarshalNodes decodes a snapshot created with MarshalNodes. Unknown fields
// are skipped.
func UnmarshalNodes(b []byte) ([]Node, error) {
	var nodes []Node

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, invalidSnapshotError("malformed field", protowire.ParseError(n))
		}
		b = b[n:]

		if num != snapshotNodesField || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, invalidSnapshotError("malformed field", protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		msg, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, invalidSnapshotError("malformed field", protowire.ParseError(n))
		}
		b = b[n:]

		node, err := unmarshalNode(msg)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	return nodes, nil
}

func unmarshalNode(b []byte) (Node, error) {
	var node Node

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Node{}, invalidSnapshotError("malformed field", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case (num == nodeHandleField || num == nodeTypeField) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Node{}, invalidSnapshotError("malformed field", protowire.ParseError(n))
			}
			b = b[n:]

			if v > math.MaxUint32 {
				return Node{}, invalidSnapshotError("varint overflow", nil)
			}
			if num == nodeHandleField {
				node.Handle = Handle(v)
			} else {
				node.Type = NavType(v)
			}

		case num >= nodeXField && num <= nodeZField && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return Node{}, invalidSnapshotError("malformed field", protowire.ParseError(n))
			}
			b = b[n:]
			node.Position[num-nodeXField] = math.Float32frombits(v)

		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Node{}, invalidSnapshotError("malformed field", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if node.Handle == InvalidHandle {
		return Node{}, invalidSnapshotError("missing handle", nil)
	}
	if !node.Type.IsSingle() {
		return Node{}, errors.New("invalid snapshot").
			WithType(ErrTypeInvalidSnapshot).
			WithTag("reason", "invalid node type").
			WithTag("handle", node.Handle).
			WithTag("type", uint32(node.Type))
	}
	if !spatial.InBounds(node.Position) {
		return Node{}, errors.New("invalid snapshot").
			WithType(ErrTypeInvalidSnapshot).
			WithTag("reason", "position out of bounds").
			WithTag("handle", node.Handle).
			WithTag("position", node.Position)
	}

	return node, nil
}

func invalidSnapshotError(reason string, err error) error {
	e := errors.New("invalid snapshot").
		WithType(ErrTypeInvalidSnapshot).
		WithTag("reason", reason)
	if err != nil {
		return e.Wrap(err)
	}
	return e
}
