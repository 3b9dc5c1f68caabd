package nodes

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-jffs2/internal/diagnostics"
	"github.com/deploymenttheory/go-jffs2/internal/types"
)

// DecodeNode turns a scanned node into a *DirentNode or *InodeNode. Nodes
// that fail structural checks come back as *IgnoredNode whose Reason is a
// *diagnostics.Error of kind StructuralInvalid.
func DecodeNode(raw RawNode, order binary.ByteOrder) Node {
	switch raw.NodeType {
	case types.NodeTypeDirent:
		d, err := parseDirent(raw.Data, order)
		if err != nil {
			return ignored(raw, err)
		}
		return &DirentNode{RawDirent: *d, NodeOffset: raw.Offset}

	case types.NodeTypeInode:
		in, payload, err := parseInode(raw.Data, order)
		if err != nil {
			return ignored(raw, err)
		}
		return &InodeNode{RawInode: *in, NodeOffset: raw.Offset, Payload: payload}

	default:
		return ignored(raw, fmt.Errorf("%s nodes are not decoded", raw.NodeType))
	}
}

func ignored(raw RawNode, err error) *IgnoredNode {
	return &IgnoredNode{
		NodeOffset: raw.Offset,
		Reason: &diagnostics.Error{
			Diagnostic: diagnostics.Diagnostic{
				Kind:    diagnostics.StructuralInvalid,
				Offset:  raw.Offset,
				Message: "node rejected by decoder",
			},
			Err: err,
		},
	}
}
