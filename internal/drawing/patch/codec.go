package patch

import (
	"bytes"
	"encoding/json"
	"fmt"

	"drawing-core/internal/drawing/geometry"

	"github.com/tidwall/jsonc"
)

// ============================================================
// Wire form
// ============================================================
//
// Операция кодируется объектом с дискриминатором "op":
//
//	{"op": "move_node", "nodeId": "n1", "oldPosition": {...}, "newPosition": {...}}

type nodeJSON struct {
	Op       OpKind           `json:"op"`
	NodeID   string           `json:"nodeId"`
	Position geometry.Point2D `json:"position"`
}

type deleteNodeJSON struct {
	Op              OpKind           `json:"op"`
	NodeID          string           `json:"nodeId"`
	DeletedPosition geometry.Point2D `json:"deletedPosition"`
}

type moveNodeJSON struct {
	Op          OpKind           `json:"op"`
	NodeID      string           `json:"nodeId"`
	OldPosition geometry.Point2D `json:"oldPosition"`
	NewPosition geometry.Point2D `json:"newPosition"`
}

type memberJSON struct {
	Op          OpKind  `json:"op"`
	MemberID    string  `json:"memberId"`
	StartNodeID string  `json:"startNodeId"`
	EndNodeID   string  `json:"endNodeId"`
	ProfileRef  *string `json:"profileRef"`
}

type profileJSON struct {
	Op            OpKind  `json:"op"`
	MemberID      string  `json:"memberId"`
	OldProfileRef *string `json:"oldProfileRef"`
	NewProfileRef *string `json:"newProfileRef"`
}

type rawOperation struct {
	Op              *OpKind           `json:"op"`
	NodeID          *string           `json:"nodeId"`
	MemberID        *string           `json:"memberId"`
	Position        *geometry.Point2D `json:"position"`
	DeletedPosition *geometry.Point2D `json:"deletedPosition"`
	OldPosition     *geometry.Point2D `json:"oldPosition"`
	NewPosition     *geometry.Point2D `json:"newPosition"`
	StartNodeID     *string           `json:"startNodeId"`
	EndNodeID       *string           `json:"endNodeId"`
	ProfileRef      *string           `json:"profileRef"`
	OldProfileRef   *string           `json:"oldProfileRef"`
	NewProfileRef   *string           `json:"newProfileRef"`
}

// ============================================================
// Encode
// ============================================================

func toWire(op Operation) (any, error) {
	switch op := op.(type) {
	case AddNode:
		return nodeJSON{Op: OpAddNode, NodeID: op.NodeID, Position: op.Position}, nil
	case DeleteNode:
		return deleteNodeJSON{Op: OpDeleteNode, NodeID: op.NodeID, DeletedPosition: op.DeletedPosition}, nil
	case MoveNode:
		return moveNodeJSON{Op: OpMoveNode, NodeID: op.NodeID, OldPosition: op.OldPosition, NewPosition: op.NewPosition}, nil
	case AddMember:
		return memberJSON{Op: OpAddMember, MemberID: op.MemberID, StartNodeID: op.StartNodeID, EndNodeID: op.EndNodeID, ProfileRef: op.ProfileRef}, nil
	case DeleteMember:
		return memberJSON{Op: OpDeleteMember, MemberID: op.MemberID, StartNodeID: op.StartNodeID, EndNodeID: op.EndNodeID, ProfileRef: op.ProfileRef}, nil
	case UpdateMemberProfile:
		return profileJSON{Op: OpUpdateMemberProfile, MemberID: op.MemberID, OldProfileRef: op.OldProfileRef, NewProfileRef: op.NewProfileRef}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownOperation, op)
	}
}

// MarshalOperation кодирует одну операцию в JSON.
func MarshalOperation(op Operation) ([]byte, error) {
	w, err := toWire(op)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// MarshalOperations кодирует последовательность операций JSON-массивом.
func MarshalOperations(ops []Operation) ([]byte, error) {
	wire := make([]any, 0, len(ops))
	for _, op := range ops {
		w, err := toWire(op)
		if err != nil {
			return nil, err
		}
		wire = append(wire, w)
	}
	return json.Marshal(wire)
}

// ============================================================
// Decode
// ============================================================

// UnmarshalOperation разбирает одну операцию. JSONC допускается.
func UnmarshalOperation(data []byte) (Operation, error) {
	var raw rawOperation
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOperation, err)
	}
	return fromRaw(raw)
}

// UnmarshalOperations разбирает массив операций либо одиночный объект.
func UnmarshalOperations(data []byte) ([]Operation, error) {
	clean := bytes.TrimSpace(jsonc.ToJSON(data))
	if len(clean) > 0 && clean[0] == '{' {
		op, err := UnmarshalOperation(clean)
		if err != nil {
			return nil, err
		}
		return []Operation{op}, nil
	}

	var raws []rawOperation
	if err := json.Unmarshal(clean, &raws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOperation, err)
	}
	ops := make([]Operation, 0, len(raws))
	for i, raw := range raws {
		op, err := fromRaw(raw)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func fromRaw(r rawOperation) (Operation, error) {
	if r.Op == nil {
		return nil, fmt.Errorf("%w: missing \"op\"", ErrMalformedOperation)
	}

	need := func(name string, present bool) error {
		if !present {
			return fmt.Errorf("%w: %s requires %q", ErrMalformedOperation, *r.Op, name)
		}
		return nil
	}

	switch *r.Op {
	case OpAddNode:
		if err := firstErr(need("nodeId", r.NodeID != nil), need("position", r.Position != nil)); err != nil {
			return nil, err
		}
		return AddNode{NodeID: *r.NodeID, Position: *r.Position}, nil

	case OpDeleteNode:
		if err := firstErr(need("nodeId", r.NodeID != nil), need("deletedPosition", r.DeletedPosition != nil)); err != nil {
			return nil, err
		}
		return DeleteNode{NodeID: *r.NodeID, DeletedPosition: *r.DeletedPosition}, nil

	case OpMoveNode:
		if err := firstErr(
			need("nodeId", r.NodeID != nil),
			need("oldPosition", r.OldPosition != nil),
			need("newPosition", r.NewPosition != nil),
		); err != nil {
			return nil, err
		}
		return MoveNode{NodeID: *r.NodeID, OldPosition: *r.OldPosition, NewPosition: *r.NewPosition}, nil

	case OpAddMember, OpDeleteMember:
		if err := firstErr(
			need("memberId", r.MemberID != nil),
			need("startNodeId", r.StartNodeID != nil),
			need("endNodeId", r.EndNodeID != nil),
		); err != nil {
			return nil, err
		}
		if *r.Op == OpAddMember {
			return AddMember{MemberID: *r.MemberID, StartNodeID: *r.StartNodeID, EndNodeID: *r.EndNodeID, ProfileRef: r.ProfileRef}, nil
		}
		return DeleteMember{MemberID: *r.MemberID, StartNodeID: *r.StartNodeID, EndNodeID: *r.EndNodeID, ProfileRef: r.ProfileRef}, nil

	case OpUpdateMemberProfile:
		if err := need("memberId", r.MemberID != nil); err != nil {
			return nil, err
		}
		return UpdateMemberProfile{MemberID: *r.MemberID, OldProfileRef: r.OldProfileRef, NewProfileRef: r.NewProfileRef}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, *r.Op)
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
