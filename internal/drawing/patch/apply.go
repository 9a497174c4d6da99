package patch

import (
	"errors"
	"fmt"

	"drawing-core/internal/drawing/models"
)

// ============================================================
// Errors
// ============================================================

var (
	ErrNodeNotFound       = errors.New("node not found")
	ErrMemberNotFound     = errors.New("member not found")
	ErrDuplicateID        = errors.New("id already exists")
	ErrNodeInUse          = errors.New("node is referenced by members")
	ErrStaleOperation     = errors.New("operation does not match current state")
	ErrUnknownOperation   = errors.New("unknown operation")
	ErrMalformedOperation = errors.New("malformed operation")
	ErrNothingToUndo      = errors.New("nothing to undo")
	ErrNothingToRedo      = errors.New("nothing to redo")
)

// ApplyError - отказ применить операцию. Unwrap дает одну из ошибок выше.
type ApplyError struct {
	Op  Operation
	Err error
}

func (e *ApplyError) Error() string {
	if e.Op == nil {
		return fmt.Sprintf("apply <nil>: %v", e.Err)
	}
	return fmt.Sprintf("apply %s: %v", e.Op.Kind(), e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// ============================================================
// Apply
// ============================================================

// Apply возвращает новый документ с примененной операцией. Все условия
// проверяются до изменения, входной документ не меняется. Для любой
// успешно примененной op: Apply(Apply(d, op), op.Inverse()) == d.
func Apply(d models.Drawing, op Operation) (models.Drawing, error) {
	if err := precondition(d, op); err != nil {
		return models.Drawing{}, &ApplyError{Op: op, Err: err}
	}

	out := d.Clone()
	switch op := op.(type) {
	case AddNode:
		if out.Nodes == nil {
			out.Nodes = make(map[string]models.Node, 1)
		}
		out.Nodes[op.NodeID] = models.Node{ID: op.NodeID, Position: op.Position}

	case DeleteNode:
		delete(out.Nodes, op.NodeID)

	case MoveNode:
		out.Nodes[op.NodeID] = models.Node{ID: op.NodeID, Position: op.NewPosition}

	case AddMember:
		if out.Members == nil {
			out.Members = make(map[string]models.Member, 1)
		}
		out.Members[op.MemberID] = models.Member{
			ID:          op.MemberID,
			StartNodeID: op.StartNodeID,
			EndNodeID:   op.EndNodeID,
			ProfileRef:  cloneRef(op.ProfileRef),
		}

	case DeleteMember:
		delete(out.Members, op.MemberID)

	case UpdateMemberProfile:
		m := out.Members[op.MemberID]
		m.ProfileRef = cloneRef(op.NewProfileRef)
		out.Members[op.MemberID] = m
	}

	if len(out.Nodes) == 0 {
		out.Nodes = nil
	}
	if len(out.Members) == 0 {
		out.Members = nil
	}
	return out, nil
}

// ApplyAll применяет операции по порядку. Если хоть одна не применяется,
// возвращается ошибка, и ни одна из них не считается примененной.
func ApplyAll(d models.Drawing, ops ...Operation) (models.Drawing, error) {
	cur := d
	for i, op := range ops {
		next, err := Apply(cur, op)
		if err != nil {
			return models.Drawing{}, fmt.Errorf("operation %d: %w", i, err)
		}
		cur = next
	}
	return cur, nil
}

func precondition(d models.Drawing, op Operation) error {
	switch op := op.(type) {
	case AddNode:
		if _, ok := d.Nodes[op.NodeID]; ok {
			return fmt.Errorf("%w: node %q", ErrDuplicateID, op.NodeID)
		}

	case DeleteNode:
		n, ok := d.Nodes[op.NodeID]
		if !ok {
			return fmt.Errorf("%w: %q", ErrNodeNotFound, op.NodeID)
		}
		if n.Position != op.DeletedPosition {
			return fmt.Errorf("%w: node %q is at %v, not %v", ErrStaleOperation, op.NodeID, n.Position, op.DeletedPosition)
		}
		if refs := d.MembersAt(op.NodeID); len(refs) > 0 {
			return fmt.Errorf("%w: node %q is used by %v", ErrNodeInUse, op.NodeID, refs)
		}

	case MoveNode:
		n, ok := d.Nodes[op.NodeID]
		if !ok {
			return fmt.Errorf("%w: %q", ErrNodeNotFound, op.NodeID)
		}
		if n.Position != op.OldPosition {
			return fmt.Errorf("%w: node %q is at %v, not %v", ErrStaleOperation, op.NodeID, n.Position, op.OldPosition)
		}

	case AddMember:
		if _, ok := d.Members[op.MemberID]; ok {
			return fmt.Errorf("%w: member %q", ErrDuplicateID, op.MemberID)
		}
		for _, id := range []string{op.StartNodeID, op.EndNodeID} {
			if _, ok := d.Nodes[id]; !ok {
				return fmt.Errorf("%w: %q for member %q", ErrNodeNotFound, id, op.MemberID)
			}
		}

	case DeleteMember:
		m, ok := d.Members[op.MemberID]
		if !ok {
			return fmt.Errorf("%w: %q", ErrMemberNotFound, op.MemberID)
		}
		if m.StartNodeID != op.StartNodeID || m.EndNodeID != op.EndNodeID || !sameRef(m.ProfileRef, op.ProfileRef) {
			return fmt.Errorf("%w: member %q differs from the deleted data", ErrStaleOperation, op.MemberID)
		}

	case UpdateMemberProfile:
		m, ok := d.Members[op.MemberID]
		if !ok {
			return fmt.Errorf("%w: %q", ErrMemberNotFound, op.MemberID)
		}
		if !sameRef(m.ProfileRef, op.OldProfileRef) {
			return fmt.Errorf("%w: member %q has profile %s, not %s",
				ErrStaleOperation, op.MemberID, refString(m.ProfileRef), refString(op.OldProfileRef))
		}

	default:
		return fmt.Errorf("%w: %T", ErrUnknownOperation, op)
	}
	return nil
}

// ============================================================
// Helpers
// ============================================================

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func cloneRef(ref *string) *string {
	if ref == nil {
		return nil
	}
	return Ref(*ref)
}

func refString(ref *string) string {
	if ref == nil {
		return "<none>"
	}
	return fmt.Sprintf("%q", *ref)
}
