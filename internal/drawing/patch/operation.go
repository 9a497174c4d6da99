// Package patch описывает обратимые изменения конструктивной схемы
// (узлы и элементы) для undo/redo и журнала.
//
// Каждая операция хранит достаточно данных, чтобы построить обратную:
// op.Inverse().Inverse() == op для любых значений, включая пустые id.
package patch

import (
	"drawing-core/internal/drawing/geometry"
)

// ============================================================
// Operations
// ============================================================

type OpKind string

const (
	OpAddNode             OpKind = "add_node"
	OpDeleteNode          OpKind = "delete_node"
	OpMoveNode            OpKind = "move_node"
	OpAddMember           OpKind = "add_member"
	OpDeleteMember        OpKind = "delete_member"
	OpUpdateMemberProfile OpKind = "update_member_profile"
)

// Operation - изменение схемы. Набор вариантов закрыт.
type Operation interface {
	Kind() OpKind
	// Inverse возвращает операцию того же набора, отменяющую эту.
	Inverse() Operation

	operation()
}

type AddNode struct {
	NodeID   string
	Position geometry.Point2D
}

// DeleteNode хранит позицию удаленного узла, чтобы отмена вернула его на место.
type DeleteNode struct {
	NodeID          string
	DeletedPosition geometry.Point2D
}

type MoveNode struct {
	NodeID      string
	OldPosition geometry.Point2D
	NewPosition geometry.Point2D
}

type AddMember struct {
	MemberID    string
	StartNodeID string
	EndNodeID   string
	ProfileRef  *string
}

type DeleteMember struct {
	MemberID    string
	StartNodeID string
	EndNodeID   string
	ProfileRef  *string
}

type UpdateMemberProfile struct {
	MemberID      string
	OldProfileRef *string
	NewProfileRef *string
}

func (AddNode) Kind() OpKind             { return OpAddNode }
func (DeleteNode) Kind() OpKind          { return OpDeleteNode }
func (MoveNode) Kind() OpKind            { return OpMoveNode }
func (AddMember) Kind() OpKind           { return OpAddMember }
func (DeleteMember) Kind() OpKind        { return OpDeleteMember }
func (UpdateMemberProfile) Kind() OpKind { return OpUpdateMemberProfile }

func (op AddNode) Inverse() Operation {
	return DeleteNode{NodeID: op.NodeID, DeletedPosition: op.Position}
}

func (op DeleteNode) Inverse() Operation {
	return AddNode{NodeID: op.NodeID, Position: op.DeletedPosition}
}

func (op MoveNode) Inverse() Operation {
	return MoveNode{NodeID: op.NodeID, OldPosition: op.NewPosition, NewPosition: op.OldPosition}
}

func (op AddMember) Inverse() Operation {
	return DeleteMember(op)
}

func (op DeleteMember) Inverse() Operation {
	return AddMember(op)
}

func (op UpdateMemberProfile) Inverse() Operation {
	return UpdateMemberProfile{MemberID: op.MemberID, OldProfileRef: op.NewProfileRef, NewProfileRef: op.OldProfileRef}
}

func (AddNode) operation()             {}
func (DeleteNode) operation()          {}
func (MoveNode) operation()            {}
func (AddMember) operation()           {}
func (DeleteMember) operation()        {}
func (UpdateMemberProfile) operation() {}

// Canonical возвращает операцию с позициями, округленными так же, как их
// округляет сериализация документа. Операции над элементами не меняются.
func Canonical(op Operation) Operation {
	switch op := op.(type) {
	case AddNode:
		op.Position = op.Position.Canonical()
		return op
	case DeleteNode:
		op.DeletedPosition = op.DeletedPosition.Canonical()
		return op
	case MoveNode:
		op.OldPosition = op.OldPosition.Canonical()
		op.NewPosition = op.NewPosition.Canonical()
		return op
	}
	return op
}

// Ref - указатель на копию строки, для ProfileRef в литералах.
func Ref(s string) *string {
	return &s
}
