package models

import (
	"slices"

	"drawing-core/internal/drawing/geometry"
)

// ============================================================
// Annotations
// ============================================================

type AnnotationKind string

const (
	KindText      AnnotationKind = "text"
	KindDimension AnnotationKind = "dimension"
	KindTag       AnnotationKind = "tag"
	KindGroup     AnnotationKind = "group"
)

// Annotation - метаданные, привязанные к сущности или самостоятельные.
// Набор вариантов закрыт: Text, Dimension, Tag, Group.
type Annotation interface {
	ID() string
	// TargetID возвращает id сущности, к которой привязана аннотация.
	TargetID() (string, bool)
	Kind() AnnotationKind
	Canonical() Annotation

	annotation()
}

type Units string

const (
	UnitsMM     Units = "MM"
	UnitsCM     Units = "CM"
	UnitsM      Units = "M"
	UnitsInches Units = "INCHES"
	UnitsFeet   Units = "FEET"
)

// AllUnits перечисляет допустимые единицы измерения.
var AllUnits = []Units{UnitsMM, UnitsCM, UnitsM, UnitsInches, UnitsFeet}

func (u Units) Valid() bool {
	return slices.Contains(AllUnits, u)
}

type target struct {
	id     string
	ref    string
	hasRef bool
}

func (t target) ID() string {
	return t.id
}

func (t target) TargetID() (string, bool) {
	return t.ref, t.hasRef
}

// ============================================================
// Text
// ============================================================

type Text struct {
	target
	position geometry.Point2D
	content  string
	fontSize float64
	rotation float64
}

// NewText создает самостоятельную надпись; привязку задает WithTarget.
func NewText(id string, position geometry.Point2D, content string, fontSize, rotation float64) Text {
	return Text{
		target:   target{id: id},
		position: position,
		content:  content,
		fontSize: fontSize,
		rotation: rotation,
	}
}

func (Text) Kind() AnnotationKind { return KindText }
func (t Text) Position() geometry.Point2D { return t.position }
func (t Text) Content() string { return t.content }
func (t Text) FontSize() float64 { return t.fontSize }
func (t Text) Rotation() float64 { return t.rotation }

func (t Text) WithTarget(targetID string) Text {
	t.ref, t.hasRef = targetID, true
	return t
}

func (t Text) Detached() Text {
	t.ref, t.hasRef = "", false
	return t
}

func (t Text) WithContent(content string) Text {
	t.content = content
	return t
}

func (t Text) WithPosition(position geometry.Point2D) Text {
	t.position = position
	return t
}

func (t Text) Canonical() Annotation {
	t.position = t.position.Canonical()
	return t
}

func (Text) annotation() {}

// ============================================================
// Dimension
// ============================================================

type Dimension struct {
	target
	value    float64
	units    Units
	position geometry.Point2D
}

// NewDimension требует value >= 0 и известные единицы.
func NewDimension(id, targetID string, value float64, units Units, position geometry.Point2D) (Dimension, error) {
	if err := checkDimension(value, units); err != nil {
		return Dimension{}, err
	}
	return Dimension{
		target:   target{id: id, ref: targetID, hasRef: true},
		value:    value,
		units:    units,
		position: position,
	}, nil
}

func checkDimension(value float64, units Units) error {
	if !(value >= 0) {
		return constraint(string(KindDimension), "value", value, "value >= 0")
	}
	if !units.Valid() {
		return constraint(string(KindDimension), "units", units, "one of MM, CM, M, INCHES, FEET")
	}
	return nil
}

func (Dimension) Kind() AnnotationKind { return KindDimension }
func (d Dimension) Value() float64 { return d.value }
func (d Dimension) Units() Units { return d.units }
func (d Dimension) Position() geometry.Point2D { return d.position }

func (d Dimension) WithValue(value float64, units Units) (Dimension, error) {
	if err := checkDimension(value, units); err != nil {
		return Dimension{}, err
	}
	d.value, d.units = value, units
	return d, nil
}

func (d Dimension) Canonical() Annotation {
	d.position = d.position.Canonical()
	return d
}

func (Dimension) annotation() {}

// ============================================================
// Tag
// ============================================================

type Tag struct {
	target
	label       string
	category    string
	hasCategory bool
}

func NewTag(id, targetID, label string) Tag {
	return Tag{target: target{id: id, ref: targetID, hasRef: true}, label: label}
}

func (Tag) Kind() AnnotationKind { return KindTag }
func (t Tag) Label() string { return t.label }

// Category возвращает категорию, если она задана.
func (t Tag) Category() (string, bool) {
	return t.category, t.hasCategory
}

func (t Tag) WithCategory(category string) Tag {
	t.category, t.hasCategory = category, true
	return t
}

func (t Tag) WithLabel(label string) Tag {
	t.label = label
	return t
}

func (t Tag) Canonical() Annotation { return t }

func (Tag) annotation() {}

// ============================================================
// Group
// ============================================================

type Group struct {
	target
	name      string
	memberIDs []string
}

// NewGroup требует хотя бы одного участника, memberIDs копируется.
func NewGroup(id, name string, memberIDs []string) (Group, error) {
	if len(memberIDs) == 0 {
		return Group{}, constraint(string(KindGroup), "memberIds", len(memberIDs), "at least 1 member")
	}
	return Group{target: target{id: id}, name: name, memberIDs: slices.Clone(memberIDs)}, nil
}

func (Group) Kind() AnnotationKind { return KindGroup }
func (g Group) Name() string { return g.name }
func (g Group) MemberIDs() []string { return slices.Clone(g.memberIDs) }

func (g Group) WithTarget(targetID string) Group {
	g.memberIDs = slices.Clone(g.memberIDs)
	g.ref, g.hasRef = targetID, true
	return g
}

func (g Group) WithMembers(memberIDs []string) (Group, error) {
	if len(memberIDs) == 0 {
		return Group{}, constraint(string(KindGroup), "memberIds", len(memberIDs), "at least 1 member")
	}
	g.memberIDs = slices.Clone(memberIDs)
	return g, nil
}

func (g Group) Canonical() Annotation {
	g.memberIDs = slices.Clone(g.memberIDs)
	return g
}

func (Group) annotation() {}
