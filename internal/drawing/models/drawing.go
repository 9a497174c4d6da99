package models

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"drawing-core/internal/drawing/geometry"
)

// ============================================================
// Drawing
// ============================================================

// SchemaVersion - текущая версия формата документа.
const SchemaVersion = 1

// Лимиты на размер документа, ограничивают стоимость валидации и сериализации.
const (
	MaxEntities    = 100_000
	MaxAnnotations = 100_000
)

const (
	SyncLocal   = "local"
	SyncPending = "pending"
	SyncSynced  = "synced"
)

type Page struct {
	Width  float64
	Height float64
	Units  Units
}

type Layer struct {
	ID      string
	Name    string
	Visible bool
}

// Node - узел конструктивной схемы.
type Node struct {
	ID       string
	Position geometry.Point2D
}

// Member - элемент между двумя узлами. ProfileRef == nil - профиль не назначен.
type Member struct {
	ID          string
	StartNodeID string
	EndNodeID   string
	ProfileRef  *string
}

// Drawing - документ целиком. Инварианты ссылок проверяет валидатор,
// а не конструктор.
type Drawing struct {
	SchemaVersion int
	ID            string
	Name          string
	Page          Page
	Layers        []Layer
	Entities      []Entity
	Annotations   []Annotation
	Nodes         map[string]Node
	Members       map[string]Member
	Metadata      map[string]string

	SyncID     *string
	SyncStatus string
	UpdatedAt  int64
	Version    int
}

// New создает пустой документ текущей версии схемы.
func New(id, name string, page Page) Drawing {
	return Drawing{
		SchemaVersion: SchemaVersion,
		ID:            id,
		Name:          name,
		Page:          page,
		SyncStatus:    SyncLocal,
	}
}

// Clone делает глубокую копию коллекций; сущности и аннотации неизменяемы
// и копируются по значению.
func (d Drawing) Clone() Drawing {
	d.Layers = slices.Clone(d.Layers)
	d.Entities = slices.Clone(d.Entities)
	d.Annotations = slices.Clone(d.Annotations)
	d.Nodes = maps.Clone(d.Nodes)
	d.Members = maps.Clone(d.Members)
	d.Metadata = maps.Clone(d.Metadata)
	return d
}

func (d Drawing) Entity(id string) (Entity, bool) {
	for _, e := range d.Entities {
		if e.ID() == id {
			return e, true
		}
	}
	return nil, false
}

func (d Drawing) Annotation(id string) (Annotation, bool) {
	for _, a := range d.Annotations {
		if a.ID() == id {
			return a, true
		}
	}
	return nil, false
}

// MembersAt возвращает id элементов, опирающихся на узел, по возрастанию.
func (d Drawing) MembersAt(nodeID string) []string {
	var ids []string
	for id, m := range d.Members {
		if m.StartNodeID == nodeID || m.EndNodeID == nodeID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// ============================================================
// Stabilization
// ============================================================

// Stabilized возвращает копию, готовую к детерминированной сериализации:
// слои, сущности и аннотации отсортированы по id, координаты округлены,
// пустые коллекции заменены на nil. Порядок вставки на результат не влияет.
func (d Drawing) Stabilized() Drawing {
	out := d.Clone()

	slices.SortFunc(out.Layers, func(a, b Layer) int {
		return cmp.Or(cmp.Compare(a.ID, b.ID), cmp.Compare(fmt.Sprint(a), fmt.Sprint(b)))
	})

	for i, e := range out.Entities {
		out.Entities[i] = e.Canonical()
	}
	slices.SortFunc(out.Entities, func(a, b Entity) int {
		return cmp.Or(cmp.Compare(a.ID(), b.ID()), cmp.Compare(tieBreak(a), tieBreak(b)))
	})

	for i, a := range out.Annotations {
		out.Annotations[i] = a.Canonical()
	}
	slices.SortFunc(out.Annotations, func(a, b Annotation) int {
		return cmp.Or(cmp.Compare(a.ID(), b.ID()), cmp.Compare(tieBreak(a), tieBreak(b)))
	})

	for id, n := range out.Nodes {
		n.Position = n.Position.Canonical()
		out.Nodes[id] = n
	}

	// Пустые коллекции приводятся к nil: так же их возвращает разбор.
	if len(out.Layers) == 0 {
		out.Layers = nil
	}
	if len(out.Entities) == 0 {
		out.Entities = nil
	}
	if len(out.Annotations) == 0 {
		out.Annotations = nil
	}
	if len(out.Metadata) == 0 {
		out.Metadata = nil
	}
	if len(out.Nodes) == 0 {
		out.Nodes = nil
	}
	if len(out.Members) == 0 {
		out.Members = nil
	}
	return out
}

// tieBreak различает записи с одинаковым id, чтобы порядок не зависел от вставки.
func tieBreak(v any) string {
	return fmt.Sprintf("%T%+v", v, v)
}
