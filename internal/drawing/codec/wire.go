package codec

import (
	"encoding/json"

	"drawing-core/internal/drawing/geometry"
	"drawing-core/internal/drawing/models"
)

// ============================================================
// Wire structures (encode side)
// ============================================================
//
// Порядок полей в структурах и есть порядок ключей в документе.

type documentJSON struct {
	SchemaVersion int               `json:"schemaVersion"`
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Page          pageJSON          `json:"page"`
	Layers        []layerJSON       `json:"layers"`
	Entities      []any             `json:"entities"`
	Annotations   []any             `json:"annotations"`
	Metadata      map[string]string `json:"metadata"`
	SyncID        *string           `json:"syncId"`
	SyncStatus    string            `json:"syncStatus"`
	UpdatedAt     int64             `json:"updatedAt"`
	Version       int               `json:"version"`
	Nodes         []nodeJSON        `json:"nodes,omitempty"`
	Members       []memberJSON      `json:"members,omitempty"`
}

type pageJSON struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Units  string  `json:"units"`
}

type layerJSON struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
}

type styleJSON struct {
	Color       string    `json:"color"`
	Width       float64   `json:"width"`
	DashPattern []float64 `json:"dashPattern"`
}

type lineJSON struct {
	Type  string           `json:"type"`
	ID    string           `json:"id"`
	Layer *string          `json:"layer"`
	Start geometry.Point2D `json:"start"`
	End   geometry.Point2D `json:"end"`
	Style styleJSON        `json:"style"`
}

type circleJSON struct {
	Type   string           `json:"type"`
	ID     string           `json:"id"`
	Layer  *string          `json:"layer"`
	Center geometry.Point2D `json:"center"`
	Radius float64          `json:"radius"`
	Style  styleJSON        `json:"style"`
}

type polylineJSON struct {
	Type   string             `json:"type"`
	ID     string             `json:"id"`
	Layer  *string            `json:"layer"`
	Points []geometry.Point2D `json:"points"`
	Closed bool               `json:"closed"`
	Style  styleJSON          `json:"style"`
}

type arcJSON struct {
	Type       string           `json:"type"`
	ID         string           `json:"id"`
	Layer      *string          `json:"layer"`
	Center     geometry.Point2D `json:"center"`
	Radius     float64          `json:"radius"`
	StartAngle float64          `json:"startAngle"`
	EndAngle   float64          `json:"endAngle"`
	Style      styleJSON        `json:"style"`
}

type textJSON struct {
	Type     string           `json:"type"`
	ID       string           `json:"id"`
	TargetID *string          `json:"targetId"`
	Position geometry.Point2D `json:"position"`
	Content  string           `json:"content"`
	FontSize float64          `json:"fontSize"`
	Rotation float64          `json:"rotation"`
}

type dimensionJSON struct {
	Type     string           `json:"type"`
	ID       string           `json:"id"`
	TargetID string           `json:"targetId"`
	Value    float64          `json:"value"`
	Units    string           `json:"units"`
	Position geometry.Point2D `json:"position"`
}

type tagJSON struct {
	Type     string  `json:"type"`
	ID       string  `json:"id"`
	TargetID string  `json:"targetId"`
	Label    string  `json:"label"`
	Category *string `json:"category"`
}

type groupJSON struct {
	Type      string   `json:"type"`
	ID        string   `json:"id"`
	TargetID  *string  `json:"targetId"`
	Name      string   `json:"name"`
	MemberIDs []string `json:"memberIds"`
}

type nodeJSON struct {
	ID       string           `json:"id"`
	Position geometry.Point2D `json:"position"`
}

type memberJSON struct {
	ID          string  `json:"id"`
	StartNodeID string  `json:"startNodeId"`
	EndNodeID   string  `json:"endNodeId"`
	ProfileRef  *string `json:"profileRef"`
}

// ============================================================
// Wire structures (decode side)
// ============================================================
//
// Указатели отличают отсутствующий ключ от нулевого значения.

type rawDocument struct {
	SchemaVersion *int              `json:"schemaVersion"`
	ID            *string           `json:"id"`
	Name          *string           `json:"name"`
	Page          *rawPage          `json:"page"`
	Layers        []rawLayer        `json:"layers"`
	Entities      []json.RawMessage `json:"entities"`
	Annotations   []json.RawMessage `json:"annotations"`
	Metadata      map[string]string `json:"metadata"`
	SyncID        *string           `json:"syncId"`
	SyncStatus    *string           `json:"syncStatus"`
	UpdatedAt     *int64            `json:"updatedAt"`
	Version       *int              `json:"version"`
	Nodes         []rawNode         `json:"nodes"`
	Members       []rawMember       `json:"members"`
}

type rawPage struct {
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
	Units  *string  `json:"units"`
}

type rawLayer struct {
	ID      *string `json:"id"`
	Name    string  `json:"name"`
	Visible bool    `json:"visible"`
}

type rawKind struct {
	Type *string `json:"type"`
}

type rawStyle struct {
	Color       string    `json:"color"`
	Width       float64   `json:"width"`
	DashPattern []float64 `json:"dashPattern"`
}

type rawEntity struct {
	ID         *string            `json:"id"`
	Layer      *string            `json:"layer"`
	Start      *geometry.Point2D  `json:"start"`
	End        *geometry.Point2D  `json:"end"`
	Center     *geometry.Point2D  `json:"center"`
	Radius     *float64           `json:"radius"`
	Points     []geometry.Point2D `json:"points"`
	Closed     bool               `json:"closed"`
	StartAngle *float64           `json:"startAngle"`
	EndAngle   *float64           `json:"endAngle"`
	Style      *rawStyle          `json:"style"`
}

type rawAnnotation struct {
	ID        *string           `json:"id"`
	TargetID  *string           `json:"targetId"`
	Position  *geometry.Point2D `json:"position"`
	Content   string            `json:"content"`
	FontSize  float64           `json:"fontSize"`
	Rotation  float64           `json:"rotation"`
	Value     *float64          `json:"value"`
	Units     *string           `json:"units"`
	Label     string            `json:"label"`
	Category  *string           `json:"category"`
	Name      string            `json:"name"`
	MemberIDs []string          `json:"memberIds"`
}

type rawNode struct {
	ID       *string           `json:"id"`
	Position *geometry.Point2D `json:"position"`
}

type rawMember struct {
	ID          *string `json:"id"`
	StartNodeID *string `json:"startNodeId"`
	EndNodeID   *string `json:"endNodeId"`
	ProfileRef  *string `json:"profileRef"`
}

// ============================================================
// Model -> wire
// ============================================================

func toDocument(d models.Drawing) documentJSON {
	doc := documentJSON{
		SchemaVersion: d.SchemaVersion,
		ID:            d.ID,
		Name:          d.Name,
		Page:          pageJSON{Width: d.Page.Width, Height: d.Page.Height, Units: string(d.Page.Units)},
		Layers:        make([]layerJSON, 0, len(d.Layers)),
		Entities:      make([]any, 0, len(d.Entities)),
		Annotations:   make([]any, 0, len(d.Annotations)),
		Metadata:      d.Metadata,
		SyncID:        d.SyncID,
		SyncStatus:    d.SyncStatus,
		UpdatedAt:     d.UpdatedAt,
		Version:       d.Version,
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]string{}
	}

	for _, l := range d.Layers {
		doc.Layers = append(doc.Layers, layerJSON{ID: l.ID, Name: l.Name, Visible: l.Visible})
	}
	for _, e := range d.Entities {
		doc.Entities = append(doc.Entities, entityToWire(e))
	}
	for _, a := range d.Annotations {
		doc.Annotations = append(doc.Annotations, annotationToWire(a))
	}

	for _, id := range sortedKeys(d.Nodes) {
		n := d.Nodes[id]
		doc.Nodes = append(doc.Nodes, nodeJSON{ID: n.ID, Position: n.Position})
	}
	for _, id := range sortedKeys(d.Members) {
		m := d.Members[id]
		doc.Members = append(doc.Members, memberJSON{
			ID:          m.ID,
			StartNodeID: m.StartNodeID,
			EndNodeID:   m.EndNodeID,
			ProfileRef:  m.ProfileRef,
		})
	}
	return doc
}

func styleToWire(s models.LineStyle) styleJSON {
	return styleJSON{Color: s.Color, Width: s.Width, DashPattern: s.DashPattern}
}

func optional(value string, ok bool) *string {
	if !ok {
		return nil
	}
	return &value
}

func entityToWire(e models.Entity) any {
	layer := optional(e.Layer())

	switch e := e.(type) {
	case models.Line:
		return lineJSON{
			Type:  string(models.KindLine),
			ID:    e.ID(),
			Layer: layer,
			Start: e.Start(),
			End:   e.End(),
			Style: styleToWire(e.Style()),
		}
	case models.Circle:
		return circleJSON{
			Type:   string(models.KindCircle),
			ID:     e.ID(),
			Layer:  layer,
			Center: e.Center(),
			Radius: e.Radius(),
			Style:  styleToWire(e.Style()),
		}
	case models.Polyline:
		return polylineJSON{
			Type:   string(models.KindPolyline),
			ID:     e.ID(),
			Layer:  layer,
			Points: e.Points(),
			Closed: e.Closed(),
			Style:  styleToWire(e.Style()),
		}
	case models.Arc:
		return arcJSON{
			Type:       string(models.KindArc),
			ID:         e.ID(),
			Layer:      layer,
			Center:     e.Center(),
			Radius:     e.Radius(),
			StartAngle: e.StartAngle(),
			EndAngle:   e.EndAngle(),
			Style:      styleToWire(e.Style()),
		}
	default:
		panic(unhandled("entity", e))
	}
}

func annotationToWire(a models.Annotation) any {
	target := optional(a.TargetID())

	switch a := a.(type) {
	case models.Text:
		return textJSON{
			Type:     string(models.KindText),
			ID:       a.ID(),
			TargetID: target,
			Position: a.Position(),
			Content:  a.Content(),
			FontSize: a.FontSize(),
			Rotation: a.Rotation(),
		}
	case models.Dimension:
		ref, _ := a.TargetID()
		return dimensionJSON{
			Type:     string(models.KindDimension),
			ID:       a.ID(),
			TargetID: ref,
			Value:    a.Value(),
			Units:    string(a.Units()),
			Position: a.Position(),
		}
	case models.Tag:
		ref, _ := a.TargetID()
		return tagJSON{
			Type:     string(models.KindTag),
			ID:       a.ID(),
			TargetID: ref,
			Label:    a.Label(),
			Category: optional(a.Category()),
		}
	case models.Group:
		return groupJSON{
			Type:      string(models.KindGroup),
			ID:        a.ID(),
			TargetID:  target,
			Name:      a.Name(),
			MemberIDs: a.MemberIDs(),
		}
	default:
		panic(unhandled("annotation", a))
	}
}
