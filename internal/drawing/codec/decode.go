package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"drawing-core/internal/drawing/geometry"
	"drawing-core/internal/drawing/models"

	"github.com/tidwall/jsonc"
)

// ============================================================
// Decode errors
// ============================================================

// SyntaxError - байты не разбираются как JSON-документ.
type SyntaxError struct {
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("malformed drawing document: %v", e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// FieldError - документ разобран, но поле отсутствует или нарушает
// ограничение. Path указывает на запись ("entities[3]"), Field - на поле в ней.
type FieldError struct {
	Path       string
	Field      string
	Missing    bool
	Value      any
	Constraint string
	Err        error
}

func (e *FieldError) Error() string {
	if e.Missing {
		return fmt.Sprintf("%s: missing required field %q", e.Path, e.Field)
	}
	return fmt.Sprintf("%s: field %q=%v violates %s", e.Path, e.Field, e.Value, e.Constraint)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func missing(path, field string) *FieldError {
	return &FieldError{Path: path, Field: field, Missing: true}
}

func invalid(path, field string, value any, rule string) *FieldError {
	return &FieldError{Path: path, Field: field, Value: value, Constraint: rule}
}

func fromConstraint(path string, err error) error {
	var ce *models.ConstraintError
	if errors.As(err, &ce) {
		return &FieldError{Path: path, Field: ce.Field, Value: ce.Value, Constraint: ce.Constraint, Err: err}
	}
	return fmt.Errorf("%s: %w", path, err)
}

func fromJSON(path string, err error) error {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) {
		return &FieldError{Path: path, Field: te.Field, Value: te.Value, Constraint: "type " + te.Type.String(), Err: err}
	}
	return &SyntaxError{Err: fmt.Errorf("%s: %w", path, err)}
}

// ============================================================
// Decode
// ============================================================

// Decode разбирает документ. Комментарии и висячие запятые (JSONC)
// допускаются. Первая же ошибка конструирования прерывает разбор целиком.
// Пустые коллекции возвращаются как nil.
func Decode(data []byte) (models.Drawing, error) {
	var raw rawDocument
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return models.Drawing{}, fromJSON("$", err)
		}
		return models.Drawing{}, &SyntaxError{Err: err}
	}
	return fromRaw(raw)
}

func fromRaw(raw rawDocument) (models.Drawing, error) {
	var d models.Drawing

	if raw.SchemaVersion == nil {
		return d, missing("$", "schemaVersion")
	}
	if raw.ID == nil {
		return d, missing("$", "id")
	}
	if raw.Page == nil {
		return d, missing("$", "page")
	}

	d.SchemaVersion = *raw.SchemaVersion
	d.ID = *raw.ID
	if raw.Name != nil {
		d.Name = *raw.Name
	}

	page, err := decodePage(*raw.Page)
	if err != nil {
		return models.Drawing{}, err
	}
	d.Page = page

	for i, l := range raw.Layers {
		if l.ID == nil {
			return models.Drawing{}, missing(fmt.Sprintf("layers[%d]", i), "id")
		}
		d.Layers = append(d.Layers, models.Layer{ID: *l.ID, Name: l.Name, Visible: l.Visible})
	}

	for i, msg := range raw.Entities {
		e, err := decodeEntity(fmt.Sprintf("entities[%d]", i), msg)
		if err != nil {
			return models.Drawing{}, err
		}
		d.Entities = append(d.Entities, e)
	}

	for i, msg := range raw.Annotations {
		a, err := decodeAnnotation(fmt.Sprintf("annotations[%d]", i), msg)
		if err != nil {
			return models.Drawing{}, err
		}
		d.Annotations = append(d.Annotations, a)
	}

	if d.Nodes, err = decodeNodes(raw.Nodes); err != nil {
		return models.Drawing{}, err
	}
	if d.Members, err = decodeMembers(raw.Members); err != nil {
		return models.Drawing{}, err
	}

	if len(raw.Metadata) > 0 {
		d.Metadata = raw.Metadata
	}
	d.SyncID = raw.SyncID
	if raw.SyncStatus != nil {
		d.SyncStatus = *raw.SyncStatus
	}
	if raw.UpdatedAt != nil {
		d.UpdatedAt = *raw.UpdatedAt
	}
	if raw.Version != nil {
		d.Version = *raw.Version
	}
	return d, nil
}

func decodePage(p rawPage) (models.Page, error) {
	switch {
	case p.Width == nil:
		return models.Page{}, missing("page", "width")
	case p.Height == nil:
		return models.Page{}, missing("page", "height")
	case p.Units == nil:
		return models.Page{}, missing("page", "units")
	}
	return models.Page{Width: *p.Width, Height: *p.Height, Units: models.Units(*p.Units)}, nil
}

func decodeStyle(path string, s *rawStyle) (models.LineStyle, error) {
	if s == nil {
		return models.LineStyle{}, missing(path, "style")
	}
	return models.LineStyle{Color: s.Color, Width: s.Width, DashPattern: s.DashPattern}, nil
}

func kindOf(path string, msg json.RawMessage) (string, error) {
	var k rawKind
	if err := json.Unmarshal(msg, &k); err != nil {
		return "", fromJSON(path, err)
	}
	if k.Type == nil {
		return "", missing(path, "type")
	}
	return *k.Type, nil
}

func point(path, field string, p *geometry.Point2D) (geometry.Point2D, error) {
	if p == nil {
		return geometry.Point2D{}, missing(path, field)
	}
	return *p, nil
}

func number(path, field string, v *float64) (float64, error) {
	if v == nil {
		return 0, missing(path, field)
	}
	return *v, nil
}

func decodeEntity(path string, msg json.RawMessage) (models.Entity, error) {
	kind, err := kindOf(path, msg)
	if err != nil {
		return nil, err
	}

	var r rawEntity
	if err := json.Unmarshal(msg, &r); err != nil {
		return nil, fromJSON(path, err)
	}
	if r.ID == nil {
		return nil, missing(path, "id")
	}
	style, err := decodeStyle(path, r.Style)
	if err != nil {
		return nil, err
	}

	var e models.Entity
	switch models.EntityKind(kind) {
	case models.KindLine:
		start, err := point(path, "start", r.Start)
		if err != nil {
			return nil, err
		}
		end, err := point(path, "end", r.End)
		if err != nil {
			return nil, err
		}
		line := models.NewLine(*r.ID, start, end, style)
		if r.Layer != nil {
			line = line.WithLayer(*r.Layer)
		}
		e = line

	case models.KindCircle:
		center, err := point(path, "center", r.Center)
		if err != nil {
			return nil, err
		}
		radius, err := number(path, "radius", r.Radius)
		if err != nil {
			return nil, err
		}
		circle, err := models.NewCircle(*r.ID, center, radius, style)
		if err != nil {
			return nil, fromConstraint(path, err)
		}
		if r.Layer != nil {
			circle = circle.WithLayer(*r.Layer)
		}
		e = circle

	case models.KindPolyline:
		if r.Points == nil {
			return nil, missing(path, "points")
		}
		poly, err := models.NewPolyline(*r.ID, r.Points, r.Closed, style)
		if err != nil {
			return nil, fromConstraint(path, err)
		}
		if r.Layer != nil {
			poly = poly.WithLayer(*r.Layer)
		}
		e = poly

	case models.KindArc:
		center, err := point(path, "center", r.Center)
		if err != nil {
			return nil, err
		}
		radius, err := number(path, "radius", r.Radius)
		if err != nil {
			return nil, err
		}
		start, err := number(path, "startAngle", r.StartAngle)
		if err != nil {
			return nil, err
		}
		end, err := number(path, "endAngle", r.EndAngle)
		if err != nil {
			return nil, err
		}
		arc, err := models.NewArc(*r.ID, center, radius, start, end, style)
		if err != nil {
			return nil, fromConstraint(path, err)
		}
		if r.Layer != nil {
			arc = arc.WithLayer(*r.Layer)
		}
		e = arc

	default:
		return nil, invalid(path, "type", kind, "one of line, circle, polyline, arc")
	}
	return e, nil
}

func decodeAnnotation(path string, msg json.RawMessage) (models.Annotation, error) {
	kind, err := kindOf(path, msg)
	if err != nil {
		return nil, err
	}

	var r rawAnnotation
	if err := json.Unmarshal(msg, &r); err != nil {
		return nil, fromJSON(path, err)
	}
	if r.ID == nil {
		return nil, missing(path, "id")
	}

	switch models.AnnotationKind(kind) {
	case models.KindText:
		pos, err := point(path, "position", r.Position)
		if err != nil {
			return nil, err
		}
		text := models.NewText(*r.ID, pos, r.Content, r.FontSize, r.Rotation)
		if r.TargetID != nil {
			text = text.WithTarget(*r.TargetID)
		}
		return text, nil

	case models.KindDimension:
		if r.TargetID == nil {
			return nil, missing(path, "targetId")
		}
		value, err := number(path, "value", r.Value)
		if err != nil {
			return nil, err
		}
		if r.Units == nil {
			return nil, missing(path, "units")
		}
		pos, err := point(path, "position", r.Position)
		if err != nil {
			return nil, err
		}
		dim, err := models.NewDimension(*r.ID, *r.TargetID, value, models.Units(*r.Units), pos)
		if err != nil {
			return nil, fromConstraint(path, err)
		}
		return dim, nil

	case models.KindTag:
		if r.TargetID == nil {
			return nil, missing(path, "targetId")
		}
		tag := models.NewTag(*r.ID, *r.TargetID, r.Label)
		if r.Category != nil {
			tag = tag.WithCategory(*r.Category)
		}
		return tag, nil

	case models.KindGroup:
		group, err := models.NewGroup(*r.ID, r.Name, r.MemberIDs)
		if err != nil {
			return nil, fromConstraint(path, err)
		}
		if r.TargetID != nil {
			group = group.WithTarget(*r.TargetID)
		}
		return group, nil

	default:
		return nil, invalid(path, "type", kind, "one of text, dimension, tag, group")
	}
}

func decodeNodes(raw []rawNode) (map[string]models.Node, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	nodes := make(map[string]models.Node, len(raw))
	for i, n := range raw {
		path := fmt.Sprintf("nodes[%d]", i)
		if n.ID == nil {
			return nil, missing(path, "id")
		}
		pos, err := point(path, "position", n.Position)
		if err != nil {
			return nil, err
		}
		if _, dup := nodes[*n.ID]; dup {
			return nil, invalid(path, "id", *n.ID, "unique node id")
		}
		nodes[*n.ID] = models.Node{ID: *n.ID, Position: pos}
	}
	return nodes, nil
}

func decodeMembers(raw []rawMember) (map[string]models.Member, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	members := make(map[string]models.Member, len(raw))
	for i, m := range raw {
		path := fmt.Sprintf("members[%d]", i)
		switch {
		case m.ID == nil:
			return nil, missing(path, "id")
		case m.StartNodeID == nil:
			return nil, missing(path, "startNodeId")
		case m.EndNodeID == nil:
			return nil, missing(path, "endNodeId")
		}
		if _, dup := members[*m.ID]; dup {
			return nil, invalid(path, "id", *m.ID, "unique member id")
		}
		members[*m.ID] = models.Member{
			ID:          *m.ID,
			StartNodeID: *m.StartNodeID,
			EndNodeID:   *m.EndNodeID,
			ProfileRef:  m.ProfileRef,
		}
	}
	return members, nil
}
