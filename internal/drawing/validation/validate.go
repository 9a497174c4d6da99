// Package validation проверяет собранный Drawing и сообщает о проблемах
// списком находок. Validate никогда не падает; ValidateSafe дополнительно
// разбирает байты и сводит любую ошибку к *Failure.
package validation

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"drawing-core/internal/drawing/geometry"
	"drawing-core/internal/drawing/models"

	"github.com/go-playground/validator/v10"
)

// MinLineLength - линии короче считаются вырожденными.
const MinLineLength = 1e-6

// fields проверяет отдельные значения по тегам validator/v10.
// *validator.Validate безопасен для конкурентного использования.
var fields = validator.New()

// ============================================================
// Validate
// ============================================================

// Validate возвращает полный список находок. Порядок отчета: версия схемы,
// лимиты, сущности, аннотации, затем структурные проверки. Если превышен
// лимит размера, поэлементные проверки не выполняются.
func Validate(d models.Drawing) []Violation {
	var out []Violation

	if d.SchemaVersion != models.SchemaVersion {
		out = append(out, Custom{
			Path:     "$",
			Severity: SeverityError,
			Message:  fmt.Sprintf("unsupported schemaVersion %d, expected %d", d.SchemaVersion, models.SchemaVersion),
		})
	}

	tripped := false
	if len(d.Entities) > models.MaxEntities {
		tripped = true
		out = append(out, Custom{
			Path:     "entities",
			Severity: SeverityError,
			Message:  fmt.Sprintf("too many entities: %d > %d", len(d.Entities), models.MaxEntities),
		})
	}
	if len(d.Annotations) > models.MaxAnnotations {
		tripped = true
		out = append(out, Custom{
			Path:     "annotations",
			Severity: SeverityError,
			Message:  fmt.Sprintf("too many annotations: %d > %d", len(d.Annotations), models.MaxAnnotations),
		})
	}
	if tripped {
		return out
	}

	for i, e := range d.Entities {
		out = checkEntity(out, fmt.Sprintf("entities[%d]", i), e)
	}

	entityIDs := make(map[string]struct{}, len(d.Entities))
	for _, e := range d.Entities {
		if e != nil {
			entityIDs[e.ID()] = struct{}{}
		}
	}

	for i, a := range d.Annotations {
		out = checkAnnotation(out, fmt.Sprintf("annotations[%d]", i), a, entityIDs)
	}

	out = checkDocument(out, d)
	out = checkStyles(out, d)
	out = checkReferences(out, d, entityIDs)
	out = checkStructure(out, d)
	return out
}

// ============================================================
// Entities
// ============================================================

func checkEntity(out []Violation, path string, e models.Entity) []Violation {
	if e == nil {
		return append(out, Custom{Path: path, Severity: SeverityError, Message: "empty entity slot"})
	}
	if isBlank(e.ID()) {
		out = append(out, InvalidValue{Path: path, FieldName: "id", Value: e.ID(), Constraint: "non-blank", Severity: SeverityError})
	}

	switch e := e.(type) {
	case models.Line:
		out = finitePoint(out, path, "start", e.Start())
		out = finitePoint(out, path, "end", e.End())
		if e.Start().IsFinite() && e.End().IsFinite() && e.Length() < MinLineLength {
			out = append(out, Custom{
				Path:     path,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("degenerate line: length %g below %g", e.Length(), MinLineLength),
			})
		}

	case models.Circle:
		out = positiveRadius(out, path, e.Radius())
		out = finitePoint(out, path, "center", e.Center())

	case models.Polyline:
		points := e.Points()
		if len(points) < models.MinPolylinePoints {
			out = append(out, InvalidValue{
				Path:       path,
				FieldName:  "points",
				Value:      len(points),
				Constraint: fmt.Sprintf("at least %d points", models.MinPolylinePoints),
				Severity:   SeverityError,
			})
		}
		for i, p := range points {
			out = finitePoint(out, path, fmt.Sprintf("points[%d]", i), p)
		}

	case models.Arc:
		out = positiveRadius(out, path, e.Radius())
		out = finitePoint(out, path, "center", e.Center())
		out = finiteValue(out, path, "startAngle", e.StartAngle())
		out = finiteValue(out, path, "endAngle", e.EndAngle())

	default:
		out = append(out, Custom{Path: path, Severity: SeverityError, Message: fmt.Sprintf("unhandled entity variant %T", e)})
	}
	return out
}

func positiveRadius(out []Violation, path string, radius float64) []Violation {
	if radius > 0 && !math.IsInf(radius, 0) {
		return out
	}
	return append(out, InvalidValue{Path: path, FieldName: "radius", Value: radius, Constraint: "radius > 0 and finite", Severity: SeverityError})
}

func finitePoint(out []Violation, path, field string, p geometry.Point2D) []Violation {
	out = finiteValue(out, path, field+".x", p.X)
	return finiteValue(out, path, field+".y", p.Y)
}

func finiteValue(out []Violation, path, field string, v float64) []Violation {
	if geometry.IsFinite(v) {
		return out
	}
	return append(out, InvalidValue{Path: path, FieldName: field, Value: v, Constraint: "finite", Severity: SeverityError})
}

// ============================================================
// Annotations
// ============================================================

func checkAnnotation(out []Violation, path string, a models.Annotation, entityIDs map[string]struct{}) []Violation {
	if a == nil {
		return append(out, Custom{Path: path, Severity: SeverityError, Message: "empty annotation slot"})
	}
	if isBlank(a.ID()) {
		out = append(out, InvalidValue{Path: path, FieldName: "id", Value: a.ID(), Constraint: "non-blank", Severity: SeverityError})
	}
	if ref, ok := a.TargetID(); ok {
		if _, found := entityIDs[ref]; !found {
			out = append(out, BrokenReference{Path: path, ReferenceID: ref, TargetType: "entity", Severity: SeverityError})
		}
	}

	switch a := a.(type) {
	case models.Text:
		out = finitePoint(out, path, "position", a.Position())
		out = finiteValue(out, path, "fontSize", a.FontSize())
		out = finiteValue(out, path, "rotation", a.Rotation())
	case models.Dimension:
		out = finitePoint(out, path, "position", a.Position())
		if !(a.Value() >= 0) || math.IsInf(a.Value(), 0) {
			out = append(out, InvalidValue{Path: path, FieldName: "value", Value: a.Value(), Constraint: "value >= 0 and finite", Severity: SeverityError})
		}
		if !a.Units().Valid() {
			out = append(out, InvalidValue{Path: path, FieldName: "units", Value: string(a.Units()), Constraint: unitsConstraint(), Severity: SeverityError})
		}
	case models.Tag:
	case models.Group:
		if len(a.MemberIDs()) == 0 {
			out = append(out, InvalidValue{Path: path, FieldName: "memberIds", Value: 0, Constraint: "at least 1 member", Severity: SeverityError})
		}
	default:
		out = append(out, Custom{Path: path, Severity: SeverityError, Message: fmt.Sprintf("unhandled annotation variant %T", a)})
	}
	return out
}

// ============================================================
// Document-level checks
// ============================================================

func checkDocument(out []Violation, d models.Drawing) []Violation {
	if isBlank(d.ID) {
		out = append(out, MissingField{Path: "$", FieldName: "id", Severity: SeverityError})
	}

	if !(d.Page.Width > 0) || math.IsInf(d.Page.Width, 0) {
		out = append(out, InvalidValue{Path: "page", FieldName: "width", Value: d.Page.Width, Constraint: "> 0 and finite", Severity: SeverityError})
	}
	if !(d.Page.Height > 0) || math.IsInf(d.Page.Height, 0) {
		out = append(out, InvalidValue{Path: "page", FieldName: "height", Value: d.Page.Height, Constraint: "> 0 and finite", Severity: SeverityError})
	}
	if !d.Page.Units.Valid() {
		out = append(out, InvalidValue{Path: "page", FieldName: "units", Value: string(d.Page.Units), Constraint: unitsConstraint(), Severity: SeverityError})
	}

	seen := make(map[string]struct{}, len(d.Layers))
	for i, l := range d.Layers {
		out = duplicate(out, seen, fmt.Sprintf("layers[%d]", i), "layer", l.ID)
	}
	clear(seen)
	for i, e := range d.Entities {
		if e != nil {
			out = duplicate(out, seen, fmt.Sprintf("entities[%d]", i), "entity", e.ID())
		}
	}
	clear(seen)
	for i, a := range d.Annotations {
		if a != nil {
			out = duplicate(out, seen, fmt.Sprintf("annotations[%d]", i), "annotation", a.ID())
		}
	}
	return out
}

func duplicate(out []Violation, seen map[string]struct{}, path, family, id string) []Violation {
	if _, dup := seen[id]; dup {
		return append(out, Custom{Path: path, Severity: SeverityError, Message: fmt.Sprintf("duplicate %s id %q", family, id)})
	}
	seen[id] = struct{}{}
	return out
}

func checkStyles(out []Violation, d models.Drawing) []Violation {
	for i, e := range d.Entities {
		if e == nil {
			continue
		}
		path := fmt.Sprintf("entities[%d]", i)
		style := e.Style()

		if err := fields.Var(style.Color, "required,hexcolor"); err != nil {
			out = append(out, InvalidValue{Path: path, FieldName: "style.color", Value: style.Color, Constraint: "hex color", Severity: SeverityWarning})
		}
		if !(style.Width >= 0) || math.IsInf(style.Width, 0) {
			out = append(out, InvalidValue{Path: path, FieldName: "style.width", Value: style.Width, Constraint: ">= 0 and finite", Severity: SeverityError})
		}
		for j, dash := range style.DashPattern {
			if !(dash >= 0) || math.IsInf(dash, 0) {
				out = append(out, InvalidValue{
					Path:       path,
					FieldName:  fmt.Sprintf("style.dashPattern[%d]", j),
					Value:      dash,
					Constraint: ">= 0 and finite",
					Severity:   SeverityError,
				})
			}
		}
	}
	return out
}

func checkReferences(out []Violation, d models.Drawing, entityIDs map[string]struct{}) []Violation {
	layerIDs := make(map[string]struct{}, len(d.Layers))
	for _, l := range d.Layers {
		layerIDs[l.ID] = struct{}{}
	}
	for i, e := range d.Entities {
		if e == nil {
			continue
		}
		if layer, ok := e.Layer(); ok {
			if _, found := layerIDs[layer]; !found {
				out = append(out, BrokenReference{Path: fmt.Sprintf("entities[%d]", i), ReferenceID: layer, TargetType: "layer", Severity: SeverityWarning})
			}
		}
	}

	annotationIDs := make(map[string]struct{}, len(d.Annotations))
	for _, a := range d.Annotations {
		if a != nil {
			annotationIDs[a.ID()] = struct{}{}
		}
	}
	for i, a := range d.Annotations {
		group, ok := a.(models.Group)
		if !ok {
			continue
		}
		for _, id := range group.MemberIDs() {
			_, isEntity := entityIDs[id]
			_, isAnnotation := annotationIDs[id]
			if !isEntity && !isAnnotation {
				out = append(out, BrokenReference{Path: fmt.Sprintf("annotations[%d]", i), ReferenceID: id, TargetType: "entity or annotation", Severity: SeverityWarning})
			}
		}
	}
	return out
}

// checkStructure проверяет узлы и элементы в порядке id.
func checkStructure(out []Violation, d models.Drawing) []Violation {
	for _, id := range sortedKeys(d.Nodes) {
		n := d.Nodes[id]
		path := "nodes." + id
		if n.ID != id {
			out = append(out, InvalidValue{Path: path, FieldName: "id", Value: n.ID, Constraint: "equal to map key", Severity: SeverityError})
		}
		out = finitePoint(out, path, "position", n.Position)
	}

	for _, id := range sortedKeys(d.Members) {
		m := d.Members[id]
		path := "members." + id
		if m.ID != id {
			out = append(out, InvalidValue{Path: path, FieldName: "id", Value: m.ID, Constraint: "equal to map key", Severity: SeverityError})
		}
		if _, ok := d.Nodes[m.StartNodeID]; !ok {
			out = append(out, BrokenReference{Path: path, ReferenceID: m.StartNodeID, TargetType: "node", Severity: SeverityError})
		}
		if _, ok := d.Nodes[m.EndNodeID]; !ok {
			out = append(out, BrokenReference{Path: path, ReferenceID: m.EndNodeID, TargetType: "node", Severity: SeverityError})
		}
	}
	return out
}

// ============================================================
// Helpers
// ============================================================

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func unitsConstraint() string {
	names := make([]string, len(models.AllUnits))
	for i, u := range models.AllUnits {
		names[i] = string(u)
	}
	return "one of " + strings.Join(names, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
