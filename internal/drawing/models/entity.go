package models

import (
	"math"
	"slices"

	"drawing-core/internal/drawing/geometry"
)

// ============================================================
// Entities
// ============================================================

type EntityKind string

const (
	KindLine     EntityKind = "line"
	KindCircle   EntityKind = "circle"
	KindPolyline EntityKind = "polyline"
	KindArc      EntityKind = "arc"
)

// Entity - геометрический примитив чертежа. Набор вариантов закрыт:
// Line, Circle, Polyline, Arc.
type Entity interface {
	ID() string
	Layer() (string, bool)
	Kind() EntityKind
	Style() LineStyle
	// Canonical возвращает копию с округленными координатами.
	Canonical() Entity

	entity()
}

// LineStyle - стиль обводки. DashPattern == nil означает сплошную линию.
type LineStyle struct {
	Color       string
	Width       float64
	DashPattern []float64
}

// SolidStyle - сплошная линия заданного цвета и толщины.
func SolidStyle(color string, width float64) LineStyle {
	return LineStyle{Color: color, Width: width}
}

// DashedStyle - пунктир, pattern копируется.
func DashedStyle(color string, width float64, pattern ...float64) LineStyle {
	return LineStyle{Color: color, Width: width, DashPattern: slices.Clone(pattern)}
}

func (s LineStyle) clone() LineStyle {
	s.DashPattern = slices.Clone(s.DashPattern)
	return s
}

type header struct {
	id       string
	layer    string
	hasLayer bool
}

func (h header) ID() string {
	return h.id
}

// Layer возвращает слой, если он задан.
func (h header) Layer() (string, bool) {
	return h.layer, h.hasLayer
}

func (h header) withLayer(layer string) header {
	h.layer = layer
	h.hasLayer = true
	return h
}

func (h header) withoutLayer() header {
	h.layer = ""
	h.hasLayer = false
	return h
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// ============================================================
// Line
// ============================================================

type Line struct {
	header
	start geometry.Point2D
	end   geometry.Point2D
	style LineStyle
}

func NewLine(id string, start, end geometry.Point2D, style LineStyle) Line {
	return Line{header: header{id: id}, start: start, end: end, style: style.clone()}
}

func (Line) Kind() EntityKind { return KindLine }
func (l Line) Start() geometry.Point2D { return l.start }
func (l Line) End() geometry.Point2D { return l.end }
func (l Line) Style() LineStyle { return l.style.clone() }
func (l Line) Length() float64 { return l.start.DistanceTo(l.end) }
func (l Line) WithLayer(layer string) Line { l.header = l.header.withLayer(layer); return l }
func (l Line) WithoutLayer() Line { l.header = l.header.withoutLayer(); return l }

func (l Line) WithEndpoints(start, end geometry.Point2D) Line {
	l.start, l.end = start, end
	return l
}

func (l Line) WithStyle(style LineStyle) Line {
	l.style = style.clone()
	return l
}

func (l Line) Canonical() Entity {
	l.start = l.start.Canonical()
	l.end = l.end.Canonical()
	l.style = l.style.clone()
	return l
}

func (Line) entity() {}

// ============================================================
// Circle
// ============================================================

type Circle struct {
	header
	center geometry.Point2D
	radius float64
	style  LineStyle
}

// NewCircle проверяет radius > 0 и конечность радиуса.
func NewCircle(id string, center geometry.Point2D, radius float64, style LineStyle) (Circle, error) {
	if !positiveFinite(radius) {
		return Circle{}, constraint(string(KindCircle), "radius", radius, "radius > 0 and finite")
	}
	return Circle{header: header{id: id}, center: center, radius: radius, style: style.clone()}, nil
}

func (Circle) Kind() EntityKind { return KindCircle }
func (c Circle) Center() geometry.Point2D { return c.center }
func (c Circle) Radius() float64 { return c.radius }
func (c Circle) Style() LineStyle { return c.style.clone() }
func (c Circle) WithLayer(layer string) Circle { c.header = c.header.withLayer(layer); return c }
func (c Circle) WithoutLayer() Circle { c.header = c.header.withoutLayer(); return c }

func (c Circle) WithCenter(center geometry.Point2D) Circle {
	c.center = center
	return c
}

func (c Circle) WithRadius(radius float64) (Circle, error) {
	if !positiveFinite(radius) {
		return Circle{}, constraint(string(KindCircle), "radius", radius, "radius > 0 and finite")
	}
	c.radius = radius
	return c, nil
}

func (c Circle) Canonical() Entity {
	c.center = c.center.Canonical()
	c.style = c.style.clone()
	return c
}

func (Circle) entity() {}

// ============================================================
// Polyline
// ============================================================

// MinPolylinePoints - минимальное число вершин ломаной.
const MinPolylinePoints = 2

type Polyline struct {
	header
	points []geometry.Point2D
	closed bool
	style  LineStyle
}

// NewPolyline требует не меньше двух точек, points копируется.
func NewPolyline(id string, points []geometry.Point2D, closed bool, style LineStyle) (Polyline, error) {
	if len(points) < MinPolylinePoints {
		return Polyline{}, constraint(string(KindPolyline), "points", len(points), "at least 2 points")
	}
	return Polyline{header: header{id: id}, points: slices.Clone(points), closed: closed, style: style.clone()}, nil
}

func (Polyline) Kind() EntityKind { return KindPolyline }
func (p Polyline) Points() []geometry.Point2D { return slices.Clone(p.points) }
func (p Polyline) Closed() bool { return p.closed }
func (p Polyline) Style() LineStyle { return p.style.clone() }
func (p Polyline) WithLayer(layer string) Polyline { p.header = p.header.withLayer(layer); return p }
func (p Polyline) WithoutLayer() Polyline { p.header = p.header.withoutLayer(); return p }

func (p Polyline) WithPoints(points []geometry.Point2D) (Polyline, error) {
	if len(points) < MinPolylinePoints {
		return Polyline{}, constraint(string(KindPolyline), "points", len(points), "at least 2 points")
	}
	p.points = slices.Clone(points)
	return p, nil
}

func (p Polyline) WithClosed(closed bool) Polyline {
	p.points = slices.Clone(p.points)
	p.closed = closed
	return p
}

func (p Polyline) Canonical() Entity {
	points := make([]geometry.Point2D, len(p.points))
	for i, pt := range p.points {
		points[i] = pt.Canonical()
	}
	p.points = points
	p.style = p.style.clone()
	return p
}

func (Polyline) entity() {}

// ============================================================
// Arc
// ============================================================

// Arc - дуга окружности, углы в градусах.
type Arc struct {
	header
	center     geometry.Point2D
	radius     float64
	startAngle float64
	endAngle   float64
	style      LineStyle
}

func NewArc(id string, center geometry.Point2D, radius, startAngle, endAngle float64, style LineStyle) (Arc, error) {
	if err := checkArc(radius, startAngle, endAngle); err != nil {
		return Arc{}, err
	}
	return Arc{
		header:     header{id: id},
		center:     center,
		radius:     radius,
		startAngle: startAngle,
		endAngle:   endAngle,
		style:      style.clone(),
	}, nil
}

func checkArc(radius, startAngle, endAngle float64) error {
	if !positiveFinite(radius) {
		return constraint(string(KindArc), "radius", radius, "radius > 0 and finite")
	}
	if !geometry.IsFinite(startAngle) {
		return constraint(string(KindArc), "startAngle", startAngle, "finite")
	}
	if !geometry.IsFinite(endAngle) {
		return constraint(string(KindArc), "endAngle", endAngle, "finite")
	}
	return nil
}

func (Arc) Kind() EntityKind { return KindArc }
func (a Arc) Center() geometry.Point2D { return a.center }
func (a Arc) Radius() float64 { return a.radius }
func (a Arc) StartAngle() float64 { return a.startAngle }
func (a Arc) EndAngle() float64 { return a.endAngle }
func (a Arc) Style() LineStyle { return a.style.clone() }
func (a Arc) WithLayer(layer string) Arc { a.header = a.header.withLayer(layer); return a }
func (a Arc) WithoutLayer() Arc { a.header = a.header.withoutLayer(); return a }

func (a Arc) WithCenter(center geometry.Point2D) Arc {
	a.center = center
	return a
}

func (a Arc) WithSweep(radius, startAngle, endAngle float64) (Arc, error) {
	if err := checkArc(radius, startAngle, endAngle); err != nil {
		return Arc{}, err
	}
	a.radius, a.startAngle, a.endAngle = radius, startAngle, endAngle
	return a, nil
}

func (a Arc) Canonical() Entity {
	a.center = a.center.Canonical()
	a.style = a.style.clone()
	return a
}

func (Arc) entity() {}
