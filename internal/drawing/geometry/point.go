package geometry

import "math"

// ============================================================
// Geometry primitives
// ============================================================

// CanonicalDecimals - количество знаков после запятой в каноническом виде.
const CanonicalDecimals = 4

const canonicalScale = 1e4

// maxScaled - начиная с этой величины у value*1e4 нет дробной части.
const maxScaled = 1 << 52

// Point2D - точка на листе, координаты в миллиметрах.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vector2D - смещение на листе, в миллиметрах.
type Vector2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func Pt(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

func Vec(x, y float64) Vector2D {
	return Vector2D{X: x, Y: y}
}

// Add сдвигает точку на вектор.
func (p Point2D) Add(v Vector2D) Point2D {
	return Point2D{X: p.X + v.X, Y: p.Y + v.Y}
}

// Sub возвращает вектор из q в p.
func (p Point2D) Sub(q Point2D) Vector2D {
	return Vector2D{X: p.X - q.X, Y: p.Y - q.Y}
}

// Scale умножает обе координаты на k.
func (p Point2D) Scale(k float64) Point2D {
	return Point2D{X: p.X * k, Y: p.Y * k}
}

// DistanceTo - евклидово расстояние между точками.
func (p Point2D) DistanceTo(q Point2D) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// IsFinite сообщает, что обе координаты конечны.
func (p Point2D) IsFinite() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

// Canonical округляет координаты до CanonicalDecimals знаков.
// Именно это значение уходит в сериализацию.
func (p Point2D) Canonical() Point2D {
	return Point2D{X: Round(p.X), Y: Round(p.Y)}
}

func (v Vector2D) Add(w Vector2D) Vector2D {
	return Vector2D{X: v.X + w.X, Y: v.Y + w.Y}
}

func (v Vector2D) Sub(w Vector2D) Vector2D {
	return Vector2D{X: v.X - w.X, Y: v.Y - w.Y}
}

func (v Vector2D) Scale(k float64) Vector2D {
	return Vector2D{X: v.X * k, Y: v.Y * k}
}

// Length - длина вектора.
func (v Vector2D) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

func (v Vector2D) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y)
}

func (v Vector2D) Canonical() Vector2D {
	return Vector2D{X: Round(v.X), Y: Round(v.Y)}
}

// ============================================================
// Rounding
// ============================================================

// Round округляет value до CanonicalDecimals знаков, половина - от нуля
// (-0.03125 -> -0.0313, 0.03125 -> 0.0313). Отрицательные значения
// округляются симметрично положительным, без отбрасывания дробной части.
// NaN и ±Inf возвращаются как есть, -0 превращается в 0.
func Round(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value
	}

	scaled := value * canonicalScale
	if math.Abs(scaled) >= maxScaled {
		return value
	}

	rounded := math.Round(scaled) / canonicalScale
	if rounded == 0 {
		return 0
	}
	return rounded
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// IsFinite сообщает, что v не NaN и не ±Inf.
func IsFinite(v float64) bool {
	return isFinite(v)
}
