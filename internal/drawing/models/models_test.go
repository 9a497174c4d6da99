package models

import (
	"errors"
	"math"
	"testing"

	"drawing-core/internal/drawing/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var style = SolidStyle("#000000", 0.25)

func TestCircleRadiusInvariant(t *testing.T) {
	for _, r := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := NewCircle("c1", geometry.Pt(0, 0), r, style)
		require.Error(t, err, "radius %v", r)

		var ce *ConstraintError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "radius", ce.Field)
	}

	c, err := NewCircle("c1", geometry.Pt(1, 2), 5, style)
	require.NoError(t, err)
	assert.Equal(t, 5.0, c.Radius())
	assert.Equal(t, KindCircle, c.Kind())

	_, err = c.WithRadius(-5)
	assert.Error(t, err)
	assert.Equal(t, 5.0, c.Radius(), "failed update must not touch the original")
}

func TestArcInvariants(t *testing.T) {
	_, err := NewArc("a1", geometry.Pt(0, 0), 0, 0, 90, style)
	assert.Error(t, err)
	_, err = NewArc("a1", geometry.Pt(0, 0), -2, 0, 90, style)
	assert.Error(t, err)
	_, err = NewArc("a1", geometry.Pt(0, 0), 2, math.NaN(), 90, style)
	assert.Error(t, err)
	_, err = NewArc("a1", geometry.Pt(0, 0), 2, 0, math.Inf(1), style)
	assert.Error(t, err)

	a, err := NewArc("a1", geometry.Pt(0, 0), 2, -45, 270, style)
	require.NoError(t, err)
	assert.Equal(t, -45.0, a.StartAngle())
	assert.Equal(t, 270.0, a.EndAngle())
}

func TestPolylinePointCount(t *testing.T) {
	_, err := NewPolyline("p1", nil, false, style)
	assert.Error(t, err)
	_, err = NewPolyline("p1", []geometry.Point2D{geometry.Pt(0, 0)}, false, style)
	assert.Error(t, err)

	pts := []geometry.Point2D{geometry.Pt(0, 0), geometry.Pt(1, 1)}
	p, err := NewPolyline("p1", pts, true, style)
	require.NoError(t, err)

	pts[0] = geometry.Pt(99, 99)
	assert.Equal(t, geometry.Pt(0, 0), p.Points()[0], "constructor must copy points")

	got := p.Points()
	got[1] = geometry.Pt(42, 42)
	assert.Equal(t, geometry.Pt(1, 1), p.Points()[1], "accessor must return a copy")
}

func TestDimensionValueInvariant(t *testing.T) {
	_, err := NewDimension("d1", "l1", -0.5, UnitsMM, geometry.Pt(0, 0))
	assert.Error(t, err)
	_, err = NewDimension("d1", "l1", math.NaN(), UnitsMM, geometry.Pt(0, 0))
	assert.Error(t, err)
	_, err = NewDimension("d1", "l1", 1, Units("YARDS"), geometry.Pt(0, 0))
	assert.Error(t, err)

	d, err := NewDimension("d1", "l1", 0, UnitsFeet, geometry.Pt(0, 0))
	require.NoError(t, err)
	target, ok := d.TargetID()
	assert.True(t, ok)
	assert.Equal(t, "l1", target)
}

func TestGroupMembersInvariant(t *testing.T) {
	_, err := NewGroup("g1", "walls", nil)
	assert.Error(t, err)
	_, err = NewGroup("g1", "walls", []string{})
	assert.Error(t, err)

	g, err := NewGroup("g1", "walls", []string{"l1", "l2"})
	require.NoError(t, err)
	_, ok := g.TargetID()
	assert.False(t, ok)
	assert.Equal(t, []string{"l1", "l2"}, g.MemberIDs())
}

func TestStructuralEquality(t *testing.T) {
	a := NewLine("l1", geometry.Pt(0, 0), geometry.Pt(1, 0), DashedStyle("#ff0000", 1, 2, 1))
	b := NewLine("l1", geometry.Pt(0, 0), geometry.Pt(1, 0), DashedStyle("#ff0000", 1, 2, 1))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, b.WithLayer("walls"))

	t1 := NewTag("t1", "l1", "load-bearing").WithCategory("structure")
	t2 := NewTag("t1", "l1", "load-bearing").WithCategory("structure")
	assert.Equal(t, t1, t2)
}

func TestCopyWithChangesLeavesOriginal(t *testing.T) {
	l := NewLine("l1", geometry.Pt(0, 0), geometry.Pt(1, 0), style)
	moved := l.WithEndpoints(geometry.Pt(5, 5), geometry.Pt(6, 6))

	assert.Equal(t, geometry.Pt(0, 0), l.Start())
	assert.Equal(t, geometry.Pt(5, 5), moved.Start())

	layered := l.WithLayer("walls")
	_, ok := l.Layer()
	assert.False(t, ok)
	layer, ok := layered.Layer()
	assert.True(t, ok)
	assert.Equal(t, "walls", layer)
}

func TestStabilizedSortsAndRounds(t *testing.T) {
	c, err := NewCircle("b", geometry.Pt(1.234567, -2.000049), 3, style)
	require.NoError(t, err)
	l := NewLine("a", geometry.Pt(0.00001, 0), geometry.Pt(-0.03125, 1), style)

	d := New("d1", "plan", Page{Width: 297, Height: 210, Units: UnitsMM})
	d.Layers = []Layer{{ID: "z"}, {ID: "a"}}
	d.Entities = []Entity{c, l}
	d.Nodes = map[string]Node{"n1": {ID: "n1", Position: geometry.Pt(0.123456, 0)}}

	s := d.Stabilized()

	assert.Equal(t, "a", s.Layers[0].ID)
	assert.Equal(t, "a", s.Entities[0].ID())
	assert.Equal(t, geometry.Pt(0, 0), s.Entities[0].(Line).Start())
	assert.Equal(t, geometry.Pt(-0.0313, 1), s.Entities[0].(Line).End())
	assert.Equal(t, geometry.Pt(1.2346, -2), s.Entities[1].(Circle).Center())
	assert.Equal(t, geometry.Pt(0.1235, 0), s.Nodes["n1"].Position)

	assert.Equal(t, "b", d.Entities[0].ID(), "input must stay untouched")
	assert.Equal(t, geometry.Pt(0.123456, 0), d.Nodes["n1"].Position)
}

func TestMembersAt(t *testing.T) {
	d := New("d1", "plan", Page{Width: 1, Height: 1, Units: UnitsM})
	d.Members = map[string]Member{
		"m2": {ID: "m2", StartNodeID: "n1", EndNodeID: "n2"},
		"m1": {ID: "m1", StartNodeID: "n3", EndNodeID: "n1"},
		"m3": {ID: "m3", StartNodeID: "n2", EndNodeID: "n3"},
	}
	assert.Equal(t, []string{"m1", "m2"}, d.MembersAt("n1"))
	assert.Empty(t, d.MembersAt("n9"))
}
