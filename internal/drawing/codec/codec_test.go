package codec

import (
	"errors"
	"math"
	"testing"

	"drawing-core/internal/drawing/geometry"
	"drawing-core/internal/drawing/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCircle(t *testing.T, id string, c geometry.Point2D, r float64) models.Circle {
	t.Helper()
	circle, err := models.NewCircle(id, c, r, models.SolidStyle("#00ff00", 0.35))
	require.NoError(t, err)
	return circle
}

func sampleDrawing(t *testing.T) models.Drawing {
	t.Helper()

	poly, err := models.NewPolyline("p1", []geometry.Point2D{geometry.Pt(0, 0), geometry.Pt(100, 0), geometry.Pt(100, 50)}, true,
		models.DashedStyle("#333333", 0.18, 4, 2))
	require.NoError(t, err)
	arc, err := models.NewArc("a1", geometry.Pt(50, 50), 25, 0, 180, models.SolidStyle("#000000", 0.25))
	require.NoError(t, err)
	dim, err := models.NewDimension("dim1", "l1", 100, models.UnitsMM, geometry.Pt(50, -10))
	require.NoError(t, err)
	group, err := models.NewGroup("g1", "outline", []string{"l1", "p1"})
	require.NoError(t, err)

	profile := "HEA200"
	syncID := "remote-7"

	d := models.New("d1", "ground floor", models.Page{Width: 420, Height: 297, Units: models.UnitsMM})
	d.Layers = []models.Layer{{ID: "walls", Name: "Walls", Visible: true}, {ID: "dims", Name: "Dimensions"}}
	d.Entities = []models.Entity{
		models.NewLine("l1", geometry.Pt(0, 0), geometry.Pt(100, 0), models.SolidStyle("#000000", 0.5)).WithLayer("walls"),
		mustCircle(t, "c1", geometry.Pt(20, 20), 5),
		poly,
		arc,
	}
	d.Annotations = []models.Annotation{
		dim,
		models.NewText("t1", geometry.Pt(10, 10), "Kitchen", 3.5, 0),
		models.NewTag("tag1", "c1", "column").WithCategory("structure"),
		group,
	}
	d.Nodes = map[string]models.Node{
		"n1": {ID: "n1", Position: geometry.Pt(0, 0)},
		"n2": {ID: "n2", Position: geometry.Pt(100, 0)},
	}
	d.Members = map[string]models.Member{
		"m1": {ID: "m1", StartNodeID: "n1", EndNodeID: "n2", ProfileRef: &profile},
	}
	d.Metadata = map[string]string{"author": "ivanov", "scale": "1:50"}
	d.SyncID = &syncID
	d.SyncStatus = models.SyncPending
	d.UpdatedAt = 1700000000123
	d.Version = 4
	return d
}

func TestMarshalStableGolden(t *testing.T) {
	d := models.New("d1", "plan", models.Page{Width: 297, Height: 210, Units: models.UnitsMM})
	d.Entities = []models.Entity{
		models.NewLine("l1", geometry.Pt(0, 0), geometry.Pt(10.00004, 5), models.SolidStyle("#112233", 0.5)),
	}

	got, err := MarshalStable(d)
	require.NoError(t, err)

	want := `{
  "schemaVersion": 1,
  "id": "d1",
  "name": "plan",
  "page": {
    "width": 297,
    "height": 210,
    "units": "MM"
  },
  "layers": [],
  "entities": [
    {
      "type": "line",
      "id": "l1",
      "layer": null,
      "start": {
        "x": 0,
        "y": 0
      },
      "end": {
        "x": 10,
        "y": 5
      },
      "style": {
        "color": "#112233",
        "width": 0.5,
        "dashPattern": null
      }
    }
  ],
  "annotations": [],
  "metadata": {},
  "syncId": null,
  "syncStatus": "local",
  "updatedAt": 0,
  "version": 0
}
`
	assert.Equal(t, want, string(got))
}

func TestMarshalStableIgnoresInsertionOrder(t *testing.T) {
	a := sampleDrawing(t)
	b := a.Clone()

	reverse := func(n int, swap func(i, j int)) {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			swap(i, j)
		}
	}
	reverse(len(b.Layers), func(i, j int) { b.Layers[i], b.Layers[j] = b.Layers[j], b.Layers[i] })
	reverse(len(b.Entities), func(i, j int) { b.Entities[i], b.Entities[j] = b.Entities[j], b.Entities[i] })
	reverse(len(b.Annotations), func(i, j int) { b.Annotations[i], b.Annotations[j] = b.Annotations[j], b.Annotations[i] })

	ab, err := MarshalStable(a)
	require.NoError(t, err)
	bb, err := MarshalStable(b)
	require.NoError(t, err)
	assert.Equal(t, string(ab), string(bb))

	ha, err := ContentHash(a)
	require.NoError(t, err)
	hb, err := ContentHash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha.String(), 64)
}

func TestContentHashChangesWithData(t *testing.T) {
	a := sampleDrawing(t)
	b := a.Clone()
	b.Name = "first floor"

	ha, err := ContentHash(a)
	require.NoError(t, err)
	hb, err := ContentHash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestContentHashIgnoresSubCanonicalNoise(t *testing.T) {
	a := sampleDrawing(t)
	b := a.Clone()
	b.Nodes = map[string]models.Node{
		"n1": {ID: "n1", Position: geometry.Pt(0.00001, -0.00002)},
		"n2": {ID: "n2", Position: geometry.Pt(100.00003, 0)},
	}

	ha, err := ContentHash(a)
	require.NoError(t, err)
	hb, err := ContentHash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestRoundTrip(t *testing.T) {
	d := sampleDrawing(t)

	data, err := MarshalStable(d)
	require.NoError(t, err)

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, d.Stabilized(), back)

	again, err := MarshalStable(back)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestRoundTripEmptyCollections(t *testing.T) {
	d := models.New("d1", "plan", models.Page{Width: 100, Height: 100, Units: models.UnitsMM})
	d.Metadata = map[string]string{}
	d.Layers = []models.Layer{}
	d.Entities = []models.Entity{}
	d.Annotations = []models.Annotation{}
	d.Nodes = map[string]models.Node{}
	d.Members = map[string]models.Member{}

	stable := d.Stabilized()
	assert.Nil(t, stable.Metadata)
	assert.Nil(t, stable.Layers)
	assert.Nil(t, stable.Entities)
	assert.Nil(t, stable.Annotations)
	assert.Nil(t, stable.Nodes)
	assert.Nil(t, stable.Members)

	data, err := MarshalStable(d)
	require.NoError(t, err)
	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, stable, back)
}

func TestRoundTripRoundsCoordinates(t *testing.T) {
	d := models.New("d1", "plan", models.Page{Width: 100, Height: 100, Units: models.UnitsCM})
	d.Entities = []models.Entity{mustCircle(t, "c1", geometry.Pt(-1.23456, 7.654321), 2.123456789)}

	data, err := MarshalStable(d)
	require.NoError(t, err)
	back, err := Decode(data)
	require.NoError(t, err)

	c := back.Entities[0].(models.Circle)
	assert.Equal(t, geometry.Pt(-1.2346, 7.6543), c.Center())
	assert.Equal(t, 2.123456789, c.Radius(), "radius is a length, not a coordinate")
}

func TestMarshalStableRejectsNonFinite(t *testing.T) {
	d := models.New("d1", "plan", models.Page{Width: 100, Height: 100, Units: models.UnitsCM})
	d.Nodes = map[string]models.Node{"n1": {ID: "n1", Position: geometry.Pt(math.NaN(), 0)}}

	_, err := MarshalStable(d)
	assert.Error(t, err)
}

func TestDecodeAcceptsJSONC(t *testing.T) {
	doc := `{
  // hand-edited
  "schemaVersion": 1,
  "id": "d1",
  "page": {"width": 10, "height": 10, "units": "M",},
  "entities": [
    {"type": "circle", "id": "c1", "center": {"x": 1, "y": 1}, "radius": 2, "style": {"color": "#000000", "width": 1}},
  ],
}`
	d, err := Decode([]byte(doc))
	require.NoError(t, err)
	require.Len(t, d.Entities, 1)
	assert.Equal(t, models.KindCircle, d.Entities[0].Kind())
	assert.Nil(t, d.Layers)
	assert.Nil(t, d.Metadata)
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name  string
		doc   string
		check func(t *testing.T, err error)
	}{
		{
			name: "syntax",
			doc:  `{"schemaVersion": 1,`,
			check: func(t *testing.T, err error) {
				var se *SyntaxError
				assert.True(t, errors.As(err, &se))
			},
		},
		{
			name: "missing schema version",
			doc:  `{"id": "d1", "page": {"width": 1, "height": 1, "units": "MM"}}`,
			check: func(t *testing.T, err error) {
				var fe *FieldError
				require.True(t, errors.As(err, &fe))
				assert.True(t, fe.Missing)
				assert.Equal(t, "schemaVersion", fe.Field)
			},
		},
		{
			name: "negative radius",
			doc: `{"schemaVersion": 1, "id": "d1", "page": {"width": 1, "height": 1, "units": "MM"},
				"entities": [{"type": "circle", "id": "c1", "center": {"x": 0, "y": 0}, "radius": -5, "style": {"color": "#000", "width": 1}}]}`,
			check: func(t *testing.T, err error) {
				var fe *FieldError
				require.True(t, errors.As(err, &fe))
				assert.Equal(t, "entities[0]", fe.Path)
				assert.Equal(t, "radius", fe.Field)
				assert.Equal(t, -5.0, fe.Value)

				var ce *models.ConstraintError
				assert.True(t, errors.As(err, &ce))
			},
		},
		{
			name: "unknown entity type",
			doc: `{"schemaVersion": 1, "id": "d1", "page": {"width": 1, "height": 1, "units": "MM"},
				"entities": [{"type": "spline", "id": "s1", "style": {"color": "#000", "width": 1}}]}`,
			check: func(t *testing.T, err error) {
				var fe *FieldError
				require.True(t, errors.As(err, &fe))
				assert.Equal(t, "type", fe.Field)
				assert.Equal(t, "spline", fe.Value)
			},
		},
		{
			name: "dimension without target",
			doc: `{"schemaVersion": 1, "id": "d1", "page": {"width": 1, "height": 1, "units": "MM"},
				"annotations": [{"type": "dimension", "id": "d1", "value": 3, "units": "MM", "position": {"x": 0, "y": 0}}]}`,
			check: func(t *testing.T, err error) {
				var fe *FieldError
				require.True(t, errors.As(err, &fe))
				assert.True(t, fe.Missing)
				assert.Equal(t, "annotations[0]", fe.Path)
				assert.Equal(t, "targetId", fe.Field)
			},
		},
		{
			name: "empty group",
			doc: `{"schemaVersion": 1, "id": "d1", "page": {"width": 1, "height": 1, "units": "MM"},
				"annotations": [{"type": "group", "id": "g1", "name": "x", "memberIds": []}]}`,
			check: func(t *testing.T, err error) {
				var fe *FieldError
				require.True(t, errors.As(err, &fe))
				assert.Equal(t, "memberIds", fe.Field)
			},
		},
		{
			name: "wrong field type",
			doc:  `{"schemaVersion": "one", "id": "d1", "page": {"width": 1, "height": 1, "units": "MM"}}`,
			check: func(t *testing.T, err error) {
				var fe *FieldError
				require.True(t, errors.As(err, &fe))
				assert.Equal(t, "schemaVersion", fe.Field)
			},
		},
		{
			name: "duplicate node",
			doc: `{"schemaVersion": 1, "id": "d1", "page": {"width": 1, "height": 1, "units": "MM"},
				"nodes": [{"id": "n1", "position": {"x": 0, "y": 0}}, {"id": "n1", "position": {"x": 1, "y": 0}}]}`,
			check: func(t *testing.T, err error) {
				var fe *FieldError
				require.True(t, errors.As(err, &fe))
				assert.Equal(t, "nodes[1]", fe.Path)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.doc))
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestCBORRoundTrip(t *testing.T) {
	d := sampleDrawing(t)

	data, err := MarshalCBOR(d)
	require.NoError(t, err)

	again, err := MarshalCBOR(d.Clone())
	require.NoError(t, err)
	assert.Equal(t, data, again)

	back, err := DecodeCBOR(data)
	require.NoError(t, err)
	assert.Equal(t, d.Stabilized(), back)
}

func TestDecodeCBORGarbage(t *testing.T) {
	_, err := DecodeCBOR([]byte{0xff, 0x00, 0x13})
	var se *SyntaxError
	assert.True(t, errors.As(err, &se))
}

func TestCanonicalize(t *testing.T) {
	d := sampleDrawing(t)
	want, err := MarshalStable(d)
	require.NoError(t, err)

	scrambled := d.Clone()
	scrambled.Entities[0], scrambled.Entities[3] = scrambled.Entities[3], scrambled.Entities[0]
	loose, err := MarshalStable(scrambled)
	require.NoError(t, err)

	got, err := Canonicalize(loose)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}
