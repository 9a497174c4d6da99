package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"drawing-core/internal/drawing/codec"
	"drawing-core/internal/drawing/geometry"
	"drawing-core/internal/drawing/models"
	"drawing-core/internal/drawing/patch"
	"drawing-core/internal/drawing/repository"
	"drawing-core/internal/drawing/validation"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	editor *Editor
	repo   *repository.Repository
	dir    string
}

func newFixture(t *testing.T, opts Options) fixture {
	t.Helper()
	dir := t.TempDir()

	db, err := repository.OpenSQLite(filepath.Join(dir, "drawings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.New(db, zerolog.Nop())
	require.NoError(t, repo.Init(context.Background()))

	editor := NewEditor(repo, NewFileStorage(filepath.Join(dir, "exports")), zerolog.Nop(), opts)
	editor.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return fixture{editor: editor, repo: repo, dir: dir}
}

func frameDocument(t *testing.T) []byte {
	t.Helper()
	d := models.New("frame-1", "portal frame", models.Page{Width: 420, Height: 297, Units: models.UnitsMM})
	d.Entities = []models.Entity{
		models.NewLine("l1", geometry.Pt(0, 0), geometry.Pt(6000, 0), models.SolidStyle("#000000", 0.5)),
	}
	d.Nodes = map[string]models.Node{
		"n1": {ID: "n1", Position: geometry.Pt(0, 0)},
		"n2": {ID: "n2", Position: geometry.Pt(6000, 0)},
	}
	data, err := codec.MarshalStable(d)
	require.NoError(t, err)
	return data
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	doc, err := f.editor.Create(ctx, "new plan", models.Page{Width: 297, Height: 210, Units: models.UnitsMM})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Drawing.ID)
	assert.Equal(t, 1, doc.Drawing.Version)
	assert.Equal(t, models.SyncLocal, doc.Drawing.SyncStatus)
	assert.Equal(t, int64(1700000000000), doc.Drawing.UpdatedAt)

	got, err := f.editor.Get(ctx, doc.Drawing.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Drawing, got.Drawing)
	assert.Equal(t, doc.Hash, got.Hash)

	stored, err := f.repo.Get(ctx, doc.Drawing.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Hash.String(), stored.ContentHash)
}

func TestCreateRejectsBadPage(t *testing.T) {
	_, err := newFixture(t, Options{}).editor.Create(context.Background(), "x", models.Page{Width: -1, Height: 1, Units: models.UnitsMM})

	var failure *validation.Failure
	assert.True(t, errors.As(err, &failure))
}

func TestPut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	doc, err := f.editor.Put(ctx, "", frameDocument(t))
	require.NoError(t, err)
	assert.Equal(t, "frame-1", doc.Drawing.ID)
	assert.Equal(t, 1, doc.Drawing.Version)

	doc, err = f.editor.Put(ctx, "frame-1", frameDocument(t))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Drawing.Version)

	_, err = f.editor.Put(ctx, "other", frameDocument(t))
	assert.ErrorIs(t, err, ErrIDMismatch)

	_, err = f.editor.Put(ctx, "", []byte(`{"schemaVersion": 1`))
	var failure *validation.Failure
	assert.True(t, errors.As(err, &failure))
}

func TestPutRejectWarnings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{RejectWarnings: true})

	d := models.New("d1", "", models.Page{Width: 1, Height: 1, Units: models.UnitsM})
	d.Entities = []models.Entity{models.NewLine("l1", geometry.Pt(0, 0), geometry.Pt(0, 0), models.SolidStyle("#000000", 1))}
	data, err := codec.MarshalStable(d)
	require.NoError(t, err)

	_, err = f.editor.Put(ctx, "", data)
	var failure *validation.Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, 1, validation.Count(failure.Violations, validation.SeverityWarning))
}

func TestApplyUndoRedo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	_, err := f.editor.Put(ctx, "", frameDocument(t))
	require.NoError(t, err)

	original, err := f.editor.Get(ctx, "frame-1")
	require.NoError(t, err)

	ops := []patch.Operation{
		patch.AddNode{NodeID: "n3", Position: geometry.Pt(3000, 2500)},
		patch.AddMember{MemberID: "m1", StartNodeID: "n1", EndNodeID: "n3", ProfileRef: patch.Ref("IPE300")},
	}
	doc, err := f.editor.ApplyPatch(ctx, "frame-1", ops)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Drawing.Version)
	assert.Contains(t, doc.Drawing.Members, "m1")

	doc, err = f.editor.Undo(ctx, "frame-1")
	require.NoError(t, err)
	assert.NotContains(t, doc.Drawing.Members, "m1")
	assert.Contains(t, doc.Drawing.Nodes, "n3")

	doc, err = f.editor.Undo(ctx, "frame-1")
	require.NoError(t, err)
	assert.Equal(t, original.Drawing.Nodes, doc.Drawing.Nodes)
	assert.Nil(t, doc.Drawing.Members)
	assert.Equal(t, 4, doc.Drawing.Version)

	_, err = f.editor.Undo(ctx, "frame-1")
	assert.ErrorIs(t, err, patch.ErrNothingToUndo)

	doc, err = f.editor.Redo(ctx, "frame-1")
	require.NoError(t, err)
	assert.Contains(t, doc.Drawing.Nodes, "n3")

	journal, err := f.editor.Journal(ctx, "frame-1")
	require.NoError(t, err)
	actions := make([]string, len(journal))
	for i, rec := range journal {
		actions[i] = rec.Action
	}
	assert.Equal(t, []string{ActionApply, ActionApply, ActionUndo, ActionUndo, ActionRedo}, actions)
	assert.Equal(t, ops[0], journal[0].Operation)
	assert.Equal(t, ops[1].Inverse(), journal[2].Operation)
}

func TestApplyPatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	_, err := f.editor.Put(ctx, "", frameDocument(t))
	require.NoError(t, err)

	_, err = f.editor.ApplyPatch(ctx, "frame-1", []patch.Operation{
		patch.AddNode{NodeID: "n3", Position: geometry.Pt(1, 1)},
		patch.DeleteMember{MemberID: "ghost"},
	})
	assert.ErrorIs(t, err, patch.ErrMemberNotFound)

	doc, err := f.editor.Get(ctx, "frame-1")
	require.NoError(t, err)
	assert.NotContains(t, doc.Drawing.Nodes, "n3")
	assert.Equal(t, 1, doc.Drawing.Version)

	journal, err := f.editor.Journal(ctx, "frame-1")
	require.NoError(t, err)
	assert.Empty(t, journal)

	_, err = f.editor.ApplyPatch(ctx, "missing", []patch.Operation{patch.AddNode{NodeID: "n"}})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestHistorySurvivesRestart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	_, err := f.editor.Put(ctx, "", frameDocument(t))
	require.NoError(t, err)

	move := patch.MoveNode{NodeID: "n2", OldPosition: geometry.Pt(6000, 0), NewPosition: geometry.Pt(6500, 0)}
	_, err = f.editor.ApplyPatch(ctx, "frame-1", []patch.Operation{move})
	require.NoError(t, err)

	restarted := NewEditor(f.repo, NewFileStorage(f.dir), zerolog.Nop(), Options{})
	doc, err := restarted.Undo(ctx, "frame-1")
	require.NoError(t, err)
	assert.Equal(t, geometry.Pt(6000, 0), doc.Drawing.Nodes["n2"].Position)

	_, err = restarted.Undo(ctx, "frame-1")
	assert.ErrorIs(t, err, patch.ErrNothingToUndo)
}

func TestPutResetsHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	_, err := f.editor.Put(ctx, "", frameDocument(t))
	require.NoError(t, err)

	_, err = f.editor.ApplyPatch(ctx, "frame-1", []patch.Operation{patch.AddNode{NodeID: "n3"}})
	require.NoError(t, err)
	_, err = f.editor.Put(ctx, "frame-1", frameDocument(t))
	require.NoError(t, err)

	_, err = f.editor.Undo(ctx, "frame-1")
	assert.ErrorIs(t, err, patch.ErrNothingToUndo)

	restarted := NewEditor(f.repo, NewFileStorage(f.dir), zerolog.Nop(), Options{})
	_, err = restarted.Undo(ctx, "frame-1")
	assert.ErrorIs(t, err, patch.ErrNothingToUndo)
}

func TestSyncedDrawingBecomesPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	d, err := codec.Decode(frameDocument(t))
	require.NoError(t, err)
	d.SyncStatus = models.SyncSynced
	data, err := codec.MarshalStable(d)
	require.NoError(t, err)

	doc, err := f.editor.Put(ctx, "", data)
	require.NoError(t, err)
	assert.Equal(t, models.SyncSynced, doc.Drawing.SyncStatus)

	doc, err = f.editor.ApplyPatch(ctx, "frame-1", []patch.Operation{patch.AddNode{NodeID: "n3"}})
	require.NoError(t, err)
	assert.Equal(t, models.SyncPending, doc.Drawing.SyncStatus)
}

func TestDeleteAndExport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	_, err := f.editor.Put(ctx, "", frameDocument(t))
	require.NoError(t, err)

	exp, err := f.editor.Export(ctx, "frame-1")
	require.NoError(t, err)

	stable, err := os.ReadFile(exp.JSONPath)
	require.NoError(t, err)
	assert.Equal(t, exp.Hash, codec.HashBytes(stable))

	binary, err := os.ReadFile(exp.CBORPath)
	require.NoError(t, err)
	fromCBOR, err := codec.DecodeCBOR(binary)
	require.NoError(t, err)
	fromJSON, err := codec.Decode(stable)
	require.NoError(t, err)
	assert.Equal(t, fromJSON, fromCBOR)

	list, err := f.editor.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, f.editor.Delete(ctx, "frame-1"))
	_, err = f.editor.Get(ctx, "frame-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, f.editor.Delete(ctx, "frame-1"), repository.ErrNotFound)
}

func TestUndoWithUnroundedPositions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	_, err := f.editor.Put(ctx, "", frameDocument(t))
	require.NoError(t, err)

	rounded := geometry.Pt(1.23456, 0).Canonical()

	doc, err := f.editor.ApplyPatch(ctx, "frame-1", []patch.Operation{patch.AddNode{NodeID: "n9", Position: geometry.Pt(1.23456, 0)}})
	require.NoError(t, err)
	assert.Equal(t, rounded, doc.Drawing.Nodes["n9"].Position)

	doc, err = f.editor.Undo(ctx, "frame-1")
	require.NoError(t, err)
	assert.NotContains(t, doc.Drawing.Nodes, "n9")

	doc, err = f.editor.Redo(ctx, "frame-1")
	require.NoError(t, err)
	assert.Equal(t, rounded, doc.Drawing.Nodes["n9"].Position)

	// Старая позиция в сырых координатах совпадает с хранимой после округления.
	_, err = f.editor.ApplyPatch(ctx, "frame-1", []patch.Operation{
		patch.MoveNode{NodeID: "n9", OldPosition: geometry.Pt(1.23456, 0), NewPosition: geometry.Pt(2, 0)},
	})
	require.NoError(t, err)

	_, err = f.editor.ApplyPatch(ctx, "frame-1", []patch.Operation{
		patch.MoveNode{NodeID: "n1", OldPosition: geometry.Pt(0, 0), NewPosition: geometry.Pt(0.00001, 0)},
	})
	require.NoError(t, err)

	doc, err = f.editor.Undo(ctx, "frame-1")
	require.NoError(t, err)
	assert.Equal(t, geometry.Pt(0, 0), doc.Drawing.Nodes["n1"].Position)

	doc, err = f.editor.Undo(ctx, "frame-1")
	require.NoError(t, err)
	assert.Equal(t, rounded, doc.Drawing.Nodes["n9"].Position)

	journal, err := f.editor.Journal(ctx, "frame-1")
	require.NoError(t, err)
	assert.Equal(t, patch.AddNode{NodeID: "n9", Position: rounded}, journal[0].Operation)
}

// failingStore отказывает в записи, пока fail выставлен.
type failingStore struct {
	*repository.Repository
	fail bool
}

func (s *failingStore) Commit(ctx context.Context, d repository.StoredDrawing, entries []repository.JournalEntry) ([]repository.JournalEntry, error) {
	if s.fail {
		return nil, errors.New("disk I/O error")
	}
	return s.Repository.Commit(ctx, d, entries)
}

func TestFailedCommitLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	store := &failingStore{Repository: f.repo}
	editor := NewEditor(store, NewFileStorage(f.dir), zerolog.Nop(), Options{})

	_, err := editor.Put(ctx, "", frameDocument(t))
	require.NoError(t, err)

	store.fail = true
	_, err = editor.ApplyPatch(ctx, "frame-1", []patch.Operation{
		patch.AddNode{NodeID: "n3", Position: geometry.Pt(1, 1)},
		patch.AddNode{NodeID: "n4", Position: geometry.Pt(2, 2)},
	})
	require.EqualError(t, err, "disk I/O error")

	doc, err := editor.Get(ctx, "frame-1")
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Drawing.Version)
	assert.NotContains(t, doc.Drawing.Nodes, "n3")

	journal, err := editor.Journal(ctx, "frame-1")
	require.NoError(t, err)
	assert.Empty(t, journal)

	_, err = editor.Undo(ctx, "frame-1")
	assert.ErrorIs(t, err, patch.ErrNothingToUndo)

	store.fail = false
	_, err = editor.ApplyPatch(ctx, "frame-1", []patch.Operation{patch.AddNode{NodeID: "n3", Position: geometry.Pt(1, 1)}})
	require.NoError(t, err)

	store.fail = true
	_, err = editor.Undo(ctx, "frame-1")
	require.Error(t, err)
	undo, redo := editor.histories["frame-1"].Depth()
	assert.Equal(t, 1, undo)
	assert.Equal(t, 0, redo)

	store.fail = false
	doc, err = editor.Undo(ctx, "frame-1")
	require.NoError(t, err)
	assert.NotContains(t, doc.Drawing.Nodes, "n3")
}
