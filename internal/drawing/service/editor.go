package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"drawing-core/internal/drawing/codec"
	"drawing-core/internal/drawing/models"
	"drawing-core/internal/drawing/patch"
	"drawing-core/internal/drawing/repository"
	"drawing-core/internal/drawing/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrIDMismatch - id в теле документа не совпадает с id в запросе.
var ErrIDMismatch = errors.New("drawing id does not match")

// Действия журнала.
const (
	ActionApply = "apply"
	ActionUndo  = "undo"
	ActionRedo  = "redo"
	ActionReset = "reset"
)

// Store - хранилище документов и журнала; реализуется repository.Repository.
// Commit пишет документ и его записи журнала атомарно.
type Store interface {
	Commit(ctx context.Context, d repository.StoredDrawing, entries []repository.JournalEntry) ([]repository.JournalEntry, error)
	Get(ctx context.Context, id string) (*repository.StoredDrawing, error)
	List(ctx context.Context) ([]repository.StoredDrawing, error)
	Delete(ctx context.Context, id string) error
	ListPatches(ctx context.Context, drawingID string) ([]repository.JournalEntry, error)
}

type Options struct {
	HistoryDepth   int
	RejectWarnings bool
}

// Document - сохраненный документ вместе с его стабильным представлением.
type Document struct {
	Drawing    models.Drawing
	Stable     []byte
	Hash       codec.Hash
	Violations []validation.Violation
}

// JournalRecord - запись журнала с разобранной операцией.
type JournalRecord struct {
	repository.JournalEntry
	Operation patch.Operation
}

// ============================================================
// Editor
// ============================================================

// Editor сохраняет документы, применяет к ним операции и ведет undo/redo.
// Все изменения одного процесса сериализуются мьютексом.
type Editor struct {
	store Store
	files *FileStorage
	log   zerolog.Logger
	opts  Options
	now   func() time.Time

	mu        sync.Mutex
	histories map[string]*patch.History
}

func NewEditor(store Store, files *FileStorage, log zerolog.Logger, opts Options) *Editor {
	return &Editor{
		store:     store,
		files:     files,
		log:       log.With().Str("component", "service").Logger(),
		opts:      opts,
		now:       time.Now,
		histories: make(map[string]*patch.History),
	}
}

func (e *Editor) gateOptions() []validation.Option {
	return []validation.Option{validation.RejectWarnings(e.opts.RejectWarnings)}
}

// Create заводит пустой документ с новым id.
func (e *Editor) Create(ctx context.Context, name string, page models.Page) (*Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d := models.New(uuid.NewString(), name, page)
	res, err := validation.Check(d, e.gateOptions()...)
	if err != nil {
		return nil, err
	}

	doc, err := e.save(ctx, res.Drawing, res.Violations, 1, nil)
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("drawing", d.ID).Msg("drawing created")
	return doc, nil
}

// Put разбирает и проверяет байты и сохраняет документ целиком. id пустой -
// берется из документа. Версия продолжает счет хранимой, история сбрасывается.
func (e *Editor) Put(ctx context.Context, id string, data []byte) (*Document, error) {
	res, err := validation.ValidateSafe(data, e.gateOptions()...)
	if err != nil {
		return nil, err
	}
	if id != "" && res.Drawing.ID != id {
		return nil, fmt.Errorf("%w: path %q, body %q", ErrIDMismatch, id, res.Drawing.ID)
	}
	id = res.Drawing.ID

	e.mu.Lock()
	defer e.mu.Unlock()

	version := 1
	stored, err := e.store.Get(ctx, id)
	switch {
	case err == nil:
		version = stored.Version + 1
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	var (
		h       *patch.History
		entries []repository.JournalEntry
	)
	if version > 1 {
		if h, err = e.history(ctx, id); err != nil {
			return nil, err
		}
		reset, err := e.entry(id, ActionReset, nil, version)
		if err != nil {
			return nil, err
		}
		entries = append(entries, reset)
	}

	doc, err := e.save(ctx, res.Drawing, res.Violations, version, entries)
	if err != nil {
		return nil, err
	}
	if h != nil {
		h.Reset()
	}
	e.log.Info().Str("drawing", id).Int("version", version).Int("violations", len(res.Violations)).Msg("drawing stored")
	return doc, nil
}

func (e *Editor) Get(ctx context.Context, id string) (*Document, error) {
	stored, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := codec.Decode(stored.Body)
	if err != nil {
		return nil, fmt.Errorf("stored drawing %q is unreadable: %w", id, err)
	}
	return &Document{
		Drawing:    d,
		Stable:     stored.Body,
		Hash:       codec.HashBytes(stored.Body),
		Violations: validation.Validate(d),
	}, nil
}

func (e *Editor) List(ctx context.Context) ([]repository.StoredDrawing, error) {
	return e.store.List(ctx)
}

func (e *Editor) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}
	delete(e.histories, id)
	e.log.Info().Str("drawing", id).Msg("drawing deleted")
	return nil
}

// ============================================================
// Patches
// ============================================================

// ApplyPatch применяет операции одной правкой: либо все, либо ни одной.
// Результат проходит ту же проверку, что и Put, и сохраняется одной версией
// вместе с записями журнала. Позиции в операциях округляются до точности
// хранимого документа.
func (e *Editor) ApplyPatch(ctx context.Context, id string, raw []patch.Operation) (*Document, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty patch", patch.ErrMalformedOperation)
	}
	ops := make([]patch.Operation, len(raw))
	for i, op := range raw {
		ops[i] = patch.Canonical(op)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.history(ctx, id)
	if err != nil {
		return nil, err
	}
	cur, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := patch.ApplyAll(cur.Drawing, ops...)
	if err != nil {
		return nil, err
	}
	res, err := validation.Check(edited(next), e.gateOptions()...)
	if err != nil {
		return nil, err
	}

	version := cur.Drawing.Version + 1
	entries := make([]repository.JournalEntry, 0, len(ops))
	for _, op := range ops {
		entry, err := e.entry(id, ActionApply, op, version)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	doc, err := e.save(ctx, res.Drawing, res.Violations, version, entries)
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		h.Push(op)
	}

	e.log.Debug().Str("drawing", id).Int("ops", len(ops)).Int("version", version).Msg("patch applied")
	return doc, nil
}

// Undo отменяет последнюю примененную операцию документа.
func (e *Editor) Undo(ctx context.Context, id string) (*Document, error) {
	return e.travel(ctx, id, ActionUndo)
}

// Redo повторяет последнюю отмененную операцию.
func (e *Editor) Redo(ctx context.Context, id string) (*Document, error) {
	return e.travel(ctx, id, ActionRedo)
}

func (e *Editor) travel(ctx context.Context, id, action string) (*Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.history(ctx, id)
	if err != nil {
		return nil, err
	}

	var doc *Document
	apply := func(op patch.Operation) error {
		doc, err = e.step(ctx, id, op, action)
		return err
	}

	if action == ActionUndo {
		err = h.Undo(apply)
	} else {
		err = h.Redo(apply)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// step применяет одну операцию к хранимому документу и сохраняет результат
// вместе с записью журнала.
func (e *Editor) step(ctx context.Context, id string, op patch.Operation, action string) (*Document, error) {
	cur, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := patch.Apply(cur.Drawing, op)
	if err != nil {
		return nil, err
	}
	res, err := validation.Check(edited(next), e.gateOptions()...)
	if err != nil {
		return nil, err
	}

	version := cur.Drawing.Version + 1
	entry, err := e.entry(id, action, op, version)
	if err != nil {
		return nil, err
	}
	doc, err := e.save(ctx, res.Drawing, res.Violations, version, []repository.JournalEntry{entry})
	if err != nil {
		return nil, err
	}

	e.log.Debug().Str("drawing", id).Str("action", action).Str("op", string(op.Kind())).Int("version", version).Msg("operation applied")
	return doc, nil
}

// Journal возвращает журнал документа с разобранными операциями.
func (e *Editor) Journal(ctx context.Context, id string) ([]JournalRecord, error) {
	if _, err := e.store.Get(ctx, id); err != nil {
		return nil, err
	}
	entries, err := e.store.ListPatches(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make([]JournalRecord, 0, len(entries))
	for _, entry := range entries {
		rec := JournalRecord{JournalEntry: entry}
		if entry.Action != ActionReset {
			if rec.Operation, err = patch.UnmarshalOperation(entry.Op); err != nil {
				return nil, fmt.Errorf("journal entry %d of %q: %w", entry.Seq, id, err)
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// ============================================================
// Export
// ============================================================

type Export struct {
	JSONPath string
	CBORPath string
	Hash     codec.Hash
}

// Export выгружает документ в стабильном JSON и детерминированном CBOR.
func (e *Editor) Export(ctx context.Context, id string) (*Export, error) {
	doc, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	binary, err := codec.MarshalCBOR(doc.Drawing)
	if err != nil {
		return nil, err
	}

	out := &Export{Hash: doc.Hash}
	if out.JSONPath, err = e.files.SaveFile(id, "drawing.json", doc.Stable); err != nil {
		return nil, fmt.Errorf("export json: %w", err)
	}
	if out.CBORPath, err = e.files.SaveFile(id, "drawing.cbor", binary); err != nil {
		return nil, fmt.Errorf("export cbor: %w", err)
	}
	e.log.Info().Str("drawing", id).Str("hash", out.Hash.String()).Msg("drawing exported")
	return out, nil
}

// ============================================================
// Internals
// ============================================================

// save ставит версию и отметку времени и пишет документ вместе с записями
// журнала. Вызывается под e.mu.
func (e *Editor) save(ctx context.Context, d models.Drawing, violations []validation.Violation, version int, entries []repository.JournalEntry) (*Document, error) {
	d.Version = version
	d.UpdatedAt = e.now().UnixMilli()
	if d.SyncStatus == "" {
		d.SyncStatus = models.SyncLocal
	}

	body, err := codec.MarshalStable(d)
	if err != nil {
		return nil, err
	}
	hash := codec.HashBytes(body)

	_, err = e.store.Commit(ctx, repository.StoredDrawing{
		ID:          d.ID,
		Name:        d.Name,
		Body:        body,
		ContentHash: hash.String(),
		Version:     d.Version,
		SyncStatus:  d.SyncStatus,
		UpdatedAt:   d.UpdatedAt,
	}, entries)
	if err != nil {
		return nil, err
	}
	return &Document{Drawing: d.Stabilized(), Stable: body, Hash: hash, Violations: violations}, nil
}

// edited помечает синхронизированный документ как ожидающий отправки.
func edited(d models.Drawing) models.Drawing {
	if d.SyncStatus == models.SyncSynced {
		d.SyncStatus = models.SyncPending
	}
	return d
}

// entry готовит запись журнала; ID и Seq назначает хранилище.
func (e *Editor) entry(id, action string, op patch.Operation, version int) (repository.JournalEntry, error) {
	entry := repository.JournalEntry{
		DrawingID: id,
		Action:    action,
		Op:        []byte("{}"),
		Version:   version,
		AppliedAt: e.now().UnixMilli(),
	}
	if op != nil {
		data, err := patch.MarshalOperation(op)
		if err != nil {
			return repository.JournalEntry{}, err
		}
		entry.Kind = string(op.Kind())
		entry.Op = data
	}
	return entry, nil
}

// history возвращает историю документа, при первом обращении
// восстанавливая ее из журнала. Вызывается под e.mu.
func (e *Editor) history(ctx context.Context, id string) (*patch.History, error) {
	if h, ok := e.histories[id]; ok {
		return h, nil
	}
	if _, err := e.store.Get(ctx, id); err != nil {
		return nil, err
	}

	entries, err := e.store.ListPatches(ctx, id)
	if err != nil {
		return nil, err
	}

	h := patch.NewHistory(e.opts.HistoryDepth)
	replayed := func(patch.Operation) error { return nil }
	for _, entry := range entries {
		switch entry.Action {
		case ActionApply:
			op, err := patch.UnmarshalOperation(entry.Op)
			if err != nil {
				return nil, fmt.Errorf("replay journal of %q: %w", id, err)
			}
			h.Push(op)
		case ActionUndo:
			_ = h.Undo(replayed)
		case ActionRedo:
			_ = h.Redo(replayed)
		case ActionReset:
			h.Reset()
		}
	}

	e.histories[id] = h
	undo, redo := h.Depth()
	e.log.Debug().Str("drawing", id).Int("undo", undo).Int("redo", redo).Msg("history restored")
	return h, nil
}
