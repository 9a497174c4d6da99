package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound - записи с таким id нет.
var ErrNotFound = errors.New("not found")

// ============================================================
// Records
// ============================================================

// StoredDrawing - строка таблицы drawings. Body - стабильный JSON документа.
type StoredDrawing struct {
	ID          string
	Name        string
	Body        []byte
	ContentHash string
	Version     int
	SyncStatus  string
	UpdatedAt   int64
	CreatedAt   string
}

// JournalEntry - запись журнала изменений. Op - операция в JSON-форме,
// Action - apply, undo или redo.
type JournalEntry struct {
	ID        string
	DrawingID string
	Seq       int
	Action    string
	Kind      string
	Op        []byte
	Version   int
	AppliedAt int64
}

// ============================================================
// SQLite Repository
// ============================================================

type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

func New(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{db: db, log: log.With().Str("component", "repository").Logger()}
}

// Init применяет встроенные миграции по порядку имен.
func (r *Repository) Init(ctx context.Context) error {
	if err := r.runMigrations(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

// Ping проверяет соединение, для readiness-пробы.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Save вставляет документ или заменяет существующий с тем же id.
func (r *Repository) Save(ctx context.Context, d StoredDrawing) error {
	return saveDrawing(ctx, r.db, d)
}

// Commit сохраняет документ и дописывает записи журнала одной транзакцией:
// либо видно и то и другое, либо ничего. Возвращает записи с ID и Seq.
func (r *Repository) Commit(ctx context.Context, d StoredDrawing, entries []JournalEntry) ([]JournalEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := saveDrawing(ctx, tx, d); err != nil {
		return nil, err
	}
	out := make([]JournalEntry, 0, len(entries))
	for _, e := range entries {
		e, err := appendEntry(ctx, tx, e)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit drawing %q: %w", d.ID, err)
	}
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*StoredDrawing, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT id, name, body, content_hash, version, sync_status, updated_at, created_at
        FROM drawings
        WHERE id = ?
    `, id)

	var d StoredDrawing
	if err := row.Scan(&d.ID, &d.Name, &d.Body, &d.ContentHash, &d.Version, &d.SyncStatus, &d.UpdatedAt, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("drawing %q: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &d, nil
}

// List возвращает документы без тела, по возрастанию id.
func (r *Repository) List(ctx context.Context) ([]StoredDrawing, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, name, content_hash, version, sync_status, updated_at, created_at
        FROM drawings
        ORDER BY id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredDrawing
	for rows.Next() {
		var d StoredDrawing
		if err := rows.Scan(&d.ID, &d.Name, &d.ContentHash, &d.Version, &d.SyncStatus, &d.UpdatedAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Delete удаляет документ вместе с журналом.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM drawings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete drawing %q: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("drawing %q: %w", id, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM drawing_patches WHERE drawing_id = ?`, id); err != nil {
		return fmt.Errorf("delete journal of %q: %w", id, err)
	}
	return tx.Commit()
}

// ============================================================
// Journal
// ============================================================

// AppendPatch дописывает запись в конец журнала документа. ID и Seq
// назначаются здесь, заполненная запись возвращается.
func (r *Repository) AppendPatch(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return JournalEntry{}, err
	}
	defer tx.Rollback()

	e, err = appendEntry(ctx, tx, e)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return JournalEntry{}, err
	}
	return e, nil
}

// ListPatches возвращает журнал документа в порядке записи.
func (r *Repository) ListPatches(ctx context.Context, drawingID string) ([]JournalEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, drawing_id, seq, action, kind, op, version, applied_at
        FROM drawing_patches
        WHERE drawing_id = ?
        ORDER BY seq
    `, drawingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.DrawingID, &e.Seq, &e.Action, &e.Kind, &e.Op, &e.Version, &e.AppliedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ============================================================
// Statements
// ============================================================

// querier - общее у *sql.DB и *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func saveDrawing(ctx context.Context, q querier, d StoredDrawing) error {
	_, err := q.ExecContext(ctx, `
        INSERT INTO drawings (id, name, body, content_hash, version, sync_status, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            body = excluded.body,
            content_hash = excluded.content_hash,
            version = excluded.version,
            sync_status = excluded.sync_status,
            updated_at = excluded.updated_at
    `, d.ID, d.Name, d.Body, d.ContentHash, d.Version, d.SyncStatus, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save drawing %q: %w", d.ID, err)
	}
	return nil
}

// appendEntry назначает записи следующий Seq документа и вставляет ее.
func appendEntry(ctx context.Context, q querier, e JournalEntry) (JournalEntry, error) {
	var last int
	if err := q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM drawing_patches WHERE drawing_id = ?`, e.DrawingID,
	).Scan(&last); err != nil {
		return JournalEntry{}, err
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Seq = last + 1

	_, err := q.ExecContext(ctx, `
        INSERT INTO drawing_patches (id, drawing_id, seq, action, kind, op, version, applied_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `, e.ID, e.DrawingID, e.Seq, e.Action, e.Kind, e.Op, e.Version, e.AppliedAt)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("append patch to %q: %w", e.DrawingID, err)
	}
	return e, nil
}

// ============================================================
// Migrations
// ============================================================

func (r *Repository) runMigrations(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	slices.Sort(names)

	for _, name := range names {
		data, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := r.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		r.log.Debug().Str("migration", name).Msg("migration applied")
	}
	return nil
}

// OpenSQLite открывает sqlite по указанному пути.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
