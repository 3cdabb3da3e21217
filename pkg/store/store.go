package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Prompt kinds.
const (
	// PromptTemplate is a section prompt describing a template's structure.
	PromptTemplate = "template"
	// PromptConversion is an optional instruction prompt applied after structuring.
	PromptConversion = "conversion"
)

// ErrNotFound is returned when a template or prompt does not exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS templates (
	id         TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	client     TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL,
	data       BLOB NOT NULL,
	digest     TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE (owner, client, name)
);
CREATE TABLE IF NOT EXISTS prompts (
	id         TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	client     TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL,
	kind       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE (owner, client, name, kind)
);`

// Template is a stored style template. Digest changes whenever Data does.
type Template struct {
	ID        string
	Owner     string
	Client    string
	Name      string
	Data      []byte
	Digest    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists templates and prompts in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (s *Store, err error) {
	if path != ":memory:" {
		err = os.MkdirAll(filepath.Dir(path), 0750)
		if err != nil {
			err = errors.Wrapf(err, "failed to create database directory for %s", path)
			return s, err
		}
	}

	var db *sql.DB
	db, err = sql.Open("sqlite", path)
	if err != nil {
		err = errors.Wrap(err, "failed to open database")
		return s, err
	}
	// One connection keeps ":memory:" databases and pragmas consistent.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		_, err = db.ExecContext(ctx, pragma)
		if err != nil {
			_ = db.Close()
			err = errors.Wrapf(err, "failed to set pragma: %s", pragma)
			return s, err
		}
	}

	_, err = db.ExecContext(ctx, schema)
	if err != nil {
		_ = db.Close()
		err = errors.Wrap(err, "failed to apply schema")
		return s, err
	}

	s = &Store{db: db, now: time.Now}
	return s, err
}

// Close closes the database.
func (s *Store) Close() (err error) {
	err = s.db.Close()
	return err
}

// Digest returns the hex sha256 of template bytes.
func Digest(data []byte) (digest string) {
	sum := sha256.Sum256(data)
	digest = hex.EncodeToString(sum[:])
	return digest
}

// SaveTemplate stores template bytes, replacing any template with the same owner,
// client and name. The ID and creation time of a replaced template are kept.
func (s *Store) SaveTemplate(ctx context.Context, owner, client, name string, data []byte) (tpl *Template, err error) {
	if owner == "" || name == "" {
		err = errors.New("owner and template name are required")
		return tpl, err
	}
	if len(data) == 0 {
		err = errors.Errorf("template %q is empty", name)
		return tpl, err
	}

	now := s.now().UnixNano()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO templates (id, owner, client, name, data, digest, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner, client, name) DO UPDATE SET
			data = excluded.data,
			digest = excluded.digest,
			updated_at = excluded.updated_at`,
		uuid.NewString(), owner, client, name, data, Digest(data), now, now)
	if err != nil {
		err = errors.Wrapf(err, "failed to save template %q", name)
		return tpl, err
	}

	tpl, err = s.FetchTemplate(ctx, owner, client, name)
	return tpl, err
}

// FetchTemplate loads a template. It returns ErrNotFound when there is none.
func (s *Store) FetchTemplate(ctx context.Context, owner, client, name string) (tpl *Template, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, client, name, data, digest, created_at, updated_at
		FROM templates WHERE owner = ? AND client = ? AND name = ?`,
		owner, client, name)

	var created, updated int64
	t := &Template{}
	err = row.Scan(&t.ID, &t.Owner, &t.Client, &t.Name, &t.Data, &t.Digest, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		err = errors.Wrapf(ErrNotFound, "template %q", name)
		return tpl, err
	}
	if err != nil {
		err = errors.Wrapf(err, "failed to fetch template %q", name)
		return tpl, err
	}

	t.CreatedAt = time.Unix(0, created)
	t.UpdatedAt = time.Unix(0, updated)
	tpl = t
	return tpl, err
}

// ListTemplates returns the owner's templates for a client, without their bytes,
// ordered by name.
func (s *Store) ListTemplates(ctx context.Context, owner, client string) (templates []Template, err error) {
	var rows *sql.Rows
	rows, err = s.db.QueryContext(ctx, `
		SELECT id, owner, client, name, digest, created_at, updated_at
		FROM templates WHERE owner = ? AND client = ? ORDER BY name`,
		owner, client)
	if err != nil {
		err = errors.Wrap(err, "failed to list templates")
		return templates, err
	}
	defer rows.Close()

	for rows.Next() {
		var t Template
		var created, updated int64
		err = rows.Scan(&t.ID, &t.Owner, &t.Client, &t.Name, &t.Digest, &created, &updated)
		if err != nil {
			err = errors.Wrap(err, "failed to scan template")
			return templates, err
		}
		t.CreatedAt = time.Unix(0, created)
		t.UpdatedAt = time.Unix(0, updated)
		templates = append(templates, t)
	}

	err = rows.Err()
	if err != nil {
		err = errors.Wrap(err, "failed to list templates")
		return templates, err
	}
	return templates, err
}

// SavePrompt stores a prompt, replacing one with the same owner, client, name and kind.
func (s *Store) SavePrompt(ctx context.Context, owner, client, name, kind, content string) (err error) {
	switch kind {
	case PromptTemplate, PromptConversion:
	default:
		err = errors.Errorf("unknown prompt kind %q", kind)
		return err
	}

	now := s.now().UnixNano()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO prompts (id, owner, client, name, kind, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner, client, name, kind) DO UPDATE SET
			content = excluded.content,
			updated_at = excluded.updated_at`,
		uuid.NewString(), owner, client, name, kind, content, now, now)
	if err != nil {
		err = errors.Wrapf(err, "failed to save prompt %q", name)
		return err
	}
	return err
}

// LoadPrompt returns a prompt's content. It returns ErrNotFound when there is none.
func (s *Store) LoadPrompt(ctx context.Context, owner, client, name, kind string) (content string, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT content FROM prompts
		WHERE owner = ? AND client = ? AND name = ? AND kind = ?`,
		owner, client, name, kind).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		err = errors.Wrapf(ErrNotFound, "prompt %q", name)
		return content, err
	}
	if err != nil {
		err = errors.Wrapf(err, "failed to load prompt %q", name)
		return content, err
	}
	return content, err
}
