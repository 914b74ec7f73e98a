// Package store persists reviewed field mappings as named templates in SQLite, so a form only
// has to be mapped once.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/a3tai/mcp-pdf-automap/internal/automap"
)

var (
	// ErrNotFound is returned when no template matches the id or name
	ErrNotFound = errors.New("template not found")
	// ErrNameTaken is returned when saving a template under an existing name
	ErrNameTaken = errors.New("template name already exists")
)

// Template is a saved mapping for one form
type Template struct {
	ID                string                `json:"id" yaml:"id"`
	Name              string                `json:"name" yaml:"name"`
	SourceFile        string                `json:"sourceFile,omitempty" yaml:"sourceFile,omitempty"`
	PageCount         int                   `json:"pageCount" yaml:"pageCount"`
	Fields            []automap.MappedField `json:"fields" yaml:"fields"`
	UnmappedPDFFields []string              `json:"unmappedPDFFields" yaml:"unmappedPDFFields"`
	Warnings          []string              `json:"warnings" yaml:"warnings"`
	ReviewCount       int                   `json:"reviewCount" yaml:"reviewCount"`
	CreatedAt         time.Time             `json:"createdAt" yaml:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt" yaml:"updatedAt"`
}

// Summary is the list view of a template
type Summary struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	SourceFile  string    `json:"sourceFile,omitempty" yaml:"sourceFile,omitempty"`
	FieldCount  int       `json:"fieldCount" yaml:"fieldCount"`
	ReviewCount int       `json:"reviewCount" yaml:"reviewCount"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Store is a SQLite-backed template repository
type Store struct {
	db        *sql.DB
	debugMode bool
	now       func() time.Time
}

// Open opens (or creates) the database at path and brings its schema up to date.
// ":memory:" gives a private in-memory store.
func Open(path string, debugMode bool) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open template store: %w", err)
	}
	// one connection keeps an in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	s := &Store{db: db, debugMode: debugMode, now: time.Now}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}

	if debugMode {
		log.Printf("[store] opened template store at %s", path)
	}
	return s, nil
}

// Close releases the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores a mapping result under a new name
func (s *Store) Save(ctx context.Context, name, sourceFile string, pageCount int, result *automap.Result) (*Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("template name is required")
	}
	if result == nil {
		return nil, fmt.Errorf("mapping result is required")
	}

	now := s.now().UTC()
	t := &Template{
		ID:                uuid.NewString(),
		Name:              name,
		SourceFile:        sourceFile,
		PageCount:         pageCount,
		Fields:            nonNilFields(result.Fields),
		UnmappedPDFFields: nonNil(result.UnmappedPDFFields),
		Warnings:          nonNil(result.Warnings),
		ReviewCount:       result.ReviewCount(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	fieldsJSON, unmappedJSON, warningsJSON, err := encodeTemplate(t)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO templates (id, name, source_file, page_count, fields_json, unmapped_json, warnings_json,
			review_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.SourceFile, t.PageCount, fieldsJSON, unmappedJSON, warningsJSON,
		t.ReviewCount, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrNameTaken, name)
		}
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	if s.debugMode {
		log.Printf("[store] saved template %s (%s) with %d fields", t.Name, t.ID, len(t.Fields))
	}
	return t, nil
}

// Get loads a template by id, or by name when no id matches
func (s *Store) Get(ctx context.Context, idOrName string) (*Template, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, source_file, page_count, fields_json, unmapped_json, warnings_json,
			review_count, created_at, updated_at
		FROM templates WHERE id = ? OR name = ?
		ORDER BY CASE WHEN id = ? THEN 0 ELSE 1 END
		LIMIT 1`, idOrName, idOrName, idOrName)

	var (
		t                                      Template
		fieldsJSON, unmappedJSON, warningsJSON string
		createdAt, updatedAt                   string
	)
	err := row.Scan(&t.ID, &t.Name, &t.SourceFile, &t.PageCount, &fieldsJSON, &unmappedJSON, &warningsJSON,
		&t.ReviewCount, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, idOrName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}

	if err := json.Unmarshal([]byte(fieldsJSON), &t.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode template fields: %w", err)
	}
	if err := json.Unmarshal([]byte(unmappedJSON), &t.UnmappedPDFFields); err != nil {
		return nil, fmt.Errorf("failed to decode unmapped fields: %w", err)
	}
	if err := json.Unmarshal([]byte(warningsJSON), &t.Warnings); err != nil {
		return nil, fmt.Errorf("failed to decode warnings: %w", err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns every template, most recently updated first
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, source_file, fields_json, review_count, updated_at
		FROM templates ORDER BY updated_at DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0)
	for rows.Next() {
		var (
			sum                   Summary
			fieldsJSON, updatedAt string
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.SourceFile, &fieldsJSON, &sum.ReviewCount, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		var fields []json.RawMessage
		if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
			return nil, fmt.Errorf("failed to decode template fields: %w", err)
		}
		sum.FieldCount = len(fields)
		if sum.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// UpdateFields replaces the mapped fields of a template after manual review. Each field's
// NeedsReview flag is recomputed from its confidence.
func (s *Store) UpdateFields(ctx context.Context, id string, fields []automap.MappedField) (*Template, error) {
	fields = append([]automap.MappedField{}, fields...)
	for i := range fields {
		fields[i].NeedsReview = fields[i].Confidence < automap.ReviewThreshold
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode template fields: %w", err)
	}

	review := (&automap.Result{Fields: fields}).ReviewCount()
	res, err := s.db.ExecContext(ctx, `
		UPDATE templates SET fields_json = ?, review_count = ?, updated_at = ? WHERE id = ?`,
		string(fieldsJSON), review, formatTime(s.now().UTC()), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.Get(ctx, id)
}

// Delete removes a template by id
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func encodeTemplate(t *Template) (fields, unmapped, warnings string, err error) {
	f, err := json.Marshal(t.Fields)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode template fields: %w", err)
	}
	u, err := json.Marshal(t.UnmappedPDFFields)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode unmapped fields: %w", err)
	}
	w, err := json.Marshal(t.Warnings)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode warnings: %w", err)
	}
	return string(f), string(u), string(w), nil
}

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilFields(f []automap.MappedField) []automap.MappedField {
	if f == nil {
		return []automap.MappedField{}
	}
	return f
}
