package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-automap/internal/automap"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult() *automap.Result {
	index := 0
	return &automap.Result{
		Fields: []automap.MappedField{
			{ID: "field_1", Type: automap.KindText, Page: 1, X: 72, Y: 50, Width: 200, Height: 20,
				PDFFieldName: "fname", EmployeeDataSource: "firstName", Label: "First Name", Confidence: 0.95},
			{ID: "field_2", Type: automap.KindText, Page: 1, X: 300, Y: 50, Width: 14, Height: 20,
				PDFFieldName: "ssn_1", EmployeeDataSource: "ssn", Transform: automap.TransformSplitSSN,
				TransformIndex: &index, Label: "SSN Digit 1", Confidence: 0.6, NeedsReview: true},
		},
		UnmappedPDFFields:   []string{"misc"},
		MissingEmployeeData: []string{},
		Warnings:            []string{"check SSN"},
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	saved, err := s.Save(ctx, " W-4 2024 ", "w4.pdf", 4, sampleResult())
	require.NoError(t, err)
	_, err = uuid.Parse(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "W-4 2024", saved.Name)
	assert.Equal(t, 1, saved.ReviewCount)

	byID, err := s.Get(ctx, saved.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(saved, byID); diff != "" {
		t.Errorf("Get(id) mismatch (-saved +loaded):\n%s", diff)
	}

	byName, err := s.Get(ctx, "W-4 2024")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, byName.ID)
	require.NotNil(t, byName.Fields[1].TransformIndex)
	assert.Equal(t, 0, *byName.Fields[1].TransformIndex)
	assert.Equal(t, automap.TransformSplitSSN, byName.Fields[1].Transform)
}

func TestStore_SaveValidation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "  ", "", 0, sampleResult())
	assert.Error(t, err)

	_, err = s.Save(ctx, "empty", "", 0, nil)
	assert.Error(t, err)

	_, err = s.Save(ctx, "dup", "", 1, sampleResult())
	require.NoError(t, err)
	_, err = s.Save(ctx, "dup", "", 1, sampleResult())
	assert.True(t, errors.Is(err, ErrNameTaken))
}

func TestStore_EmptyResultRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	saved, err := s.Save(ctx, "blank", "", 1, &automap.Result{})
	require.NoError(t, err)

	got, err := s.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, []automap.MappedField{}, got.Fields)
	assert.Equal(t, []string{}, got.UnmappedPDFFields)
	assert.Equal(t, []string{}, got.Warnings)
}

func TestStore_ListOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := s.Save(ctx, "first", "a.pdf", 1, sampleResult())
	require.NoError(t, err)
	_, err = s.Save(ctx, "second", "b.pdf", 1, &automap.Result{})
	require.NoError(t, err)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Name)
	assert.Equal(t, 0, list[0].FieldCount)
	assert.Equal(t, "first", list[1].Name)
	assert.Equal(t, 2, list[1].FieldCount)
	assert.Equal(t, 1, list[1].ReviewCount)

	// reviewing the first template moves it to the top
	fields := sampleResult().Fields
	fields[1].Confidence = 0.9
	updated, err := s.UpdateFields(ctx, first.ID, fields)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.ReviewCount)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	list, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", list[0].Name)
}

func TestStore_UpdateFieldsDerivesReviewFlag(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	saved, err := s.Save(ctx, "w4", "w4.pdf", 1, sampleResult())
	require.NoError(t, err)

	fields := sampleResult().Fields
	fields[0].Confidence = 0.4 // flag left false
	fields[1].Confidence = 0.8 // flag left true
	updated, err := s.UpdateFields(ctx, saved.ID, fields)
	require.NoError(t, err)

	assert.True(t, updated.Fields[0].NeedsReview)
	assert.False(t, updated.Fields[1].NeedsReview)
	assert.Equal(t, 1, updated.ReviewCount)
	assert.False(t, fields[0].NeedsReview, "caller's slice is not modified")
}

func TestStore_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.UpdateFields(ctx, "nope", nil)
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.True(t, errors.Is(s.Delete(ctx, "nope"), ErrNotFound))

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestStore_Delete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	saved, err := s.Save(ctx, "gone", "", 1, sampleResult())
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, saved.ID))

	_, err = s.Get(ctx, saved.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_FilePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.db")

	s, err := Open(path, true)
	require.NoError(t, err)
	saved, err := s.Save(context.Background(), "i9", "i9.pdf", 2, sampleResult())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, false)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(context.Background(), "i9")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
}

func TestStore_Migrations(t *testing.T) {
	s := openTestStore(t)

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	require.NoError(t, s.MigrateDown())
	version, _, err = s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	require.NoError(t, s.MigrateUp())
	version, _, err = s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}
