package pages

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/signflow/signflow-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, dir, id string, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".pdf"), []byte(content), 0o600))
}

func TestDirSource_Open(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "doc-1", "%PDF-1.7 fake")
	src := NewDirSource(dir, 1024)

	rc, err := src.Open(context.Background(), "doc-1")
	require.NoError(t, err)
	defer rc.Close()

	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 fake", string(b))
}

func TestDirSource_Errors(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "big", "0123456789")
	src := NewDirSource(dir, 5)

	_, err := src.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	_, err = src.Open(context.Background(), "big")
	assert.ErrorIs(t, err, ErrDocumentTooLarge)

	_, err = src.Open(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidDocument)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Open(ctx, "big")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMeasurer_CachesAndRanges(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "doc-1", "%PDF")

	calls := 0
	read := func(rs io.ReadSeeker) ([]Dim, error) {
		calls++
		return []Dim{{Width: 612, Height: 792}, {Width: 842, Height: 595}}, nil
	}
	m := NewMeasurer(NewDirSource(dir, 0), read, logger.Nop())
	ctx := context.Background()

	dims, err := m.PageDims(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, dims, 2)

	page2, err := m.Page(ctx, "doc-1", 2)
	require.NoError(t, err)
	assert.Equal(t, Dim{Width: 842, Height: 595}, page2)
	assert.Equal(t, 1, calls, "second lookup is served from cache")

	_, err = m.Page(ctx, "doc-1", 3)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
	_, err = m.Page(ctx, "doc-1", 0)
	assert.ErrorIs(t, err, ErrPageOutOfRange)

	m.Forget("doc-1")
	_, err = m.PageDims(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestMeasurer_PropagatesErrors(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "corrupt", "not a pdf")

	read := func(rs io.ReadSeeker) ([]Dim, error) { return nil, errors.New("boom") }
	m := NewMeasurer(NewDirSource(dir, 0), read, logger.Nop())

	_, err := m.PageDims(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	_, err = m.PageDims(context.Background(), "corrupt")
	assert.EqualError(t, err, "boom")
}

func TestPDFCPUDims_RejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "junk", "definitely not a pdf")

	m := NewMeasurer(NewDirSource(dir, 0), nil, logger.Nop())
	_, err := m.PageDims(context.Background(), "junk")
	assert.Error(t, err)
}
