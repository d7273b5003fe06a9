// Package pages measures the intrinsic size of a document's PDF pages.
//
// PDF bytes belong to the document service; this package only reads them
// through a Source.
package pages

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrPageOutOfRange   = errors.New("page out of range")
	ErrDocumentTooLarge = errors.New("document exceeds size limit")
	ErrInvalidDocument  = errors.New("invalid document id")
)

// Source opens the PDF bytes of a document
type Source interface {
	Open(ctx context.Context, documentID string) (io.ReadSeekCloser, error)
}

var documentIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// DirSource reads <dir>/<documentID>.pdf from a shared volume
type DirSource struct {
	dir     string
	maxSize int64
}

// NewDirSource creates a source rooted at dir. maxSize <= 0 disables the size check.
func NewDirSource(dir string, maxSize int64) *DirSource {
	return &DirSource{dir: dir, maxSize: maxSize}
}

// Open returns the document's PDF file
func (s *DirSource) Open(ctx context.Context, documentID string) (io.ReadSeekCloser, error) {
	if !documentIDPattern.MatchString(documentID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDocument, documentID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(s.dir, documentID+".pdf")
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
		}
		return nil, fmt.Errorf("failed to stat document: %w", err)
	}
	if s.maxSize > 0 && info.Size() > s.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrDocumentTooLarge, info.Size())
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	return f, nil
}
