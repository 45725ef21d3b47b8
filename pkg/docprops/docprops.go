// Package docprops reads and writes custom document properties of DOCX
// files. It treats a document as an OPC ZIP package and merges property
// values from the several places word processors stash them: the typed
// docProps/custom.xml part, document variables in word/settings.xml, and
// a raw re-parse of custom.xml for values the typed reader cannot map.
package docprops

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Store provides property access to a single DOCX file on disk.
type Store struct {
	path string
	log  *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for diagnostic output. The default
// discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// Open validates that path names an existing .docx file and returns a
// Store for it. The archive itself is opened lazily by each operation,
// so a truncated or non-ZIP file surfaces as CorruptArchiveError there,
// not here.
func Open(path string, opts ...Option) (*Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, NewNotFoundError(path, err)
	}
	if info.IsDir() {
		return nil, NewFormatError(path, "is a directory")
	}
	if !strings.EqualFold(filepath.Ext(path), ".docx") {
		return nil, NewFormatError(path, "expected a .docx file")
	}
	s := &Store{path: path, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the document path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// archive wraps an open DOCX package and indexes its parts by name.
type archive struct {
	zr    *zip.ReadCloser
	parts map[string]*zip.File
}

// openArchive opens the package and verifies it looks like a DOCX: a
// readable ZIP carrying word/document.xml.
func openArchive(path string) (*archive, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, NewCorruptArchiveError(path, err)
	}
	parts := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		parts[f.Name] = f
	}
	if _, ok := parts[documentPart]; !ok {
		zr.Close()
		return nil, NewCorruptArchiveError(path, nil)
	}
	return &archive{zr: zr, parts: parts}, nil
}

func (a *archive) part(name string) (*zip.File, bool) {
	f, ok := a.parts[name]
	return f, ok
}

// readPart returns the raw bytes of a named part.
func (a *archive) readPart(name string) ([]byte, error) {
	f, ok := a.parts[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (a *archive) Close() error {
	return a.zr.Close()
}
