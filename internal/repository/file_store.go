// Package repository holds the read side of the exporter's inputs.
package repository

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"

	"nimbus-benchmark-exporter/internal/domain"
)

// maxFileSize bounds a single read of the benchmark file. Real files are a
// few kilobytes.
const maxFileSize = 16 << 20

var ErrFileTooLarge = errors.New("benchmark file exceeds size limit")

// FileStore reads the benchmark metrics file from the local filesystem. The
// file is re-read whole on every call; nothing is cached here.
type FileStore struct {
	path string
}

var _ domain.BenchmarkSource = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Read returns the file contents. An absent file yields an error matching
// fs.ErrNotExist.
func (s *FileStore) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxFileSize {
		return nil, errors.Wrapf(ErrFileTooLarge, "%s is %d bytes", s.path, info.Size())
	}
	return os.ReadFile(s.path)
}

func (s *FileStore) Location() string { return s.path }
