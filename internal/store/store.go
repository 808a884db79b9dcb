// Package store persists session records as JSON files on local disk.
// Files are replaced atomically, so a target path never holds a partial record.
// Paths ending in ".gz" are gzip-compressed.
package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Guliveer/rocemon/internal/models"
)

// FileStore writes and reads session records.
type FileStore struct {
	logger *zap.Logger
}

// New creates a file store. The logger may be nil.
func New(logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{logger: logger.Named("store")}
}

// Save writes record to path, overwriting any existing file.
// Parent directories are created if needed.
func (s *FileStore) Save(ctx context.Context, record *models.Record, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(record, isCompressed(path))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := atomicWrite(path, data, 0640); err != nil {
		return err
	}
	s.logger.Info("Saved session record",
		zap.String("path", path),
		zap.Int("samples", len(record.DataPoints)))
	return nil
}

// Load reads a record previously written by Save.
func Load(path string) (*models.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if isCompressed(path) {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var record models.Record
	if err := json.NewDecoder(r).Decode(&record); err != nil {
		return nil, fmt.Errorf("parsing record %s: %w", path, err)
	}
	return &record, nil
}

// Encode serializes record as indented JSON, gzip-compressed when compress is set.
func Encode(record *models.Record, compress bool) ([]byte, error) {
	return encode(record, compress)
}

func encode(record *models.Record, compress bool) ([]byte, error) {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling record: %w", err)
	}
	if !compress {
		return data, nil
	}
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := gz.Write(data); err != nil {
		return nil, fmt.Errorf("compressing record: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("finalizing gzip compression: %w", err)
	}
	return buf.Bytes(), nil
}

func isCompressed(path string) bool {
	return strings.HasSuffix(path, ".gz")
}

// atomicWrite writes data to a temp file in the target directory and renames
// it over path.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename to final path: %w", err)
	}

	success = true
	return nil
}
