// Package storage keeps uploaded files on local disk until a job consumes them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JaymarM28/kari-transcriptor/domain"
	"github.com/JaymarM28/kari-transcriptor/domain/entities"
	"github.com/JaymarM28/kari-transcriptor/domain/repositories"
)

var (
	_ repositories.UploadStorage = (*LocalStorage)(nil)
	_ repositories.FileRemover   = (*LocalStorage)(nil)
)

// LocalStorage stores uploads in a single flat directory
type LocalStorage struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewLocalStorage creates the upload directory if needed
func NewLocalStorage(dir string, logger *zap.Logger) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	return &LocalStorage{
		dir:    dir,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// Dir returns the upload directory
func (s *LocalStorage) Dir() string {
	return s.dir
}

// Save writes content to <uuid>_<secure name> and returns the job for it
func (s *LocalStorage) Save(ctx context.Context, filename string, content io.Reader) (*entities.Job, error) {
	ext := entities.ExtensionOf(filename)
	safe := SecureFilename(filename)
	if entities.ExtensionOf(safe) != ext {
		safe = "upload." + ext
	}
	name := s.newID() + "_" + safe
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}

	written, err := io.Copy(f, &contextReader{ctx: ctx, r: content})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if removeErr := os.Remove(path); removeErr != nil {
			s.logger.Warn("Failed to remove partial upload", zap.String("path", path), zap.Error(removeErr))
		}
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	s.logger.Info("Upload stored",
		zap.String("filename", name),
		zap.Int64("bytes", written))

	return entities.NewJob(path, s.now()), nil
}

// Resolve returns the job of a stored upload or domain.ErrUploadNotFound
func (s *LocalStorage) Resolve(ctx context.Context, name string) (*entities.Job, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return nil, domain.ErrUploadNotFound
	}

	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrUploadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat upload: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, domain.ErrUploadNotFound
	}

	return entities.NewJob(path, info.ModTime()), nil
}

// Remove deletes a file owned by a job
func (s *LocalStorage) Remove(path string) error {
	return os.Remove(path)
}

// ExpireUploads removes uploads older than maxAge that keep does not protect
func (s *LocalStorage) ExpireUploads(ctx context.Context, maxAge time.Duration, keep func(name string) bool) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list uploads: %w", err)
	}

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		if keep != nil && keep(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warn("Failed to remove expired upload", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}

	return removed, nil
}

// contextReader stops a copy once the request is gone
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
