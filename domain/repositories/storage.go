package repositories

import (
	"context"
	"io"
	"time"

	"github.com/JaymarM28/kari-transcriptor/domain/entities"
)

// UploadStorage keeps uploaded sources until a job consumes them
type UploadStorage interface {
	// Save stores the content under a unique name derived from filename and returns the job for it.
	Save(ctx context.Context, filename string, content io.Reader) (*entities.Job, error)
	// Resolve returns the job of a previously stored file.
	Resolve(ctx context.Context, name string) (*entities.Job, error)
	// ExpireUploads removes stored files older than maxAge, skipping the ones in keep.
	ExpireUploads(ctx context.Context, maxAge time.Duration, keep func(name string) bool) (int, error)
}

// FileRemover releases a file owned by a job
type FileRemover interface {
	Remove(path string) error
}

// FileRemoverFunc adapts a function to FileRemover
type FileRemoverFunc func(path string) error

func (f FileRemoverFunc) Remove(path string) error {
	return f(path)
}
