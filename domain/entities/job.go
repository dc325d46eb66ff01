package entities

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// CanonicalExtension is the extension of the waveform format the pipeline works on.
const CanonicalExtension = "wav"

// Job represents one transcription run over an uploaded file
type Job struct {
	ID         string    `json:"id"`
	SourcePath string    `json:"source_path"`
	Extension  string    `json:"extension"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewJob builds a job from the stored file path. The job ID is the stored filename.
func NewJob(sourcePath string, createdAt time.Time) *Job {
	id := filepath.Base(sourcePath)
	return &Job{
		ID:         id,
		SourcePath: sourcePath,
		Extension:  ExtensionOf(id),
		CreatedAt:  createdAt,
	}
}

// IsCanonical reports whether the source is already in the canonical waveform format
func (j *Job) IsCanonical() bool {
	return j.Extension == CanonicalExtension
}

// Validate validates the job data
func (j *Job) Validate() error {
	if j.ID == "" {
		return errors.New("job id is required")
	}
	if j.SourcePath == "" {
		return errors.New("source path is required")
	}
	if j.Extension == "" {
		return errors.New("file extension is required")
	}
	return nil
}

// ExtensionOf returns the lower-cased extension of name without the leading dot.
func ExtensionOf(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}
