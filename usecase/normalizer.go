package usecase

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/JaymarM28/kari-transcriptor/domain"
	"github.com/JaymarM28/kari-transcriptor/domain/entities"
	"github.com/JaymarM28/kari-transcriptor/domain/repositories"
	"github.com/JaymarM28/kari-transcriptor/internal/audio"
)

// CanonicalAudio is the WAV file a job works on
type CanonicalAudio struct {
	Path string
	// Owned is true when Path is a temporary file the job must release.
	Owned bool
}

// Normalizer turns an uploaded source into the canonical waveform
type Normalizer struct {
	codec   repositories.AudioCodec
	tempDir string
	logger  *zap.Logger
}

// NewNormalizer creates a new normalizer
func NewNormalizer(codec repositories.AudioCodec, tempDir string, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		codec:   codec,
		tempDir: tempDir,
		logger:  logger,
	}
}

// Normalize converts the job source to WAV unless it already is one. The
// returned CanonicalAudio is set even on failure so a created temp file can be released.
func (n *Normalizer) Normalize(ctx context.Context, job *entities.Job, emitter *ProgressEmitter) (CanonicalAudio, error) {
	if job.IsCanonical() {
		return CanonicalAudio{Path: job.SourcePath}, nil
	}

	f, err := os.CreateTemp(n.tempDir, "kari-converted-*.wav")
	if err != nil {
		return CanonicalAudio{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	canonical := CanonicalAudio{Path: f.Name(), Owned: true}
	if err := f.Close(); err != nil {
		return canonical, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := emitter.Emit(domain.ProgressEvent{
		Status:   domain.StatusConverting,
		Message:  "Converting audio file...",
		Progress: domain.ProgressConverting,
	}); err != nil {
		return canonical, err
	}

	n.logger.Info("Converting upload",
		zap.String("jobID", job.ID),
		zap.String("extension", job.Extension))

	if err := n.codec.Convert(ctx, job.SourcePath, canonical.Path); err != nil {
		if ctx.Err() != nil {
			return canonical, ctx.Err()
		}
		return canonical, err
	}

	return canonical, emitter.Emit(domain.ProgressEvent{
		Status:   domain.StatusConverted,
		Message:  "Conversion completed",
		Progress: domain.ProgressConverted,
	})
}

// Load decodes the canonical file
func (n *Normalizer) Load(canonical CanonicalAudio, emitter *ProgressEmitter) (*audio.Waveform, error) {
	if err := emitter.Emit(domain.ProgressEvent{
		Status:   domain.StatusLoading,
		Message:  "Loading audio file...",
		Progress: domain.ProgressLoading,
	}); err != nil {
		return nil, err
	}

	w, err := n.codec.Load(canonical.Path)
	if err != nil {
		return nil, err
	}

	n.logger.Info("Audio loaded",
		zap.Int("sampleRate", w.SampleRate),
		zap.Int("durationMs", w.DurationMs()))
	return w, nil
}
