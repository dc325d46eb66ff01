package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JaymarM28/kari-transcriptor/domain"
	"github.com/JaymarM28/kari-transcriptor/domain/entities"
	"github.com/JaymarM28/kari-transcriptor/domain/repositories"
	"github.com/JaymarM28/kari-transcriptor/internal/audio"
)

// Worker transcribes one segment at a time, retrying once when the service fails
type Worker struct {
	codec        repositories.AudioCodec
	speechToText repositories.SpeechToText
	remover      repositories.FileRemover
	cfg          PipelineConfig
	logger       *zap.Logger
}

// NewWorker creates a new transcription worker
func NewWorker(
	codec repositories.AudioCodec,
	stt repositories.SpeechToText,
	remover repositories.FileRemover,
	cfg PipelineConfig,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		codec:        codec,
		speechToText: stt,
		remover:      remover,
		cfg:          cfg,
		logger:       logger,
	}
}

// Transcribe exports the segment, sends it to the recognizer and reports the outcome.
// A returned error aborts the job; recognition failures are reported as outcomes.
func (w *Worker) Transcribe(ctx context.Context, wave *audio.Waveform, segment entities.Segment, total int, emitter *ProgressEmitter) (entities.RecognitionOutcome, error) {
	progress := domain.SegmentProgress(segment.Index-1, total)
	outcome := entities.RecognitionOutcome{Segment: segment}

	if err := emitter.Emit(domain.ProgressEvent{
		Status:       domain.StatusTranscribing,
		Message:      fmt.Sprintf("Transcribing segment %d/%d", segment.Index, total),
		CurrentChunk: segment.Index,
		TotalChunks:  total,
		Progress:     progress,
	}); err != nil {
		return outcome, err
	}

	data, err := w.export(wave, segment)
	if err != nil {
		return outcome, err
	}

	sampleRate := wave.SampleRate
	if sampleRate <= 0 {
		sampleRate = w.cfg.SampleRate
	}
	audioConfig := repositories.AudioConfig{
		SampleRate: sampleRate,
		Encoding:   "LINEAR16",
		Language:   w.cfg.Language,
	}

	text, err := w.recognize(ctx, data, audioConfig)
	switch {
	case err == nil:
		outcome.Kind = entities.OutcomeSuccess
		outcome.Text = text
		return outcome, emitter.Emit(domain.ProgressEvent{
			Status:      domain.StatusPartialText,
			PartialText: text,
			ChunkNumber: segment.Index,
			Progress:    progress,
		})

	case errors.Is(err, domain.ErrNoSpeechDetected):
		outcome.Kind = entities.OutcomeNoSpeech
		return outcome, emitter.Emit(domain.ProgressEvent{
			Status:   domain.StatusChunkError,
			Message:  fmt.Sprintf("Could not understand segment %d", segment.Index),
			Progress: progress,
		})

	case ctx.Err() != nil:
		return outcome, ctx.Err()

	case domain.IsServiceError(err):
		return w.retry(ctx, data, audioConfig, outcome, err, progress, emitter)

	default:
		return outcome, fmt.Errorf("failed to recognize segment %d: %w", segment.Index, err)
	}
}

func (w *Worker) retry(
	ctx context.Context,
	data []byte,
	audioConfig repositories.AudioConfig,
	outcome entities.RecognitionOutcome,
	cause error,
	progress int,
	emitter *ProgressEmitter,
) (entities.RecognitionOutcome, error) {
	index := outcome.Segment.Index
	outcome.Err = cause

	w.logger.Warn("Recognition service failed, retrying",
		zap.Int("segment", index),
		zap.Duration("backoff", w.cfg.RetryBackoff),
		zap.Error(cause))

	if err := emitter.Emit(domain.ProgressEvent{
		Status:   domain.StatusError,
		Message:  fmt.Sprintf("Recognition service error on segment %d: %v", index, cause),
		Progress: progress,
	}); err != nil {
		return outcome, err
	}

	if err := sleepContext(ctx, w.cfg.RetryBackoff); err != nil {
		return outcome, err
	}

	text, err := w.recognize(ctx, data, audioConfig)
	if err == nil {
		outcome.Kind = entities.OutcomeRetrySuccess
		outcome.Text = text
		return outcome, emitter.Emit(domain.ProgressEvent{
			Status:      domain.StatusRetrySuccess,
			PartialText: text,
			ChunkNumber: index,
			Progress:    progress,
		})
	}
	if ctx.Err() != nil {
		return outcome, ctx.Err()
	}

	w.logger.Warn("Retry failed", zap.Int("segment", index), zap.Error(err))
	outcome.Kind = entities.OutcomeRetryFailed
	return outcome, emitter.Emit(domain.ProgressEvent{
		Status:   domain.StatusRetryFailed,
		Message:  fmt.Sprintf("Retry failed for segment %d", index),
		Progress: progress,
	})
}

// recognize treats an empty transcription as no speech
func (w *Worker) recognize(ctx context.Context, data []byte, audioConfig repositories.AudioConfig) (string, error) {
	started := time.Now()
	text, err := w.speechToText.TranscribeAudio(ctx, data, audioConfig)
	w.logger.Debug("Recognition call finished",
		zap.Duration("elapsed", time.Since(started)),
		zap.Bool("ok", err == nil))
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.ErrNoSpeechDetected
	}
	return text, nil
}

// export writes the segment to a temp WAV and returns its bytes. The file is always released.
func (w *Worker) export(wave *audio.Waveform, segment entities.Segment) ([]byte, error) {
	f, err := os.CreateTemp(w.cfg.TempDir, "kari-segment-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create segment file: %w", err)
	}
	path := f.Name()
	f.Close()
	defer func() {
		if err := w.remover.Remove(path); err != nil {
			w.logger.Warn("Failed to remove segment file", zap.String("path", path), zap.Error(err))
		}
	}()

	if err := w.codec.Export(wave.Slice(segment.Start, segment.End), path); err != nil {
		return nil, fmt.Errorf("failed to export segment %d: %w", segment.Index, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read segment %d: %w", segment.Index, err)
	}
	return data, nil
}
