package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JaymarM28/kari-transcriptor/domain"
	"github.com/JaymarM28/kari-transcriptor/domain/entities"
	"github.com/JaymarM28/kari-transcriptor/domain/repositories"
)

const instrumentationName = "github.com/JaymarM28/kari-transcriptor/usecase"

// ErrNothingTranscribed is the job result when no segment produced text
var ErrNothingTranscribed = errors.New("could not transcribe any part of the audio")

// TranscriptionService runs a job end to end and owns its temporary files
type TranscriptionService struct {
	normalizer *Normalizer
	segmenter  *Segmenter
	worker     *Worker
	remover    repositories.FileRemover
	cfg        PipelineConfig
	logger     *zap.Logger

	tracer   trace.Tracer
	jobs     metric.Int64Counter
	segments metric.Int64Counter
}

// NewTranscriptionService creates a new transcription service
func NewTranscriptionService(
	codec repositories.AudioCodec,
	stt repositories.SpeechToText,
	remover repositories.FileRemover,
	cfg PipelineConfig,
	logger *zap.Logger,
) *TranscriptionService {
	meter := otel.Meter(instrumentationName)

	jobs, err := meter.Int64Counter("transcription.jobs",
		metric.WithDescription("Transcription jobs by result"))
	if err != nil {
		logger.Warn("Failed to create jobs counter", zap.Error(err))
	}
	segments, err := meter.Int64Counter("transcription.segments",
		metric.WithDescription("Transcribed segments by outcome"))
	if err != nil {
		logger.Warn("Failed to create segments counter", zap.Error(err))
	}

	return &TranscriptionService{
		normalizer: NewNormalizer(codec, cfg.TempDir, logger),
		segmenter:  NewSegmenter(cfg, logger),
		worker:     NewWorker(codec, stt, remover, cfg, logger),
		remover:    remover,
		cfg:        cfg,
		logger:     logger,
		tracer:     otel.Tracer(instrumentationName),
		jobs:       jobs,
		segments:   segments,
	}
}

// Stream runs the job in its own goroutine. The channel is closed after the
// terminal event, or early when ctx is cancelled.
func (s *TranscriptionService) Stream(ctx context.Context, job *entities.Job) <-chan domain.ProgressEvent {
	events := make(chan domain.ProgressEvent)
	go func() {
		defer close(events)
		_ = s.Run(ctx, job, events)
	}()
	return events
}

// Run executes the job, sending its events to events. The returned error is
// the reason the job did not complete, already reported to the consumer.
func (s *TranscriptionService) Run(ctx context.Context, job *entities.Job, events chan<- domain.ProgressEvent) error {
	ctx, span := s.tracer.Start(ctx, "transcription.job",
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.String("job.extension", job.Extension),
		))
	defer span.End()

	logger := s.logger.With(zap.String("jobID", job.ID))
	logger.Info("Transcription job started")

	emitter := NewProgressEmitter(ctx, events, logger)
	defer s.release(logger, job.SourcePath, "source")

	var canonical CanonicalAudio
	result, err := s.process(ctx, job, emitter, &canonical)
	if canonical.Owned {
		s.release(logger, canonical.Path, "converted")
	}

	err = s.finish(ctx, logger, emitter, result, err)
	s.record(ctx, span, err)
	return err
}

// process runs every stage up to aggregation, turning a panic into an UnexpectedError
func (s *TranscriptionService) process(ctx context.Context, job *entities.Job, emitter *ProgressEmitter, canonical *CanonicalAudio) (result entities.TranscriptResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.UnexpectedError{
				Err:   fmt.Errorf("panic: %v", r),
				Trace: string(debug.Stack()),
			}
		}
	}()

	if err := job.Validate(); err != nil {
		return result, fmt.Errorf("invalid job: %w", err)
	}

	*canonical, err = s.normalizer.Normalize(ctx, job, emitter)
	if err != nil {
		return result, err
	}

	wave, err := s.normalizer.Load(*canonical, emitter)
	if err != nil {
		return result, err
	}

	if err := emitter.Emit(domain.ProgressEvent{
		Status:   domain.StatusSplitting,
		Message:  "Splitting audio into segments...",
		Progress: domain.ProgressSplitting,
	}); err != nil {
		return result, err
	}

	segmentation, err := s.segmenter.Segment(wave)
	if err != nil {
		return result, err
	}

	if segmentation.Mode == entities.SegmentationTime {
		if err := emitter.Emit(domain.ProgressEvent{
			Status:   domain.StatusSplittingTime,
			Message:  "Not enough silences detected, splitting by time...",
			Progress: domain.ProgressSplitTime,
		}); err != nil {
			return result, err
		}
	}

	total := segmentation.Total()
	if err := emitter.Emit(domain.ProgressEvent{
		Status:      domain.StatusProcessing,
		Message:     fmt.Sprintf("Audio split into %d segments", total),
		TotalChunks: total,
		Progress:    domain.ProgressProcessing,
	}); err != nil {
		return result, err
	}

	outcomes := make([]entities.RecognitionOutcome, 0, total)
	for i, segment := range segmentation.Segments {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		segCtx, span := s.tracer.Start(ctx, "transcription.segment",
			trace.WithAttributes(
				attribute.Int("segment.index", segment.Index),
				attribute.Int64("segment.duration_ms", segment.Duration().Milliseconds()),
			))
		outcome, err := s.worker.Transcribe(segCtx, wave, segment, total, emitter)
		span.SetAttributes(attribute.String("segment.outcome", string(outcome.Kind)))
		span.End()
		if err != nil {
			return result, err
		}

		if s.segments != nil {
			s.segments.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome.Kind))))
		}
		outcomes = append(outcomes, outcome)

		if i < total-1 {
			if err := sleepContext(ctx, s.cfg.SegmentPause); err != nil {
				return result, err
			}
		}
	}

	return entities.NewTranscriptResult(outcomes), nil
}

// finish sends the terminal event for the job result
func (s *TranscriptionService) finish(ctx context.Context, logger *zap.Logger, emitter *ProgressEmitter, result entities.TranscriptResult, err error) error {
	if err == nil && result.Empty() {
		err = ErrNothingTranscribed
	}

	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		logger.Info("Transcription job cancelled by consumer", zap.Error(err))
		return err
	}

	var event domain.ProgressEvent
	var convErr *domain.ConversionError
	var segErr *domain.SegmentationError
	switch {
	case err == nil:
		logger.Info("Transcription job completed", zap.Int("chars", len(result.Text)))
		event = domain.ProgressEvent{Status: domain.StatusCompleted, FullText: result.Text}

	case errors.Is(err, ErrNothingTranscribed):
		logger.Warn("Transcription job produced no text")
		event = domain.ProgressEvent{Status: domain.StatusError, Message: "Could not transcribe any part of the audio"}

	case errors.As(err, &convErr), errors.As(err, &segErr):
		logger.Error("Transcription job failed", zap.Error(err))
		event = domain.ProgressEvent{Status: domain.StatusError, Message: "Error: " + err.Error()}

	default:
		var unexpected *domain.UnexpectedError
		if !errors.As(err, &unexpected) {
			unexpected = &domain.UnexpectedError{Err: err, Trace: errorChain(err)}
			err = unexpected
		}
		logger.Error("Transcription job failed unexpectedly", zap.Error(err), zap.String("trace", unexpected.Trace))
		event = domain.ProgressEvent{Status: domain.StatusError, Message: "Error: " + unexpected.Error(), Trace: unexpected.Trace}
	}

	if sendErr := emitter.Finish(event); sendErr != nil {
		logger.Info("Consumer left before the final event", zap.Error(sendErr))
		if err == nil {
			return sendErr
		}
	}
	return err
}

// release removes a job file, logging and ignoring failures
func (s *TranscriptionService) release(logger *zap.Logger, path, kind string) {
	if err := s.remover.Remove(path); err != nil {
		logger.Warn("Failed to remove job file",
			zap.String("kind", kind),
			zap.String("path", path),
			zap.Error(err))
	}
}

func (s *TranscriptionService) record(ctx context.Context, span trace.Span, err error) {
	result := "completed"
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = "cancelled"
	case errors.Is(err, ErrNothingTranscribed):
		result = "empty"
	default:
		result = "failed"
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
	}
	span.SetAttributes(attribute.String("job.result", result))

	if s.jobs != nil {
		s.jobs.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("result", result)))
	}
}

// errorChain renders each wrapped error on its own line
func errorChain(err error) string {
	var lines []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		lines = append(lines, fmt.Sprintf("%T: %v", e, e))
	}
	return strings.Join(lines, "\n")
}
