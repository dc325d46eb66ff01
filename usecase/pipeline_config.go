package usecase

import (
	"context"
	"time"
)

// PipelineConfig holds the tunables of a transcription job
type PipelineConfig struct {
	// MinSilence is the shortest quiet run that separates two segments.
	MinSilence time.Duration
	// SilenceOffsetDB is how far below the average loudness a window must be to count as quiet.
	SilenceOffsetDB float64
	// KeepSilence is the padding kept around each speech segment.
	KeepSilence time.Duration
	// MinSilenceSegments is the fewest silence segments accepted before falling back to fixed windows.
	MinSilenceSegments int
	// Window is the length of a fixed window in the fallback pass.
	Window time.Duration
	// SegmentPause is the wait between two recognition calls.
	SegmentPause time.Duration
	// RetryBackoff is the wait before retrying a failed recognition call.
	RetryBackoff time.Duration
	// TempDir holds converted and exported audio; empty means the system default.
	TempDir string
	// Language is the BCP-47 code passed to the recognizer.
	Language string
	// SampleRate is reported to the recognizer when the waveform does not carry one.
	SampleRate int
}

// DefaultPipelineConfig returns the production defaults
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MinSilence:         500 * time.Millisecond,
		SilenceOffsetDB:    14,
		KeepSilence:        500 * time.Millisecond,
		MinSilenceSegments: 5,
		Window:             30 * time.Second,
		SegmentPause:       500 * time.Millisecond,
		RetryBackoff:       2 * time.Second,
		Language:           "es-ES",
		SampleRate:         16000,
	}
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
