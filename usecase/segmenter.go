package usecase

import (
	"time"

	"go.uber.org/zap"

	"github.com/JaymarM28/kari-transcriptor/domain"
	"github.com/JaymarM28/kari-transcriptor/domain/entities"
	"github.com/JaymarM28/kari-transcriptor/internal/audio"
)

// Segmenter splits a waveform at silences, or into fixed windows when too few silences are found
type Segmenter struct {
	cfg    PipelineConfig
	logger *zap.Logger
}

// NewSegmenter creates a new segmenter
func NewSegmenter(cfg PipelineConfig, logger *zap.Logger) *Segmenter {
	return &Segmenter{
		cfg:    cfg,
		logger: logger,
	}
}

// Segment returns the ordered segments of w
func (s *Segmenter) Segment(w *audio.Waveform) (entities.Segmentation, error) {
	ranges := audio.SplitOnSilence(w, audio.SilenceOptions{
		MinSilenceMs:  int(s.cfg.MinSilence.Milliseconds()),
		ThresholdDBFS: w.DBFS() - s.cfg.SilenceOffsetDB,
		KeepSilenceMs: int(s.cfg.KeepSilence.Milliseconds()),
		SeekStepMs:    1,
	})

	if len(ranges) >= s.cfg.MinSilenceSegments {
		segments := make([]entities.Segment, len(ranges))
		for i, r := range ranges {
			segments[i] = entities.Segment{
				Index: i + 1,
				Start: time.Duration(r.Start) * time.Millisecond,
				End:   time.Duration(r.End) * time.Millisecond,
			}
		}
		return entities.Segmentation{Mode: entities.SegmentationSilence, Segments: segments}, nil
	}

	s.logger.Info("Not enough silences detected, splitting by time",
		zap.Int("silenceSegments", len(ranges)),
		zap.Int("required", s.cfg.MinSilenceSegments))

	segments := FixedWindows(w.Duration(), s.cfg.Window)
	if len(segments) == 0 {
		return entities.Segmentation{}, &domain.SegmentationError{Message: "audio has no content to split"}
	}
	return entities.Segmentation{Mode: entities.SegmentationTime, Segments: segments}, nil
}

// FixedWindows partitions [0, duration) into consecutive windows. The last one may be shorter.
func FixedWindows(duration, window time.Duration) []entities.Segment {
	if duration <= 0 || window <= 0 {
		return nil
	}

	var segments []entities.Segment
	for start := time.Duration(0); start < duration; start += window {
		end := start + window
		if end > duration {
			end = duration
		}
		segments = append(segments, entities.Segment{
			Index: len(segments) + 1,
			Start: start,
			End:   end,
		})
	}
	return segments
}
