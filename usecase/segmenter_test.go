package usecase

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/JaymarM28/kari-transcriptor/domain"
	"github.com/JaymarM28/kari-transcriptor/domain/entities"
	"github.com/JaymarM28/kari-transcriptor/internal/audio"
)

func TestSegmenterThreshold(t *testing.T) {
	tests := []struct {
		bursts   int
		wantMode entities.SegmentationMode
		wantN    int
	}{
		{4, entities.SegmentationTime, 1},
		{5, entities.SegmentationSilence, 5},
		{8, entities.SegmentationSilence, 8},
	}

	s := NewSegmenter(DefaultPipelineConfig(), zaptest.NewLogger(t))
	for _, tt := range tests {
		seg, err := s.Segment(burstWave(tt.bursts))
		if err != nil {
			t.Fatalf("Segment(%d bursts) error = %v", tt.bursts, err)
		}
		if seg.Mode != tt.wantMode || seg.Total() != tt.wantN {
			t.Errorf("%d bursts: got %s with %d segments, want %s with %d", tt.bursts, seg.Mode, seg.Total(), tt.wantMode, tt.wantN)
		}
		for i, segment := range seg.Segments {
			if segment.Index != i+1 {
				t.Errorf("segment %d has index %d", i, segment.Index)
			}
		}
	}
}

func TestSegmenterTimeFallback65Seconds(t *testing.T) {
	s := NewSegmenter(DefaultPipelineConfig(), zaptest.NewLogger(t))

	seg, err := s.Segment(flatWave(65000))
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	if seg.Mode != entities.SegmentationTime {
		t.Fatalf("Expected time mode, got %s", seg.Mode)
	}

	want := []time.Duration{30 * time.Second, 30 * time.Second, 5 * time.Second}
	if seg.Total() != len(want) {
		t.Fatalf("Expected %d segments, got %d", len(want), seg.Total())
	}
	for i, d := range want {
		if seg.Segments[i].Duration() != d {
			t.Errorf("segment %d duration = %s, want %s", i+1, seg.Segments[i].Duration(), d)
		}
		if seg.Segments[i].Index != i+1 {
			t.Errorf("segment %d index = %d", i+1, seg.Segments[i].Index)
		}
	}
}

func TestSegmenterEmptyWaveform(t *testing.T) {
	s := NewSegmenter(DefaultPipelineConfig(), zaptest.NewLogger(t))

	_, err := s.Segment(audio.NewWaveform(nil, testRate, 16))

	var segErr *domain.SegmentationError
	if !errors.As(err, &segErr) {
		t.Errorf("Expected SegmentationError, got %v", err)
	}
}

func TestFixedWindowsPartition(t *testing.T) {
	durations := []time.Duration{
		time.Millisecond,
		29999 * time.Millisecond,
		30 * time.Second,
		30001 * time.Millisecond,
		95 * time.Second,
	}

	for _, d := range durations {
		segments := FixedWindows(d, 30*time.Second)

		wantN := int((d + 30*time.Second - 1) / (30 * time.Second))
		if len(segments) != wantN {
			t.Errorf("%s: got %d windows, want %d", d, len(segments), wantN)
			continue
		}

		var cursor time.Duration
		for _, s := range segments {
			if s.Start != cursor {
				t.Errorf("%s: window %d starts at %s, want %s", d, s.Index, s.Start, cursor)
			}
			if s.Duration() <= 0 || s.Duration() > 30*time.Second {
				t.Errorf("%s: window %d has duration %s", d, s.Index, s.Duration())
			}
			cursor = s.End
		}
		if cursor != d {
			t.Errorf("%s: windows end at %s", d, cursor)
		}
	}

	if FixedWindows(0, 30*time.Second) != nil {
		t.Error("Expected no windows for zero duration")
	}
}
