package entities

import (
	"fmt"
	"time"
)

// SegmentationMode tells which pass produced a segmentation
type SegmentationMode string

const (
	SegmentationSilence SegmentationMode = "silence"
	SegmentationTime    SegmentationMode = "time"
)

// Segment is one bounded span of the canonical waveform.
// Index is 1-based and contiguous within a segmentation.
type Segment struct {
	Index int           `json:"index"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// Duration returns the length of the segment.
func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

// String returns a human-readable representation for logging.
func (s Segment) String() string {
	return fmt.Sprintf("segment %d: %s-%s", s.Index, s.Start, s.End)
}

// Segmentation is the ordered output of the segmenter
type Segmentation struct {
	Mode     SegmentationMode `json:"mode"`
	Segments []Segment        `json:"segments"`
}

// Total returns the number of segments.
func (s Segmentation) Total() int {
	return len(s.Segments)
}
