package entities

import (
	"testing"
	"time"
)

func outcome(index int, kind OutcomeKind, text string) RecognitionOutcome {
	return RecognitionOutcome{
		Segment: Segment{Index: index, Start: time.Duration(index-1) * 30 * time.Second, End: time.Duration(index) * 30 * time.Second},
		Kind:    kind,
		Text:    text,
	}
}

func TestNewTranscriptResultOrdersBySegmentIndex(t *testing.T) {
	result := NewTranscriptResult([]RecognitionOutcome{
		outcome(3, OutcomeSuccess, "tres"),
		outcome(1, OutcomeSuccess, "uno"),
		outcome(2, OutcomeRetrySuccess, "dos"),
	})

	if result.Text != "uno dos tres" {
		t.Errorf("Expected 'uno dos tres', got %q", result.Text)
	}

	for i, o := range result.Outcomes {
		if o.Segment.Index != i+1 {
			t.Errorf("Expected outcome %d to have index %d, got %d", i, i+1, o.Segment.Index)
		}
	}
}

func TestNewTranscriptResultSkipsFailures(t *testing.T) {
	result := NewTranscriptResult([]RecognitionOutcome{
		outcome(1, OutcomeNoSpeech, ""),
		outcome(2, OutcomeSuccess, "  hola  "),
		outcome(3, OutcomeRetryFailed, "ignored"),
	})

	if result.Text != "hola" {
		t.Errorf("Expected 'hola', got %q", result.Text)
	}
	if result.Empty() {
		t.Error("Result should not be empty")
	}
}

func TestNewTranscriptResultEmpty(t *testing.T) {
	result := NewTranscriptResult([]RecognitionOutcome{
		outcome(1, OutcomeNoSpeech, ""),
		outcome(2, OutcomeRetryFailed, ""),
	})

	if !result.Empty() {
		t.Errorf("Expected empty result, got %q", result.Text)
	}
}

func TestSegmentDuration(t *testing.T) {
	seg := Segment{Index: 3, Start: 60 * time.Second, End: 65 * time.Second}
	if seg.Duration() != 5*time.Second {
		t.Errorf("Expected 5s, got %s", seg.Duration())
	}
}
