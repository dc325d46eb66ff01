package entities

import (
	"sort"
	"strings"
)

// OutcomeKind classifies the result of transcribing one segment
type OutcomeKind string

const (
	OutcomeSuccess      OutcomeKind = "success"
	OutcomeNoSpeech     OutcomeKind = "no_speech"
	OutcomeRetrySuccess OutcomeKind = "retry_success"
	OutcomeRetryFailed  OutcomeKind = "retry_failed"
)

// RecognitionOutcome is the typed result of one segment
type RecognitionOutcome struct {
	Segment Segment     `json:"segment"`
	Kind    OutcomeKind `json:"kind"`
	Text    string      `json:"text,omitempty"`
	// Err holds the service error that triggered the retry, if any.
	Err error `json:"-"`
}

// HasText reports whether the outcome contributes to the transcript
func (o RecognitionOutcome) HasText() bool {
	return o.Kind == OutcomeSuccess || o.Kind == OutcomeRetrySuccess
}

// TranscriptResult is the final aggregate of a job
type TranscriptResult struct {
	Text     string               `json:"text"`
	Outcomes []RecognitionOutcome `json:"outcomes"`
}

// NewTranscriptResult joins the texts of successful outcomes in ascending segment order,
// regardless of the order the outcomes were collected in.
func NewTranscriptResult(outcomes []RecognitionOutcome) TranscriptResult {
	ordered := make([]RecognitionOutcome, len(outcomes))
	copy(ordered, outcomes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Segment.Index < ordered[j].Segment.Index
	})

	var b strings.Builder
	for _, outcome := range ordered {
		if !outcome.HasText() {
			continue
		}
		b.WriteString(outcome.Text)
		b.WriteString(" ")
	}

	return TranscriptResult{
		Text:     strings.TrimSpace(b.String()),
		Outcomes: ordered,
	}
}

// Empty reports whether no segment produced text
func (r TranscriptResult) Empty() bool {
	return r.Text == ""
}
