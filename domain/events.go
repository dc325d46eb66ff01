package domain

// Status names the stage a progress event reports
type Status string

const (
	StatusConverting    Status = "converting"
	StatusConverted     Status = "converted"
	StatusLoading       Status = "loading"
	StatusSplitting     Status = "splitting"
	StatusSplittingTime Status = "splitting_time"
	StatusProcessing    Status = "processing"
	StatusTranscribing  Status = "transcribing"
	StatusPartialText   Status = "partial_text"
	StatusChunkError    Status = "chunk_error"
	StatusError         Status = "error"
	StatusRetrySuccess  Status = "retry_success"
	StatusRetryFailed   Status = "retry_failed"
	StatusCompleted     Status = "completed"
)

// Progress milestones of the pipeline
const (
	ProgressConverting = 5
	ProgressConverted  = 10
	ProgressLoading    = 15
	ProgressSplitting  = 20
	ProgressSplitTime  = 25
	ProgressProcessing = 30
	ProgressSegmentMax = 60
	ProgressDone       = 100
)

// ProgressEvent is one message of the progress stream sent to the client
type ProgressEvent struct {
	Status       Status `json:"status"`
	Message      string `json:"message"`
	Progress     int    `json:"progress"`
	TotalChunks  int    `json:"totalChunks,omitempty"`
	CurrentChunk int    `json:"currentChunk,omitempty"`
	ChunkNumber  int    `json:"chunkNumber,omitempty"`
	PartialText  string `json:"partialText,omitempty"`
	FullText     string `json:"fullText,omitempty"`
	Trace        string `json:"trace,omitempty"`
}

// IsTerminal reports whether the event closes the stream.
// In-loop error events carry progress below 100 and are not terminal.
func (e ProgressEvent) IsTerminal() bool {
	return (e.Status == StatusCompleted || e.Status == StatusError) && e.Progress == ProgressDone
}

// SegmentProgress returns the progress value for the zero-based segment index i out of total.
func SegmentProgress(i, total int) int {
	if total <= 0 {
		return ProgressProcessing
	}
	return ProgressProcessing + (ProgressSegmentMax*i)/total
}
