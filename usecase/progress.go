package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JaymarM28/kari-transcriptor/domain"
)

// ErrStreamFinished is returned when an event is emitted after the terminal event
var ErrStreamFinished = errors.New("progress stream already finished")

// ProgressEmitter delivers the events of one job in order. Progress never
// decreases and exactly one terminal event is sent.
type ProgressEmitter struct {
	ctx      context.Context
	events   chan<- domain.ProgressEvent
	logger   *zap.Logger
	last     int
	finished bool
}

// NewProgressEmitter creates an emitter writing to events until ctx is done
func NewProgressEmitter(ctx context.Context, events chan<- domain.ProgressEvent, logger *zap.Logger) *ProgressEmitter {
	return &ProgressEmitter{
		ctx:    ctx,
		events: events,
		logger: logger,
	}
}

// Emit sends a non-terminal event
func (e *ProgressEmitter) Emit(event domain.ProgressEvent) error {
	if e.finished {
		return ErrStreamFinished
	}
	if event.Progress >= domain.ProgressDone {
		event.Progress = domain.ProgressDone - 1
	}
	return e.send(event)
}

// Finish sends the terminal event with progress 100. Status must be completed or error.
func (e *ProgressEmitter) Finish(event domain.ProgressEvent) error {
	if e.finished {
		return ErrStreamFinished
	}
	if event.Status != domain.StatusCompleted {
		event.Status = domain.StatusError
	}
	event.Progress = domain.ProgressDone
	e.finished = true
	return e.send(event)
}

// Finished reports whether the terminal event was emitted
func (e *ProgressEmitter) Finished() bool {
	return e.finished
}

// Last returns the progress of the last event sent
func (e *ProgressEmitter) Last() int {
	return e.last
}

func (e *ProgressEmitter) send(event domain.ProgressEvent) error {
	if event.Progress < e.last {
		event.Progress = e.last
	}

	select {
	case <-e.ctx.Done():
		e.logger.Debug("Progress consumer gone, dropping event", zap.String("status", string(event.Status)))
		return e.ctx.Err()
	case e.events <- event:
		e.last = event.Progress
		return nil
	}
}
