package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JaymarM28/kari-transcriptor/domain"
)

// Keep-alive interval; must stay below common proxy idle timeouts.
var keepAliveInterval = 30 * time.Second

// ErrStreamingUnsupported is returned when the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("streaming not supported")

// ServeSSE writes every event as a `data: <json>` frame until the channel is
// closed or the request context ends. It returns the first write error, or
// the context error when the consumer went away.
func ServeSSE(w http.ResponseWriter, r *http.Request, events <-chan domain.ProgressEvent, logger *zap.Logger) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Error("Streaming not supported by response writer")
		return ErrStreamingUnsupported
	}

	// SSE connections outlive the server write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.Warn("Could not disable write deadline", zap.Error(err))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("SSE consumer disconnected", zap.Error(ctx.Err()))
			return ctx.Err()

		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeEvent(w, event); err != nil {
				logger.Warn("Failed to write SSE event", zap.Error(err))
				return err
			}
			flusher.Flush()

		case <-keepAlive.C:
			if _, err := fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix()); err != nil {
				return err
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event domain.ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// Drain discards the remaining events so the producer can run its cleanup
// and close the channel.
func Drain(events <-chan domain.ProgressEvent) {
	for range events {
	}
}
