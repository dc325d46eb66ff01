package stream

import (
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrStreamActive is returned when a job already has a consumer attached.
var ErrStreamActive = errors.New("job is already being streamed")

// Hub tracks the jobs that currently have a consumer attached. A job may be
// streamed by at most one consumer at a time.
type Hub struct {
	// Active jobs keyed by job ID, with the time the consumer attached.
	active map[string]time.Time

	// Mutex for thread-safe access to the active map
	mu sync.RWMutex

	now    func() time.Time
	logger *zap.Logger
}

// NewHub creates a new stream hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		active: make(map[string]time.Time),
		now:    time.Now,
		logger: logger,
	}
}

// Acquire registers a consumer for jobID, failing with ErrStreamActive when
// another consumer holds it.
func (h *Hub) Acquire(jobID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.active[jobID]; ok {
		return ErrStreamActive
	}
	h.active[jobID] = h.now()
	h.logger.Info("Stream consumer attached", zap.String("jobID", jobID))
	return nil
}

// Release frees the slot held for jobID. Releasing an unknown job is a no-op.
func (h *Hub) Release(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	since, ok := h.active[jobID]
	if !ok {
		return
	}
	delete(h.active, jobID)
	h.logger.Info("Stream consumer detached",
		zap.String("jobID", jobID),
		zap.Duration("duration", h.now().Sub(since)))
}

// IsActive reports whether jobID currently has a consumer
func (h *Hub) IsActive(jobID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.active[jobID]
	return ok
}

// ActiveJobs returns the IDs of all streamed jobs, sorted.
func (h *Hub) ActiveJobs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	jobs := make([]string, 0, len(h.active))
	for id := range h.active {
		jobs = append(jobs, id)
	}
	sort.Strings(jobs)
	return jobs
}
