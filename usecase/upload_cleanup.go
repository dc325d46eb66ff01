package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JaymarM28/kari-transcriptor/domain/repositories"
)

// UploadCleanupService removes uploads that were never streamed
type UploadCleanupService struct {
	storage  repositories.UploadStorage
	active   func(name string) bool
	interval time.Duration
	maxAge   time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewUploadCleanupService creates a new upload cleanup service. Uploads for
// which active returns true are never removed.
func NewUploadCleanupService(
	storage repositories.UploadStorage,
	active func(name string) bool,
	interval, maxAge time.Duration,
	logger *zap.Logger,
) *UploadCleanupService {
	return &UploadCleanupService{
		storage:  storage,
		active:   active,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *UploadCleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Upload cleanup service started",
		zap.Duration("interval", s.interval),
		zap.Duration("maxAge", s.maxAge))
}

// Stop gracefully stops the cleanup service
func (s *UploadCleanupService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		<-s.done
		s.logger.Info("Upload cleanup service stopped")
	})
}

func (s *UploadCleanupService) cleanupLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunCleanup(context.Background())
		}
	}
}

// RunCleanup performs one sweep of expired uploads
func (s *UploadCleanupService) RunCleanup(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	removed, err := s.storage.ExpireUploads(ctx, s.maxAge, s.active)
	if err != nil {
		s.logger.Error("Failed to expire uploads", zap.Error(err))
		return removed
	}

	if removed > 0 {
		s.logger.Info("Expired uploads removed", zap.Int("count", removed))
	}
	return removed
}
