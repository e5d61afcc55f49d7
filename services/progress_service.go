// services/progress_service.go
package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/brandview-ai/brandview-workflows/internal/models"
)

// progressChannelBuffer bounds each subscriber channel. Publish never
// blocks: a slow subscriber loses intermediate events, not the stream.
const progressChannelBuffer = 16

type progressService struct {
	mu          sync.Mutex
	subscribers map[uuid.UUID][]chan models.ProgressEvent
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewProgressService creates the broadcaster. redisClient may be nil; the
// in-process channels work either way, and pub/sub fan-out to the
// dashboard edge is simply absent without Redis.
func NewProgressService(redisClient *redis.Client, logger *zap.Logger) ProgressService {
	return &progressService{
		subscribers: make(map[uuid.UUID][]chan models.ProgressEvent),
		redisClient: redisClient,
		logger:      logger.Named("Progress"),
	}
}

// Subscribe returns a channel receiving the job's progress events. The
// channel closes when the job reaches a terminal state.
func (s *progressService) Subscribe(jobID uuid.UUID) <-chan models.ProgressEvent {
	ch := make(chan models.ProgressEvent, progressChannelBuffer)
	s.mu.Lock()
	s.subscribers[jobID] = append(s.subscribers[jobID], ch)
	s.mu.Unlock()
	return ch
}

// Publish fans the event out to in-process subscribers and, when Redis is
// configured, to the job's pub/sub channel.
func (s *progressService) Publish(ctx context.Context, event models.ProgressEvent) {
	s.mu.Lock()
	channels := s.subscribers[event.JobID]
	s.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- event:
		default:
			// Subscriber is behind; drop rather than stall the pipeline.
		}
	}

	if s.redisClient == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to encode progress event", zap.Error(err))
		return
	}
	channel := "audit:progress:" + event.JobID.String()
	if err := s.redisClient.Publish(ctx, channel, payload).Err(); err != nil {
		s.logger.Warn("failed to publish progress event",
			zap.String("channel", channel), zap.Error(err))
	}
}

// CloseJob tears down the job's subscriber channels. Idempotent.
func (s *progressService) CloseJob(jobID uuid.UUID) {
	s.mu.Lock()
	channels := s.subscribers[jobID]
	delete(s.subscribers, jobID)
	s.mu.Unlock()

	for _, ch := range channels {
		close(ch)
	}
}
