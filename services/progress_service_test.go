// services/progress_service_test.go
package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brandview-ai/brandview-workflows/internal/models"
)

func TestProgressPublishAndSubscribe(t *testing.T) {
	service := NewProgressService(nil, zap.NewNop())
	jobID := uuid.New()

	events := service.Subscribe(jobID)

	service.Publish(context.Background(), models.ProgressEvent{
		JobID:      jobID,
		Phase:      models.PhaseGeneratingQueries,
		Percentage: 5,
		Timestamp:  time.Now(),
	})

	select {
	case event := <-events:
		assert.Equal(t, jobID, event.JobID)
		assert.Equal(t, models.PhaseGeneratingQueries, event.Phase)
		assert.Equal(t, 5.0, event.Percentage)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestProgressPublishNeverBlocks(t *testing.T) {
	service := NewProgressService(nil, zap.NewNop())
	jobID := uuid.New()

	// Nobody drains this subscriber; publishing past the buffer must drop
	// instead of stalling the pipeline.
	service.Subscribe(jobID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < progressChannelBuffer*3; i++ {
			service.Publish(context.Background(), models.ProgressEvent{JobID: jobID, Percentage: float64(i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestProgressCloseJobClosesChannels(t *testing.T) {
	service := NewProgressService(nil, zap.NewNop())
	jobID := uuid.New()

	events := service.Subscribe(jobID)
	service.Publish(context.Background(), models.ProgressEvent{JobID: jobID, Percentage: 100})
	service.CloseJob(jobID)

	// The buffered event drains first, then the channel reports closed.
	event, ok := <-events
	require.True(t, ok)
	assert.Equal(t, 100.0, event.Percentage)

	_, ok = <-events
	assert.False(t, ok)

	// Idempotent.
	service.CloseJob(jobID)
}

func TestProgressEventsAreScopedToJob(t *testing.T) {
	service := NewProgressService(nil, zap.NewNop())
	jobA := uuid.New()
	jobB := uuid.New()

	eventsA := service.Subscribe(jobA)
	eventsB := service.Subscribe(jobB)

	service.Publish(context.Background(), models.ProgressEvent{JobID: jobA, Percentage: 50})

	select {
	case event := <-eventsA:
		assert.Equal(t, jobA, event.JobID)
	case <-time.After(time.Second):
		t.Fatal("job A subscriber received nothing")
	}

	select {
	case <-eventsB:
		t.Fatal("job B subscriber received job A's event")
	default:
	}
}
