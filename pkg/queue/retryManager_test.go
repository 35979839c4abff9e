package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldRetry(t *testing.T) {
	rm := NewRetryManager(3, time.Second)

	tests := []struct {
		name      string
		task      Task
		err       error
		wantRetry bool
	}{
		{
			name:      "first failure of a transient error retries",
			task:      Task{Attempts: 1, MaxRetries: 3},
			err:       errors.New("connection refused"),
			wantRetry: true,
		},
		{
			name:      "attempts exhausted",
			task:      Task{Attempts: 3, MaxRetries: 3},
			err:       errors.New("connection refused"),
			wantRetry: false,
		},
		{
			name:      "message not found is permanent",
			task:      Task{Attempts: 1, MaxRetries: 3},
			err:       errors.New("message not found"),
			wantRetry: false,
		},
		{
			name:      "already sent is permanent",
			task:      Task{Attempts: 1, MaxRetries: 3},
			err:       errors.New("message already sent"),
			wantRetry: false,
		},
		{
			name:      "reminder already fired is permanent",
			task:      Task{Attempts: 1, MaxRetries: 3},
			err:       errors.New("reminder already fired"),
			wantRetry: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retry, delay := rm.ShouldRetry(&tt.task, tt.err)
			assert.Equal(t, tt.wantRetry, retry)
			if !tt.wantRetry {
				assert.Zero(t, delay)
			}
		})
	}
}

func TestCalculateBackoffIsCapped(t *testing.T) {
	rm := NewRetryManager(10, time.Second)

	for attempt := 1; attempt <= 10; attempt++ {
		delay := rm.calculateBackoff(attempt)
		assert.LessOrEqual(t, delay, 16*time.Second, "attempt %d", attempt)
		assert.Greater(t, delay, time.Duration(0), "attempt %d", attempt)
	}
}
