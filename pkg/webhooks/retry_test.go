package webhooks

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_NextRetryDelay(t *testing.T) {
	policy := NewRetryPolicy(RetryConfig{
		MaxAttempts:       5,
		InitialDelay:      time.Second,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2,
	})

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{10, 5 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, policy.NextRetryDelay(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	policy := NewRetryPolicy(RetryConfig{MaxAttempts: 3})
	transient := errors.New("connection reset")

	assert.False(t, policy.ShouldRetry(1, nil))
	assert.True(t, policy.ShouldRetry(1, transient))
	assert.True(t, policy.ShouldRetry(2, transient))
	assert.False(t, policy.ShouldRetry(3, transient))
	assert.False(t, policy.ShouldRetry(1, &permanentError{errors.New("status 404")}))
}

func TestNewRetryPolicy_Defaults(t *testing.T) {
	policy := NewRetryPolicy(RetryConfig{BackoffMultiplier: 0.5})
	assert.Equal(t, DefaultRetryConfig(), policy.config)
}
