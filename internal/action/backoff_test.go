package action_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/latchflow/latchflow/internal/action"
)

func TestBackoffGrowsExponentially(t *testing.T) {
	assert.Equal(t, 2*time.Second, action.Backoff(1))
	assert.Equal(t, 4*time.Second, action.Backoff(2))
	assert.Equal(t, 8*time.Second, action.Backoff(3))
	assert.Equal(t, 16*time.Second, action.Backoff(4))
}

func TestBackoffCapsAtMax(t *testing.T) {
	assert.Equal(t, 60*time.Second, action.Backoff(10))
	assert.Equal(t, 60*time.Second, action.Backoff(100))
}

func TestBackoffTreatsNonPositiveAttemptAsFirst(t *testing.T) {
	assert.Equal(t, action.Backoff(1), action.Backoff(0))
	assert.Equal(t, action.Backoff(1), action.Backoff(-5))
}
