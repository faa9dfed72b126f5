package toolkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSleepCompletes(t *testing.T) {
	tool := &SleepTool{}

	result, err := tool.Execute(context.Background(), SleepInput{Duration: "10ms"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "slept 10ms", result.Content)
}

func TestSleepBadDuration(t *testing.T) {
	tool := &SleepTool{}

	result, err := tool.Execute(context.Background(), SleepInput{Duration: "a while"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSleepOutOfRange(t *testing.T) {
	tool := &SleepTool{}

	for _, d := range []string{"-1s", "11m"} {
		result, err := tool.Execute(context.Background(), SleepInput{Duration: d})
		require.NoError(t, err)
		assert.True(t, result.IsError, "duration %s should be rejected", d)
	}
}

func TestSleepHonorsCancellation(t *testing.T) {
	tool := &SleepTool{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := tool.Execute(ctx, SleepInput{Duration: "1m"})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sleep did not observe cancellation")
	}
}
