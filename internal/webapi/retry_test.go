package webapi

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SuccessFirstAttempt(t *testing.T) {
	calls := 0

	err := Retry(2, func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_MasksFirstFailure(t *testing.T) {
	calls := 0

	err := Retry(2, func() error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetry_ReturnsLastError(t *testing.T) {
	calls := 0
	first := errors.New("first")
	second := errors.New("second")

	err := Retry(2, func() error {
		calls++
		if calls == 1 {
			return first
		}

		return second
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, err, second)
	assert.NotErrorIs(t, err, first)
}

func TestRetry_NeverRetriesCancellation(t *testing.T) {
	calls := 0

	err := Retry(5, func() error {
		calls++
		return fmt.Errorf("stream aborted: %w", ErrCancelled)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 1, calls)
}

func TestRetry_NeverRetriesContextCancellation(t *testing.T) {
	calls := 0

	err := Retry(5, func() error {
		calls++
		return fmt.Errorf("request aborted: %w", context.Canceled)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
