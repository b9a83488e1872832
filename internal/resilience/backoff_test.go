// Copyright 2025 Support Chatbot Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fastBackoffConfig(maxRetries int) BackoffConfig {
	return BackoffConfig{
		BaseDelay:   time.Millisecond,
		MaxRetries:  maxRetries,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2.0,
		Jitter:      false,
		RetryOnFunc: DefaultRetryOnFunc,
	}
}

func TestWithExponentialBackoffSucceedsFirstTry(t *testing.T) {
	calls := 0

	err := WithExponentialBackoff(context.Background(), zaptest.NewLogger(t), fastBackoffConfig(3), func(_ context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithExponentialBackoffRetriesUntilSuccess(t *testing.T) {
	calls := 0

	err := WithExponentialBackoff(context.Background(), zaptest.NewLogger(t), fastBackoffConfig(3), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient failure")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithExponentialBackoffExhaustsAttempts(t *testing.T) {
	calls := 0

	err := WithExponentialBackoff(context.Background(), zaptest.NewLogger(t), fastBackoffConfig(2), func(_ context.Context) error {
		calls++
		return errors.New("persistent failure")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "operation failed after 3 attempts")
	assert.Contains(t, err.Error(), "persistent failure")
}

func TestWithExponentialBackoffStopsOnNonRetryable(t *testing.T) {
	calls := 0
	config := fastBackoffConfig(5)
	config.RetryOnFunc = func(err error) bool {
		return err.Error() != "fatal"
	}

	err := WithExponentialBackoff(context.Background(), zaptest.NewLogger(t), config, func(_ context.Context) error {
		calls++
		return errors.New("fatal")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "fatal", err.Error())
}

func TestWithExponentialBackoffRespectsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	config := fastBackoffConfig(5)
	config.BaseDelay = time.Minute
	config.MaxDelay = time.Minute

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- WithExponentialBackoff(ctx, zaptest.NewLogger(t), config, func(_ context.Context) error {
			calls++
			return errors.New("transient failure")
		})
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("retry loop did not observe cancellation")
	}
}

func TestDefaultRetryOnFunc(t *testing.T) {
	assert.False(t, DefaultRetryOnFunc(nil))
	assert.False(t, DefaultRetryOnFunc(context.Canceled))
	assert.False(t, DefaultRetryOnFunc(context.DeadlineExceeded))
	assert.True(t, DefaultRetryOnFunc(errors.New("connection reset")))
}

func TestRetryWithMaxAttempts(t *testing.T) {
	calls := 0

	err := RetryWithMaxAttempts(context.Background(), zaptest.NewLogger(t), 0, func(_ context.Context) error {
		calls++
		return errors.New("failure")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
