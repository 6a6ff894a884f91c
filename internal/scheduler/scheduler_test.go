package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestRunner_RunsOnTicksAndStops(t *testing.T) {
	var calls atomic.Int32
	job := func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	r := NewRunner("test", 10*time.Millisecond, job, zaptest.NewLogger(t))
	go func() {
		r.Run(ctx, false)
		close(done)
	}()

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}

func TestRunner_RunOnStart(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	job := func(ctx context.Context) error {
		calls.Add(1)
		cancel()
		return nil
	}

	NewRunner("test", time.Hour, job, zaptest.NewLogger(t)).Run(ctx, true)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunner_ContinuesAfterFailure(t *testing.T) {
	var calls atomic.Int32
	job := func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("boom")
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		NewRunner("test", 5*time.Millisecond, job, zaptest.NewLogger(t)).Run(ctx, false)
		close(done)
	}()
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
