package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_RunOnce(t *testing.T) {
	s := NewScheduler(nil)

	var calls int32
	s.AddJob(Job{Name: "ok", Interval: time.Hour, Fn: func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}})
	s.AddJob(Job{Name: "failing", Interval: time.Hour, Fn: func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	}})

	s.RunOnce(context.Background())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestScheduler_AppliesTimeout(t *testing.T) {
	s := NewScheduler(nil)

	var hadDeadline atomic.Bool
	s.AddJob(Job{Name: "bounded", Interval: time.Hour, Timeout: time.Second, Fn: func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		hadDeadline.Store(ok)
		return nil
	}})

	s.RunOnce(context.Background())
	assert.True(t, hadDeadline.Load())
}

func TestScheduler_StartRunsImmediatelyAndStops(t *testing.T) {
	s := NewScheduler(nil)

	ran := make(chan struct{}, 1)
	s.AddJob(Job{Name: "tick", Interval: time.Hour, Fn: func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}})

	s.Start(context.Background())
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job did not run on start")
	}
	s.Stop()
}
