package devotional

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskReportsResult(t *testing.T) {
	want := errors.New("boom")
	release := make(chan struct{})
	task := StartTask(context.Background(), func(ctx context.Context) error {
		<-release
		return want
	})

	assert.False(t, task.Finished())
	assert.NoError(t, task.Err(), "Err is nil until the task finishes")

	close(release)
	<-task.Done()
	assert.True(t, task.Finished())
	assert.ErrorIs(t, task.Err(), want)
}

func TestTaskCancel(t *testing.T) {
	task := StartTask(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	task.Cancel()
	err := task.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTaskParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	task := StartTask(parent, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	cancel()
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not observe parent cancellation")
	}
}

func TestTaskRecoversPanic(t *testing.T) {
	task := StartTask(context.Background(), func(ctx context.Context) error {
		panic("unexpected")
	})

	<-task.Done()
	require.Error(t, task.Err())
	assert.Contains(t, task.Err().Error(), "unexpected")
}

func TestTaskWaitHonorsContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	task := StartTask(context.Background(), func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, task.Wait(ctx), context.DeadlineExceeded)
}
