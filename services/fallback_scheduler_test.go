package services

import (
	"sync/atomic"
	"testing"
	"time"

	"vibin_notifier/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fallbackRender(id string, calls *atomic.Int32) RenderFunc {
	return func() (models.NotificationEnvelope, bool) {
		calls.Add(1)
		return models.NotificationEnvelope{ID: id, Source: models.SourceLocalFallback}, true
	}
}

func TestFallbackFiresOnce(t *testing.T) {
	sink := &recordingSink{}
	scheduler := NewLocalFallbackScheduler(sink)
	var calls atomic.Int32

	assert.True(t, scheduler.Schedule("match:bob", 10*time.Millisecond, fallbackRender("n1", &calls)))
	assert.False(t, scheduler.Schedule("match:bob", 10*time.Millisecond, fallbackRender("n2", &calls)))
	assert.True(t, scheduler.Pending("match:bob"))

	require.Eventually(t, func() bool { return sink.Len() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 1, sink.Len())
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "n1", sink.routed[0].ID)
	assert.False(t, scheduler.Pending("match:bob"))
}

func TestFallbackCancelledBeforeDelayNeverFires(t *testing.T) {
	sink := &recordingSink{}
	scheduler := NewLocalFallbackScheduler(sink)
	var calls atomic.Int32

	scheduler.Schedule("match:bob", 30*time.Millisecond, fallbackRender("n1", &calls))
	assert.True(t, scheduler.Cancel("match:bob"))
	assert.False(t, scheduler.Cancel("match:bob"))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, sink.Len())
	assert.Equal(t, int32(0), calls.Load())
}

func TestFallbackRenderCanSkip(t *testing.T) {
	sink := &recordingSink{}
	scheduler := NewLocalFallbackScheduler(sink)
	fired := make(chan struct{})

	scheduler.Schedule("match:bob", time.Millisecond, func() (models.NotificationEnvelope, bool) {
		close(fired)
		return models.NotificationEnvelope{}, false
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("fallback never fired")
	}
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, sink.Len())
}

func TestFallbackSchedulerClose(t *testing.T) {
	sink := &recordingSink{}
	scheduler := NewLocalFallbackScheduler(sink)
	var calls atomic.Int32

	scheduler.Schedule("match:bob", 20*time.Millisecond, fallbackRender("n1", &calls))
	scheduler.Close()
	assert.False(t, scheduler.Schedule("match:carol", time.Millisecond, fallbackRender("n2", &calls)))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, sink.Len())
}

func TestFallbackKeysAreIndependent(t *testing.T) {
	sink := &recordingSink{}
	scheduler := NewLocalFallbackScheduler(sink)
	var calls atomic.Int32

	scheduler.Schedule("match:bob", 10*time.Millisecond, fallbackRender("n1", &calls))
	scheduler.Schedule("match:carol", 10*time.Millisecond, fallbackRender("n2", &calls))
	scheduler.Cancel("match:bob")

	require.Eventually(t, func() bool { return sink.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "n2", sink.routed[0].ID)
}
