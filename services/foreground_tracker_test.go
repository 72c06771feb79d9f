package services

import (
	"testing"

	"vibin_notifier/models"

	"github.com/stretchr/testify/assert"
)

func TestForegroundTrackerOnlyActiveIsForeground(t *testing.T) {
	tracker := NewForegroundTracker("")
	assert.False(t, tracker.IsForeground())
	assert.Equal(t, models.LifecycleBackground, tracker.State())

	tracker.Transition(models.LifecycleActive)
	assert.True(t, tracker.IsForeground())

	tracker.Transition(models.LifecycleInactive)
	assert.False(t, tracker.IsForeground())
	assert.Equal(t, models.LifecycleInactive, tracker.State())
}

func TestForegroundTrackerNotifiesOnChangeOnly(t *testing.T) {
	tracker := NewForegroundTracker(models.LifecycleBackground)
	var seen []bool
	dispose := tracker.Subscribe(func(foreground bool) { seen = append(seen, foreground) })

	tracker.Transition(models.LifecycleActive)
	tracker.Transition(models.LifecycleActive)
	tracker.Transition(models.LifecycleInactive)
	tracker.Transition(models.LifecycleBackground)
	assert.Equal(t, []bool{true, false}, seen)

	dispose()
	dispose()
	tracker.Transition(models.LifecycleActive)
	assert.Equal(t, []bool{true, false}, seen)
}

func TestValidLifecycleState(t *testing.T) {
	assert.True(t, ValidLifecycleState("active"))
	assert.True(t, ValidLifecycleState("inactive"))
	assert.True(t, ValidLifecycleState("background"))
	assert.False(t, ValidLifecycleState("suspended"))
}
