package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_Observe(t *testing.T) {
	var notified []Progress
	tracker := NewTracker(func(p Progress) { notified = append(notified, p) })

	assert.True(t, tracker.Observe(Progress{}), "first observation is a change")
	assert.False(t, tracker.Observe(Progress{}))
	assert.True(t, tracker.Observe(Progress{Pending: 2, Batches: 1}))
	assert.True(t, tracker.Observe(Progress{Pending: 1, Building: 1}))
	assert.Equal(t, []Progress{{}, {Pending: 2, Batches: 1}, {Pending: 1, Building: 1}}, notified)
	assert.Equal(t, Progress{Pending: 1, Building: 1}, tracker.Snapshot())

	tracker.OnChange(nil)
	assert.True(t, tracker.Observe(Progress{Running: 1}))
	assert.Len(t, notified, 3)

	var empty *Tracker
	assert.False(t, empty.Observe(Progress{Running: 1}))
	assert.Equal(t, Progress{}, empty.Snapshot())
}

func TestProgress(t *testing.T) {
	p := Progress{Pending: 3, Building: 1, Prepared: 1, Running: 2, Completed: 4, Failed: 1, Skipped: 2}
	assert.Equal(t, 4, p.Active())
	assert.Equal(t, "3 pending, 1 building, 1 prepared, 2 running, 4 completed, 1 failed, 2 skipped, 0 batches queued", p.String())
}
