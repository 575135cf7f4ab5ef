package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidycrew/fieldops-backend-go/internal/domain/attendance"
)

func TestHub_SubscribePublishCleanup(t *testing.T) {
	hub := NewHub()
	assert.Zero(t, hub.SubscriberCount("cleaner-1"))

	ch1, cleanup1 := hub.Subscribe("cleaner-1")
	ch2, cleanup2 := hub.Subscribe("cleaner-1")
	defer cleanup2()
	assert.Equal(t, 2, hub.SubscriberCount("cleaner-1"))
	assert.Zero(t, hub.SubscriberCount("cleaner-2"))

	hub.Publish("cleaner-1", Event{CleanerID: "cleaner-1", Event: "ping"})
	require.Len(t, ch1, 1)
	require.Len(t, ch2, 1)
	assert.Equal(t, "ping", (<-ch1).Event)

	// Publishing to a cleaner with no streams is a no-op.
	hub.Publish("cleaner-2", Event{CleanerID: "cleaner-2", Event: "ping"})

	cleanup1()
	assert.Equal(t, 1, hub.SubscriberCount("cleaner-1"))
	_, open := <-ch1
	assert.False(t, open, "cleanup closes the channel")
}

func TestHub_NotifyAutoClockOut(t *testing.T) {
	hub := NewHub()
	ch, cleanup := hub.Subscribe("cleaner-1")
	defer cleanup()

	hub.NotifyAutoClockOut("cleaner-1", attendance.Record{ID: "rec-1"}, "you left the site")

	require.Len(t, ch, 1)
	ev := <-ch
	assert.Equal(t, "auto_clock_out", ev.Event)

	data, ok := ev.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "you left the site", data["message"])
}
