package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopic_BroadcastInOrder(t *testing.T) {
	var topic Topic[TeamFilterChanged]
	var got []string

	topic.Subscribe(func(e TeamFilterChanged) { got = append(got, "a:"+e.TeamID) })
	topic.Subscribe(func(e TeamFilterChanged) { got = append(got, "b:"+e.TeamID) })

	topic.Publish(TeamFilterChanged{TeamID: "T1"})

	assert.Equal(t, []string{"a:T1", "b:T1"}, got)
}

func TestTopic_Unsubscribe(t *testing.T) {
	var topic Topic[RefreshTaskList]
	calls := 0

	unsub := topic.Subscribe(func(RefreshTaskList) { calls++ })
	topic.Publish(RefreshTaskList{})
	unsub()
	unsub()
	topic.Publish(RefreshTaskList{})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, topic.Len())
}

func TestTopic_SubscriberMayUnsubscribeDuringPublish(t *testing.T) {
	var topic Topic[Toast]
	var unsub func()
	calls := 0

	unsub = topic.Subscribe(func(Toast) {
		calls++
		unsub()
	})

	topic.Publish(Toast{Message: "first"})
	topic.Publish(Toast{Message: "second"})

	assert.Equal(t, 1, calls)
}

func TestBus_TopicsAreIndependent(t *testing.T) {
	bus := NewBus()
	refreshed := false
	bus.RefreshTaskList.Subscribe(func(RefreshTaskList) { refreshed = true })

	bus.TeamFilterChanged.Publish(TeamFilterChanged{TeamID: "T1"})
	assert.False(t, refreshed)

	bus.RefreshTaskList.Publish(RefreshTaskList{})
	assert.True(t, refreshed)
}
