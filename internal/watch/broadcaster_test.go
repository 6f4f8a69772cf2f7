package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_DeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcaster[int]()
	a, cancelA := b.Subscribe(4)
	defer cancelA()
	c, cancelC := b.Subscribe(4)
	defer cancelC()

	b.Publish(1)
	b.Publish(2)

	assert.Equal(t, 1, <-a)
	assert.Equal(t, 2, <-a)
	assert.Equal(t, 1, <-c)
	assert.Equal(t, 2, <-c)
}

func TestBroadcaster_LateSubscriberGetsLatest(t *testing.T) {
	b := NewBroadcaster[string]()
	b.Publish("offline")
	b.Publish("online")

	ch, cancel := b.Subscribe(1)
	defer cancel()

	assert.Equal(t, "online", <-ch)

	v, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, "online", v)
}

func TestBroadcaster_SlowSubscriberKeepsNewest(t *testing.T) {
	b := NewBroadcaster[int]()
	ch, cancel := b.Subscribe(1)
	defer cancel()

	for i := 0; i < 10; i++ {
		b.Publish(i)
	}

	assert.Equal(t, 9, <-ch)
}

func TestBroadcaster_CancelAndClose(t *testing.T) {
	b := NewBroadcaster[int]()
	ch, cancel := b.Subscribe(1)
	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	other, _ := b.Subscribe(1)
	b.Close()
	_, open = <-other
	assert.False(t, open)

	assert.NotPanics(t, func() { b.Publish(1) })

	late, _ := b.Subscribe(1)
	_, open = <-late
	assert.False(t, open)
}
