package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/archharness/internal/events"
)

func TestFeed_NeverBlocks(t *testing.T) {
	f := NewFeed(2)
	sub := f.Subscriber()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			sub(events.Event{Message: "e"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber blocked on a full feed")
	}
	assert.Equal(t, int64(3), f.Dropped())
	assert.Len(t, f.Drain(), 2)
	assert.Empty(t, f.Drain())
}

func TestFeed_Next(t *testing.T) {
	f := NewFeed(0)
	f.Subscriber()(events.Event{Message: "hello"})

	msg, ok := f.Next()().(eventMsg)
	require.True(t, ok)
	assert.Same(t, f, msg.feed)
	assert.Equal(t, "hello", msg.ev.Message)
}

func TestFeed_Stop(t *testing.T) {
	f := NewFeed(4)

	got := make(chan any, 1)
	go func() { got <- f.Next()() }()

	f.Stop()
	f.Stop()
	select {
	case msg := <-got:
		assert.Nil(t, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("Next not released by Stop")
	}

	f.Subscriber()(events.Event{})
	assert.Empty(t, f.Drain())
}
