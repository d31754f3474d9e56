package monitor

import (
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fyrsmithlabs/archharness/internal/events"
)

// DefaultFeedSize is the event buffer of one monitored run.
const DefaultFeedSize = 4096

// eventMsg carries one run event into the update loop, tagged with the
// feed it came from so a late event of a finished run is ignored.
type eventMsg struct {
	feed *Feed
	ev   events.Event
}

// Feed moves events from the run goroutine into the bubbletea loop. The
// subscriber never blocks the run: when the buffer is full the event is
// dropped from the live view and stays in events.jsonl.
type Feed struct {
	ch       chan events.Event
	done     chan struct{}
	stopOnce sync.Once
	dropped  atomic.Int64
}

// NewFeed returns a feed buffering size events. size <= 0 uses
// DefaultFeedSize.
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{
		ch:   make(chan events.Event, size),
		done: make(chan struct{}),
	}
}

// Subscriber returns the callback handed to the orchestrator.
func (f *Feed) Subscriber() events.Subscriber {
	return func(ev events.Event) {
		select {
		case <-f.done:
			return
		default:
		}
		select {
		case f.ch <- ev:
		default:
			f.dropped.Add(1)
		}
	}
}

// Dropped returns how many events did not fit the buffer.
func (f *Feed) Dropped() int64 { return f.dropped.Load() }

// Next waits for the next event. It yields nil once the feed is stopped.
func (f *Feed) Next() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-f.ch:
			return eventMsg{feed: f, ev: ev}
		case <-f.done:
			return nil
		}
	}
}

// Drain returns every buffered event without waiting.
func (f *Feed) Drain() []events.Event {
	var out []events.Event
	for {
		select {
		case ev := <-f.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// Stop releases a pending Next and discards later events.
func (f *Feed) Stop() {
	f.stopOnce.Do(func() { close(f.done) })
}
