package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/events"
)

// EventBusAdapter bridges EventBus notifications to Bubble Tea messages.
// Task, turn and tool changes collapse into a single pending
// StateChangedMsg; anomalies and backend notices are queued individually. Terminal task
// transitions arrive on the priority subscription and are never dropped.
type EventBusAdapter struct {
	bus        *events.EventBus
	changeCh   <-chan events.Event
	priorityCh <-chan events.Event

	alerts  chan tea.Msg
	notify  chan struct{}
	closeCh chan struct{}
	done    chan struct{}

	mu      sync.Mutex
	pending int
	closed  bool
}

const alertBuffer = 32

// NewEventBusAdapter subscribes to bus and starts forwarding.
func NewEventBusAdapter(bus *events.EventBus) *EventBusAdapter {
	a := &EventBusAdapter{
		bus:        bus,
		changeCh:   bus.Subscribe(events.TypeTaskChanged, events.TypeTurnChanged, events.TypeToolChanged, events.TypeAnomaly, events.TypeLog),
		priorityCh: bus.SubscribePriority(events.TypeTaskChanged),
		alerts:     make(chan tea.Msg, alertBuffer),
		notify:     make(chan struct{}, 1),
		closeCh:    make(chan struct{}),
		done:       make(chan struct{}),
	}
	go a.run()
	return a
}

// Next blocks until there is something to show and returns it as a message.
// It returns nil once the adapter is closed.
func (a *EventBusAdapter) Next() tea.Msg {
	select {
	case msg := <-a.alerts:
		return msg
	default:
	}

	select {
	case msg := <-a.alerts:
		return msg
	case <-a.notify:
		a.mu.Lock()
		n := a.pending
		a.pending = 0
		a.mu.Unlock()
		if n == 0 {
			return a.Next()
		}
		return StateChangedMsg{Changes: n}
	case <-a.closeCh:
		return nil
	}
}

// Close unsubscribes from the bus and releases a blocked Next. The
// priority subscription goes first: a publisher blocked on it is drained
// by run until the channel closes.
func (a *EventBusAdapter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.closeCh)
	a.mu.Unlock()

	a.bus.Unsubscribe(a.priorityCh)
	a.bus.Unsubscribe(a.changeCh)
	<-a.done
}

func (a *EventBusAdapter) run() {
	defer close(a.done)
	changeCh, priorityCh := a.changeCh, a.priorityCh
	for changeCh != nil || priorityCh != nil {
		select {
		case ev, ok := <-priorityCh:
			if !ok {
				priorityCh = nil
				continue
			}
			a.handle(ev)

		case ev, ok := <-changeCh:
			if !ok {
				changeCh = nil
				continue
			}
			a.handle(ev)
		}
	}
}

func (a *EventBusAdapter) handle(ev events.Event) {
	switch e := ev.(type) {
	case events.AnomalyEvent:
		a.alert(AnomalyMsg{Event: e})
		return
	case events.LogEvent:
		a.alert(NoticeMsg{Event: e})
		return
	}

	a.mu.Lock()
	a.pending++
	a.mu.Unlock()
	select {
	case a.notify <- struct{}{}:
	default:
	}
}

// alert queues msg, dropping it when the queue is full. The banner only
// shows the latest alert and dropped ones are already logged.
func (a *EventBusAdapter) alert(msg tea.Msg) {
	select {
	case a.alerts <- msg:
	default:
	}
}
