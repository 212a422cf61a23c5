// Package stream implements the Stream Dispatcher (spec §3/§7): a
// per-conversation fan-out of workflow events to subscribers, each with a
// bounded mailbox. Non-terminal events are dropped (newest-dropped) under
// backpressure so one slow subscriber cannot stall the workflow; terminal
// events (task_error, and state_update carrying a resolved FinalStatus) are
// always delivered, blocking briefly if necessary. This mirrors the
// teacher's Sink/Subscriber split in runtime/agent/stream, simplified to the
// smaller event vocabulary this spec names.
package stream

import (
	"context"
	"sync"

	"github.com/planexec/planexec/model"
)

// EventType names one kind of event the dispatcher can emit.
type EventType string

const (
	EventTaskCreated EventType = "task_created"
	EventStateUpdate EventType = "state_update"
	EventTaskResumed EventType = "task_resumed"
	EventTaskError   EventType = "task_error"
	EventPing        EventType = "ping"
)

// Event is one message delivered to subscribers of a conversation.
type Event struct {
	Type           EventType
	ConversationID string
	State          *model.AgentState
	Error          string
}

// IsTerminal reports whether the event must be delivered even under
// backpressure: a task_error, or a state_update that carries a resolved
// FinalStatus.
func (e Event) IsTerminal() bool {
	if e.Type == EventTaskError {
		return true
	}
	if e.Type == EventStateUpdate && e.State != nil {
		return e.State.FinalStatus == model.FinalSuccess || e.State.FinalStatus == model.FinalFailed
	}
	return false
}

const defaultMailboxSize = 32

// Subscription is a live subscriber's handle. Call Close to unsubscribe and
// release its mailbox.
type Subscription struct {
	id     uint64
	events chan Event
	disp   *Dispatcher
	convID string
}

// Events returns the channel the subscriber should range over.
func (s *Subscription) Events() <-chan Event { return s.events }

// Close unsubscribes and drains pending sends so the dispatcher never blocks
// on a closed subscriber.
func (s *Subscription) Close() {
	s.disp.unsubscribe(s.convID, s.id)
}

// Dispatcher fans workflow events out to subscribers, one bounded mailbox
// per subscription, keyed by conversation ID.
type Dispatcher struct {
	mu          sync.Mutex
	subscribers map[string]map[uint64]chan Event
	nextID      uint64
	mailboxSize int
}

// New constructs an empty Dispatcher. mailboxSize <= 0 uses the default (32).
func New(mailboxSize int) *Dispatcher {
	if mailboxSize <= 0 {
		mailboxSize = defaultMailboxSize
	}
	return &Dispatcher{
		subscribers: make(map[string]map[uint64]chan Event),
		mailboxSize: mailboxSize,
	}
}

// Subscribe registers a new subscription for conversationID.
func (d *Dispatcher) Subscribe(conversationID string) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	ch := make(chan Event, d.mailboxSize)
	if d.subscribers[conversationID] == nil {
		d.subscribers[conversationID] = make(map[uint64]chan Event)
	}
	d.subscribers[conversationID][id] = ch
	return &Subscription{id: id, events: ch, disp: d, convID: conversationID}
}

func (d *Dispatcher) unsubscribe(conversationID string, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := d.subscribers[conversationID]
	if set == nil {
		return
	}
	if ch, ok := set[id]; ok {
		close(ch)
		delete(set, id)
	}
	if len(set) == 0 {
		delete(d.subscribers, conversationID)
	}
}

// Publish fans ev out to every current subscriber of ev.ConversationID. A
// non-terminal event is dropped for a subscriber whose mailbox is full
// (drop-newest backpressure); a terminal event blocks on ctx until it is
// delivered or ctx is done, so a client never misses the final outcome.
func (d *Dispatcher) Publish(ctx context.Context, ev Event) {
	d.mu.Lock()
	subs := make([]chan Event, 0, len(d.subscribers[ev.ConversationID]))
	for _, ch := range d.subscribers[ev.ConversationID] {
		subs = append(subs, ch)
	}
	d.mu.Unlock()

	terminal := ev.IsTerminal()
	for _, ch := range subs {
		if terminal {
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
			continue
		}
		select {
		case ch <- ev:
		default:
			// Mailbox full: drop the newest non-terminal event rather than
			// block the workflow on a slow subscriber.
		}
	}
}

// SubscriberCount returns how many live subscriptions exist for
// conversationID, mostly useful in tests.
func (d *Dispatcher) SubscriberCount(conversationID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subscribers[conversationID])
}
