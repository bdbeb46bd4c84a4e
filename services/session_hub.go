package services

import (
	"log"
	"sync"

	"moveflow_server/models"
)

// subscriberBuffer bounds the per-subscriber delivery queue. A subscriber
// that falls this far behind is canceled instead of blocking writers.
const subscriberBuffer = 128

// sessionEvent is one delivery unit: either a full session snapshot or a
// batch of newly appended messages, never both.
type sessionEvent struct {
	session  *models.Session
	messages []models.Message
}

// Subscription is the cancelable handle returned by the subscribe calls.
// Callbacks for one subscription run strictly one at a time, in publish
// order; different subscriptions are independent.
type Subscription struct {
	hub       *SessionHub
	sessionID string
	id        int

	onSession  func(models.Session)
	onMessages func([]models.Message)

	events chan sessionEvent
	done   chan struct{}
	once   sync.Once

	// seen guards against re-delivering a message that was already part of
	// the initial replay. Only touched by the delivery goroutine.
	seen map[string]struct{}
}

// Cancel detaches the subscription and stops its delivery goroutine. Safe
// to call more than once.
func (sub *Subscription) Cancel() {
	sub.once.Do(func() {
		sub.hub.detach(sub.sessionID, sub.id)
		close(sub.done)
	})
}

// Done is closed once the subscription is canceled.
func (sub *Subscription) Done() <-chan struct{} { return sub.done }

func (sub *Subscription) run() {
	for {
		select {
		case <-sub.done:
			return
		case ev := <-sub.events:
			sub.deliver(ev)
		}
	}
}

func (sub *Subscription) deliver(ev sessionEvent) {
	if ev.session != nil && sub.onSession != nil {
		sub.onSession(*ev.session)
		return
	}
	if sub.onMessages == nil {
		return
	}

	fresh := ev.messages[:0:0]
	for _, msg := range ev.messages {
		if _, dup := sub.seen[msg.MessageID]; dup {
			continue
		}
		sub.seen[msg.MessageID] = struct{}{}
		fresh = append(fresh, msg)
	}
	if len(fresh) > 0 {
		sub.onMessages(fresh)
	}
}

// enqueue hands an event to the delivery goroutine without blocking the
// publisher. Overflow cancels the subscription: a consumer that slow has
// effectively navigated away.
func (sub *Subscription) enqueue(ev sessionEvent) {
	select {
	case sub.events <- ev:
	default:
		log.Printf("⚠️ Subscriber %d on session %s overflowed, canceling", sub.id, sub.sessionID)
		go sub.Cancel()
	}
}

// SessionHub fans session mutations out to subscribers. Publishes for one
// session are serialized by the SessionService's per-session lock, so the
// enqueue order every subscriber observes is the store write order.
type SessionHub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]*Subscription
}

func NewSessionHub() *SessionHub {
	return &SessionHub{subs: make(map[string]map[int]*Subscription)}
}

// attach registers a subscription and starts its delivery goroutine. The
// caller seeds the initial snapshot/replay via the returned handle before
// releasing the session lock, so nothing published later can outrun it.
func (h *SessionHub) attach(sessionID string, onSession func(models.Session), onMessages func([]models.Message)) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		hub:        h,
		sessionID:  sessionID,
		id:         h.nextID,
		onSession:  onSession,
		onMessages: onMessages,
		events:     make(chan sessionEvent, subscriberBuffer),
		done:       make(chan struct{}),
		seen:       make(map[string]struct{}),
	}
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[int]*Subscription)
	}
	h.subs[sessionID][sub.id] = sub

	go sub.run()
	return sub
}

func (h *SessionHub) detach(sessionID string, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.subs[sessionID]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(h.subs, sessionID)
		}
	}
}

// PublishSession pushes a full session snapshot to every session subscriber.
func (h *SessionHub) PublishSession(session models.Session) {
	h.broadcast(session.SessionID, sessionEvent{session: &session})
}

// PublishMessages pushes newly appended messages to every message
// subscriber of the session.
func (h *SessionHub) PublishMessages(sessionID string, messages ...models.Message) {
	if len(messages) == 0 {
		return
	}
	h.broadcast(sessionID, sessionEvent{messages: messages})
}

func (h *SessionHub) broadcast(sessionID string, ev sessionEvent) {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs[sessionID]))
	for _, sub := range h.subs[sessionID] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.enqueue(ev)
	}
}
