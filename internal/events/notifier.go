package events

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine and must not publish for the same week.
type Handler func(Event)

// Subscription identifies a registered handler.
type Subscription uuid.UUID

func (s Subscription) String() string {
	return uuid.UUID(s).String()
}

type subscriber struct {
	id      Subscription
	handler Handler
}

// Notifier is an in-process publish/subscribe channel. Delivery is
// synchronous and ordered per week; weeks are independent.
type Notifier struct {
	mu   sync.RWMutex
	subs []subscriber

	weekMu    sync.Mutex
	weekLocks map[int64]*sync.Mutex

	logger *slog.Logger
}

// NewNotifier creates an empty notifier.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{
		weekLocks: make(map[int64]*sync.Mutex),
		logger:    logger,
	}
}

// Subscribe registers h for every future event.
func (n *Notifier) Subscribe(h Handler) Subscription {
	id := Subscription(uuid.New())
	n.mu.Lock()
	n.subs = append(n.subs, subscriber{id: id, handler: h})
	n.mu.Unlock()
	return id
}

// Unsubscribe removes a handler and reports whether it was registered.
func (n *Notifier) Unsubscribe(id Subscription) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, s := range n.subs {
		if s.id == id {
			n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of subscribers.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

// Publish delivers ev to every current subscriber before returning.
func (n *Notifier) Publish(ev Event) {
	lock := n.weekLock(ev.WeekID)
	lock.Lock()
	defer lock.Unlock()

	n.mu.RLock()
	subs := n.subs
	n.mu.RUnlock()

	for _, s := range subs {
		n.deliver(s, ev)
	}
}

func (n *Notifier) deliver(s subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("event handler panicked",
				"subscription", s.id.String(),
				"kind", ev.Kind,
				"week_id", ev.WeekID,
				"record_id", ev.RecordID,
				"panic", fmt.Sprint(r))
		}
	}()
	s.handler(ev)
}

func (n *Notifier) weekLock(weekID int64) *sync.Mutex {
	n.weekMu.Lock()
	defer n.weekMu.Unlock()
	l, ok := n.weekLocks[weekID]
	if !ok {
		l = &sync.Mutex{}
		n.weekLocks[weekID] = l
	}
	return l
}
