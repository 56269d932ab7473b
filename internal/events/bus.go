package events

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

type Type string

const (
	AvatarUpdated    Type = "avatar_updated"
	ArticleRefreshed Type = "article_refreshed"
	DatabaseChanged  Type = "database_changed"
)

// Event carries only an identifier: the planet for AvatarUpdated and DatabaseChanged,
// the article for ArticleRefreshed.
type Event struct {
	Type Type
	ID   uuid.UUID
}

type Handler func(Event)

// Publisher is what engine components depend on. A nil Publisher is never passed around;
// use Discard when nobody listens.
type Publisher interface {
	Publish(e Event)
}

// Bus is an in-process observer registry. Handlers run synchronously on the
// publishing goroutine and must not block.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]subscription
}

type subscription struct {
	types   map[Type]struct{}
	handler Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[int]subscription)}
}

// Subscribe registers h for the given types, or for every type when none are given.
// The returned func removes the subscription.
func (b *Bus) Subscribe(h Handler, types ...Type) func() {
	filter := make(map[Type]struct{}, len(types))
	for _, t := range types {
		filter[t] = struct{}{}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = subscription{types: filter, handler: h}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.handlers))
	for _, s := range b.handlers {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		if len(s.types) > 0 {
			if _, ok := s.types[e.Type]; !ok {
				continue
			}
		}
		b.deliver(s.handler, e)
	}
}

func (b *Bus) deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event handler panicked", "event", e.Type, "id", e.ID, "panic", r)
		}
	}()
	h(e)
}

type discard struct{}

func (discard) Publish(Event) {}

// Discard drops every event.
var Discard Publisher = discard{}
