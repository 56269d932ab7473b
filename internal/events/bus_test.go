package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBus_FiltersByType(t *testing.T) {
	bus := NewBus()

	var refreshed, all []Event
	bus.Subscribe(func(e Event) { refreshed = append(refreshed, e) }, ArticleRefreshed)
	bus.Subscribe(func(e Event) { all = append(all, e) })

	id := uuid.New()
	bus.Publish(Event{Type: ArticleRefreshed, ID: id})
	bus.Publish(Event{Type: DatabaseChanged, ID: id})

	assert.Len(t, refreshed, 1)
	assert.Equal(t, id, refreshed[0].ID)
	assert.Len(t, all, 2)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	count := 0
	cancel := bus.Subscribe(func(Event) { count++ })
	bus.Publish(Event{Type: AvatarUpdated})
	cancel()
	bus.Publish(Event{Type: AvatarUpdated})

	assert.Equal(t, 1, count)
}

func TestBus_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := NewBus()

	delivered := false
	bus.Subscribe(func(Event) { panic("boom") })
	bus.Subscribe(func(Event) { delivered = true })

	assert.NotPanics(t, func() { bus.Publish(Event{Type: DatabaseChanged}) })
	assert.True(t, delivered)
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard.Publish(Event{Type: DatabaseChanged}) })
}
