package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var picked, resolved int
	d.Subscribe(EventTicketPicked, func(_ context.Context, e Event) error {
		picked++
		assert.Equal(t, "t-1", e.TicketID)
		return nil
	})
	d.Subscribe(EventTicketResolved, func(context.Context, Event) error {
		resolved++
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketPicked, TicketID: "t-1"})
	assert.NoError(t, err)
	assert.Equal(t, 1, picked)
	assert.Equal(t, 0, resolved)
}

func TestDispatcherFailingHandlerDoesNotStopOthers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var second bool
	d.Subscribe(EventSLABreached, func(context.Context, Event) error {
		return errors.New("boom")
	})
	d.Subscribe(EventSLABreached, func(context.Context, Event) error {
		second = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventSLABreached})
	assert.NoError(t, err)
	assert.True(t, second)
}

func TestDispatcherNoSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketCreated}))
}
