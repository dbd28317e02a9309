package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDispatcherPublish(t *testing.T) {
	d := NewInMemoryDispatcher()

	var calls []string
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		calls = append(calls, "first:"+e.TicketID)
		return errors.New("boom")
	})
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		calls = append(calls, "second:"+e.TicketID)
		return nil
	})
	d.Subscribe(EventTicketAssigned, func(context.Context, Event) error {
		t.Error("handler for another event type was invoked")
		return nil
	})

	event := NewEvent(EventTicketCreated, "t-1", Actor{Name: "Ana"}, time.Now(), nil)
	err := d.Publish(context.Background(), event)
	if err == nil {
		t.Fatal("Publish() error = nil, want the failing handler's error")
	}
	if len(calls) != 2 || calls[0] != "first:t-1" || calls[1] != "second:t-1" {
		t.Errorf("calls = %v, want both handlers in order", calls)
	}
	if event.ID == "" {
		t.Error("NewEvent left ID empty")
	}
}

func TestDispatcherNoListeners(t *testing.T) {
	d := NewInMemoryDispatcher()
	if err := d.Publish(context.Background(), Event{Type: EventTicketCommentAdded}); err != nil {
		t.Errorf("Publish() with no listeners error = %v", err)
	}
}

func TestDispatcherRecoversPanickingHandler(t *testing.T) {
	d := NewInMemoryDispatcher()

	reached := false
	d.Subscribe(EventTicketStatusChanged, func(context.Context, Event) error {
		panic("handler bug")
	})
	d.Subscribe(EventTicketStatusChanged, func(context.Context, Event) error {
		reached = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketStatusChanged})
	if err == nil {
		t.Fatal("Publish() error = nil, want the recovered panic")
	}
	if !reached {
		t.Error("handler after the panicking one was skipped")
	}
}
