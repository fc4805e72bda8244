package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcherInvokesSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var seen []string
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		seen = append(seen, "first:"+e.TicketID)
		return nil
	})
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		seen = append(seen, "second:"+e.TicketID)
		return nil
	})
	d.Subscribe(EventTicketDeleted, func(_ context.Context, _ Event) error {
		t.Error("handler for a different event type invoked")
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventTicketCreated, TicketID: "tkt-1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(seen) != 2 || seen[0] != "first:tkt-1" || seen[1] != "second:tkt-1" {
		t.Errorf("handlers = %v, want both in subscription order", seen)
	}
}

func TestDispatcherHandlerErrorDoesNotStopOthers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var reached bool
	d.Subscribe(EventTicketStatusChanged, func(_ context.Context, _ Event) error {
		return errors.New("notification backend down")
	})
	d.Subscribe(EventTicketStatusChanged, func(_ context.Context, _ Event) error {
		reached = true
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventTicketStatusChanged}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !reached {
		t.Error("later handler skipped after an earlier handler failed")
	}
}

func TestDispatcherNoSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	if err := d.Publish(context.Background(), Event{Type: EventTicketNoteAdded}); err != nil {
		t.Errorf("Publish with no subscribers: %v", err)
	}
}
