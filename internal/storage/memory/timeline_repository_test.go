package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

func TestTimelineRepository_KeepsChronology(t *testing.T) {
	repo := NewTimelineRepository()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for _, event := range []domain.TimelineEvent{
		{OrderID: "order-1", Type: domain.TimelineStatusChanged, Reason: "confirmed", Occurred: at.Add(time.Minute)},
		{OrderID: "order-1", Type: domain.TimelineOrderPlaced, Reason: "pending", Occurred: at},
		{OrderID: "order-1", Type: domain.TimelinePaymentChanged, Reason: "completed", Occurred: at.Add(time.Minute)},
		{OrderID: "order-2", Type: domain.TimelineOrderPlaced, Reason: "pending", Occurred: at},
	} {
		if err := repo.Append(event); err != nil {
			t.Fatalf("append %s: %v", event.Type, err)
		}
	}

	events, err := repo.List("order-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	got := []string{events[0].Type, events[1].Type, events[2].Type}
	want := []string{domain.TimelineOrderPlaced, domain.TimelineStatusChanged, domain.TimelinePaymentChanged}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order: %v", got)
		}
	}

	events[0].Reason = "changed"
	again, _ := repo.List("order-1")
	if again[0].Reason != "pending" {
		t.Fatal("List must return a copy")
	}
}

func TestTimelineRepository_RejectsInvalidEvents(t *testing.T) {
	repo := NewTimelineRepository()

	err := repo.Append(domain.TimelineEvent{OrderID: "order-1", Type: "OrderRefunded"})
	if !errors.Is(err, domain.ErrTimelineEventInvalid) {
		t.Fatalf("expected invalid timeline event, got %v", err)
	}
	err = repo.Append(domain.TimelineEvent{Type: domain.TimelineOrderPlaced})
	if !errors.Is(err, domain.ErrTimelineEventInvalid) {
		t.Fatalf("expected invalid timeline event for empty order, got %v", err)
	}

	events, _ := repo.List("order-1")
	if len(events) != 0 {
		t.Fatalf("rejected events must not be stored: %+v", events)
	}
}
