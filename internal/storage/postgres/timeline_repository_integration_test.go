package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

func TestTimelineRepository_PostgresAppendAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orderRepo := NewOrderRepository(store)
	repo := NewTimelineRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	order := sampleOrder("ORD-300001", "session-3", now)
	if err := orderRepo.Create(order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	events := []domain.TimelineEvent{
		{OrderID: order.ID, Type: string(domain.OrderStatusShipping), Reason: "expected", Occurred: now.Add(48 * time.Hour)},
		{OrderID: order.ID, Type: string(domain.OrderStatusConfirmed), Occurred: now},
		{OrderID: order.ID, Type: string(domain.OrderStatusProcessing), Occurred: now.Add(time.Second)},
	}
	for _, event := range events {
		if err := repo.Append(event); err != nil {
			t.Fatalf("append %s: %v", event.Type, err)
		}
	}

	got, err := repo.List(order.ID)
	if err != nil {
		t.Fatalf("list timeline: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	want := []string{"confirmed", "processing", "shipping"}
	for i, event := range got {
		if event.Type != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], event.Type)
		}
	}
	if got[2].Reason != "expected" {
		t.Fatalf("unexpected reason: %q", got[2].Reason)
	}
}

func TestTimelineRepository_PostgresRequiresOrderID(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewTimelineRepository(store)

	if err := repo.Append(domain.TimelineEvent{Type: "confirmed"}); !errors.Is(err, domain.ErrOrderIDRequired) {
		t.Fatalf("expected ErrOrderIDRequired, got %v", err)
	}
}

func TestTimelineRepository_PostgresRequiresType(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewTimelineRepository(store)

	if err := repo.Append(domain.TimelineEvent{OrderID: "ORD-300002"}); !errors.Is(err, domain.ErrTimelineTypeRequired) {
		t.Fatalf("expected ErrTimelineTypeRequired, got %v", err)
	}
}

func TestTimelineRepository_PostgresUnknownOrderRejected(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewTimelineRepository(store)

	if err := repo.Append(domain.TimelineEvent{OrderID: "ORD-999999", Type: "confirmed"}); err == nil {
		t.Fatal("expected foreign key violation for unknown order")
	}
}
