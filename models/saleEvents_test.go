package models

import (
	"testing"
	"time"
)

func TestSaleEventsFanOutPerShop(t *testing.T) {
	shopA, cancelA := SubscribeSaleEvents("shop-a")
	defer cancelA()
	shopB, cancelB := SubscribeSaleEvents("shop-b")
	defer cancelB()

	sale := &Sale{ID: 7, State: SaleStatePaid}
	PublishSaleEvent("shop-a", SaleEventPaid, sale)

	select {
	case event := <-shopA:
		if event.SaleId != 7 || event.Type != SaleEventPaid || event.ShopId != "shop-a" {
			t.Fatalf("unexpected event: %+v", event)
		}
		if event.ID == "" {
			t.Fatal("event id must be set")
		}
	case <-time.After(time.Second):
		t.Fatal("shop-a subscriber did not receive the event")
	}

	select {
	case event := <-shopB:
		t.Fatalf("shop-b must not see shop-a events, got %+v", event)
	default:
	}
}

func TestSaleEventsCancelClosesChannel(t *testing.T) {
	events, cancel := SubscribeSaleEvents("shop-c")
	cancel()

	if _, open := <-events; open {
		t.Fatal("channel must be closed after cancel")
	}

	// publishing after cancel must not panic
	PublishSaleEvent("shop-c", SaleEventCreated, &Sale{ID: 1, State: SaleStatePending})

	// double cancel is a no-op
	cancel()
}

func TestSaleEventsSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	events, cancel := SubscribeSaleEvents("shop-d")
	defer cancel()

	sale := &Sale{ID: 1, State: SaleStatePending}
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			PublishSaleEvent("shop-d", SaleEventCreated, sale)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	// buffered events are still readable
	if event := <-events; event.SaleId != 1 {
		t.Fatalf("unexpected event: %+v", event)
	}
}
