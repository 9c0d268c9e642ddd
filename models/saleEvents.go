package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type SaleEventType string

const (
	SaleEventCreated      SaleEventType = "sale.created"
	SaleEventStateChanged SaleEventType = "sale.state_changed"
	SaleEventPaid         SaleEventType = "sale.paid"
	SaleEventDeleted      SaleEventType = "sale.deleted"
)

type SaleEvent struct {
	ID         string        `json:"id"`
	Type       SaleEventType `json:"type"`
	ShopId     string        `json:"shop_id"`
	SaleId     int           `json:"sale_id"`
	State      SaleState     `json:"state"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// saleEventHub fans published events out to live subscribers, one
// buffered channel per subscriber. A slow subscriber drops events
// rather than blocking the publisher; the feed is a convenience for
// dashboards, the ledger stays the source of truth.
type saleEventHub struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan SaleEvent
}

var saleEvents = &saleEventHub{
	subscribers: make(map[string]map[string]chan SaleEvent),
}

// SubscribeSaleEvents registers a listener for one shop. The returned
// cancel func must be called when the listener goes away.
func SubscribeSaleEvents(shopId string) (<-chan SaleEvent, func()) {
	ch := make(chan SaleEvent, 16)
	token := uuid.NewString()

	saleEvents.mu.Lock()
	if saleEvents.subscribers[shopId] == nil {
		saleEvents.subscribers[shopId] = make(map[string]chan SaleEvent)
	}
	saleEvents.subscribers[shopId][token] = ch
	saleEvents.mu.Unlock()

	cancel := func() {
		saleEvents.mu.Lock()
		if subs, ok := saleEvents.subscribers[shopId]; ok {
			if _, ok := subs[token]; ok {
				delete(subs, token)
				close(ch)
			}
			if len(subs) == 0 {
				delete(saleEvents.subscribers, shopId)
			}
		}
		saleEvents.mu.Unlock()
	}

	return ch, cancel
}

// PublishSaleEvent is called after the surrounding transaction commits,
// never inside it.
func PublishSaleEvent(shopId string, eventType SaleEventType, sale *Sale) {
	event := SaleEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		ShopId:     shopId,
		SaleId:     sale.ID,
		State:      sale.State,
		OccurredAt: time.Now(),
	}

	saleEvents.mu.RLock()
	defer saleEvents.mu.RUnlock()
	for _, ch := range saleEvents.subscribers[shopId] {
		select {
		case ch <- event:
		default:
		}
	}
}
