package commerce

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventPurchaseCompleted   = "PurchaseCompleted"
	EventSaleRated           = "SaleRated"
	EventSaleStatusChanged   = "SaleStatusChanged"
	EventNotificationCreated = "NotificationCreated"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // purchase id or sale id
	Payload       json.RawMessage `json:"payload"`
}

// Event is a pending publication collected while a transaction runs and
// published only after it commits.
type Event struct {
	Topic    string
	Key      string
	Envelope Envelope
}

func newEvent(topic, eventType, key, producer string, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Topic: topic,
		Key:   key,
		Envelope: Envelope{
			EventID:       uuid.NewString(),
			EventType:     eventType,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      producer,
			CorrelationID: key,
			Payload:       b,
		},
	}, nil
}

type SaleLine struct {
	SaleID           string          `json:"sale_id"`
	ProductID        string          `json:"product_id"`
	ProductType      ProductType     `json:"product_type"`
	StoreID          string          `json:"store_id"`
	Qty              int             `json:"qty"`
	SaleAmount       decimal.Decimal `json:"sale_amount"`
	CommissionEarned decimal.Decimal `json:"commission_earned"`
	Status           OrderStatus     `json:"status"`
}

type PurchaseCompletedPayload struct {
	PurchaseID  string     `json:"purchase_id"`
	BuyerID     string     `json:"buyer_id"`
	AffiliateID string     `json:"affiliate_id,omitempty"`
	Lines       []SaleLine `json:"lines"`
	Skipped     int        `json:"skipped"`
}

type SaleRatedPayload struct {
	SaleID        string  `json:"sale_id"`
	ProductID     string  `json:"product_id"`
	Rating        int     `json:"rating"`
	AverageRating float64 `json:"average_rating"`
	RatingCount   int     `json:"rating_count"`
}

type SaleStatusChangedPayload struct {
	SaleID string      `json:"sale_id"`
	From   OrderStatus `json:"from"`
	To     OrderStatus `json:"to"`
}

type NotificationCreatedPayload struct {
	Notification Notification `json:"notification"`
}
