package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderConfirmed = "OrderConfirmed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "checkout-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya order_id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// ItemInput: input klien saat create order. Harga tidak pernah diterima
// dari klien; discount dibatasi <= harga di DB.
type ItemInput struct {
	ProductID     string `json:"product_id"`
	Qty           int    `json:"qty"`
	DiscountCents int    `json:"discount_cents,omitempty"`
}

// OrderConfirmedPayload dipublish setelah transaksi konfirmasi commit;
// notifier memakainya untuk shipment, email, dan chat ping.
type OrderConfirmedPayload struct {
	OrderID         string    `json:"order_id"`
	UserID          string    `json:"user_id"`
	AmountCents     int       `json:"amount_cents"`
	PaymentRef      string    `json:"payment_ref"` // id payment dari provider
	Items           []ItemQty `json:"items"`
	ShippingAddress Address   `json:"shipping_address"`
}
