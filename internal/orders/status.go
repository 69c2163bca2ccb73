package orders

type Status string

const (
	StatusPending        Status = "PENDING"
	StatusConfirmed      Status = "CONFIRMED"
	StatusShipped        Status = "SHIPPED"
	StatusOutForDelivery Status = "OUTFORDELIVERY"
	StatusDelivered      Status = "DELIVERED"
)

// PENDING -> CONFIRMED hanya lewat transaksi webhook; sisanya dipindah
// oleh fulfillment (di luar service ini).
var validNext = map[Status]map[Status]bool{
	StatusPending:        {StatusConfirmed: true},
	StatusConfirmed:      {StatusShipped: true},
	StatusShipped:        {StatusOutForDelivery: true},
	StatusOutForDelivery: {StatusDelivered: true},
	StatusDelivered:      {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// StatusCache: isi cache order_status:{id} di Redis. user_id ikut disimpan
// supaya fast path status tetap bisa cek kepemilikan tanpa ke DB.
type StatusCache struct {
	Status Status `json:"status"`
	UserID string `json:"user_id"`
}

type PayStatus string

const (
	PayInitiated PayStatus = "INITIATED"
	PayVerifying PayStatus = "VERIFYING"
	PayPaid      PayStatus = "PAID"
	PayFailed    PayStatus = "FAILED"
)

// payment_status di row order (bukan di row payment).
const (
	PaymentUnpaid = "unpaid"
	PaymentPaid   = "paid"
)

const (
	ResvActive   = "ACTIVE"
	ResvConsumed = "CONSUMED"
	ResvExpired  = "EXPIRED"
)
