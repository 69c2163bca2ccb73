package redisx

import "time"

const (
	// Session auth: sess:{token} -> user_id (ditulis auth service, di luar repo ini)
	KeySession = "sess:%s"

	// Cache status order: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{id} (id = event_id provider)
	KeyDedup = "dedup:%s:%s"

	// Checkout session advisory per user (tidak melepas reservation lebih awal)
	KeyCheckoutSession = "checkout:%s"
)

var (
	TTLStatusCache     = 5 * time.Minute
	TTLDedup           = 48 * time.Hour
	TTLCheckoutSession = 20 * time.Minute
)
