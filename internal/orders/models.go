package orders

import "time"

type Product struct {
	ID         string    `json:"id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	Stock      int       `json:"stock"`
	PriceCents int       `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ProductStock: hasil stock-check, stok sudah dikurangi reservation aktif.
type ProductStock struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
}

type Order struct {
	ID              string      `json:"order_id"`
	UserID          string      `json:"user_id"`
	Status          Status      `json:"status"`
	PaymentStatus   string      `json:"payment_status"` // unpaid | paid
	TotalCents      int         `json:"total_cents"`
	ShippingAddress Address     `json:"shipping_address"`
	Items           []OrderItem `json:"items,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type OrderItem struct {
	OrderID       string `json:"-"`
	ProductID     string `json:"product_id"`
	Qty           int    `json:"qty"`
	PriceCents    int    `json:"price_cents"`
	DiscountCents int    `json:"discount_cents"`
}

type Payment struct {
	ID           string    `json:"payment_id"`
	OrderID      string    `json:"order_id"`
	UserID       string    `json:"user_id"`
	RzpOrderID   string    `json:"rzp_order_id"`
	RzpPaymentID string    `json:"rzp_payment_id,omitempty"`
	Status       PayStatus `json:"status"`
	AmountCents  int       `json:"amount_cents"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Reservation struct {
	UserID     string
	ProductID  string
	Qty        int
	Status     string // lihat konstanta Resv* di status.go
	ReservedAt time.Time
	ExpiresAt  time.Time
}

// Active: hanya reservation ACTIVE yang belum lewat expires_at yang ikut
// dihitung ke total reserved.
func (r Reservation) Active(now time.Time) bool {
	return r.Status == ResvActive && r.ExpiresAt.After(now)
}

// Address disimpan maksimal 5 per user (lihat AddressRepo).
type Address struct {
	ID          string `json:"id"`
	FullName    string `json:"full_name"`
	Phone       string `json:"phone"`
	HouseNumber string `json:"house_number"`
	Street      string `json:"street"`
	Landmark    string `json:"landmark,omitempty"`
	Area        string `json:"area"`
	City        string `json:"city"`
	State       string `json:"state"`
	Pincode     string `json:"pincode"`
}
