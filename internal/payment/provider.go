package payment

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
)

// Provider: satu-satunya yang dibutuhkan dari payment gateway di sisi create.
// Verifikasi tidak lewat SDK; HMAC dihitung sendiri (signature.go).
type Provider interface {
	CreateOrder(ctx context.Context, amountCents int, currency, receipt string) (string, error)
}

type RazorpayProvider struct {
	Client *razorpay.Client
}

func NewRazorpayProvider(keyID, keySecret string) *RazorpayProvider {
	return &RazorpayProvider{Client: razorpay.NewClient(keyID, keySecret)}
}

func (p *RazorpayProvider) CreateOrder(ctx context.Context, amountCents int, currency, receipt string) (string, error) {
	if currency == "" {
		currency = "INR"
	}
	data := map[string]interface{}{
		"amount":          amountCents, // paise
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 1,
	}
	body, err := p.Client.Order.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("razorpay order create: %w", err)
	}
	id, _ := body["id"].(string)
	if id == "" {
		return "", fmt.Errorf("razorpay order create: no id in response")
	}
	return id, nil
}
