package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/orders"
)

// Collaborator eksternal pasca-konfirmasi. Semuanya best-effort:
// gagal cuma di-log oleh Service, tidak pernah membatalkan order.
type ShipmentCreator interface {
	CreateShipment(ctx context.Context, p orders.OrderConfirmedPayload) error
}

type EmailSender interface {
	SendConfirmation(ctx context.Context, p orders.OrderConfirmedPayload) error
}

type ChatNotifier interface {
	NotifyOrder(ctx context.Context, p orders.OrderConfirmedPayload) error
}

func httpClient() *http.Client { return &http.Client{Timeout: 10 * time.Second} }

func postJSON(ctx context.Context, c *http.Client, url, bearer string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	return nil
}

// ShippingClient: order fulfillment partner (Shiprocket-style API).
type ShippingClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewShippingClient(baseURL, apiKey string) *ShippingClient {
	return &ShippingClient{BaseURL: baseURL, APIKey: apiKey, HTTP: httpClient()}
}

func (c *ShippingClient) CreateShipment(ctx context.Context, p orders.OrderConfirmedPayload) error {
	body := map[string]any{
		"order_id":     p.OrderID,
		"amount_cents": p.AmountCents,
		"items":        p.Items,
		"address":      p.ShippingAddress,
	}
	return postJSON(ctx, c.HTTP, c.BaseURL+"/v1/external/orders/create/adhoc", c.APIKey, body)
}

// EmailClient: email konfirmasi order. Mailer service yang me-resolve
// user_id -> alamat email; kita cuma kirim konteks ordernya.
type EmailClient struct {
	BaseURL string
	APIKey  string
	From    string
	HTTP    *http.Client
}

func NewEmailClient(baseURL, apiKey, from string) *EmailClient {
	return &EmailClient{BaseURL: baseURL, APIKey: apiKey, From: from, HTTP: httpClient()}
}

func (c *EmailClient) SendConfirmation(ctx context.Context, p orders.OrderConfirmedPayload) error {
	body := map[string]any{
		"from":         c.From,
		"user_id":      p.UserID,
		"template":     "order_confirmed",
		"order_id":     p.OrderID,
		"amount_cents": p.AmountCents,
		"payment_ref":  p.PaymentRef,
	}
	return postJSON(ctx, c.HTTP, c.BaseURL+"/emails/order-confirmed", c.APIKey, body)
}

// TelegramNotifier: ping operasional ke channel internal.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	HTTP     *http.Client
}

func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{BotToken: botToken, ChatID: chatID, HTTP: httpClient()}
}

func (t *TelegramNotifier) NotifyOrder(ctx context.Context, p orders.OrderConfirmedPayload) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.BotToken)
	body := map[string]any{
		"chat_id": t.ChatID,
		"text": fmt.Sprintf("order %s confirmed: %d item, total %d, pay %s",
			p.OrderID, len(p.Items), p.AmountCents, p.PaymentRef),
	}
	return postJSON(ctx, t.HTTP, url, "", body)
}
