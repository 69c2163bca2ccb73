package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkax "github.com/ariefcatur/go-storefront-checkout/internal/kafka"
	"github.com/ariefcatur/go-storefront-checkout/internal/orders"
	"github.com/ariefcatur/go-storefront-checkout/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrBadPayload       = errors.New("bad webhook payload")
)

const (
	eventPaymentCaptured = "payment.captured"
	eventPaymentFailed   = "payment.failed"
)

type PaymentStore interface {
	GetByOrderID(ctx context.Context, orderID string) (orders.Payment, error)
	GetByProviderOrderID(ctx context.Context, rzpOrderID string) (orders.Payment, error)
	MarkPaid(ctx context.Context, orderID, rzpPaymentID string) error
	MarkFailed(ctx context.Context, orderID string) error
}

type OrderStore interface {
	Get(ctx context.Context, orderID string) (orders.Order, error)
}

type Confirmer interface {
	ConfirmPaid(ctx context.Context, in orders.ConfirmOrder) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Service menggabungkan dua jalur konfirmasi: verify client-side dan
// webhook provider. Dua-duanya konvergen ke state akhir yang sama;
// hanya jalur webhook yang menyentuh stok.
type Service struct {
	Payments PaymentStore
	Orders   OrderStore
	Confirm  Confirmer
	Producer Publisher
	Redis    *redis.Client

	KeySecret     string
	WebhookSecret string
	ServiceName   string
	Log           *zap.Logger
}

type WebhookResult int

const (
	WebhookIgnored WebhookResult = iota
	WebhookAlreadyConfirmed
	WebhookConfirmed
)

// bentuk event payment.captured dari Razorpay (field yang dipakai saja)
type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// HandleWebhook: jalur kritis konfirmasi order, lihat urutan di bawah.
// Idempotent: status order != PENDING -> no-op sukses, aman terhadap retry
// provider. Gagal transaksi -> error, order tetap PENDING, provider retry.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, sig, eventID string) (WebhookResult, error) {
	// 1) otentikasi = HMAC atas raw body
	if !VerifyWebhookSignature(s.WebhookSecret, body, sig) {
		s.Log.Warn("webhook signature mismatch", zap.String("event_id", eventID))
		return WebhookIgnored, ErrInvalidSignature
	}

	// 2) parse; selain payment.captured dan payment.failed di-ack tanpa aksi
	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return WebhookIgnored, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	rzpOrderID := ev.Payload.Payment.Entity.OrderID
	rzpPaymentID := ev.Payload.Payment.Entity.ID
	switch ev.Event {
	case eventPaymentCaptured:
		// lanjut ke konfirmasi di bawah
	case eventPaymentFailed:
		return s.handleFailed(ctx, rzpOrderID)
	default:
		return WebhookIgnored, nil
	}
	if rzpOrderID == "" || rzpPaymentID == "" {
		return WebhookIgnored, ErrBadPayload
	}

	// 3) dedup best-effort via Redis. Key baru ditulis SETELAH commit,
	// supaya delivery ulang setelah transaksi gagal tetap diproses.
	dkey := fmt.Sprintf(redisx.KeyDedup, "webhook", eventID)
	if eventID != "" {
		if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
			return WebhookAlreadyConfirmed, nil
		}
	}

	// 4) payment via secondary index rzp_order_id
	p, err := s.Payments.GetByProviderOrderID(ctx, rzpOrderID)
	if err != nil {
		return WebhookIgnored, err // ErrNotFound -> 404 di handler
	}

	// 5) order
	o, err := s.Orders.Get(ctx, p.OrderID)
	if err != nil {
		return WebhookIgnored, err
	}

	// 6) guard idempotency via state machine: cuma PENDING yang boleh
	// maju ke CONFIRMED; status lain -> sukses tanpa mutasi
	if !orders.CanTransition(o.Status, orders.StatusConfirmed) {
		return WebhookAlreadyConfirmed, nil
	}

	// 7-8) transaksi atomik: stok, payment, order, reservation
	items := make([]orders.ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orders.ItemQty{ProductID: it.ProductID, Qty: it.Qty})
	}
	err = s.Confirm.ConfirmPaid(ctx, orders.ConfirmOrder{
		OrderID:           o.ID,
		UserID:            o.UserID,
		PaymentID:         p.ID,
		ProviderPaymentID: rzpPaymentID,
		Items:             items,
	})
	if errors.Is(err, orders.ErrAlreadyConfirmed) {
		// balapan dengan delivery lain yang menang duluan
		return WebhookAlreadyConfirmed, nil
	}
	if err != nil {
		s.Log.Error("confirm transaction failed",
			zap.String("order_id", o.ID), zap.Error(err))
		return WebhookIgnored, err
	}

	// 9-10) pasca-commit: dedup key, cache status, publish event notifier.
	// Semua best-effort; order sudah final.
	if eventID != "" {
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}
	skey := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	_ = s.Redis.Set(ctx, skey,
		kafkax.MustMarshal(orders.StatusCache{Status: orders.StatusConfirmed, UserID: o.UserID}),
		redisx.TTLStatusCache).Err()

	s.publishConfirmed(o, rzpPaymentID)
	s.Log.Info("order confirmed",
		zap.String("order_id", o.ID),
		zap.String("rzp_payment_id", rzpPaymentID))
	return WebhookConfirmed, nil
}

// handleFailed: event payment.failed. Payment yang masih
// INITIATED/VERIFYING ditandai FAILED; order tidak disentuh (user bisa
// create payment baru). Order yang tidak dikenal atau sudah PAID di-ack
// tanpa aksi, failed event tidak layak retry provider.
func (s *Service) handleFailed(ctx context.Context, rzpOrderID string) (WebhookResult, error) {
	if rzpOrderID == "" {
		return WebhookIgnored, ErrBadPayload
	}
	p, err := s.Payments.GetByProviderOrderID(ctx, rzpOrderID)
	if errors.Is(err, orders.ErrNotFound) {
		return WebhookIgnored, nil
	}
	if err != nil {
		return WebhookIgnored, err
	}
	if p.Status == orders.PayPaid {
		return WebhookIgnored, nil
	}
	if err := s.Payments.MarkFailed(ctx, p.OrderID); err != nil && !errors.Is(err, orders.ErrNotFound) {
		return WebhookIgnored, err
	}
	s.Log.Info("payment failed", zap.String("order_id", p.OrderID))
	return WebhookIgnored, nil
}

func (s *Service) publishConfirmed(o orders.Order, rzpPaymentID string) {
	items := make([]orders.ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orders.ItemQty{ProductID: it.ProductID, Qty: it.Qty})
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderConfirmed,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderConfirmedPayload{
			OrderID:         o.ID,
			UserID:          o.UserID,
			AmountCents:     o.TotalCents,
			PaymentRef:      rzpPaymentID,
			Items:           items,
			ShippingAddress: o.ShippingAddress,
		}),
	}
	s.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderConfirmed)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// VerifyClient: jalur verify yang dipicu client setelah checkout.
// Signature dihitung atas "{rzp_order_id}|{rzp_payment_id}". Mismatch ->
// tidak ada perubahan state sama sekali. Match -> payment PAID; stok TIDAK
// disentuh di sini (cuma webhook yang decrement).
func (s *Service) VerifyClient(ctx context.Context, orderID, userID, rzpPaymentID, sig string) error {
	p, err := s.Payments.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if p.UserID != userID {
		return orders.ErrNotFound
	}
	if !VerifyCheckoutSignature(s.KeySecret, p.RzpOrderID, rzpPaymentID, sig) {
		s.Log.Warn("checkout signature mismatch", zap.String("order_id", orderID))
		return ErrInvalidSignature
	}
	return s.Payments.MarkPaid(ctx, orderID, rzpPaymentID)
}
