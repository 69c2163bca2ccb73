package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/ariefcatur/go-storefront-checkout/internal/orders"
	"github.com/ariefcatur/go-storefront-checkout/internal/payment"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type WebhookService interface {
	HandleWebhook(ctx context.Context, body []byte, sig, eventID string) (payment.WebhookResult, error)
}

// WebhookHandler: endpoint provider, tanpa auth token; otentikasinya
// signature HMAC di header. Respon pakai status code polos supaya retry
// provider jalan benar: 400 signature/payload, 404 not found, 200 handled
// atau diabaikan, 500 transaksi gagal (provider akan kirim ulang).
type WebhookHandler struct {
	Svc WebhookService
	Log *zap.Logger
}

func (h *WebhookHandler) Register(r chi.Router) {
	r.Post("/webhook/razorpay", h.handle)
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request) {
	// raw body apa adanya; HMAC dihitung atas byte persis yang dikirim
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("X-Razorpay-Signature")
	eventID := r.Header.Get("X-Razorpay-Event-Id")

	_, err = h.Svc.HandleWebhook(r.Context(), body, sig, eventID)
	switch {
	case errors.Is(err, payment.ErrInvalidSignature), errors.Is(err, payment.ErrBadPayload):
		w.WriteHeader(http.StatusBadRequest)
	case errors.Is(err, orders.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case err != nil:
		// termasuk ErrInsufficientStock: order tetap PENDING, biarkan retry
		w.WriteHeader(http.StatusInternalServerError)
	default:
		// handled, ignored, atau already-confirmed: semua 200
		w.WriteHeader(http.StatusOK)
	}
}
