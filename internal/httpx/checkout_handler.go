package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/orders"
	"github.com/ariefcatur/go-storefront-checkout/internal/payment"
	"github.com/ariefcatur/go-storefront-checkout/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type OrderStore interface {
	CreateOrder(ctx context.Context, userID string, items []orders.ItemInput, addr orders.Address) (string, int, error)
	Get(ctx context.Context, orderID string) (orders.Order, error)
	GetStatus(ctx context.Context, orderID string) (orders.Status, string, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]orders.Order, error)
}

type PaymentStore interface {
	Create(ctx context.Context, p orders.Payment) error
	GetByOrderID(ctx context.Context, orderID string) (orders.Payment, error)
	MarkVerifying(ctx context.Context, orderID string) error
}

type AddressStore interface {
	List(ctx context.Context, userID string) ([]orders.Address, error)
	Upsert(ctx context.Context, userID string, a orders.Address) (orders.Address, error)
	Delete(ctx context.Context, userID, id string) error
}

type StockService interface {
	Check(ctx context.Context, productIDs []string) ([]orders.ProductStock, error)
	Reserve(ctx context.Context, userID string, items []orders.ItemQty) (bool, []string, error)
}

type Verifier interface {
	VerifyClient(ctx context.Context, orderID, userID, rzpPaymentID, sig string) error
}

type CheckoutHandler struct {
	Orders    OrderStore
	Payments  PaymentStore
	Addresses AddressStore
	Stock     StockService
	Verify    Verifier
	Provider  payment.Provider
	Redis     *redis.Client
	Log       *zap.Logger
}

// RegisterPublic: endpoint tanpa auth token.
func (h *CheckoutHandler) RegisterPublic(r chi.Router) {
	r.Post("/stock/check", h.stockCheck)
}

// RegisterAuthed: dipasang di-group dengan middleware Auth.
func (h *CheckoutHandler) RegisterAuthed(r chi.Router) {
	r.Post("/stock/reserve", h.reserveStock)
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Get("/orders/{id}/payment", h.getPayment)
	r.Post("/payments", h.createPayment)
	r.Post("/payments/callback", h.paymentCallback)
	r.Post("/payments/verify", h.verifyPayment)
	r.Get("/profile/addresses", h.listAddresses)
	r.Post("/profile/addresses", h.upsertAddress)
	r.Delete("/profile/addresses/{id}", h.deleteAddress)
}

// ---- stock ----

type stockCheckReq struct {
	Products []string `json:"products"`
}

func (h *CheckoutHandler) stockCheck(w http.ResponseWriter, r *http.Request) {
	var req stockCheckReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Products) == 0 {
		writeError(w, http.StatusBadRequest, "missing products")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	stocks, err := h.Stock.Check(ctx, req.Products)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stocks": stocks})
}

type reserveReq struct {
	Items []orders.ItemQty `json:"items"`
}

func (h *CheckoutHandler) reserveStock(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r.Context())
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	var req reserveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "missing items")
		return
	}
	for _, it := range req.Items {
		if it.ProductID == "" || it.Qty <= 0 {
			writeError(w, http.StatusBadRequest, "invalid item")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ok, unavailable, err := h.Stock.Reserve(ctx, uid, req.Items)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		// stok habis dibedakan dari failure generik
		writeJSON(w, http.StatusConflict, map[string]any{"ok": false, "unavailable": unavailable})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ---- orders ----

type createOrderReq struct {
	Items           []orders.ItemInput `json:"items"`
	ShippingAddress orders.Address     `json:"shipping_address"`
}

type createOrderResp struct {
	OrderID    string `json:"order_id"`
	TotalCents int    `json:"total_cents"`
}

func (h *CheckoutHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r.Context())
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "missing items")
		return
	}
	seen := map[string]bool{}
	for _, it := range req.Items {
		if seen[it.ProductID] {
			writeError(w, http.StatusBadRequest, "duplicate product in items")
			return
		}
		seen[it.ProductID] = true
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orderID, total, err := h.Orders.CreateOrder(ctx, uid, req.Items, req.ShippingAddress)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// cache status PENDING biar fast path status langsung hangat
	h.cacheStatus(ctx, orderID, orders.StatusPending, uid)

	writeJSON(w, http.StatusCreated, createOrderResp{OrderID: orderID, TotalCents: total})
}

func (h *CheckoutHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r.Context())
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// ownership: order orang lain diperlakukan seperti tidak ada
	if o.UserID != uid {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	h.cacheStatus(ctx, orderID, o.Status, o.UserID)
	writeJSON(w, http.StatusOK, o)
}

// cachedStatus: entry cache lama (format tanpa user_id) dianggap miss,
// jangan sampai ownership lolos tanpa cek.
func cachedStatus(raw []byte) (orders.StatusCache, bool) {
	var e orders.StatusCache
	if json.Unmarshal(raw, &e) != nil || e.Status == "" || e.UserID == "" {
		return orders.StatusCache{}, false
	}
	return e, true
}

func (h *CheckoutHandler) cacheStatus(ctx context.Context, orderID string, st orders.Status, uid string) {
	b, err := json.Marshal(orders.StatusCache{Status: st, UserID: uid})
	if err != nil {
		return
	}
	skey := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	_ = h.Redis.Set(ctx, skey, b, redisx.TTLStatusCache).Err()
}

// getOrderStatus: fast path dari cache Redis; miss -> DB lalu isi cache.
// user_id tersimpan di entry cache supaya hit tetap ownership-checked.
func (h *CheckoutHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r.Context())
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	skey := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if raw, err := h.Redis.Get(ctx, skey).Bytes(); err == nil {
		if entry, ok := cachedStatus(raw); ok {
			if entry.UserID != uid {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"status": entry.Status})
			return
		}
	}

	st, owner, err := h.Orders.GetStatus(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if owner != uid {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	h.cacheStatus(ctx, orderID, st, owner)
	writeJSON(w, http.StatusOK, map[string]any{"status": st})
}

func (h *CheckoutHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r.Context())
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Orders.ListByUser(ctx, uid, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list})
}

func (h *CheckoutHandler) getPayment(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r.Context())
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Payments.GetByOrderID(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if p.UserID != uid {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       p.Status,
		"rzp_order_id": p.RzpOrderID,
		"amount_cents": p.AmountCents,
	})
}

// ---- payments ----

type createPaymentReq struct {
	OrderID  string `json:"order_id"`
	Currency string `json:"currency,omitempty"`
}

func (h *CheckoutHandler) createPayment(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r.Context())
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	var req createPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "missing order_id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, req.OrderID)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if o.UserID != uid {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	rzpOrderID, err := h.Provider.CreateOrder(ctx, o.TotalCents, req.Currency, o.ID)
	if err != nil {
		h.Log.Error("provider order create failed", zap.String("order_id", o.ID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "payment provider unavailable")
		return
	}

	err = h.Payments.Create(ctx, orders.Payment{
		ID:          uuid.NewString(),
		OrderID:     o.ID,
		UserID:      uid,
		RzpOrderID:  rzpOrderID,
		Status:      orders.PayInitiated,
		AmountCents: o.TotalCents,
	})
	if errors.Is(err, orders.ErrAlreadyExists) {
		writeError(w, http.StatusConflict, "payment already initiated")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"rzp_order_id": rzpOrderID,
		"amount_cents": o.TotalCents,
		"currency":     req.Currency,
	})
}

func payCookieNames(orderID string) (payName, sigName string) {
	return "rzp_pay_" + orderID, "rzp_sig_" + orderID
}

type paymentCallbackReq struct {
	OrderID      string `json:"order_id"`
	RzpPaymentID string `json:"rzp_payment_id"`
	RzpSignature string `json:"rzp_signature"`
}

// paymentCallback: simpan payment id + signature hasil checkout di cookie
// httpOnly keyed order id. Verify nanti baca dari cookie, bukan body,
// supaya nilai tidak bisa diutak-atik dari JS.
func (h *CheckoutHandler) paymentCallback(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r.Context())
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	var req paymentCallbackReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.OrderID == "" || req.RzpPaymentID == "" || req.RzpSignature == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Payments.MarkVerifying(ctx, req.OrderID); err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	payName, sigName := payCookieNames(req.OrderID)
	for name, val := range map[string]string{payName: req.RzpPaymentID, sigName: req.RzpSignature} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    val,
			Path:     "/",
			MaxAge:   600,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type verifyReq struct {
	OrderID string `json:"order_id"`
}

type verifyResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *CheckoutHandler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r.Context())
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	var req verifyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "missing order_id")
		return
	}

	payName, sigName := payCookieNames(req.OrderID)
	payCookie, err1 := r.Cookie(payName)
	sigCookie, err2 := r.Cookie(sigName)
	if err1 != nil || err2 != nil {
		writeJSON(w, http.StatusBadRequest, verifyResp{Success: false, Message: "missing payment cookies"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := h.Verify.VerifyClient(ctx, req.OrderID, uid, payCookie.Value, sigCookie.Value)
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		writeJSON(w, http.StatusBadRequest, verifyResp{Success: false, Message: "Invalid signature"})
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, verifyResp{Success: true, Message: "payment verified"})
	}
}

// ---- addresses ----

func (h *CheckoutHandler) listAddresses(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r.Context())
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Addresses.List(ctx, uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"addresses": list})
}

func (h *CheckoutHandler) upsertAddress(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r.Context())
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	var a orders.Address
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if a.FullName == "" || a.Phone == "" || a.Street == "" || a.City == "" || a.State == "" || a.Pincode == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	saved, err := h.Addresses.Upsert(ctx, uid, a)
	if errors.Is(err, orders.ErrAddressLimit) {
		writeError(w, http.StatusBadRequest, "address limit reached")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *CheckoutHandler) deleteAddress(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r.Context())
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Addresses.Delete(ctx, uid, id); err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
