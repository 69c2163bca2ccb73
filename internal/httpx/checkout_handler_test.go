package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ariefcatur/go-storefront-checkout/internal/orders"
	"github.com/ariefcatur/go-storefront-checkout/internal/payment"
	"github.com/ariefcatur/go-storefront-checkout/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOrderStore struct {
	created map[string]orders.Order
}

func (f *fakeOrderStore) CreateOrder(_ context.Context, userID string, items []orders.ItemInput, addr orders.Address) (string, int, error) {
	return "ord-new", 12300, nil
}

func (f *fakeOrderStore) Get(_ context.Context, orderID string) (orders.Order, error) {
	o, ok := f.created[orderID]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrderStore) GetStatus(_ context.Context, orderID string) (orders.Status, string, error) {
	o, ok := f.created[orderID]
	if !ok {
		return "", "", orders.ErrNotFound
	}
	return o.Status, o.UserID, nil
}

func (f *fakeOrderStore) ListByUser(_ context.Context, userID string, limit, offset int) ([]orders.Order, error) {
	var out []orders.Order
	for _, o := range f.created {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakePaymentStore struct {
	payments  map[string]orders.Payment
	verifying []string
	createErr error
}

func (f *fakePaymentStore) Create(_ context.Context, p orders.Payment) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.payments[p.OrderID] = p
	return nil
}

func (f *fakePaymentStore) GetByOrderID(_ context.Context, orderID string) (orders.Payment, error) {
	p, ok := f.payments[orderID]
	if !ok {
		return orders.Payment{}, orders.ErrNotFound
	}
	return p, nil
}

func (f *fakePaymentStore) MarkVerifying(_ context.Context, orderID string) error {
	if _, ok := f.payments[orderID]; !ok {
		return orders.ErrNotFound
	}
	f.verifying = append(f.verifying, orderID)
	return nil
}

type fakeAddressStore struct {
	upsertErr error
	list      []orders.Address
}

func (f *fakeAddressStore) List(_ context.Context, userID string) ([]orders.Address, error) {
	return f.list, nil
}

func (f *fakeAddressStore) Upsert(_ context.Context, userID string, a orders.Address) (orders.Address, error) {
	if f.upsertErr != nil {
		return orders.Address{}, f.upsertErr
	}
	if a.ID == "" {
		a.ID = "addr-1"
	}
	return a, nil
}

func (f *fakeAddressStore) Delete(_ context.Context, userID, id string) error {
	if id != "addr-1" {
		return orders.ErrNotFound
	}
	return nil
}

type fakeStockSvc struct {
	ok          bool
	unavailable []string
}

func (f *fakeStockSvc) Check(_ context.Context, ids []string) ([]orders.ProductStock, error) {
	out := make([]orders.ProductStock, 0, len(ids))
	for _, id := range ids {
		out = append(out, orders.ProductStock{ProductID: id, Stock: 7})
	}
	return out, nil
}

func (f *fakeStockSvc) Reserve(_ context.Context, userID string, items []orders.ItemQty) (bool, []string, error) {
	return f.ok, f.unavailable, nil
}

type fakeVerifier struct {
	err     error
	gotPay  string
	gotSig  string
	gotUser string
}

func (f *fakeVerifier) VerifyClient(_ context.Context, orderID, userID, rzpPaymentID, sig string) error {
	f.gotUser, f.gotPay, f.gotSig = userID, rzpPaymentID, sig
	return f.err
}

type fakeProvider struct{ id string }

func (f *fakeProvider) CreateOrder(_ context.Context, amountCents int, currency, receipt string) (string, error) {
	return f.id, nil
}

// withUser: pengganti middleware Auth di test.
func withUser(uid string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uid)))
		})
	}
}

type handlerFixture struct {
	h      *CheckoutHandler
	orders *fakeOrderStore
	pays   *fakePaymentStore
	addrs  *fakeAddressStore
	stock  *fakeStockSvc
	verify *fakeVerifier
}

func newFixture() *handlerFixture {
	f := &handlerFixture{
		orders: &fakeOrderStore{created: map[string]orders.Order{}},
		pays:   &fakePaymentStore{payments: map[string]orders.Payment{}},
		addrs:  &fakeAddressStore{},
		stock:  &fakeStockSvc{ok: true},
		verify: &fakeVerifier{},
	}
	f.h = &CheckoutHandler{
		Orders:    f.orders,
		Payments:  f.pays,
		Addresses: f.addrs,
		Stock:     f.stock,
		Verify:    f.verify,
		Provider:  &fakeProvider{id: "order_rzp_99"},
		Redis:     redisx.New("127.0.0.1:1"),
		Log:       zap.NewNop(),
	}
	return f
}

func (f *handlerFixture) router(uid string) *chi.Mux {
	r := chi.NewRouter()
	f.h.RegisterPublic(r)
	r.Group(func(r chi.Router) {
		if uid != "" {
			r.Use(withUser(uid))
		}
		f.h.RegisterAuthed(r)
	})
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestStockCheckPublic(t *testing.T) {
	f := newFixture()
	rr := doJSON(t, f.router(""), http.MethodPost, "/stock/check",
		map[string]any{"products": []string{"A", "B"}})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Stocks []orders.ProductStock `json:"stocks"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Stocks, 2)
	assert.Equal(t, 7, resp.Stocks[0].Stock)
}

func TestReserveRequiresUser(t *testing.T) {
	f := newFixture()
	rr := doJSON(t, f.router(""), http.MethodPost, "/stock/reserve",
		map[string]any{"items": []orders.ItemQty{{ProductID: "A", Qty: 1}}})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestReserveUnavailable(t *testing.T) {
	f := newFixture()
	f.stock.ok = false
	f.stock.unavailable = []string{"A"}

	rr := doJSON(t, f.router("u1"), http.MethodPost, "/stock/reserve",
		map[string]any{"items": []orders.ItemQty{{ProductID: "A", Qty: 1}}})
	require.Equal(t, http.StatusConflict, rr.Code)

	var resp struct {
		OK          bool     `json:"ok"`
		Unavailable []string `json:"unavailable"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.Equal(t, []string{"A"}, resp.Unavailable)
}

func TestReserveRejectsBadItems(t *testing.T) {
	f := newFixture()
	rr := doJSON(t, f.router("u1"), http.MethodPost, "/stock/reserve",
		map[string]any{"items": []orders.ItemQty{{ProductID: "A", Qty: 0}}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateOrder(t *testing.T) {
	f := newFixture()
	rr := doJSON(t, f.router("u1"), http.MethodPost, "/orders", map[string]any{
		"items":            []orders.ItemInput{{ProductID: "A", Qty: 2}},
		"shipping_address": orders.Address{FullName: "Budi", Phone: "08123", Street: "Jl. Melati", City: "Bandung", State: "Jabar", Pincode: "40111"},
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp createOrderResp
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ord-new", resp.OrderID)
	assert.Equal(t, 12300, resp.TotalCents)
}

func TestGetOrderOwnership(t *testing.T) {
	f := newFixture()
	f.orders.created["ord1"] = orders.Order{ID: "ord1", UserID: "u1", Status: orders.StatusPending}

	// pemilik
	rr := doJSON(t, f.router("u1"), http.MethodGet, "/orders/ord1", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	// bukan pemilik -> 404, bukan 403 (jangan bocorkan keberadaan order)
	rr = doJSON(t, f.router("u2"), http.MethodGet, "/orders/ord1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, f.router("u1"), http.MethodGet, "/orders/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateOrderRejectsDuplicateItems(t *testing.T) {
	f := newFixture()
	rr := doJSON(t, f.router("u1"), http.MethodPost, "/orders", map[string]any{
		"items": []orders.ItemInput{
			{ProductID: "A", Qty: 2},
			{ProductID: "A", Qty: 1},
		},
		"shipping_address": orders.Address{FullName: "Budi", Phone: "08123", Street: "Jl. Melati", City: "Bandung", State: "Jabar", Pincode: "40111"},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "product dobel harus ditolak sebagai validation error")
}

func TestGetOrderStatus(t *testing.T) {
	f := newFixture()
	f.orders.created["ord1"] = orders.Order{ID: "ord1", UserID: "u1", Status: orders.StatusConfirmed}

	// cache kosong (redis mati) -> fallback DB
	rr := doJSON(t, f.router("u1"), http.MethodGet, "/orders/ord1/status", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Status orders.Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, orders.StatusConfirmed, resp.Status)

	// bukan pemilik -> 404
	rr = doJSON(t, f.router("u2"), http.MethodGet, "/orders/ord1/status", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, f.router("u1"), http.MethodGet, "/orders/ghost/status", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCachedStatus(t *testing.T) {
	raw, err := json.Marshal(orders.StatusCache{Status: orders.StatusPending, UserID: "u1"})
	require.NoError(t, err)

	entry, ok := cachedStatus(raw)
	require.True(t, ok)
	assert.Equal(t, orders.StatusPending, entry.Status)
	assert.Equal(t, "u1", entry.UserID)

	// entry tanpa user_id atau rusak = miss, bukan bypass ownership
	_, ok = cachedStatus([]byte(`{"status":"PENDING"}`))
	assert.False(t, ok)
	_, ok = cachedStatus([]byte(`not-json`))
	assert.False(t, ok)
}

func TestCreatePayment(t *testing.T) {
	f := newFixture()
	f.orders.created["ord1"] = orders.Order{ID: "ord1", UserID: "u1", Status: orders.StatusPending, TotalCents: 50000}

	rr := doJSON(t, f.router("u1"), http.MethodPost, "/payments", map[string]any{"order_id": "ord1"})
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "order_rzp_99", resp["rzp_order_id"])

	p := f.pays.payments["ord1"]
	assert.Equal(t, orders.PayInitiated, p.Status)
	assert.Equal(t, 50000, p.AmountCents)
}

func TestCreatePaymentDuplicate(t *testing.T) {
	f := newFixture()
	f.orders.created["ord1"] = orders.Order{ID: "ord1", UserID: "u1", TotalCents: 100}
	f.pays.createErr = orders.ErrAlreadyExists

	rr := doJSON(t, f.router("u1"), http.MethodPost, "/payments", map[string]any{"order_id": "ord1"})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestPaymentCallbackSetsCookies(t *testing.T) {
	f := newFixture()
	f.pays.payments["ord1"] = orders.Payment{OrderID: "ord1", UserID: "u1"}

	rr := doJSON(t, f.router("u1"), http.MethodPost, "/payments/callback", map[string]any{
		"order_id":       "ord1",
		"rzp_payment_id": "pay_7",
		"rzp_signature":  "sig_7",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, f.pays.verifying, "ord1")

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 2)
	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
		assert.True(t, c.HttpOnly, "cookie %s harus httpOnly", c.Name)
		assert.True(t, c.Secure, "cookie %s harus secure", c.Name)
	}
	require.Contains(t, byName, "rzp_pay_ord1")
	require.Contains(t, byName, "rzp_sig_ord1")
	assert.Equal(t, "pay_7", byName["rzp_pay_ord1"].Value)
	assert.Equal(t, "sig_7", byName["rzp_sig_ord1"].Value)
}

func TestVerifyReadsCookiesNotBody(t *testing.T) {
	f := newFixture()

	rr := doJSON(t, f.router("u1"), http.MethodPost, "/payments/verify",
		map[string]any{"order_id": "ord1", "rzp_payment_id": "dari-body"},
		&http.Cookie{Name: "rzp_pay_ord1", Value: "pay_cookie"},
		&http.Cookie{Name: "rzp_sig_ord1", Value: "sig_cookie"},
	)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "pay_cookie", f.verify.gotPay, "payment id harus dari cookie, bukan body")
	assert.Equal(t, "sig_cookie", f.verify.gotSig)
	assert.Equal(t, "u1", f.verify.gotUser)
}

func TestVerifyMissingCookies(t *testing.T) {
	f := newFixture()
	rr := doJSON(t, f.router("u1"), http.MethodPost, "/payments/verify",
		map[string]any{"order_id": "ord1"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVerifyInvalidSignature(t *testing.T) {
	f := newFixture()
	f.verify.err = payment.ErrInvalidSignature

	rr := doJSON(t, f.router("u1"), http.MethodPost, "/payments/verify",
		map[string]any{"order_id": "ord1"},
		&http.Cookie{Name: "rzp_pay_ord1", Value: "pay_x"},
		&http.Cookie{Name: "rzp_sig_ord1", Value: "sig_x"},
	)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp verifyResp
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid signature", resp.Message)
}

func TestAddressLimit(t *testing.T) {
	f := newFixture()
	f.addrs.upsertErr = orders.ErrAddressLimit

	rr := doJSON(t, f.router("u1"), http.MethodPost, "/profile/addresses", orders.Address{
		FullName: "Budi", Phone: "08123", HouseNumber: "12", Street: "Jl. Melati",
		Area: "Cicendo", City: "Bandung", State: "Jabar", Pincode: "40111",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteAddress(t *testing.T) {
	f := newFixture()

	rr := doJSON(t, f.router("u1"), http.MethodDelete, "/profile/addresses/addr-1", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, f.router("u1"), http.MethodDelete, "/profile/addresses/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
