package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkax "github.com/ariefcatur/go-storefront-checkout/internal/kafka"
	"github.com/ariefcatur/go-storefront-checkout/internal/orders"
	"github.com/ariefcatur/go-storefront-checkout/internal/redisx"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	calls int
	err   error
	last  orders.OrderConfirmedPayload
}

func (r *recorder) record(p orders.OrderConfirmedPayload) error {
	r.calls++
	r.last = p
	return r.err
}

func (r *recorder) CreateShipment(_ context.Context, p orders.OrderConfirmedPayload) error {
	return r.record(p)
}
func (r *recorder) SendConfirmation(_ context.Context, p orders.OrderConfirmedPayload) error {
	return r.record(p)
}
func (r *recorder) NotifyOrder(_ context.Context, p orders.OrderConfirmedPayload) error {
	return r.record(p)
}

func confirmedMessage(t *testing.T) kafkago.Message {
	t.Helper()
	ev := orders.Envelope{
		EventID:      uuid.NewString(),
		EventType:    orders.EventOrderConfirmed,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "test",
		Payload: kafkax.MustMarshal(orders.OrderConfirmedPayload{
			OrderID:     "ord1",
			UserID:      "u1",
			AmountCents: 50000,
			PaymentRef:  "pay_1",
			Items:       []orders.ItemQty{{ProductID: "A", Qty: 5}},
		}),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(ev)}
}

func newSvc() (*Service, *recorder, *recorder, *recorder) {
	ship, email, chat := &recorder{}, &recorder{}, &recorder{}
	svc := &Service{
		Shipments: ship,
		Email:     email,
		Chat:      chat,
		Redis:     redisx.New("127.0.0.1:1"),
		Log:       zap.NewNop(),
	}
	return svc, ship, email, chat
}

func TestHandleOrderConfirmedInvokesAllCollaborators(t *testing.T) {
	svc, ship, email, chat := newSvc()

	require.NoError(t, svc.HandleOrderConfirmed(context.Background(), confirmedMessage(t)))
	assert.Equal(t, 1, ship.calls)
	assert.Equal(t, 1, email.calls)
	assert.Equal(t, 1, chat.calls)
	assert.Equal(t, "ord1", ship.last.OrderID)
}

func TestHandleOrderConfirmedBestEffort(t *testing.T) {
	svc, ship, email, chat := newSvc()
	ship.err = errors.New("courier down")
	email.err = errors.New("mailer down")

	// collaborator gagal tidak menghentikan yang lain dan tidak bikin retry
	require.NoError(t, svc.HandleOrderConfirmed(context.Background(), confirmedMessage(t)))
	assert.Equal(t, 1, ship.calls)
	assert.Equal(t, 1, email.calls)
	assert.Equal(t, 1, chat.calls)
}

func TestHandleOrderConfirmedIgnoresOtherEvents(t *testing.T) {
	svc, ship, email, chat := newSvc()

	ev := orders.Envelope{EventID: uuid.NewString(), EventType: "SomethingElse"}
	m := kafkago.Message{Value: kafkax.MustMarshal(ev)}
	require.NoError(t, svc.HandleOrderConfirmed(context.Background(), m))
	assert.Zero(t, ship.calls)
	assert.Zero(t, email.calls)
	assert.Zero(t, chat.calls)
}

func TestHandleOrderConfirmedBadEnvelope(t *testing.T) {
	svc, _, _, _ := newSvc()
	err := svc.HandleOrderConfirmed(context.Background(), kafkago.Message{Value: []byte("not-json")})
	require.Error(t, err)
}
