package notify

import (
	"context"
	"encoding/json"
	"fmt"

	kafkax "github.com/ariefcatur/go-storefront-checkout/internal/kafka"
	"github.com/ariefcatur/go-storefront-checkout/internal/orders"
	"github.com/ariefcatur/go-storefront-checkout/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Service: consumer order.confirmed. Side effect dijalankan berurutan dan
// best-effort; order sudah commit jauh sebelum sampai sini, jadi kegagalan
// collaborator tidak pernah di-propagate (cuma log).
type Service struct {
	Shipments ShipmentCreator
	Email     EmailSender
	Chat      ChatNotifier
	Redis     *redis.Client
	Log       *zap.Logger
}

// HandleOrderConfirmed: dipasang sebagai handler consumer.
func (s *Service) HandleOrderConfirmed(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderConfirmed {
		return nil // ignore
	}

	// dedup via Redis (duplikat paling banter berarti email dobel)
	dkey := fmt.Sprintf(redisx.KeyDedup, "notifier", env.EventID)
	if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[orders.OrderConfirmedPayload](env.Payload)
	if err != nil {
		return err
	}

	log := s.Log.With(zap.String("order_id", p.OrderID))
	if err := s.Shipments.CreateShipment(ctx, p); err != nil {
		log.Warn("shipment create failed", zap.Error(err))
	}
	if err := s.Email.SendConfirmation(ctx, p); err != nil {
		log.Warn("confirmation email failed", zap.Error(err))
	}
	if err := s.Chat.NotifyOrder(ctx, p); err != nil {
		log.Warn("chat notify failed", zap.Error(err))
	}
	return nil
}
