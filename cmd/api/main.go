package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/config"
	"github.com/ariefcatur/go-storefront-checkout/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront-checkout/internal/kafka"
	"github.com/ariefcatur/go-storefront-checkout/internal/logx"
	"github.com/ariefcatur/go-storefront-checkout/internal/orders"
	"github.com/ariefcatur/go-storefront-checkout/internal/payment"
	"github.com/ariefcatur/go-storefront-checkout/internal/postgres"
	"github.com/ariefcatur/go-storefront-checkout/internal/redisx"
	"github.com/ariefcatur/go-storefront-checkout/internal/stock"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.ServiceName)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producer order.confirmed; hidup sampai Close(), bukan sampai ctx
	// (pesan pasca-commit harus tetap ke-flush saat shutdown).
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderConfirmed, 1024, log)
	prod.Start(context.Background())

	// Repos
	orderRepo := &orders.Repo{DB: db}
	paymentRepo := &orders.PaymentRepo{DB: db}
	resvRepo := &orders.ReservationRepo{DB: db}
	confirmRepo := &orders.ConfirmRepo{DB: db}
	addrRepo := &orders.AddressRepo{DB: db}

	// Services
	stockSvc := &stock.Service{
		Products:     orderRepo,
		Reservations: resvRepo,
		Redis:        rdb,
		Log:          log,
	}
	paySvc := &payment.Service{
		Payments:      paymentRepo,
		Orders:        orderRepo,
		Confirm:       confirmRepo,
		Producer:      prod,
		Redis:         rdb,
		KeySecret:     cfg.RazorpayKeySecret,
		WebhookSecret: cfg.RazorpayWebhookSecret,
		ServiceName:   cfg.ServiceName,
		Log:           log,
	}

	// Router & handlers
	router := httpx.NewRouter()
	ch := &httpx.CheckoutHandler{
		Orders:    orderRepo,
		Payments:  paymentRepo,
		Addresses: addrRepo,
		Stock:     stockSvc,
		Verify:    paySvc,
		Provider:  payment.NewRazorpayProvider(cfg.RazorpayKeyID, cfg.RazorpayKeySecret),
		Redis:     rdb,
		Log:       log,
	}
	wh := &httpx.WebhookHandler{Svc: paySvc, Log: log}

	ch.RegisterPublic(router)
	wh.Register(router)
	router.Group(func(r chi.Router) {
		r.Use(httpx.Auth(rdb))
		ch.RegisterAuthed(r)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	// sweeper: backstop expiry reservation, pembaca sudah filter sendiri
	g.Go(func() error {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				n, err := resvRepo.ExpireStale(gctx)
				if err != nil {
					log.Warn("reservation sweep failed", zap.Error(err))
					continue
				}
				if n > 0 {
					log.Info("reservations expired", zap.Int64("count", n))
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown with error", zap.Error(err))
	}
	log.Info("shutting down")
	prod.Close()      // tutup inbox -> flush & close writer
	prod.WaitClosed() // drain
}
