package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/nzoagro/backend/internal/auth"
	"github.com/nzoagro/backend/internal/config"
	"github.com/nzoagro/backend/internal/delivery"
	"github.com/nzoagro/backend/internal/httpx"
	kafkax "github.com/nzoagro/backend/internal/kafka"
	"github.com/nzoagro/backend/internal/notify"
	"github.com/nzoagro/backend/internal/orders"
	"github.com/nzoagro/backend/internal/postgres"
	"github.com/nzoagro/backend/internal/redisx"
	"github.com/nzoagro/backend/internal/stock"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, notify.TopicNotificacoes, 1024)
	prod.Start(context.Background())

	ledger := &stock.Ledger{DB: db}
	emitter := &notify.Emitter{Producer: prod, Service: cfg.ServiceName}

	ordersRepo := &orders.Repo{DB: db, Ledger: ledger}
	ordersSvc := orders.NewService(ordersRepo, ledger, emitter)

	deliveryRepo := &delivery.Repo{DB: db, Ledger: ledger}
	deliverySvc := delivery.NewService(deliveryRepo, emitter)

	store := &notify.Store{DB: db}

	router := httpx.NewRouter()
	authmw := &auth.Middleware{Secret: []byte(cfg.JWTSecret)}
	oh := &httpx.OrdersHandler{Svc: ordersSvc, Redis: rdb}
	dh := &httpx.DeliveryHandler{Svc: deliverySvc, Redis: rdb}
	nh := &httpx.NotifyHandler{Store: store}

	router.Group(func(r chi.Router) {
		r.Use(authmw.Authenticate)
		oh.Register(r)
		nh.Register(r)
		r.Group(func(r chi.Router) {
			r.Use(auth.Require(auth.PapelTransportadora))
			dh.Register(r)
		})
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	// varredura periodica de expiracao; compartilha o mesmo pool
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				n, err := ordersSvc.ExpirarPendentes(sctx)
				cancel()
				if err != nil {
					// falha fica para o proximo tick
					log.Printf("sweep: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("sweep: %d pedidos expirados", n)
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("exit: %v", err)
	}

	log.Println("shutting down...")
	prod.Close()
	prod.WaitClosed()
}
