package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/nzoagro/backend/internal/auth"
	"github.com/nzoagro/backend/internal/config"
	"github.com/nzoagro/backend/internal/httpx"
	kafkax "github.com/nzoagro/backend/internal/kafka"
	"github.com/nzoagro/backend/internal/notify"
	"github.com/nzoagro/backend/internal/postgres"
	"github.com/nzoagro/backend/internal/redisx"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

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

	registry := notify.NewRegistry()
	store := &notify.Store{DB: db}
	consumer := &notify.Consumer{
		Store:    store,
		Registry: registry,
		Dedup:    redisx.Dedup{C: rdb},
		Service:  cfg.ServiceName + "-notifier",
	}

	group := getenv("NOTIFIER_GROUP", "notifier-svc")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, notify.TopicNotificacoes, workers)

	router := httpx.NewRouter()
	authmw := &auth.Middleware{Secret: []byte(cfg.JWTSecret)}
	ws := &notify.WSHandler{Registry: registry}
	router.Group(func(r chi.Router) {
		r.Use(authmw.Authenticate)
		r.Get("/ws", ws.ServeHTTP)
	})

	srv := &http.Server{Addr: cfg.NotifierHTTPAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("notifier consumer started: group=%s topic=%s workers=%d", group, notify.TopicNotificacoes, workers)
		return cons.Start(gctx, consumer.HandleEvento)
	})
	g.Go(func() error {
		log.Printf("notifier HTTP listening at %s", cfg.NotifierHTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
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
	log.Println("shutting down notifier...")
}
