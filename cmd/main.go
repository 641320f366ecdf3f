package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/inkhaven/order-service/internal/app"
	"github.com/inkhaven/order-service/internal/config"
	"github.com/inkhaven/order-service/internal/entities"
	"github.com/inkhaven/order-service/internal/handler"
	"github.com/inkhaven/order-service/internal/notify"
	"github.com/inkhaven/order-service/internal/postgres"
	"github.com/inkhaven/order-service/internal/provider"
	"github.com/inkhaven/order-service/internal/repo"
	"github.com/inkhaven/order-service/internal/service"
	"github.com/inkhaven/order-service/pkg/cache"
	"github.com/inkhaven/order-service/pkg/trm"
)

// @title           Bookstore Order Service API
// @version         1.0
// @description     Checkout sessions and payment reconciliation for the bookstore.
func main() {
	conf := config.New()
	logger := newLogger(conf.Env)
	panicIfErr("invalid config", conf.Validate())

	db, err := postgres.New(conf.Postgres)
	panicIfErr("failed to connect to db", err)
	defer db.Close()
	panicIfErr("failed to migrate db", postgres.Migrate(db))
	logger.Info("postgres connected")

	store := repo.NewPostgresRepo(db)
	txManager := trm.NewManager(db)
	orderCache := cache.New[entities.Order](conf.Cache.Capacity, conf.Cache.TTL)

	publisher := notify.NewPublisher(logger, conf.Kafka, conf.Checkout.SalesEmail)
	providerClient := provider.NewHTTPClient(conf.Provider.BaseURL, conf.Provider.SecretKey)

	orderService := service.NewOrderService(
		logger,
		service.Config{
			ShippingFeeMinor:      conf.Checkout.ShippingFeeMinor,
			DefaultPickupLocation: conf.Checkout.DefaultPickupLocation,
			SuccessURL:            conf.Checkout.SuccessURL,
			CancelURL:             conf.Checkout.CancelURL,
		},
		txManager,
		store,
		store,
		store,
		publisher,
		providerClient,
		orderCache,
	)

	httpHandler := handler.NewHTTPHandler(logger, orderService)
	webhookHandler := handler.NewWebhookHandler(logger, orderService, conf.Provider.WebhookSecret, conf.Provider.WebhookTolerance)

	app := app.New(logger, conf)
	app.SetHTTPHandlers(httpHandler, webhookHandler)
	app.SetStarters(orderCache)
	app.SetClosers(publisher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	panicIfErr("failed to start app", app.Start(ctx))
	<-ctx.Done()
	panicIfErr("failed to stop app", app.Stop())
}

func init() {
	godotenv.Load()
}

func newLogger(env string) *slog.Logger {
	switch env {
	case "production":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

func panicIfErr(prefix string, err error) {
	if err != nil {
		panic(prefix + ": " + err.Error())
	}
}
