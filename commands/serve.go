package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"candle-shop/auth"
	"candle-shop/cache"
	"candle-shop/config"
	"candle-shop/database"
	"candle-shop/handlers"
	"candle-shop/jobs"
	"candle-shop/kafka"
	"candle-shop/middleware"
	"candle-shop/notification"
	"candle-shop/orders"
	"candle-shop/payment"
	"candle-shop/server"

	"github.com/IBM/sarama"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storefront REST API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	shutdownTracing, err := middleware.InitTracing(cfg.Tracing, server.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer shutdownTracing()

	db, err := database.InitDB(cfg.DB, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(cmd.Context(), db, logger); err != nil {
		return err
	}

	productCache := connectCache(cfg.Redis, logger)

	gateways, mock, paymentConfig := buildGateways(cfg.Payment, logger)

	notifier, closeNotifier, err := buildNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	service := orders.NewService(
		orders.NewPostgresStore(db),
		gateways,
		notifier,
		cfg.Payment.Currency,
		logger,
		orders.WithNotifyTimeout(cfg.Notifications.Timeout),
	)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	router := server.NewRouter(server.Handlers{
		Auth:     handlers.NewAuthHandler(db, tokens, logger),
		Products: handlers.NewProductHandler(db, productCache, logger),
		Orders:   handlers.NewOrderHandler(service, logger),
		Payments: handlers.NewPaymentHandler(paymentConfig, mock, logger),
	}, tokens, logger)

	report, err := jobs.Schedule(jobs.NewStaleOrderReport(service, logger), logger)
	if err != nil {
		return err
	}
	defer report.Stop()

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	logger.Info("Candle shop API started",
		zap.String("addr", cfg.Server.Addr),
		zap.String("payment_method", string(gateways.Default())),
		zap.String("notifications", cfg.Notifications.Mode),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("failed to start REST server: %w", err)
	}

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Paid and delivered notifications still in flight.
	service.Wait()

	logger.Info("Server exited")
	return nil
}

// connectCache returns a nil cache when Redis is unreachable; the catalog
// then reads straight from Postgres.
func connectCache(cfg config.RedisConfig, logger *zap.Logger) *cache.ProductCache {
	rdb, err := cache.InitRedis(cfg, logger)
	if err != nil {
		logger.Warn("Redis unavailable, product cache disabled", zap.Error(err))
		return nil
	}
	return cache.NewProductCache(rdb, cfg.ProductTTL)
}

func buildGateways(cfg config.PaymentConfig, logger *zap.Logger) (*payment.Registry, *payment.Mock, handlers.PaymentConfig) {
	paymentConfig := handlers.PaymentConfig{Mode: cfg.Mode, Currency: cfg.Currency}

	if cfg.Mode == config.PaymentModeRazorpay {
		razorpay := payment.NewRazorpay(cfg.KeyID, cfg.KeySecret, logger)
		paymentConfig.KeyID = razorpay.KeyID()
		return payment.NewRegistry(razorpay), nil, paymentConfig
	}

	logger.Warn("Payments run against the simulator; no money moves",
		zap.Float64("success_rate", cfg.MockSuccessRate),
	)
	mock := payment.NewMock(payment.NewMemoryStore(), logger,
		payment.WithDelay(cfg.MockDelay),
		payment.WithSuccessRate(cfg.MockSuccessRate),
	)
	return payment.NewRegistry(mock), mock, paymentConfig
}

func buildNotifier(cfg *config.Config, logger *zap.Logger) (notification.Notifier, func(), error) {
	switch cfg.Notifications.Mode {
	case config.NotifyKafka:
		if len(cfg.Kafka.Brokers) > 0 {
			if err := kafka.EnsureTopics(cfg.Kafka.Brokers[0], 1, cfg.Kafka.Topic); err != nil {
				logger.Warn("Could not provision Kafka topic", zap.String("topic", cfg.Kafka.Topic), zap.Error(err))
			}
		}
		producer, err := kafka.InitProducer(cfg.Kafka, logger)
		if err != nil {
			return nil, nil, err
		}
		return notification.NewEventPublisher(producer, cfg.Kafka.Topic, logger), closeProducer(producer, logger), nil
	case config.NotifyOff:
		logger.Warn("Order notifications are disabled")
		return notification.Noop{}, func() {}, nil
	default:
		return notification.NewMailer(cfg.SMTP, cfg.Server.PublicURL, logger), func() {}, nil
	}
}

func closeProducer(producer sarama.SyncProducer, logger *zap.Logger) func() {
	return func() {
		if err := producer.Close(); err != nil {
			logger.Error("Failed to close Kafka producer", zap.Error(err))
		}
	}
}
