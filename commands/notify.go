package commands

import (
	"context"
	"os/signal"
	"syscall"

	"candle-shop/kafka"
	"candle-shop/middleware"
	"candle-shop/notification"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const notifyServiceName = "candle-shop-notifier"

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Consume order events and send customer emails",
	Long: `notify reads order_paid and order_delivered events from Kafka and mails
the customer. Run it when the API is configured with notifications.mode=kafka.`,
	RunE: runNotify,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}

func runNotify(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	shutdownTracing, err := middleware.InitTracing(cfg.Tracing, notifyServiceName)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	if len(cfg.Kafka.Brokers) > 0 {
		if err := kafka.EnsureTopics(cfg.Kafka.Brokers[0], 1, cfg.Kafka.Topic); err != nil {
			logger.Warn("Could not provision Kafka topic", zap.String("topic", cfg.Kafka.Topic), zap.Error(err))
		}
	}

	consumer, err := kafka.InitConsumer(cfg.Kafka, logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	mailer := notification.NewMailer(cfg.SMTP, cfg.Server.PublicURL, logger)
	dispatcher := notification.NewDispatcher(mailer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Notification worker started", zap.String("topic", cfg.Kafka.Topic))
	if err := kafka.StartConsumer(ctx, consumer, cfg.Kafka.Topic, dispatcher.Handle, logger); err != nil {
		return err
	}

	logger.Info("Notification worker exited")
	return nil
}
