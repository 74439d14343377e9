package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/pesdo/placement-portal/config"
	"github.com/pesdo/placement-portal/internal/application/notify"
	"github.com/pesdo/placement-portal/internal/metrics"
	"github.com/pesdo/placement-portal/pkg/helpers"
	"github.com/pesdo/placement-portal/pkg/mailer"
	mailtpl "github.com/pesdo/placement-portal/pkg/mailer/templates"
	"github.com/pesdo/placement-portal/pkg/sms"
)

const (
	prefetch     = 16
	jobTimeout   = 30 * time.Second
	requeueDelay = 2 * time.Second
)

type handler func(ctx context.Context, body []byte) error

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-notify-worker", cfg.Env, cfg.LogLevel)

	queues := map[string]handler{}
	promReg := prometheus.NewRegistry()
	w := &notify.Worker{
		Geo:     mailtpl.NewCachedResolver(mailtpl.IPAPIResolver{}, time.Hour, 4096),
		Metrics: metrics.NewCollector(promReg),
		Logger:  logger,
	}
	if cfg.MailSendEnabled {
		w.Mail = mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender)
		queues[cfg.RabbitMQEmailQueue] = w.HandleEmail
	}
	if cfg.SMSSendEnabled {
		w.SMS = sms.NewTextBee(cfg.TextBeeBaseURL, cfg.TextBeeAPIKey, cfg.TextBeeDeviceID)
		queues[cfg.RabbitMQSMSQueue] = w.HandleSMS
	}
	if len(queues) == 0 {
		logger.Info("MAIL_SEND_ENABLED and SMS_SEND_ENABLED are false; nothing to consume")
		return
	}

	names := make([]string, 0, len(queues))
	for q := range queues {
		names = append(names, q)
	}
	consumer, err := helpers.NewRabbitConsumer(cfg.RabbitMQURL, prefetch, names...)
	if err != nil {
		logger.WithError(err).Fatal("rabbitmq unavailable")
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsEnabled {
		srv := &http.Server{Addr: ":" + cfg.WorkerMetricsPort, Handler: metrics.Handler(promReg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Warn("metrics listener stopped")
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	var wg sync.WaitGroup
	for queue, h := range queues {
		msgs, err := consumer.Consume(queue, "")
		if err != nil {
			logger.WithError(err).WithField("queue", queue).Fatal("consume failed")
		}
		wg.Add(1)
		go func(queue string, h handler, msgs <-chan amqp.Delivery) {
			defer wg.Done()
			drain(ctx, consumer, queue, cfg.NotifyMaxAttempts, logger.WithField("queue", queue), h, msgs)
		}(queue, h, msgs)
		logger.WithField("queue", queue).Info("notify worker listening")
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down...")
	case err := <-consumer.NotifyClose():
		logger.WithError(err).Error("rabbitmq connection closed")
	}
	consumer.Close()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn("in-flight jobs abandoned")
	}
}

// drain handles deliveries until the channel closes. Jobs that can never
// succeed are discarded; transient failures go back on the queue until
// maxAttempts tries have been made.
func drain(ctx context.Context, consumer *helpers.RabbitConsumer, queue string, maxAttempts int, log *logrus.Entry, h handler, msgs <-chan amqp.Delivery) {
	for msg := range msgs {
		jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), jobTimeout)
		err := h(jctx, msg.Body)
		cancel()
		attempt := helpers.Attempts(msg) + 1
		switch notify.Settle(err, attempt, maxAttempts) {
		case notify.Ack:
			_ = msg.Ack(false)
		case notify.Drop:
			log.WithError(err).WithField("attempt", attempt).Warn("job dropped")
			_ = msg.Nack(false, false)
		case notify.Retry:
			log.WithError(err).WithField("attempt", attempt).Warn("job failed; requeued")
			select {
			case <-ctx.Done():
			case <-time.After(requeueDelay):
			}
			if rerr := consumer.Retry(context.WithoutCancel(ctx), queue, msg); rerr != nil {
				log.WithError(rerr).Warn("retry republish failed")
			}
		}
	}
}
