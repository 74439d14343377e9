package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/pesdo/placement-portal/internal/metrics"
	"github.com/pesdo/placement-portal/pkg/mailer"
	mailtpl "github.com/pesdo/placement-portal/pkg/mailer/templates"
	"github.com/pesdo/placement-portal/pkg/sms"
)

// ErrDrop marks a job that will never succeed; the consumer discards it
// instead of requeueing.
var ErrDrop = errors.New("drop message")

// Disposition is what the consumer does with a delivery once its handler ran.
type Disposition int

const (
	Ack Disposition = iota
	Retry
	Drop
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case Retry:
		return "retry"
	default:
		return "drop"
	}
}

// Settle decides the fate of a delivery on its attempt-th try (1-based).
// Transient failures are retried until maxAttempts tries have been made.
func Settle(err error, attempt, maxAttempts int) Disposition {
	switch {
	case err == nil:
		return Ack
	case errors.Is(err, ErrDrop):
		return Drop
	case maxAttempts > 0 && attempt >= maxAttempts:
		return Drop
	default:
		return Retry
	}
}

type SMSSender interface {
	Send(ctx context.Context, job sms.SMSJob) (*sms.Result, error)
}

// Worker turns queued jobs into deliveries.
type Worker struct {
	Mail    mailer.Sender
	SMS     SMSSender
	Geo     mailtpl.GeoResolver
	Metrics metrics.MetricsCollector
	Logger  *logrus.Logger
}

func (w *Worker) metrics() metrics.MetricsCollector {
	if w.Metrics == nil {
		return metrics.Nop{}
	}
	return w.Metrics
}

func (w *Worker) log() *logrus.Logger {
	if w.Logger == nil {
		return logrus.StandardLogger()
	}
	return w.Logger
}

// HandleEmail decodes, renders and sends one email job. Errors wrapping
// ErrDrop must not be retried.
func (w *Worker) HandleEmail(ctx context.Context, body []byte) error {
	var job mailer.EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		w.metrics().RecordNotification(ChannelEmail, "dropped")
		return fmt.Errorf("%w: decode email job: %v", ErrDrop, err)
	}
	msg, err := mailer.Compose(ctx, job, w.Geo)
	if err != nil {
		w.metrics().RecordNotification(ChannelEmail, "dropped")
		return fmt.Errorf("%w: %v", ErrDrop, err)
	}
	if err := w.Mail.Send(ctx, msg); err != nil {
		if errors.Is(err, mailer.ErrNotConfigured) {
			w.metrics().RecordNotification(ChannelEmail, "dropped")
			return fmt.Errorf("%w: %v", ErrDrop, err)
		}
		w.metrics().RecordNotification(ChannelEmail, "failed")
		return fmt.Errorf("send email to %s: %w", job.To, err)
	}
	w.metrics().RecordNotification(ChannelEmail, "sent")
	w.log().WithFields(logrus.Fields{"to": job.To, "subject": msg.Subject}).Info("email sent")
	return nil
}

// HandleSMS decodes and sends one SMS job.
func (w *Worker) HandleSMS(ctx context.Context, body []byte) error {
	var job sms.SMSJob
	if err := json.Unmarshal(body, &job); err != nil {
		w.metrics().RecordNotification(ChannelSMS, "dropped")
		return fmt.Errorf("%w: decode sms job: %v", ErrDrop, err)
	}
	res, err := w.SMS.Send(ctx, job)
	if err != nil {
		var ge *sms.GatewayError
		var mc *sms.MissingCredentialsError
		switch {
		case errors.Is(err, sms.ErrInvalidJob), errors.As(err, &mc),
			errors.As(err, &ge) && !ge.Temporary():
			w.metrics().RecordNotification(ChannelSMS, "dropped")
			return fmt.Errorf("%w: %v", ErrDrop, err)
		}
		w.metrics().RecordNotification(ChannelSMS, "failed")
		return err
	}
	w.metrics().RecordNotification(ChannelSMS, "sent")
	w.log().WithFields(logrus.Fields{"phone": res.Phone, "message_id": res.MessageID}).Info("sms sent")
	return nil
}
