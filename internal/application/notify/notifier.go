// Package notify queues outbound email and SMS and processes the queued jobs.
package notify

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/pesdo/placement-portal/internal/metrics"
	"github.com/pesdo/placement-portal/pkg/mailer"
	"github.com/pesdo/placement-portal/pkg/sms"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Publisher puts a JSON job on a queue.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

var ErrQueueUnavailable = errors.New("notification queue unavailable")

type Notifier struct {
	EmailQueue   Publisher
	SMSQueue     Publisher
	EmailEnabled bool
	SMSEnabled   bool
	Metrics      metrics.MetricsCollector
	Logger       *logrus.Logger
}

func NewNotifier(emailQ, smsQ Publisher, emailEnabled, smsEnabled bool, m metrics.MetricsCollector, log *logrus.Logger) *Notifier {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Notifier{EmailQueue: emailQ, SMSQueue: smsQ, EmailEnabled: emailEnabled, SMSEnabled: smsEnabled, Metrics: m, Logger: log}
}

// Email validates and enqueues job. It reports false without error when
// email delivery is switched off.
func (n *Notifier) Email(ctx context.Context, job mailer.EmailJob) (bool, error) {
	if err := job.Validate(); err != nil {
		return false, err
	}
	return n.publish(ctx, ChannelEmail, n.EmailEnabled, n.EmailQueue, job, logrus.Fields{"to": job.To, "template": job.Template})
}

// SMS validates and enqueues job, mirroring Email.
func (n *Notifier) SMS(ctx context.Context, job sms.SMSJob) (bool, error) {
	if err := job.Validate(); err != nil {
		return false, err
	}
	return n.publish(ctx, ChannelSMS, n.SMSEnabled, n.SMSQueue, job, logrus.Fields{"to": sms.NormalizePhone(job.To)})
}

func (n *Notifier) publish(ctx context.Context, channel string, enabled bool, q Publisher, job any, fields logrus.Fields) (bool, error) {
	if !enabled {
		n.Metrics.RecordNotification(channel, "disabled")
		return false, nil
	}
	if q == nil {
		n.Metrics.RecordNotification(channel, "failed")
		return false, ErrQueueUnavailable
	}
	if err := q.PublishJSON(ctx, job); err != nil {
		n.Metrics.RecordNotification(channel, "failed")
		if n.Logger != nil {
			n.Logger.WithError(err).WithFields(fields).WithField("channel", channel).Error("enqueue notification failed")
		}
		return false, err
	}
	n.Metrics.RecordNotification(channel, "enqueued")
	return true, nil
}

// Enqueue is the fire-and-forget form used by flows whose outcome must not
// depend on delivery, such as signup and password reset.
func (n *Notifier) Enqueue(ctx context.Context, job mailer.EmailJob) {
	if n == nil {
		return
	}
	if _, err := n.Email(ctx, job); err != nil && n.Logger != nil {
		n.Logger.WithError(err).WithField("to", job.To).Warn("email not queued")
	}
}
