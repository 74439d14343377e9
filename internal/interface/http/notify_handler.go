package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pesdo/placement-portal/internal/application/notify"
	"github.com/pesdo/placement-portal/pkg/mailer"
	"github.com/pesdo/placement-portal/pkg/response"
	"github.com/pesdo/placement-portal/pkg/sms"
	"github.com/pesdo/placement-portal/pkg/validation"
)

// Dispatcher queues outbound notifications. The bool is false when the
// channel is switched off.
type Dispatcher interface {
	Email(ctx context.Context, job mailer.EmailJob) (bool, error)
	SMS(ctx context.Context, job sms.SMSJob) (bool, error)
}

type NotifyHandler struct {
	Notifier Dispatcher
	Logger   *logrus.Logger
}

func NewNotifyHandler(n Dispatcher, logger *logrus.Logger) *NotifyHandler {
	return &NotifyHandler{Notifier: n, Logger: logger}
}

type sendEmailRequest struct {
	To       string         `json:"to" binding:"required,email"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
	Subject  string         `json:"subject"`
	Text     string         `json:"text"`
	HTML     string         `json:"html"`
}

type sendSMSRequest struct {
	To      string `json:"to" binding:"required,phone"`
	Message string `json:"message" binding:"required,max=918"`
}

func (h *NotifyHandler) reply(c *gin.Context, channel string, enqueued bool, err error) {
	switch {
	case errors.Is(err, mailer.ErrInvalidJob), errors.Is(err, sms.ErrInvalidJob):
		response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
	case err != nil:
		if h.Logger != nil {
			h.Logger.WithError(err).WithField("channel", channel).Warn("failed to enqueue notification")
		}
		response.Error[any](c, http.StatusServiceUnavailable, "failed to enqueue", nil)
	case !enqueued:
		response.Success[any](c, http.StatusAccepted, map[string]any{"enqueued": false, "disabled": true}, channel+" sending disabled", nil)
	default:
		response.Success[any](c, http.StatusAccepted, map[string]any{"enqueued": true}, channel+" enqueued", nil)
	}
}

// Email POST /api/notify/email. Either a template or a subject with text/html.
func (h *NotifyHandler) Email(c *gin.Context) {
	var req sendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	job := mailer.EmailJob{To: req.To, Template: req.Template, Data: req.Data}
	if req.Template == "" {
		job.Subject, job.Text, job.HTML = req.Subject, req.Text, req.HTML
	}
	if err := job.Validate(); err != nil {
		response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	ok, err := h.Notifier.Email(c.Request.Context(), job)
	h.reply(c, notify.ChannelEmail, ok, err)
}

// SMS POST /api/notify/sms
func (h *NotifyHandler) SMS(c *gin.Context) {
	var req sendSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	ok, err := h.Notifier.SMS(c.Request.Context(), sms.SMSJob{To: req.To, Message: req.Message})
	h.reply(c, notify.ChannelSMS, ok, err)
}
