// Package sms sends text messages through a TextBee Android gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SMSJob is the JSON payload put on the RabbitMQ SMS queue.
type SMSJob struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

var ErrInvalidJob = errors.New("missing required fields: to, message")

func (j SMSJob) Validate() error {
	if strings.TrimSpace(j.To) == "" || strings.TrimSpace(j.Message) == "" {
		return ErrInvalidJob
	}
	return nil
}

// MissingCredentialsError lists the settings that must be provided.
type MissingCredentialsError struct {
	Missing []string
}

func (e *MissingCredentialsError) Error() string {
	return "textbee credentials not configured: set " + strings.Join(e.Missing, ", ")
}

// GatewayError is a non-2xx answer from TextBee.
type GatewayError struct {
	Status int
	Body   string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("textbee: status %d: %s", e.Status, e.Body)
}

// Temporary reports whether resending later may succeed.
func (e *GatewayError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Result describes an accepted message.
type Result struct {
	MessageID string         `json:"messageId,omitempty"`
	Phone     string         `json:"phone"`
	Status    string         `json:"status"`
	Response  map[string]any `json:"response,omitempty"`
}

type TextBee struct {
	BaseURL  string
	APIKey   string
	DeviceID string
	Client   *http.Client
}

func NewTextBee(baseURL, apiKey, deviceID string) *TextBee {
	if baseURL == "" {
		baseURL = "https://api.textbee.dev"
	}
	return &TextBee{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		APIKey:   apiKey,
		DeviceID: deviceID,
		Client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *TextBee) credentials() error {
	var missing []string
	if t.APIKey == "" {
		missing = append(missing, "TEXTBEE_API_KEY")
	}
	if t.DeviceID == "" {
		missing = append(missing, "TEXTBEE_DEVICE_ID")
	}
	if len(missing) > 0 {
		return &MissingCredentialsError{Missing: missing}
	}
	return nil
}

// Send normalizes the recipient and posts the message to the gateway.
func (t *TextBee) Send(ctx context.Context, job SMSJob) (*Result, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if err := t.credentials(); err != nil {
		return nil, err
	}
	phone := NormalizePhone(job.To)

	body, err := json.Marshal(map[string]any{
		"recipients": []string{phone},
		"message":    job.Message,
	})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/api/v1/gateway/devices/%s/send-sms", t.BaseURL, t.DeviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", t.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("textbee: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &GatewayError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	res := &Result{Phone: phone, Status: "sent"}
	var data map[string]any
	if json.Unmarshal(raw, &data) != nil {
		return res, nil
	}
	res.Response = data
	for _, k := range []string{"messageId", "id"} {
		if s, ok := data[k].(string); ok && s != "" {
			res.MessageID = s
			break
		}
	}
	if s, ok := data["status"].(string); ok && s != "" {
		res.Status = s
	}
	return res, nil
}

// NormalizePhone converts Philippine mobile numbers to E.164:
// 09XXXXXXXXX, 9XXXXXXXXX, 63XXXXXXXXXX and +63XXXXXXXXXX all become
// +63XXXXXXXXXX. Other numbers only gain a leading plus.
func NormalizePhone(to string) string {
	s := strings.NewReplacer(" ", "", "-", "", "\t", "").Replace(strings.TrimSpace(to))
	s = strings.TrimPrefix(s, "+")
	switch {
	case strings.HasPrefix(s, "63"):
		return "+" + s
	case strings.HasPrefix(s, "0") && len(s) == 11:
		return "+63" + s[1:]
	case strings.HasPrefix(s, "9") && len(s) == 10:
		return "+63" + s
	}
	return "+" + s
}
