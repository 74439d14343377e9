package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesdo/placement-portal/pkg/mailer"
	"github.com/pesdo/placement-portal/pkg/sms"
)

type memQueue struct {
	err    error
	bodies [][]byte
}

func (q *memQueue) PublishJSON(_ context.Context, body any) error {
	if q.err != nil {
		return q.err
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	q.bodies = append(q.bodies, b)
	return nil
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingMetrics() *countingMetrics { return &countingMetrics{counts: map[string]int{}} }

func (m *countingMetrics) RecordNotification(channel, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[channel+"/"+status]++
}

func (m *countingMetrics) RecordLogin(string)                                   {}
func (m *countingMetrics) RecordAuthEvent(string, bool)                         {}
func (m *countingMetrics) RecordProfileFetchRetry(string)                       {}
func (m *countingMetrics) RecordHTTPRequest(string, string, int, time.Duration) {}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestNotifier_EnqueuesEmail(t *testing.T) {
	q := &memQueue{}
	m := newCountingMetrics()
	n := NewNotifier(q, nil, true, true, m, quiet())

	ok, err := n.Email(context.Background(), mailer.EmailJob{To: "a@x.ph", Template: "welcome"})
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, q.bodies, 1)
	assert.JSONEq(t, `{"to":"a@x.ph","template":"welcome"}`, string(q.bodies[0]))
	assert.Equal(t, 1, m.counts["email/enqueued"])
}

func TestNotifier_Disabled(t *testing.T) {
	q := &memQueue{}
	m := newCountingMetrics()
	n := NewNotifier(q, q, false, false, m, quiet())

	ok, err := n.SMS(context.Background(), sms.SMSJob{To: "09123456789", Message: "hi"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, q.bodies)
	assert.Equal(t, 1, m.counts["sms/disabled"])
}

func TestNotifier_RejectsInvalidJobs(t *testing.T) {
	n := NewNotifier(&memQueue{}, &memQueue{}, true, true, nil, quiet())

	_, err := n.Email(context.Background(), mailer.EmailJob{To: "a@x.ph"})
	assert.ErrorIs(t, err, mailer.ErrInvalidJob)
	_, err = n.SMS(context.Background(), sms.SMSJob{To: "09123456789"})
	assert.ErrorIs(t, err, sms.ErrInvalidJob)
}

func TestNotifier_QueueFailure(t *testing.T) {
	n := NewNotifier(&memQueue{err: errors.New("channel closed")}, nil, true, true, nil, quiet())
	_, err := n.Email(context.Background(), mailer.EmailJob{To: "a@x.ph", Subject: "s", Text: "t"})
	assert.EqualError(t, err, "channel closed")

	_, err = n.SMS(context.Background(), sms.SMSJob{To: "09123456789", Message: "m"})
	assert.ErrorIs(t, err, ErrQueueUnavailable)

	assert.NotPanics(t, func() { n.Enqueue(context.Background(), mailer.EmailJob{To: "a@x.ph", Subject: "s", Text: "t"}) })
}

type fakeMail struct {
	err  error
	sent []mailer.Message
}

func (f *fakeMail) Send(_ context.Context, m mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

type fakeSMS struct {
	err  error
	jobs []sms.SMSJob
}

func (f *fakeSMS) Send(_ context.Context, j sms.SMSJob) (*sms.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.jobs = append(f.jobs, j)
	return &sms.Result{Phone: sms.NormalizePhone(j.To), Status: "sent"}, nil
}

func TestWorker_HandleEmail(t *testing.T) {
	mail := &fakeMail{}
	w := &Worker{Mail: mail, Logger: quiet()}

	body := []byte(`{"to":"a@x.ph","template":"verify_email","data":{"Name":"Ana","VerifyURL":"https://p.test/v?t=1"}}`)
	require.NoError(t, w.HandleEmail(context.Background(), body))
	require.Len(t, mail.sent, 1)
	assert.Equal(t, "Verify your email address", mail.sent[0].Subject)
	assert.Contains(t, mail.sent[0].HTML, "https://p.test/v?t=1")
	assert.NotEmpty(t, mail.sent[0].Text)
}

func TestWorker_EmailFailureClasses(t *testing.T) {
	w := &Worker{Mail: &fakeMail{}, Logger: quiet()}
	assert.ErrorIs(t, w.HandleEmail(context.Background(), []byte(`{`)), ErrDrop)
	assert.ErrorIs(t, w.HandleEmail(context.Background(), []byte(`{"to":"a@x.ph"}`)), ErrDrop)

	w.Mail = &fakeMail{err: mailer.ErrNotConfigured}
	assert.ErrorIs(t, w.HandleEmail(context.Background(), []byte(`{"to":"a@x.ph","subject":"s","text":"t"}`)), ErrDrop)

	w.Mail = &fakeMail{err: errors.New("timeout")}
	err := w.HandleEmail(context.Background(), []byte(`{"to":"a@x.ph","subject":"s","text":"t"}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDrop)
}

func TestWorker_HandleSMS(t *testing.T) {
	s := &fakeSMS{}
	m := newCountingMetrics()
	w := &Worker{SMS: s, Metrics: m, Logger: quiet()}

	require.NoError(t, w.HandleSMS(context.Background(), []byte(`{"to":"09123456789","message":"hi"}`)))
	assert.Len(t, s.jobs, 1)
	assert.Equal(t, 1, m.counts["sms/sent"])
}

func TestWorker_SMSFailureClasses(t *testing.T) {
	cases := []struct {
		err  error
		drop bool
	}{
		{sms.ErrInvalidJob, true},
		{&sms.MissingCredentialsError{Missing: []string{"TEXTBEE_API_KEY"}}, true},
		{&sms.GatewayError{Status: http.StatusUnauthorized}, true},
		{&sms.GatewayError{Status: http.StatusServiceUnavailable}, false},
		{errors.New("connection reset"), false},
	}
	for _, tc := range cases {
		w := &Worker{SMS: &fakeSMS{err: tc.err}, Logger: quiet()}
		err := w.HandleSMS(context.Background(), []byte(`{"to":"09123456789","message":"hi"}`))
		require.Error(t, err)
		assert.Equal(t, tc.drop, errors.Is(err, ErrDrop), tc.err.Error())
	}
}

func TestSettle(t *testing.T) {
	transient := errors.New("mailgun 503")
	cases := []struct {
		name    string
		err     error
		attempt int
		max     int
		want    Disposition
	}{
		{"success", nil, 1, 5, Ack},
		{"success on last try", nil, 5, 5, Ack},
		{"permanent", fmt.Errorf("%w: bad template", ErrDrop), 1, 5, Drop},
		{"transient retried", transient, 1, 5, Retry},
		{"transient before cap", transient, 4, 5, Retry},
		{"transient at cap", transient, 5, 5, Drop},
		{"uncapped", transient, 100, 0, Retry},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Settle(tc.err, tc.attempt, tc.max))
		})
	}
}
