package mailer

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	mailtpl "github.com/pesdo/placement-portal/pkg/mailer/templates"
)

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Either Template (a typed email rendered through the universal layout) or
// Subject plus one of Text/HTML must be set. Text is derived from HTML when
// missing.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

var ErrInvalidJob = errors.New("invalid email job")

// Message is a fully rendered email ready for a Sender.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Validate checks the job shape without rendering it.
func (j EmailJob) Validate() error {
	if strings.TrimSpace(j.To) == "" {
		return fmt.Errorf("%w: missing recipient", ErrInvalidJob)
	}
	if j.Template != "" {
		if !mailtpl.Known(j.Template) && !strings.EqualFold(j.Template, mailtpl.Universal) {
			return fmt.Errorf("%w: unknown template %q", ErrInvalidJob, j.Template)
		}
		return nil
	}
	if strings.TrimSpace(j.Subject) == "" {
		return fmt.Errorf("%w: missing subject", ErrInvalidJob)
	}
	if strings.TrimSpace(j.Text) == "" && strings.TrimSpace(j.HTML) == "" {
		return fmt.Errorf("%w: missing text or html body", ErrInvalidJob)
	}
	return nil
}

// normalize maps a typed template name onto the universal layout and fills
// the recipient fields the layout expects.
func (j *EmailJob) normalize() {
	if j.Data == nil {
		j.Data = map[string]any{}
	}
	if mailtpl.Known(j.Template) {
		if s, _ := j.Data["Type"].(string); s == "" {
			j.Data["Type"] = strings.ToLower(j.Template)
		}
		j.Template = mailtpl.Universal
	}
	for _, k := range []string{"Email", "RecipientEmail"} {
		if s, _ := j.Data[k].(string); s == "" {
			j.Data[k] = j.To
		}
	}
}

// Compose renders the job into a Message. geo may be nil.
func Compose(ctx context.Context, j EmailJob, geo mailtpl.GeoResolver) (Message, error) {
	if err := j.Validate(); err != nil {
		return Message{}, err
	}
	msg := Message{To: j.To, Subject: j.Subject, Text: j.Text, HTML: j.HTML}

	if j.Template != "" {
		j.normalize()
		d, err := mailtpl.FromMap(j.Data)
		if err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
		}
		mailtpl.Localize(ctx, geo, &d)
		subject, body, err := mailtpl.Render(d)
		if err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
		}
		if msg.Subject == "" {
			msg.Subject = subject
		}
		msg.HTML = body
		msg.Text = ""
	}
	if strings.TrimSpace(msg.Text) == "" {
		msg.Text = PlainText(msg.HTML)
	}
	return msg, nil
}

var (
	stripPolicy = bluemonday.StrictPolicy()
	blockTags   = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|h[1-6]|li|tr)>`)
	blankRuns   = regexp.MustCompile(`\n\s*\n+`)
	spaceRuns   = regexp.MustCompile(`[ \t]+`)
)

// PlainText strips every tag from an HTML body, keeping line breaks at block
// boundaries.
func PlainText(body string) string {
	if body == "" {
		return ""
	}
	s := blockTags.ReplaceAllString(body, "$0\n")
	s = html.UnescapeString(stripPolicy.Sanitize(s))
	s = spaceRuns.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(s)
}
