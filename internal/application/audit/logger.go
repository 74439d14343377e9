// Package audit records login attempts and user activity. Recording never
// fails the caller: storage and indexing errors are logged and dropped.
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pesdo/placement-portal/internal/domain/entity"
	"github.com/pesdo/placement-portal/internal/domain/repository"
)

// LoginIndexMapping is the index body for the searchable login log.
const LoginIndexMapping = `{
  "mappings": {
    "properties": {
      "user_id":        {"type": "keyword"},
      "user_type":      {"type": "keyword"},
      "email":          {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "login_status":   {"type": "keyword"},
      "failure_reason": {"type": "text"},
      "ip_address":     {"type": "ip", "ignore_malformed": true},
      "user_agent":     {"type": "text"},
      "created_at":     {"type": "date"}
    }
  }
}`

type Logger struct {
	Repo    repository.AuditRepository
	ES      *elasticsearch.Client
	ESIndex string
	Log     *logrus.Logger
	// Timeout bounds each insert and index call.
	Timeout time.Duration
}

func NewLogger(repo repository.AuditRepository, es *elasticsearch.Client, index string, log *logrus.Logger) *Logger {
	return &Logger{Repo: repo, ES: es, ESIndex: index, Log: log, Timeout: 3 * time.Second}
}

func (l *Logger) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	// detached so a cancelled request still gets its audit row
	ctx := context.WithoutCancel(parent)
	if l.Timeout > 0 {
		return context.WithTimeout(ctx, l.Timeout)
	}
	return context.WithCancel(ctx)
}

func (l *Logger) warn(err error, msg string, fields logrus.Fields) {
	if l.Log != nil {
		l.Log.WithError(err).WithFields(fields).Warn(msg)
	}
}

func (l *Logger) LogLogin(ctx context.Context, e entity.LoginLog) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	c, cancel := l.ctx(ctx)
	defer cancel()

	if l.Repo != nil {
		if err := l.Repo.InsertLoginLog(c, &e); err != nil {
			l.warn(err, "login log insert failed", logrus.Fields{"email": e.Email, "status": e.Status})
		}
	}
	l.index(c, e)
}

func (l *Logger) LogActivity(ctx context.Context, e entity.ActivityLog) {
	if l.Repo == nil {
		return
	}
	c, cancel := l.ctx(ctx)
	defer cancel()
	if err := l.Repo.InsertActivity(c, &e); err != nil {
		l.warn(err, "activity log insert failed", logrus.Fields{"user_id": e.UserID, "action": e.ActionType})
	}
}

func (l *Logger) index(ctx context.Context, e entity.LoginLog) {
	if l.ES == nil || l.ESIndex == "" {
		return
	}
	b, err := json.Marshal(e)
	if err != nil {
		l.warn(err, "login log encode failed", nil)
		return
	}
	req := esapi.IndexRequest{Index: l.ESIndex, DocumentID: uuid.NewString(), Body: strings.NewReader(string(b)), Refresh: "false"}
	res, err := req.Do(ctx, l.ES)
	if err != nil {
		l.warn(err, "es index failed", logrus.Fields{"email": e.Email})
		return
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && l.Log != nil {
		l.Log.WithField("status", res.Status()).WithField("email", e.Email).Warn("es index response error")
	}
}

// SearchLogins runs a multi_match over the indexed login log, newest first.
func (l *Logger) SearchLogins(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if l.ES == nil || l.ESIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "user_type", "login_status", "failure_reason"},
			},
		},
		"sort": []any{map[string]any{"created_at": map[string]any{"order": "desc"}}},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := l.ES.Search(
		l.ES.Search.WithContext(c),
		l.ES.Search.WithIndex(l.ESIndex),
		l.ES.Search.WithBody(strings.NewReader(string(b))),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
