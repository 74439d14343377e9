package entity

import "time"

const (
	LoginSuccess = "success"
	LoginFailed  = "failed"
	LoginBlocked = "blocked"
)

// LoginLog is one row of login_log. UserID is empty for failed attempts.
type LoginLog struct {
	UserID        string    `json:"user_id,omitempty"`
	UserType      string    `json:"user_type"`
	Email         string    `json:"email"`
	Status        string    `json:"login_status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	IP            string    `json:"ip_address,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ActivityLog is one row of activity_log.
type ActivityLog struct {
	UserID            string
	UserType          string
	ActionType        string
	ActionDescription string
	EntityType        string
	EntityID          string
	Metadata          map[string]any
	IP                string
	UserAgent         string
	CreatedAt         time.Time
}
