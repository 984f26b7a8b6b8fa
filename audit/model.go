// audit/model.go
package audit

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	Timestamp     time.Time       `json:"timestamp"`
	UserID        string          `json:"user_id"`
	TenantID      string          `json:"tenant_id,omitempty"`
	Action        string          `json:"action"`
	Target        string          `json:"target,omitempty"`
	Outcome       string          `json:"outcome"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Detail        json.RawMessage `json:"detail,omitempty"`
}
