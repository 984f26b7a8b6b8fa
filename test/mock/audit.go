// test/mock/audit.go
package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/GPT-Gradient/xynergy-core-sub001/audit"
)

// MockAuditService is a mock implementation of audit.Service
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) Start(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockAuditService) Record(log audit.AuditLog) {
	m.Called(log)
}

func (m *MockAuditService) Query(ctx context.Context, from, to time.Time, userID, tenantID string) ([]audit.AuditLog, error) {
	args := m.Called(ctx, from, to, userID, tenantID)
	if logs := args.Get(0); logs != nil {
		return logs.([]audit.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}
