// audit/service.go
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	logger "github.com/GPT-Gradient/xynergy-core-sub001/logging"
)

type Service interface {
	// Start runs the asynchronous indexing worker until ctx is cancelled.
	Start(ctx context.Context)
	// Record enqueues an entry for asynchronous indexing; it never blocks
	// the request path.
	Record(log AuditLog)
	Query(ctx context.Context, from, to time.Time, userID, tenantID string) ([]AuditLog, error)
}

type service struct {
	repo  Repository
	queue chan AuditLog
}

func NewService(repo Repository, buffer int) Service {
	return &service{
		repo:  repo,
		queue: make(chan AuditLog, buffer),
	}
}

// Start runs the indexing worker until ctx is cancelled.
func (s *service) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case entry := <-s.queue:
				if err := s.repo.Index(ctx, entry); err != nil {
					logger.Error("Failed to index audit entry",
						zap.String("action", entry.Action),
						zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *service) Record(log AuditLog) {
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}
	select {
	case s.queue <- log:
	default:
		// Audit is best-effort; dropping beats stalling request handling
		logger.Warn("Audit queue full, dropping entry", zap.String("action", log.Action))
	}
}

func (s *service) Query(ctx context.Context, from, to time.Time, userID, tenantID string) ([]AuditLog, error) {
	return s.repo.Query(ctx, from, to, userID, tenantID)
}
