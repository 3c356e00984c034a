package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/relovo/relovo-api/internal/models"
)

type auditStore interface {
	Create(ctx context.Context, entry *models.DealAudit) error
	ListByDeal(ctx context.Context, dealID string, limit int) ([]models.DealAudit, error)
}

// AuditService appends deal audit entries. Appends are fire-and-forget: a
// failed audit write is logged and swallowed so it can never abort the
// business operation that triggered it.
type AuditService struct {
	repo   auditStore
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(repo auditStore, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// Record appends an entry for the deal. actorID is nil for system-triggered
// actions. Errors never propagate to the caller.
func (s *AuditService) Record(ctx context.Context, dealID string, actorID *string, action, meta string) {
	if s == nil || s.repo == nil {
		return
	}
	entry := &models.DealAudit{
		DealID:  dealID,
		ActorID: actorID,
		Action:  action,
		Meta:    meta,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to persist audit entry",
			zap.String("deal_id", dealID),
			zap.String("action", action),
			zap.Error(err))
	}
}

// ListByDeal returns the most recent audit entries for a deal. Authorization
// is enforced by the caller, which knows the deal's parties.
func (s *AuditService) ListByDeal(ctx context.Context, dealID string, limit int) ([]models.DealAudit, error) {
	return s.repo.ListByDeal(ctx, dealID, limit)
}
