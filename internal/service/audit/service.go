package audit

import (
	"context"

	"github.com/medichain/medichain-api/internal/model"
	"github.com/medichain/medichain-api/internal/repository"
)

// Service aggregates the two audit logs. The logs share no key beyond an
// optional identity reference, so they are returned side by side, each in its
// own descending time order, never merged.
type Service struct {
	authLogs repository.AuthLogRepository
	events   repository.EventRepository
}

func NewService(authLogs repository.AuthLogRepository, events repository.EventRepository) *Service {
	return &Service{authLogs: authLogs, events: events}
}

func (s *Service) GetAuditHistory(ctx context.Context) (*model.AuditHistory, error) {
	attempts, err := s.authLogs.List(ctx)
	if err != nil {
		return nil, err
	}

	events, err := s.events.List(ctx)
	if err != nil {
		return nil, err
	}

	return &model.AuditHistory{
		AuthAttempts: attempts,
		ChainEvents:  events,
	}, nil
}
