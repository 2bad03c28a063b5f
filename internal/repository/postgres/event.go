package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medichain/medichain-api/internal/model"
	"github.com/medichain/medichain-api/internal/repository"
)

type eventRepository struct {
	BaseRepository
}

func NewEventRepository(db *sqlx.DB) repository.EventRepository {
	return &eventRepository{NewBaseRepository(db)}
}

func (r *eventRepository) Create(ctx context.Context, event *model.BlockchainEvent) error {
	query := `
		INSERT INTO blockchain_events (id, tx_hash, event_name, block_number, payload, saga_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		event.ID, event.TxHash, event.EventName, event.BlockNumber,
		event.Payload, event.SagaID, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record blockchain event: %w", err)
	}
	return nil
}

func (r *eventRepository) List(ctx context.Context) ([]*model.BlockchainEvent, error) {
	var events []*model.BlockchainEvent
	query := `SELECT * FROM blockchain_events ORDER BY created_at DESC`
	if err := r.GetDB().SelectContext(ctx, &events, query); err != nil {
		return nil, fmt.Errorf("failed to list blockchain events: %w", err)
	}
	return events, nil
}

func (r *eventRepository) ListBySaga(ctx context.Context, sagaID uuid.UUID) ([]*model.BlockchainEvent, error) {
	var events []*model.BlockchainEvent
	query := `SELECT * FROM blockchain_events WHERE saga_id = $1 ORDER BY created_at ASC`
	if err := r.GetDB().SelectContext(ctx, &events, query, sagaID); err != nil {
		return nil, fmt.Errorf("failed to list saga events: %w", err)
	}
	return events, nil
}
