package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/medichain/medichain-api/pkg/errors"

	"github.com/medichain/medichain-api/internal/model"
	"github.com/medichain/medichain-api/internal/repository"
)

type sagaRepository struct {
	BaseRepository
}

func NewSagaRepository(db *sqlx.DB) repository.SagaRepository {
	return &sagaRepository{NewBaseRepository(db)}
}

func (r *sagaRepository) Create(ctx context.Context, saga *model.RegistrationSaga) error {
	query := `
		INSERT INTO registration_sagas (id, email, user_id, kind, step, status, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		saga.ID, saga.Email, saga.UserID, saga.Kind, saga.Step,
		saga.Status, saga.Error, saga.CreatedAt, saga.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create registration saga: %w", err)
	}
	return nil
}

func (r *sagaRepository) Get(ctx context.Context, id uuid.UUID) (*model.RegistrationSaga, error) {
	var saga model.RegistrationSaga
	err := r.GetDB().GetContext(ctx, &saga, `SELECT * FROM registration_sagas WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("registration saga", err)
		}
		return nil, fmt.Errorf("failed to get registration saga: %w", err)
	}
	return &saga, nil
}

func (r *sagaRepository) AdvanceStep(ctx context.Context, id uuid.UUID, step string) error {
	_, err := r.GetDB().ExecContext(ctx,
		`UPDATE registration_sagas SET step = $1, updated_at = NOW() WHERE id = $2`, step, id)
	if err != nil {
		return fmt.Errorf("failed to advance saga step: %w", err)
	}
	return nil
}

func (r *sagaRepository) SetUser(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	_, err := r.GetDB().ExecContext(ctx,
		`UPDATE registration_sagas SET user_id = $1, updated_at = NOW() WHERE id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to set saga user: %w", err)
	}
	return nil
}

func (r *sagaRepository) MarkDone(ctx context.Context, id uuid.UUID) error {
	_, err := r.GetDB().ExecContext(ctx,
		`UPDATE registration_sagas SET status = $1, step = $2, updated_at = NOW() WHERE id = $3`,
		model.SagaStatusDone, model.SagaStepCompleted, id)
	if err != nil {
		return fmt.Errorf("failed to mark saga done: %w", err)
	}
	return nil
}

func (r *sagaRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.GetDB().ExecContext(ctx,
		`UPDATE registration_sagas SET status = $1, error = $2, updated_at = NOW() WHERE id = $3`,
		model.SagaStatusFailed, reason, id)
	if err != nil {
		return fmt.Errorf("failed to mark saga failed: %w", err)
	}
	return nil
}

func (r *sagaRepository) ListStuck(ctx context.Context, olderThanSeconds int) ([]*model.RegistrationSaga, error) {
	query := `
		SELECT * FROM registration_sagas
		WHERE status = $1
		OR (status = $2 AND updated_at < NOW() - make_interval(secs => $3))
		ORDER BY updated_at DESC
	`
	var sagas []*model.RegistrationSaga
	err := r.GetDB().SelectContext(ctx, &sagas, query,
		model.SagaStatusFailed, model.SagaStatusRunning, olderThanSeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck sagas: %w", err)
	}
	return sagas, nil
}
