package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/medichain/medichain-api/internal/model"
	"github.com/medichain/medichain-api/internal/repository"
)

type authLogRepository struct {
	BaseRepository
}

func NewAuthLogRepository(db *sqlx.DB) repository.AuthLogRepository {
	return &authLogRepository{NewBaseRepository(db)}
}

func (r *authLogRepository) Create(ctx context.Context, attempt *model.AuthAttempt) error {
	query := `
		INSERT INTO auth_logs (id, user_id, ip, user_agent, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		attempt.ID, attempt.UserID, attempt.IP, attempt.UserAgent,
		attempt.Success, attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record auth attempt: %w", err)
	}
	return nil
}

func (r *authLogRepository) List(ctx context.Context) ([]*model.AuthAttempt, error) {
	var attempts []*model.AuthAttempt
	query := `SELECT * FROM auth_logs ORDER BY created_at DESC`
	if err := r.GetDB().SelectContext(ctx, &attempts, query); err != nil {
		return nil, fmt.Errorf("failed to list auth attempts: %w", err)
	}
	return attempts, nil
}
