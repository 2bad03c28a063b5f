package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	apperrors "github.com/medichain/medichain-api/pkg/errors"

	"github.com/medichain/medichain-api/internal/model"
	"github.com/medichain/medichain-api/internal/repository"
)

type userRepository struct {
	BaseRepository
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{NewBaseRepository(db)}
}

const insertUserQuery = `
	INSERT INTO users (id, email, password_hash, full_name, role, wallet, is_active, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	_, err := r.GetDB().ExecContext(ctx, insertUserQuery,
		user.ID, user.Email, user.PasswordHash, user.FullName,
		user.Role, user.Wallet, user.IsActive, user.CreatedAt, user.UpdatedAt,
	)
	return translateUniqueViolation(err)
}

func (r *userRepository) CreateWithDoctorProfile(ctx context.Context, user *model.User, profile *model.DoctorProfile) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, insertUserQuery,
			user.ID, user.Email, user.PasswordHash, user.FullName,
			user.Role, user.Wallet, user.IsActive, user.CreatedAt, user.UpdatedAt,
		); err != nil {
			return translateUniqueViolation(err)
		}

		query := `
			INSERT INTO doctor_profiles (user_id, specialization, license_number, experience_years, updated_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		_, err := tx.ExecContext(ctx, query,
			profile.UserID, profile.Specialization, profile.LicenseNumber,
			profile.ExperienceYears, profile.UpdatedAt,
		)
		return err
	})
}

func (r *userRepository) CreateWithPatientProfile(ctx context.Context, user *model.User, profile *model.PatientProfile) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, insertUserQuery,
			user.ID, user.Email, user.PasswordHash, user.FullName,
			user.Role, user.Wallet, user.IsActive, user.CreatedAt, user.UpdatedAt,
		); err != nil {
			return translateUniqueViolation(err)
		}

		query := `
			INSERT INTO patient_profiles (user_id, age, gender, allergies, chronic_conditions, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		_, err := tx.ExecContext(ctx, query,
			profile.UserID, profile.Age, profile.Gender,
			profile.Allergies, profile.ChronicConditions, profile.UpdatedAt,
		)
		return err
	})
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	err := r.GetDB().GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("user", err)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.GetDB().GetContext(ctx, &user, `SELECT * FROM users WHERE email = $1`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("user", err)
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByWallet(ctx context.Context, wallet string) (*model.User, error) {
	var user model.User
	err := r.GetDB().GetContext(ctx, &user, `SELECT * FROM users WHERE wallet = $1`, wallet)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("user", err)
		}
		return nil, fmt.Errorf("failed to get user by wallet: %w", err)
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, role model.Role) ([]*model.User, error) {
	var users []*model.User
	query := `SELECT * FROM users WHERE role = $1 ORDER BY created_at DESC`
	if err := r.GetDB().SelectContext(ctx, &users, query, role); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *userRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := r.GetDB().ExecContext(ctx,
		`UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update user active flag: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperrors.NotFound("user", nil)
	}
	return nil
}

func (r *userRepository) GetDoctorProfile(ctx context.Context, userID uuid.UUID) (*model.DoctorProfile, error) {
	var profile model.DoctorProfile
	err := r.GetDB().GetContext(ctx, &profile,
		`SELECT * FROM doctor_profiles WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("doctor profile", err)
		}
		return nil, fmt.Errorf("failed to get doctor profile: %w", err)
	}
	return &profile, nil
}

func (r *userRepository) GetPatientProfile(ctx context.Context, userID uuid.UUID) (*model.PatientProfile, error) {
	var profile model.PatientProfile
	err := r.GetDB().GetContext(ctx, &profile,
		`SELECT * FROM patient_profiles WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("patient profile", err)
		}
		return nil, fmt.Errorf("failed to get patient profile: %w", err)
	}
	return &profile, nil
}

func (r *userRepository) UpdateDoctorProfile(ctx context.Context, profile *model.DoctorProfile) error {
	query := `
		UPDATE doctor_profiles
		SET specialization = $1, license_number = $2, experience_years = $3, updated_at = NOW()
		WHERE user_id = $4
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		profile.Specialization, profile.LicenseNumber, profile.ExperienceYears, profile.UserID)
	return err
}

func (r *userRepository) UpdatePatientProfile(ctx context.Context, profile *model.PatientProfile) error {
	query := `
		UPDATE patient_profiles
		SET age = $1, gender = $2, allergies = $3, chronic_conditions = $4, updated_at = NOW()
		WHERE user_id = $5
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		profile.Age, profile.Gender, profile.Allergies, profile.ChronicConditions, profile.UserID)
	return err
}

// ListUnregistered finds identities that were written locally but never got a
// confirmed registration event. Registration events carry the wallet in their
// payload, which is what the join runs on.
func (r *userRepository) ListUnregistered(ctx context.Context) ([]*model.User, error) {
	query := `
		SELECT u.* FROM users u
		WHERE u.role IN ('doctor', 'patient')
		AND NOT EXISTS (
			SELECT 1 FROM blockchain_events e
			WHERE e.event_name IN ($1, $2)
			AND e.payload->>'wallet' = u.wallet
		)
		ORDER BY u.created_at DESC
	`
	var users []*model.User
	err := r.GetDB().SelectContext(ctx, &users, query,
		model.EventDoctorRegistered, model.EventPatientRegistered)
	if err != nil {
		return nil, fmt.Errorf("failed to list unregistered identities: %w", err)
	}
	return users, nil
}

// translateUniqueViolation maps duplicate email/wallet inserts to a conflict.
func translateUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return apperrors.Conflict("email or wallet already in use", err)
	}
	return err
}
