package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/medichain/medichain-api/pkg/auth"
	apperrors "github.com/medichain/medichain-api/pkg/errors"
	"github.com/medichain/medichain-api/pkg/logger"

	"github.com/medichain/medichain-api/internal/model"
	"github.com/medichain/medichain-api/internal/repository"
)

type AuthService interface {
	Login(ctx context.Context, req *model.LoginRequest, meta *model.RequestMeta) (*model.LoginResult, error)
	ValidateToken(token string) (*auth.Claims, error)
}

type Service struct {
	users    repository.UserRepository
	authLogs repository.AuthLogRepository
	jwtSvc   auth.JWTService
	logger   *logger.Logger
}

func NewService(users repository.UserRepository, authLogs repository.AuthLogRepository, jwtSvc auth.JWTService, log *logger.Logger) *Service {
	return &Service{users: users, authLogs: authLogs, jwtSvc: jwtSvc, logger: log}
}

// Login authenticates by email and password. Every attempt is recorded,
// including lookups of unknown emails (with a nil identity reference).
func (s *Service) Login(ctx context.Context, req *model.LoginRequest, meta *model.RequestMeta) (*model.LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.ErrNotFound {
			s.recordAttempt(ctx, nil, meta, false)
			return nil, apperrors.Unauthorized(nil)
		}
		return nil, err
	}

	if !user.IsActive {
		s.recordAttempt(ctx, &user.ID, meta, false)
		return nil, apperrors.Forbidden("account is deactivated", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.recordAttempt(ctx, &user.ID, meta, false)
		return nil, apperrors.Unauthorized(nil)
	}

	token, err := s.jwtSvc.GenerateToken(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	var profile interface{}
	switch user.Role {
	case model.RoleDoctor:
		if p, err := s.users.GetDoctorProfile(ctx, user.ID); err == nil {
			profile = p
		}
	case model.RolePatient:
		if p, err := s.users.GetPatientProfile(ctx, user.ID); err == nil {
			profile = p
		}
	}

	s.recordAttempt(ctx, &user.ID, meta, true)

	return &model.LoginResult{Token: token, User: user, Profile: profile}, nil
}

func (s *Service) ValidateToken(token string) (*auth.Claims, error) {
	return s.jwtSvc.ValidateToken(token)
}

func (s *Service) recordAttempt(ctx context.Context, userID *uuid.UUID, meta *model.RequestMeta, success bool) {
	if meta == nil {
		meta = &model.RequestMeta{}
	}
	attempt := &model.AuthAttempt{
		ID:        uuid.New(),
		UserID:    userID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   success,
		CreatedAt: time.Now(),
	}
	if err := s.authLogs.Create(ctx, attempt); err != nil {
		s.logger.Error(err, "failed to record auth attempt")
	}
}
