package auth

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	pkgauth "github.com/medichain/medichain-api/pkg/auth"
	apperrors "github.com/medichain/medichain-api/pkg/errors"
	"github.com/medichain/medichain-api/pkg/logger"

	"github.com/medichain/medichain-api/internal/model"
)

type fakeUsers struct {
	byID map[uuid.UUID]*model.User
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{byID: make(map[uuid.UUID]*model.User)}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, apperrors.NotFound("user", nil)
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperrors.NotFound("user", nil)
}

func (f *fakeUsers) GetByWallet(ctx context.Context, wallet string) (*model.User, error) {
	return nil, apperrors.NotFound("user", nil)
}

func (f *fakeUsers) List(ctx context.Context, role model.Role) ([]*model.User, error) {
	return nil, nil
}

func (f *fakeUsers) Create(ctx context.Context, user *model.User) error {
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUsers) CreateWithDoctorProfile(ctx context.Context, user *model.User, profile *model.DoctorProfile) error {
	return f.Create(ctx, user)
}

func (f *fakeUsers) CreateWithPatientProfile(ctx context.Context, user *model.User, profile *model.PatientProfile) error {
	return f.Create(ctx, user)
}

func (f *fakeUsers) SetActive(ctx context.Context, id uuid.UUID, active bool) error { return nil }

func (f *fakeUsers) GetDoctorProfile(ctx context.Context, userID uuid.UUID) (*model.DoctorProfile, error) {
	return nil, apperrors.NotFound("doctor profile", nil)
}

func (f *fakeUsers) GetPatientProfile(ctx context.Context, userID uuid.UUID) (*model.PatientProfile, error) {
	return &model.PatientProfile{UserID: userID}, nil
}

func (f *fakeUsers) UpdateDoctorProfile(ctx context.Context, profile *model.DoctorProfile) error {
	return nil
}

func (f *fakeUsers) UpdatePatientProfile(ctx context.Context, profile *model.PatientProfile) error {
	return nil
}

func (f *fakeUsers) ListUnregistered(ctx context.Context) ([]*model.User, error) { return nil, nil }

type fakeAuthLogs struct {
	attempts []*model.AuthAttempt
}

func (f *fakeAuthLogs) Create(ctx context.Context, attempt *model.AuthAttempt) error {
	f.attempts = append(f.attempts, attempt)
	return nil
}

func (f *fakeAuthLogs) List(ctx context.Context) ([]*model.AuthAttempt, error) {
	return f.attempts, nil
}

func quietLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.FatalLevel,
		TimeFormat: time.RFC3339,
		Output:     io.Discard,
	})
}

func patientUser(t *testing.T, email, password string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &model.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     "Pat Example",
		Role:         model.RolePatient,
		Wallet:       "0x2222222222222222222222222222222222222222",
		IsActive:     true,
	}
}

func setup(t *testing.T) (*Service, *fakeUsers, *fakeAuthLogs, *model.User) {
	t.Helper()
	user := patientUser(t, "pat@example.com", "correct-password")
	users := newFakeUsers(user)
	logs := &fakeAuthLogs{}
	jwtSvc := pkgauth.NewJWTService("test-secret-at-least-16", time.Hour)
	svc := NewService(users, logs, jwtSvc, quietLogger())
	return svc, users, logs, user
}

var meta = &model.RequestMeta{IP: "203.0.113.7", UserAgent: "test-agent"}

func TestLoginSuccess(t *testing.T) {
	svc, _, logs, user := setup(t)

	result, err := svc.Login(context.Background(), &model.LoginRequest{
		Email: "pat@example.com", Password: "correct-password",
	}, meta)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, user.ID, result.User.ID)
	assert.NotNil(t, result.Profile)

	claims, err := svc.ValidateToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, model.RolePatient, claims.Role)

	require.Len(t, logs.attempts, 1)
	assert.True(t, logs.attempts[0].Success)
	require.NotNil(t, logs.attempts[0].UserID)
	assert.Equal(t, user.ID, *logs.attempts[0].UserID)
	assert.Equal(t, "203.0.113.7", logs.attempts[0].IP)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, logs, user := setup(t)

	_, err := svc.Login(context.Background(), &model.LoginRequest{
		Email: "pat@example.com", Password: "wrong",
	}, meta)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))

	require.Len(t, logs.attempts, 1)
	assert.False(t, logs.attempts[0].Success)
	require.NotNil(t, logs.attempts[0].UserID)
	assert.Equal(t, user.ID, *logs.attempts[0].UserID)
}

func TestLoginUnknownEmailStillLogged(t *testing.T) {
	svc, _, logs, _ := setup(t)

	_, err := svc.Login(context.Background(), &model.LoginRequest{
		Email: "nobody@example.com", Password: "whatever",
	}, meta)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))

	// The attempt is recorded with no identity reference.
	require.Len(t, logs.attempts, 1)
	assert.False(t, logs.attempts[0].Success)
	assert.Nil(t, logs.attempts[0].UserID)
}

func TestLoginDeactivatedAccount(t *testing.T) {
	svc, _, logs, user := setup(t)
	user.IsActive = false

	_, err := svc.Login(context.Background(), &model.LoginRequest{
		Email: "pat@example.com", Password: "correct-password",
	}, meta)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))

	require.Len(t, logs.attempts, 1)
	assert.False(t, logs.attempts[0].Success)
}
