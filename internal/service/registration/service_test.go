package registration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/medichain/medichain-api/pkg/errors"
	"github.com/medichain/medichain-api/pkg/logger"

	"github.com/medichain/medichain-api/internal/blockchain"
	"github.com/medichain/medichain-api/internal/model"
)

// fakeUsers stores identities in memory. ListUnregistered derives orphans the
// same way the real query does: a wallet with no registration event.
type fakeUsers struct {
	byID   map[uuid.UUID]*model.User
	events *fakeEvents
}

func newFakeUsers(events *fakeEvents) *fakeUsers {
	return &fakeUsers{byID: make(map[uuid.UUID]*model.User), events: events}
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
	for _, u := range f.byID {
		if u.Wallet == wallet {
			return u, nil
		}
	}
	return nil, apperrors.NotFound("user", nil)
}

func (f *fakeUsers) List(ctx context.Context, role model.Role) ([]*model.User, error) {
	var out []*model.User
	for _, u := range f.byID {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) SetActive(ctx context.Context, id uuid.UUID, active bool) error { return nil }

func (f *fakeUsers) GetDoctorProfile(ctx context.Context, userID uuid.UUID) (*model.DoctorProfile, error) {
	return nil, apperrors.NotFound("doctor profile", nil)
}

func (f *fakeUsers) GetPatientProfile(ctx context.Context, userID uuid.UUID) (*model.PatientProfile, error) {
	return nil, apperrors.NotFound("patient profile", nil)
}

func (f *fakeUsers) UpdateDoctorProfile(ctx context.Context, profile *model.DoctorProfile) error {
	return nil
}

func (f *fakeUsers) UpdatePatientProfile(ctx context.Context, profile *model.PatientProfile) error {
	return nil
}

func (f *fakeUsers) ListUnregistered(ctx context.Context) ([]*model.User, error) {
	confirmed := make(map[string]bool)
	for _, e := range f.events.events {
		if e.EventName != model.EventPatientRegistered && e.EventName != model.EventDoctorRegistered {
			continue
		}
		var payload struct {
			Wallet string `json:"wallet"`
		}
		if err := json.Unmarshal(e.Payload, &payload); err == nil {
			confirmed[payload.Wallet] = true
		}
	}

	var out []*model.User
	for _, u := range f.byID {
		if !confirmed[u.Wallet] {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeEvents struct {
	events []*model.BlockchainEvent
}

func (f *fakeEvents) Create(ctx context.Context, event *model.BlockchainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEvents) List(ctx context.Context) ([]*model.BlockchainEvent, error) {
	return f.events, nil
}

func (f *fakeEvents) ListBySaga(ctx context.Context, sagaID uuid.UUID) ([]*model.BlockchainEvent, error) {
	var out []*model.BlockchainEvent
	for _, e := range f.events {
		if e.SagaID != nil && *e.SagaID == sagaID {
			out = append(out, e)
		}
	}
	return out, nil
}

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

// fakeSagas keeps the step history so tests can assert on ordering.
type fakeSagas struct {
	byID  map[uuid.UUID]*model.RegistrationSaga
	steps map[uuid.UUID][]string
}

func newFakeSagas() *fakeSagas {
	return &fakeSagas{
		byID:  make(map[uuid.UUID]*model.RegistrationSaga),
		steps: make(map[uuid.UUID][]string),
	}
}

func (f *fakeSagas) Create(ctx context.Context, saga *model.RegistrationSaga) error {
	f.byID[saga.ID] = saga
	f.steps[saga.ID] = []string{saga.Step}
	return nil
}

func (f *fakeSagas) Get(ctx context.Context, id uuid.UUID) (*model.RegistrationSaga, error) {
	if s, ok := f.byID[id]; ok {
		return s, nil
	}
	return nil, apperrors.NotFound("saga", nil)
}

func (f *fakeSagas) AdvanceStep(ctx context.Context, id uuid.UUID, step string) error {
	f.byID[id].Step = step
	f.steps[id] = append(f.steps[id], step)
	return nil
}

func (f *fakeSagas) SetUser(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	f.byID[id].UserID = &userID
	return nil
}

func (f *fakeSagas) MarkDone(ctx context.Context, id uuid.UUID) error {
	f.byID[id].Status = model.SagaStatusDone
	return f.AdvanceStep(ctx, id, model.SagaStepCompleted)
}

func (f *fakeSagas) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	f.byID[id].Status = model.SagaStatusFailed
	f.byID[id].Error = &reason
	return nil
}

func (f *fakeSagas) ListStuck(ctx context.Context, olderThanSeconds int) ([]*model.RegistrationSaga, error) {
	var out []*model.RegistrationSaga
	for _, s := range f.byID {
		if s.Status == model.SagaStatusFailed {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeWallets struct {
	n int
}

func (f *fakeWallets) NewAddress() (string, error) {
	f.n++
	return fmt.Sprintf("0x%040d", f.n), nil
}

// fakeRelayer records submitted calls; errs scripts per-call failures.
type fakeRelayer struct {
	calls []blockchain.Call
	errs  []error
}

func (f *fakeRelayer) Submit(ctx context.Context, call blockchain.Call) (*blockchain.Confirmation, error) {
	idx := len(f.calls)
	f.calls = append(f.calls, call)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	return &blockchain.Confirmation{
		TxHash:      fmt.Sprintf("0xtx%04d", idx+1),
		BlockNumber: uint64(idx + 1),
	}, nil
}

type fakeMailer struct {
	sent []string
	err  error
}

func (f *fakeMailer) SendCredentials(ctx context.Context, to, name, password string) error {
	f.sent = append(f.sent, to)
	return f.err
}

func quietLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.FatalLevel,
		TimeFormat: time.RFC3339,
		Output:     io.Discard,
	})
}

type fixture struct {
	svc      *Service
	users    *fakeUsers
	events   *fakeEvents
	authLogs *fakeAuthLogs
	sagas    *fakeSagas
	relayer  *fakeRelayer
	mailer   *fakeMailer
}

func setup() *fixture {
	events := &fakeEvents{}
	f := &fixture{
		users:    newFakeUsers(events),
		events:   events,
		authLogs: &fakeAuthLogs{},
		sagas:    newFakeSagas(),
		relayer:  &fakeRelayer{},
		mailer:   &fakeMailer{},
	}
	f.svc = NewService(
		f.users, f.sagas, f.events, f.authLogs,
		&fakeWallets{}, f.relayer, f.mailer,
		quietLogger(), nil,
	)
	return f
}

func selfRequest(role model.Role) *model.RegisterRequest {
	return &model.RegisterRequest{
		Email:    string(role) + "@example.com",
		Password: "secret-password",
		FullName: "Some " + string(role),
		Role:     role,
	}
}

func TestRegisterSelfPatient(t *testing.T) {
	f := setup()

	result, err := f.svc.RegisterSelf(context.Background(), selfRequest(model.RolePatient), nil)
	require.NoError(t, err)

	assert.Equal(t, model.RolePatient, result.User.Role)
	assert.NotEmpty(t, result.User.Wallet)
	assert.NotNil(t, result.RegisterTx)
	assert.Nil(t, result.AccessTx)

	// Stored credential is a hash, never the password.
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(result.User.PasswordHash), []byte("secret-password")))

	saga := f.sagas.byID[result.SagaID]
	require.NotNil(t, saga)
	assert.Equal(t, model.SagaStatusDone, saga.Status)
	assert.Equal(t, []string{
		model.SagaStepStarted,
		model.SagaStepWalletAssigned,
		model.SagaStepLocalCreated,
		model.SagaStepChainConfirmed,
		model.SagaStepCompleted,
	}, f.sagas.steps[result.SagaID])

	require.Len(t, f.relayer.calls, 1)
	assert.Equal(t, "registerPatient", f.relayer.calls[0].Method)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, model.EventPatientRegistered, f.events.events[0].EventName)
	require.NotNil(t, f.events.events[0].SagaID)
	assert.Equal(t, result.SagaID, *f.events.events[0].SagaID)
}

func TestRegisterSelfRejectsAdminRole(t *testing.T) {
	f := setup()

	_, err := f.svc.RegisterSelf(context.Background(), selfRequest(model.RoleAdmin), nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrValidation, apperrors.CodeOf(err))
	assert.Empty(t, f.relayer.calls)
}

func TestDuplicateEmailRejectedBeforeChainCall(t *testing.T) {
	f := setup()

	_, err := f.svc.RegisterSelf(context.Background(), selfRequest(model.RolePatient), nil)
	require.NoError(t, err)
	callsAfterFirst := len(f.relayer.calls)

	_, err = f.svc.RegisterSelf(context.Background(), selfRequest(model.RolePatient), nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))

	// The conflict was detected before any wallet or chain work.
	assert.Len(t, f.relayer.calls, callsAfterFirst)

	// The failed attempt is in the auth log with no identity reference.
	last := f.authLogs.attempts[len(f.authLogs.attempts)-1]
	assert.False(t, last.Success)
	assert.Nil(t, last.UserID)
}

func TestRegisterDoctorKeepsProfile(t *testing.T) {
	f := setup()
	years := 12

	result, err := f.svc.RegisterDoctor(context.Background(), &model.RegisterDoctorRequest{
		Email:           "dr@example.com",
		Password:        "secret-password",
		FullName:        "Dr Example",
		Specialization:  "cardiology",
		LicenseNumber:   "LIC-42",
		ExperienceYears: &years,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, model.RoleDoctor, result.User.Role)
	profile, ok := result.Profile.(*model.DoctorProfile)
	require.True(t, ok)
	assert.Equal(t, "cardiology", profile.Specialization)

	require.Len(t, f.relayer.calls, 1)
	assert.Equal(t, "registerDoctor", f.relayer.calls[0].Method)
}

func TestRegisterPatientForDoctorGrantsAccessInOrder(t *testing.T) {
	f := setup()

	doctor := &model.User{
		ID: uuid.New(), Email: "dr@example.com", FullName: "Dr Example",
		Role: model.RoleDoctor, Wallet: "0x1111111111111111111111111111111111111111", IsActive: true,
	}
	require.NoError(t, f.users.Create(context.Background(), doctor))

	result, err := f.svc.RegisterPatientForDoctor(context.Background(), doctor.ID, &model.RegisterPatientRequest{
		Email:    "patient@example.com",
		Password: "secret-password",
		FullName: "New Patient",
	}, nil)
	require.NoError(t, err)

	require.Len(t, f.relayer.calls, 2)
	assert.Equal(t, "registerPatient", f.relayer.calls[0].Method)
	assert.Equal(t, "setDoctorAccess", f.relayer.calls[1].Method)
	assert.NotNil(t, result.AccessTx)

	// Both transactions of the pair carry the saga id.
	linked, err := f.events.ListBySaga(context.Background(), result.SagaID)
	require.NoError(t, err)
	require.Len(t, linked, 2)
	assert.Equal(t, model.EventPatientRegistered, linked[0].EventName)
	assert.Equal(t, model.EventAccessGranted, linked[1].EventName)

	assert.Equal(t, []string{"patient@example.com"}, f.mailer.sent)
}

func TestRegisterPatientForDoctorRejectsNonDoctor(t *testing.T) {
	f := setup()

	patient := &model.User{
		ID: uuid.New(), Email: "p@example.com", Role: model.RolePatient,
		Wallet: "0x2222222222222222222222222222222222222222", IsActive: true,
	}
	require.NoError(t, f.users.Create(context.Background(), patient))

	_, err := f.svc.RegisterPatientForDoctor(context.Background(), patient.ID, &model.RegisterPatientRequest{
		Email: "x@example.com", Password: "secret-password", FullName: "X",
	}, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
	assert.Empty(t, f.relayer.calls)
}

func TestChainFailureLeavesDetectableOrphan(t *testing.T) {
	f := setup()
	f.relayer.errs = []error{apperrors.ChainRevert("registerPatient reverted on-chain", errors.New("revert"))}

	_, err := f.svc.RegisterSelf(context.Background(), selfRequest(model.RolePatient), nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrChainRevert, apperrors.CodeOf(err))

	// Local identity exists but never made it on-chain.
	user, err := f.users.GetByEmail(context.Background(), "patient@example.com")
	require.NoError(t, err)

	orphans, err := f.svc.FindOrphanedIdentities(context.Background())
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, user.ID, orphans[0].User.ID)
	require.NotNil(t, orphans[0].Saga)
	assert.Equal(t, model.SagaStatusFailed, orphans[0].Saga.Status)
}

func TestSuccessfulRegistrationIsNotOrphaned(t *testing.T) {
	f := setup()

	_, err := f.svc.RegisterSelf(context.Background(), selfRequest(model.RolePatient), nil)
	require.NoError(t, err)

	orphans, err := f.svc.FindOrphanedIdentities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orphans)
}
