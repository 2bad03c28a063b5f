package registration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/medichain/medichain-api/pkg/errors"
	"github.com/medichain/medichain-api/pkg/logger"
	"github.com/medichain/medichain-api/pkg/metrics"

	"github.com/medichain/medichain-api/internal/blockchain"
	"github.com/medichain/medichain-api/internal/email"
	"github.com/medichain/medichain-api/internal/model"
	"github.com/medichain/medichain-api/internal/repository"
)

const bcryptCost = 10

type RegistrationService interface {
	RegisterSelf(ctx context.Context, req *model.RegisterRequest, meta *model.RequestMeta) (*model.RegistrationResult, error)
	RegisterDoctor(ctx context.Context, req *model.RegisterDoctorRequest, meta *model.RequestMeta) (*model.RegistrationResult, error)
	RegisterPatientForDoctor(ctx context.Context, doctorID uuid.UUID, req *model.RegisterPatientRequest, meta *model.RequestMeta) (*model.RegistrationResult, error)
	FindOrphanedIdentities(ctx context.Context) ([]*model.OrphanedIdentity, error)
}

// Service coordinates the multi-step registration flows. Each run is recorded
// as a saga: local writes and chain calls share no transaction, so the step
// log is what a failed run leaves behind for reconciliation.
type Service struct {
	users    repository.UserRepository
	sagas    repository.SagaRepository
	events   repository.EventRepository
	authLogs repository.AuthLogRepository
	wallets  blockchain.WalletProvider
	relayer  blockchain.TxSubmitter
	mailer   email.Service
	logger   *logger.Logger
	metrics  *metrics.Metrics

	stuckSagaSeconds int
}

func NewService(
	users repository.UserRepository,
	sagas repository.SagaRepository,
	events repository.EventRepository,
	authLogs repository.AuthLogRepository,
	wallets blockchain.WalletProvider,
	relayer blockchain.TxSubmitter,
	mailer email.Service,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		users:            users,
		sagas:            sagas,
		events:           events,
		authLogs:         authLogs,
		wallets:          wallets,
		relayer:          relayer,
		mailer:           mailer,
		logger:           log,
		metrics:          m,
		stuckSagaSeconds: 300,
	}
}

// SetStuckSagaThreshold overrides how old a running saga must be before the
// reconciliation query flags it.
func (s *Service) SetStuckSagaThreshold(seconds int) {
	if seconds > 0 {
		s.stuckSagaSeconds = seconds
	}
}

// RegisterSelf handles self-service registration of a patient or doctor with
// an empty profile of the matching variant.
func (s *Service) RegisterSelf(ctx context.Context, req *model.RegisterRequest, meta *model.RequestMeta) (*model.RegistrationResult, error) {
	if !req.Role.Valid() || req.Role == model.RoleAdmin {
		return nil, apperrors.Validation("role must be patient or doctor", nil)
	}

	run, err := s.begin(ctx, model.SagaSelfRegister, req.Email, meta)
	if err != nil {
		return nil, err
	}

	user, err := s.createIdentity(ctx, run, req.Email, req.Password, req.FullName, req.Role, func(u *model.User) error {
		if req.Role == model.RoleDoctor {
			return s.users.CreateWithDoctorProfile(ctx, u, &model.DoctorProfile{UserID: u.ID, UpdatedAt: time.Now()})
		}
		return s.users.CreateWithPatientProfile(ctx, u, &model.PatientProfile{UserID: u.ID, UpdatedAt: time.Now()})
	})
	if err != nil {
		return nil, err
	}

	registerTx, err := s.registerOnChain(ctx, run, user)
	if err != nil {
		return nil, err
	}

	s.finish(ctx, run, user, meta)
	return &model.RegistrationResult{User: user, SagaID: run.id, RegisterTx: registerTx}, nil
}

// RegisterDoctor handles admin-issued doctor registration with a full
// professional profile.
func (s *Service) RegisterDoctor(ctx context.Context, req *model.RegisterDoctorRequest, meta *model.RequestMeta) (*model.RegistrationResult, error) {
	run, err := s.begin(ctx, model.SagaAdminDoctor, req.Email, meta)
	if err != nil {
		return nil, err
	}

	profile := &model.DoctorProfile{
		Specialization:  req.Specialization,
		LicenseNumber:   req.LicenseNumber,
		ExperienceYears: req.ExperienceYears,
		UpdatedAt:       time.Now(),
	}
	user, err := s.createIdentity(ctx, run, req.Email, req.Password, req.FullName, model.RoleDoctor, func(u *model.User) error {
		profile.UserID = u.ID
		return s.users.CreateWithDoctorProfile(ctx, u, profile)
	})
	if err != nil {
		return nil, err
	}

	registerTx, err := s.registerOnChain(ctx, run, user)
	if err != nil {
		return nil, err
	}

	s.finish(ctx, run, user, meta)
	return &model.RegistrationResult{User: user, Profile: profile, SagaID: run.id, RegisterTx: registerTx}, nil
}

// RegisterPatientForDoctor registers a patient on behalf of the issuing
// doctor, then grants that doctor access in a second transaction. Both
// transactions carry the saga id, making the pair's linkage explicit.
func (s *Service) RegisterPatientForDoctor(ctx context.Context, doctorID uuid.UUID, req *model.RegisterPatientRequest, meta *model.RequestMeta) (*model.RegistrationResult, error) {
	doctor, err := s.users.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if doctor.Role != model.RoleDoctor {
		return nil, apperrors.NotFound("doctor", nil)
	}

	run, err := s.begin(ctx, model.SagaDoctorPatient, req.Email, meta)
	if err != nil {
		return nil, err
	}

	profile := &model.PatientProfile{
		Age:               req.Age,
		Gender:            req.Gender,
		Allergies:         req.Allergies,
		ChronicConditions: req.ChronicConditions,
		UpdatedAt:         time.Now(),
	}
	user, err := s.createIdentity(ctx, run, req.Email, req.Password, req.FullName, model.RolePatient, func(u *model.User) error {
		profile.UserID = u.ID
		return s.users.CreateWithPatientProfile(ctx, u, profile)
	})
	if err != nil {
		return nil, err
	}

	registerTx, err := s.registerOnChain(ctx, run, user)
	if err != nil {
		return nil, err
	}

	// Second chain call of the same saga. The sequencer keeps the two nonces
	// ordered even if unrelated submissions interleave.
	grantConf, err := s.relayer.Submit(ctx, blockchain.SetDoctorAccessCall(user.Wallet, doctor.Wallet, true))
	if err != nil {
		s.fail(ctx, run, fmt.Errorf("initial access grant failed: %w", err))
		return nil, err
	}
	s.recordEvent(ctx, run, model.EventAccessGranted, grantConf, map[string]interface{}{
		"patient_wallet": user.Wallet,
		"doctor_wallet":  doctor.Wallet,
		"allowed":        true,
	})
	s.advance(ctx, run, model.SagaStepAccessGranted)

	if s.mailer != nil {
		if err := s.mailer.SendCredentials(ctx, user.Email, user.FullName, req.Password); err != nil {
			s.logger.Error(err, "failed to send credentials email", "email", user.Email)
		}
	}

	s.finish(ctx, run, user, meta)
	return &model.RegistrationResult{
		User:       user,
		Profile:    profile,
		SagaID:     run.id,
		RegisterTx: registerTx,
		AccessTx:   &model.TxRef{TxHash: grantConf.TxHash, BlockNumber: grantConf.BlockNumber},
	}, nil
}

// FindOrphanedIdentities returns local identities with no confirmed
// registration event plus sagas stuck short of confirmation. This is the
// reconciliation hook for the known inconsistency window between the local
// write and the chain call.
func (s *Service) FindOrphanedIdentities(ctx context.Context) ([]*model.OrphanedIdentity, error) {
	users, err := s.users.ListUnregistered(ctx)
	if err != nil {
		return nil, err
	}

	stuck, err := s.sagas.ListStuck(ctx, s.stuckSagaSeconds)
	if err != nil {
		return nil, err
	}
	sagaByUser := make(map[uuid.UUID]*model.RegistrationSaga, len(stuck))
	for _, saga := range stuck {
		if saga.UserID != nil {
			sagaByUser[*saga.UserID] = saga
		}
	}

	orphans := make([]*model.OrphanedIdentity, 0, len(users))
	for _, u := range users {
		orphans = append(orphans, &model.OrphanedIdentity{
			User:   u,
			Saga:   sagaByUser[u.ID],
			Reason: "no confirmed registration event for wallet",
		})
	}
	return orphans, nil
}

// sagaRun keeps the per-run bookkeeping together.
type sagaRun struct {
	id   uuid.UUID
	kind model.SagaKind
}

// begin validates the email is free and opens the saga row. The duplicate
// check happens before any wallet or chain work: a conflicting registration
// must not submit a transaction.
func (s *Service) begin(ctx context.Context, kind model.SagaKind, emailAddr string, meta *model.RequestMeta) (*sagaRun, error) {
	if _, err := s.users.GetByEmail(ctx, emailAddr); err == nil {
		s.recordAttempt(ctx, nil, meta, false)
		return nil, apperrors.Conflict("email already in use", nil)
	} else if apperrors.CodeOf(err) != apperrors.ErrNotFound {
		return nil, err
	}

	run := &sagaRun{id: uuid.New(), kind: kind}
	saga := &model.RegistrationSaga{
		ID:        run.id,
		Email:     emailAddr,
		Kind:      kind,
		Step:      model.SagaStepStarted,
		Status:    model.SagaStatusRunning,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.sagas.Create(ctx, saga); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SagasStarted.WithLabelValues(string(kind)).Inc()
	}
	return run, nil
}

// createIdentity assigns a wallet and persists identity plus profile in one
// local transaction.
func (s *Service) createIdentity(
	ctx context.Context,
	run *sagaRun,
	emailAddr, password, fullName string,
	role model.Role,
	persist func(*model.User) error,
) (*model.User, error) {
	wallet, err := s.wallets.NewAddress()
	if err != nil {
		s.fail(ctx, run, err)
		return nil, apperrors.Internal(err)
	}
	s.advance(ctx, run, model.SagaStepWalletAssigned)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		s.fail(ctx, run, err)
		return nil, apperrors.Internal(err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New(),
		Email:        emailAddr,
		PasswordHash: string(hash),
		FullName:     fullName,
		Role:         role,
		Wallet:       wallet,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := persist(user); err != nil {
		s.fail(ctx, run, err)
		return nil, err
	}
	if err := s.sagas.SetUser(ctx, run.id, user.ID); err != nil {
		s.logger.Error(err, "failed to link saga to user", "saga_id", run.id.String())
	}
	s.advance(ctx, run, model.SagaStepLocalCreated)

	return user, nil
}

// registerOnChain submits the registration transaction. A permanent failure
// here leaves the local row orphaned; the saga is marked failed so the
// reconciliation scan picks it up.
func (s *Service) registerOnChain(ctx context.Context, run *sagaRun, user *model.User) (*model.TxRef, error) {
	call := blockchain.RegisterPatientCall(user.Wallet)
	eventName := model.EventPatientRegistered
	if user.Role == model.RoleDoctor {
		call = blockchain.RegisterDoctorCall(user.Wallet)
		eventName = model.EventDoctorRegistered
	}

	confirmation, err := s.relayer.Submit(ctx, call)
	if err != nil {
		s.fail(ctx, run, fmt.Errorf("on-chain registration failed: %w", err))
		if apperrors.IsInconsistent(err) {
			s.logger.Error(err, "local identity exists without on-chain registration",
				"user_id", user.ID.String(), "wallet", user.Wallet, "saga_id", run.id.String())
		}
		return nil, err
	}

	s.recordEvent(ctx, run, eventName, confirmation, map[string]interface{}{"wallet": user.Wallet})
	s.advance(ctx, run, model.SagaStepChainConfirmed)

	return &model.TxRef{TxHash: confirmation.TxHash, BlockNumber: confirmation.BlockNumber}, nil
}

func (s *Service) finish(ctx context.Context, run *sagaRun, user *model.User, meta *model.RequestMeta) {
	if err := s.sagas.MarkDone(ctx, run.id); err != nil {
		s.logger.Error(err, "failed to close saga", "saga_id", run.id.String())
	}
	s.recordAttempt(ctx, &user.ID, meta, true)
}

func (s *Service) fail(ctx context.Context, run *sagaRun, cause error) {
	if err := s.sagas.MarkFailed(ctx, run.id, cause.Error()); err != nil {
		s.logger.Error(err, "failed to mark saga failed", "saga_id", run.id.String())
	}
	if s.metrics != nil {
		s.metrics.SagasFailed.WithLabelValues(string(run.kind)).Inc()
	}
}

func (s *Service) advance(ctx context.Context, run *sagaRun, step string) {
	if err := s.sagas.AdvanceStep(ctx, run.id, step); err != nil {
		s.logger.Error(err, "failed to advance saga step", "saga_id", run.id.String(), "step", step)
	}
}

func (s *Service) recordEvent(ctx context.Context, run *sagaRun, name string, c *blockchain.Confirmation, payload map[string]interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error(err, "failed to marshal event payload")
		return
	}
	sagaID := run.id
	event := &model.BlockchainEvent{
		ID:          uuid.New(),
		TxHash:      c.TxHash,
		EventName:   name,
		BlockNumber: c.BlockNumber,
		Payload:     raw,
		SagaID:      &sagaID,
		CreatedAt:   time.Now(),
	}
	if err := s.events.Create(ctx, event); err != nil {
		s.logger.Error(err, "failed to record blockchain event", "tx", c.TxHash)
	}
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
