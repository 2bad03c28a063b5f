package access

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/medichain/medichain-api/pkg/errors"
	"github.com/medichain/medichain-api/pkg/logger"

	"github.com/medichain/medichain-api/internal/blockchain"
	"github.com/medichain/medichain-api/internal/model"
	"github.com/medichain/medichain-api/internal/repository"
)

type AccessService interface {
	Grant(ctx context.Context, patientID, doctorID uuid.UUID) (*model.AccessSummary, error)
	Revoke(ctx context.Context, patientID, doctorID uuid.UUID) (*model.AccessSummary, error)
	Check(ctx context.Context, doctorWallet, patientWallet string) (*model.AccessCheck, error)
	AccessiblePatients(ctx context.Context, doctorID uuid.UUID) ([]*model.PatientListing, error)
}

type Service struct {
	users   repository.UserRepository
	events  repository.EventRepository
	relayer blockchain.TxSubmitter
	reader  blockchain.AccessReader
	logger  *logger.Logger
}

func NewService(
	users repository.UserRepository,
	events repository.EventRepository,
	relayer blockchain.TxSubmitter,
	reader blockchain.AccessReader,
	log *logger.Logger,
) *Service {
	return &Service{
		users:   users,
		events:  events,
		relayer: relayer,
		reader:  reader,
		logger:  log,
	}
}

// Grant allows the doctor to see the patient's records. Granting twice is a
// no-op at the contract level, but each call still produces a transaction and
// an event record.
func (s *Service) Grant(ctx context.Context, patientID, doctorID uuid.UUID) (*model.AccessSummary, error) {
	return s.setAccess(ctx, patientID, doctorID, true)
}

// Revoke clears the access flag for the pair.
func (s *Service) Revoke(ctx context.Context, patientID, doctorID uuid.UUID) (*model.AccessSummary, error) {
	return s.setAccess(ctx, patientID, doctorID, false)
}

func (s *Service) setAccess(ctx context.Context, patientID, doctorID uuid.UUID, allowed bool) (*model.AccessSummary, error) {
	patient, err := s.getWithRole(ctx, patientID, model.RolePatient)
	if err != nil {
		return nil, err
	}
	doctor, err := s.getWithRole(ctx, doctorID, model.RoleDoctor)
	if err != nil {
		return nil, err
	}

	confirmation, err := s.relayer.Submit(ctx, blockchain.SetDoctorAccessCall(patient.Wallet, doctor.Wallet, allowed))
	if err != nil {
		return nil, fmt.Errorf("failed to set doctor access: %w", err)
	}

	eventName := model.EventAccessGranted
	if !allowed {
		eventName = model.EventAccessRevoked
	}
	if err := s.recordEvent(ctx, eventName, confirmation, map[string]interface{}{
		"patient_wallet": patient.Wallet,
		"doctor_wallet":  doctor.Wallet,
		"allowed":        allowed,
	}); err != nil {
		// The chain state changed; a missing shadow row is an audit gap, not
		// a reason to report failure to the caller.
		s.logger.Error(err, "failed to record access event", "tx", confirmation.TxHash)
	}

	return &model.AccessSummary{
		Patient: party(patient),
		Doctor:  party(doctor),
		Allowed: allowed,
		Tx:      &model.TxRef{TxHash: confirmation.TxHash, BlockNumber: confirmation.BlockNumber},
	}, nil
}

// Check reads the role flags and the access boolean straight from the
// contract. Deliberately uncached: a revocation must be visible on the very
// next check.
func (s *Service) Check(ctx context.Context, doctorWallet, patientWallet string) (*model.AccessCheck, error) {
	doctor, err := s.users.GetByWallet(ctx, doctorWallet)
	if err != nil {
		return nil, err
	}
	if doctor.Role != model.RoleDoctor {
		return nil, apperrors.NotFound("doctor", nil)
	}

	patient, err := s.users.GetByWallet(ctx, patientWallet)
	if err != nil {
		return nil, err
	}
	if patient.Role != model.RolePatient {
		return nil, apperrors.NotFound("patient", nil)
	}

	isDoctor, err := s.reader.IsDoctor(ctx, doctorWallet)
	if err != nil {
		return nil, apperrors.ChainTransient("failed to read doctor flag", err)
	}
	isPatient, err := s.reader.IsPatient(ctx, patientWallet)
	if err != nil {
		return nil, apperrors.ChainTransient("failed to read patient flag", err)
	}
	hasAccess, err := s.reader.HasAccess(ctx, patientWallet, doctorWallet)
	if err != nil {
		return nil, apperrors.ChainTransient("failed to read access flag", err)
	}

	return &model.AccessCheck{
		Doctor:         party(doctor),
		Patient:        party(patient),
		DoctorOnChain:  isDoctor,
		PatientOnChain: isPatient,
		Access:         hasAccess,
	}, nil
}

// AccessiblePatients lists the patients the doctor may currently see,
// checking the contract per patient rather than any local copy.
func (s *Service) AccessiblePatients(ctx context.Context, doctorID uuid.UUID) ([]*model.PatientListing, error) {
	doctor, err := s.getWithRole(ctx, doctorID, model.RoleDoctor)
	if err != nil {
		return nil, err
	}

	patients, err := s.users.List(ctx, model.RolePatient)
	if err != nil {
		return nil, err
	}

	accessible := make([]*model.PatientListing, 0)
	for _, p := range patients {
		hasAccess, err := s.reader.HasAccess(ctx, p.Wallet, doctor.Wallet)
		if err != nil {
			return nil, apperrors.ChainTransient("failed to read access flag", err)
		}
		if !hasAccess {
			continue
		}
		profile, err := s.users.GetPatientProfile(ctx, p.ID)
		if err != nil && apperrors.CodeOf(err) != apperrors.ErrNotFound {
			return nil, err
		}
		accessible = append(accessible, &model.PatientListing{User: p, Profile: profile})
	}

	return accessible, nil
}

func (s *Service) getWithRole(ctx context.Context, id uuid.UUID, role model.Role) (*model.User, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != role {
		return nil, apperrors.NotFound(string(role), nil)
	}
	return user, nil
}

func (s *Service) recordEvent(ctx context.Context, name string, c *blockchain.Confirmation, payload map[string]interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.events.Create(ctx, &model.BlockchainEvent{
		ID:          uuid.New(),
		TxHash:      c.TxHash,
		EventName:   name,
		BlockNumber: c.BlockNumber,
		Payload:     raw,
		CreatedAt:   time.Now(),
	})
}

func party(u *model.User) *model.AccessParty {
	return &model.AccessParty{ID: u.ID, FullName: u.FullName, Wallet: u.Wallet}
}
