package prescription

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/medichain/medichain-api/pkg/errors"
	"github.com/medichain/medichain-api/pkg/logger"

	"github.com/medichain/medichain-api/internal/blockchain"
	"github.com/medichain/medichain-api/internal/model"
	"github.com/medichain/medichain-api/internal/pinning"
	"github.com/medichain/medichain-api/internal/repository"
)

type PrescriptionService interface {
	Create(ctx context.Context, doctorID uuid.UUID, req *model.CreatePrescriptionRequest, attachment io.Reader, filename string) (*model.Prescription, *model.TxRef, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error)
	ListForDoctor(ctx context.Context, doctorID, patientID uuid.UUID) ([]*model.Prescription, error)
}

type Service struct {
	users         repository.UserRepository
	prescriptions repository.PrescriptionRepository
	events        repository.EventRepository
	relayer       blockchain.TxSubmitter
	reader        blockchain.AccessReader
	pinner        pinning.Client
	logger        *logger.Logger
}

func NewService(
	users repository.UserRepository,
	prescriptions repository.PrescriptionRepository,
	events repository.EventRepository,
	relayer blockchain.TxSubmitter,
	reader blockchain.AccessReader,
	pinner pinning.Client,
	log *logger.Logger,
) *Service {
	return &Service{
		users:         users,
		prescriptions: prescriptions,
		events:        events,
		relayer:       relayer,
		reader:        reader,
		pinner:        pinner,
		logger:        log,
	}
}

// Create writes a prescription for a patient the doctor currently has access
// to. The access flag is read from the contract at call time; a revoked doctor
// is refused even if a stale client believes otherwise. An optional attachment
// is pinned first so its hash rides along in the on-chain record.
func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, req *model.CreatePrescriptionRequest, attachment io.Reader, filename string) (*model.Prescription, *model.TxRef, error) {
	doctor, err := s.users.Get(ctx, doctorID)
	if err != nil {
		return nil, nil, err
	}
	if doctor.Role != model.RoleDoctor {
		return nil, nil, apperrors.Forbidden("only doctors can create prescriptions", nil)
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return nil, nil, apperrors.Validation("invalid patient id", err)
	}
	patient, err := s.users.Get(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	if patient.Role != model.RolePatient {
		return nil, nil, apperrors.NotFound("patient", nil)
	}

	hasAccess, err := s.reader.HasAccess(ctx, patient.Wallet, doctor.Wallet)
	if err != nil {
		return nil, nil, apperrors.ChainTransient("failed to read access flag", err)
	}
	if !hasAccess {
		return nil, nil, apperrors.Forbidden("doctor has no access to this patient", nil)
	}

	var contentHash *string
	if attachment != nil {
		hash, err := s.pinner.Pin(ctx, attachment, filename)
		if err != nil {
			return nil, nil, apperrors.Internal(fmt.Errorf("failed to pin attachment: %w", err))
		}
		contentHash = &hash
	}

	hashArg := ""
	if contentHash != nil {
		hashArg = *contentHash
	}
	confirmation, err := s.relayer.Submit(ctx, blockchain.AddPrescriptionCall(
		doctor.Wallet, patient.Wallet, req.MedicationName, req.Dosage, req.Schedule, hashArg,
	))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to record prescription on chain: %w", err)
	}

	p := &model.Prescription{
		ID:             uuid.New(),
		PatientWallet:  patient.Wallet,
		DoctorWallet:   doctor.Wallet,
		MedicationName: req.MedicationName,
		Dosage:         req.Dosage,
		Schedule:       req.Schedule,
		ContentHash:    contentHash,
		CreatedAt:      time.Now(),
	}
	if err := s.prescriptions.Create(ctx, p); err != nil {
		// The chain already holds the authoritative copy; surface the gap
		// loudly but do not fail the request.
		s.logger.Error(err, "failed to store local prescription row", "tx", confirmation.TxHash)
	}

	if contentHash != nil {
		file := &model.MedicalFile{
			ID:          uuid.New(),
			PatientID:   patient.ID,
			DoctorID:    doctor.ID,
			ContentHash: *contentHash,
			FileType:    "prescription_attachment",
			Metadata:    json.RawMessage(fmt.Sprintf(`{"filename":%q}`, filename)),
			CreatedAt:   time.Now(),
		}
		if err := s.prescriptions.CreateFile(ctx, file); err != nil {
			s.logger.Error(err, "failed to store medical file row", "hash", *contentHash)
		}
	}

	s.recordEvent(ctx, confirmation, map[string]interface{}{
		"patient_wallet": patient.Wallet,
		"doctor_wallet":  doctor.Wallet,
		"medication":     req.MedicationName,
		"content_hash":   hashArg,
	})

	return p, &model.TxRef{TxHash: confirmation.TxHash, BlockNumber: confirmation.BlockNumber}, nil
}

// ListForPatient returns the patient's own prescriptions.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error) {
	patient, err := s.users.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if patient.Role != model.RolePatient {
		return nil, apperrors.NotFound("patient", nil)
	}
	return s.prescriptions.ListForPatient(ctx, patient.Wallet)
}

// ListForDoctor returns the prescriptions this doctor wrote for the patient,
// gated on the current on-chain access flag.
func (s *Service) ListForDoctor(ctx context.Context, doctorID, patientID uuid.UUID) ([]*model.Prescription, error) {
	doctor, err := s.users.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if doctor.Role != model.RoleDoctor {
		return nil, apperrors.Forbidden("only doctors can list patient prescriptions", nil)
	}

	patient, err := s.users.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if patient.Role != model.RolePatient {
		return nil, apperrors.NotFound("patient", nil)
	}

	hasAccess, err := s.reader.HasAccess(ctx, patient.Wallet, doctor.Wallet)
	if err != nil {
		return nil, apperrors.ChainTransient("failed to read access flag", err)
	}
	if !hasAccess {
		return nil, apperrors.Forbidden("doctor has no access to this patient", nil)
	}

	return s.prescriptions.ListForPair(ctx, patient.Wallet, doctor.Wallet)
}

func (s *Service) recordEvent(ctx context.Context, c *blockchain.Confirmation, payload map[string]interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error(err, "failed to marshal event payload")
		return
	}
	event := &model.BlockchainEvent{
		ID:          uuid.New(),
		TxHash:      c.TxHash,
		EventName:   model.EventPrescriptionCreated,
		BlockNumber: c.BlockNumber,
		Payload:     raw,
		CreatedAt:   time.Now(),
	}
	if err := s.events.Create(ctx, event); err != nil {
		s.logger.Error(err, "failed to record prescription event", "tx", c.TxHash)
	}
}
