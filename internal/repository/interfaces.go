package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/medichain/medichain-api/internal/model"
)

// All repository interfaces in one file
type (
	// UserRepository handles identity rows and their profiles. Identity and
	// profile are written in one local transaction.
	UserRepository interface {
		CreateWithDoctorProfile(ctx context.Context, user *model.User, profile *model.DoctorProfile) error
		CreateWithPatientProfile(ctx context.Context, user *model.User, profile *model.PatientProfile) error
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		GetByWallet(ctx context.Context, wallet string) (*model.User, error)
		List(ctx context.Context, role model.Role) ([]*model.User, error)
		SetActive(ctx context.Context, id uuid.UUID, active bool) error
		GetDoctorProfile(ctx context.Context, userID uuid.UUID) (*model.DoctorProfile, error)
		GetPatientProfile(ctx context.Context, userID uuid.UUID) (*model.PatientProfile, error)
		UpdateDoctorProfile(ctx context.Context, profile *model.DoctorProfile) error
		UpdatePatientProfile(ctx context.Context, profile *model.PatientProfile) error
		// ListUnregistered returns identities whose wallet has no confirmed
		// registration event. These rows exist locally but not on-chain.
		ListUnregistered(ctx context.Context) ([]*model.User, error)
	}

	// EventRepository is the append-only chain-event shadow.
	EventRepository interface {
		Create(ctx context.Context, event *model.BlockchainEvent) error
		List(ctx context.Context) ([]*model.BlockchainEvent, error)
		ListBySaga(ctx context.Context, sagaID uuid.UUID) ([]*model.BlockchainEvent, error)
	}

	// AuthLogRepository is the append-only authentication-attempt log.
	AuthLogRepository interface {
		Create(ctx context.Context, attempt *model.AuthAttempt) error
		List(ctx context.Context) ([]*model.AuthAttempt, error)
	}

	// SagaRepository persists registration step logs.
	SagaRepository interface {
		Create(ctx context.Context, saga *model.RegistrationSaga) error
		Get(ctx context.Context, id uuid.UUID) (*model.RegistrationSaga, error)
		AdvanceStep(ctx context.Context, id uuid.UUID, step string) error
		SetUser(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
		MarkDone(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
		// ListStuck returns failed sagas and running sagas older than the
		// given number of seconds, for the reconciliation worker.
		ListStuck(ctx context.Context, olderThanSeconds int) ([]*model.RegistrationSaga, error)
	}

	// PrescriptionRepository handles local prescription rows and pinned files.
	PrescriptionRepository interface {
		Create(ctx context.Context, p *model.Prescription) error
		ListForPatient(ctx context.Context, patientWallet string) ([]*model.Prescription, error)
		ListForPair(ctx context.Context, patientWallet, doctorWallet string) ([]*model.Prescription, error)
		CreateFile(ctx context.Context, f *model.MedicalFile) error
	}
)
