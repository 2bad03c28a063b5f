package model

import (
	"time"

	"github.com/google/uuid"
)

// SagaKind identifies the registration shape being executed.
type SagaKind string

const (
	SagaSelfRegister  SagaKind = "self_register"
	SagaAdminDoctor   SagaKind = "admin_doctor"
	SagaDoctorPatient SagaKind = "doctor_patient"
)

// Saga steps, in execution order. The step column records the last step that
// completed, so a failed run shows exactly how far it got.
const (
	SagaStepStarted        = "started"
	SagaStepWalletAssigned = "wallet_assigned"
	SagaStepLocalCreated   = "local_created"
	SagaStepChainConfirmed = "chain_confirmed"
	SagaStepAccessGranted  = "access_granted"
	SagaStepCompleted      = "completed"
)

// Saga statuses.
const (
	SagaStatusRunning = "running"
	SagaStatusDone    = "done"
	SagaStatusFailed  = "failed"
)

// RegistrationSaga is the persisted step log of one registration run. Local
// writes and chain calls share no transaction, so the log is what makes a
// partial failure reconcilable.
type RegistrationSaga struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Email     string     `json:"email" db:"email"`
	UserID    *uuid.UUID `json:"user_id" db:"user_id"`
	Kind      SagaKind   `json:"kind" db:"kind"`
	Step      string     `json:"step" db:"step"`
	Status    string     `json:"status" db:"status"`
	Error     *string    `json:"error,omitempty" db:"error"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// RegisterRequest represents self-service registration parameters.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
	Role     Role   `json:"role" binding:"required,oneof=patient doctor"`
}

// RegisterDoctorRequest represents admin-issued doctor registration.
type RegisterDoctorRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8"`
	FullName        string `json:"full_name" binding:"required"`
	Specialization  string `json:"specialization" binding:"required"`
	LicenseNumber   string `json:"license_number" binding:"required"`
	ExperienceYears *int   `json:"experience_years"`
}

// RegisterPatientRequest represents doctor-issued patient registration. The
// issuing doctor is granted access as part of the same saga.
type RegisterPatientRequest struct {
	Email             string   `json:"email" binding:"required,email"`
	Password          string   `json:"password" binding:"required,min=8"`
	FullName          string   `json:"full_name" binding:"required"`
	Age               *int     `json:"age"`
	Gender            *string  `json:"gender"`
	Allergies         []string `json:"allergies"`
	ChronicConditions []string `json:"chronic_conditions"`
}

// TxRef points at a confirmed transaction produced by a saga step.
type TxRef struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
}

// RegistrationResult is returned to the caller once a saga completes. The
// user carries no credential material.
type RegistrationResult struct {
	User       *User      `json:"user"`
	Profile    interface{} `json:"profile,omitempty"`
	SagaID     uuid.UUID  `json:"saga_id"`
	RegisterTx *TxRef     `json:"register_tx"`
	AccessTx   *TxRef     `json:"access_tx,omitempty"`
}

// OrphanedIdentity is a local identity with no confirmed registration event,
// surfaced by the reconciliation query.
type OrphanedIdentity struct {
	User   *User             `json:"user"`
	Saga   *RegistrationSaga `json:"saga,omitempty"`
	Reason string            `json:"reason"`
}
