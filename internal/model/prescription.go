package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Prescription is the local record of a prescription; the authoritative copy
// is written on-chain through the relayer.
type Prescription struct {
	ID             uuid.UUID `json:"id" db:"id"`
	PatientWallet  string    `json:"patient_wallet" db:"patient_wallet"`
	DoctorWallet   string    `json:"doctor_wallet" db:"doctor_wallet"`
	MedicationName string    `json:"medication_name" db:"medication_name"`
	Dosage         string    `json:"dosage" db:"dosage"`
	Schedule       string    `json:"schedule" db:"schedule"`
	ContentHash    *string   `json:"content_hash" db:"content_hash"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// MedicalFile records a pinned file attachment. The content hash is opaque to
// this service; the pinning collaborator owns the bytes.
type MedicalFile struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	PatientID   uuid.UUID       `json:"patient_id" db:"patient_id"`
	DoctorID    uuid.UUID       `json:"doctor_id" db:"doctor_id"`
	ContentHash string          `json:"content_hash" db:"content_hash"`
	FileType    string          `json:"file_type" db:"file_type"`
	Metadata    json.RawMessage `json:"metadata" db:"metadata"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// CreatePrescriptionRequest represents prescription creation parameters
type CreatePrescriptionRequest struct {
	PatientID      string `form:"patient_id" binding:"required,uuid"`
	MedicationName string `form:"medication_name" binding:"required"`
	Dosage         string `form:"dosage"`
	Schedule       string `form:"schedule"`
}
