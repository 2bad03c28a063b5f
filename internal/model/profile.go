package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// DoctorProfile is the doctor-specific half of an identity.
type DoctorProfile struct {
	UserID          uuid.UUID `json:"user_id" db:"user_id"`
	Specialization  string    `json:"specialization" db:"specialization"`
	LicenseNumber   string    `json:"license_number" db:"license_number"`
	ExperienceYears *int      `json:"experience_years" db:"experience_years"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// PatientProfile is the patient-specific half of an identity.
type PatientProfile struct {
	UserID            uuid.UUID      `json:"user_id" db:"user_id"`
	Age               *int           `json:"age" db:"age"`
	Gender            *string        `json:"gender" db:"gender"`
	Allergies         pq.StringArray `json:"allergies" db:"allergies"`
	ChronicConditions pq.StringArray `json:"chronic_conditions" db:"chronic_conditions"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}

// DoctorListing is the admin directory view of a doctor.
type DoctorListing struct {
	User    *User          `json:"user"`
	Profile *DoctorProfile `json:"profile,omitempty"`
}

// PatientListing is the admin directory view of a patient.
type PatientListing struct {
	User    *User           `json:"user"`
	Profile *PatientProfile `json:"profile,omitempty"`
}

// UpdateDoctorProfileRequest represents doctor profile update parameters
type UpdateDoctorProfileRequest struct {
	Specialization  *string `json:"specialization"`
	LicenseNumber   *string `json:"license_number"`
	ExperienceYears *int    `json:"experience_years"`
}

// UpdatePatientProfileRequest represents patient profile update parameters
type UpdatePatientProfileRequest struct {
	Age               *int     `json:"age"`
	Gender            *string  `json:"gender"`
	Allergies         []string `json:"allergies"`
	ChronicConditions []string `json:"chronic_conditions"`
}
