package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Chain event names mirrored into the audit shadow.
const (
	EventPatientRegistered   = "PatientRegistered"
	EventDoctorRegistered    = "DoctorRegistered"
	EventAccessGranted       = "AccessGranted"
	EventAccessRevoked       = "AccessRevoked"
	EventPrescriptionCreated = "PrescriptionCreated"
)

// BlockchainEvent is an append-only shadow of a confirmed transaction. It is
// never the authoritative state; the contract is.
type BlockchainEvent struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	TxHash      string          `json:"tx_hash" db:"tx_hash"`
	EventName   string          `json:"event_name" db:"event_name"`
	BlockNumber uint64          `json:"block_number" db:"block_number"`
	Payload     json.RawMessage `json:"payload" db:"payload"`
	SagaID      *uuid.UUID      `json:"saga_id,omitempty" db:"saga_id"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// AuthAttempt is an append-only record of a login or registration attempt.
// UserID is nil when the email lookup itself failed.
type AuthAttempt struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    *uuid.UUID `json:"user_id" db:"user_id"`
	IP        string     `json:"ip" db:"ip"`
	UserAgent string     `json:"user_agent" db:"user_agent"`
	Success   bool       `json:"success" db:"success"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// AuditHistory holds the two audit logs side by side, each in descending
// time order. They are not merged into a single timeline.
type AuditHistory struct {
	AuthAttempts []*AuthAttempt     `json:"auth_attempts"`
	ChainEvents  []*BlockchainEvent `json:"blockchain_events"`
}
