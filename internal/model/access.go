package model

import "github.com/google/uuid"

// AccessParty is the identity summary returned with access operations.
type AccessParty struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Wallet   string    `json:"wallet"`
}

// AccessSummary is the result of a grant or revoke.
type AccessSummary struct {
	Patient *AccessParty `json:"patient"`
	Doctor  *AccessParty `json:"doctor"`
	Allowed bool         `json:"allowed"`
	Tx      *TxRef       `json:"tx"`
}

// AccessCheck is a freshness-guaranteed snapshot of the on-chain access
// relation; nothing in it is cached.
type AccessCheck struct {
	Doctor           *AccessParty `json:"doctor"`
	Patient          *AccessParty `json:"patient"`
	DoctorOnChain    bool         `json:"is_doctor_on_chain"`
	PatientOnChain   bool         `json:"is_patient_on_chain"`
	Access           bool         `json:"access"`
}

// GrantAccessRequest represents grant/revoke parameters
type GrantAccessRequest struct {
	PatientID string `json:"patient_id" binding:"required,uuid"`
	DoctorID  string `json:"doctor_id" binding:"required,uuid"`
}
