package blockchain

import (
	"github.com/ethereum/go-ethereum/common"
)

// Call names a contract method and its ordered arguments. The relayer is
// deliberately ignorant of what the method means; callers mirror confirmed
// calls into the event log themselves.
type Call struct {
	Method string
	Args   []interface{}
}

// Confirmation is proof of inclusion for a submitted transaction.
type Confirmation struct {
	TxHash      string
	BlockNumber uint64
}

func RegisterPatientCall(wallet string) Call {
	return Call{Method: "registerPatient", Args: []interface{}{common.HexToAddress(wallet)}}
}

func RegisterDoctorCall(wallet string) Call {
	return Call{Method: "registerDoctor", Args: []interface{}{common.HexToAddress(wallet)}}
}

func SetDoctorAccessCall(patientWallet, doctorWallet string, allowed bool) Call {
	return Call{
		Method: "setDoctorAccess",
		Args: []interface{}{
			common.HexToAddress(patientWallet),
			common.HexToAddress(doctorWallet),
			allowed,
		},
	}
}

func AddPrescriptionCall(doctorWallet, patientWallet, name, dosage, schedule, contentHash string) Call {
	return Call{
		Method: "addPrescriptionByRelayer",
		Args: []interface{}{
			common.HexToAddress(doctorWallet),
			common.HexToAddress(patientWallet),
			name,
			dosage,
			schedule,
			contentHash,
		},
	}
}
