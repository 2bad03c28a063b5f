package blockchain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// AccessReader is the read side of the contract. Every call goes to the node;
// a cached answer here would let a revoked doctor keep reading records.
type AccessReader interface {
	IsDoctor(ctx context.Context, wallet string) (bool, error)
	IsPatient(ctx context.Context, wallet string) (bool, error)
	HasAccess(ctx context.Context, patientWallet, doctorWallet string) (bool, error)
}

type contractCaller interface {
	Call(opts *bind.CallOpts, results *[]interface{}, method string, args ...interface{}) error
}

type accessReader struct {
	contract contractCaller
}

func NewAccessReader(client *Client) AccessReader {
	return &accessReader{contract: client.Contract()}
}

func (r *accessReader) IsDoctor(ctx context.Context, wallet string) (bool, error) {
	return r.callBool(ctx, "isDoctor", common.HexToAddress(wallet))
}

func (r *accessReader) IsPatient(ctx context.Context, wallet string) (bool, error) {
	return r.callBool(ctx, "isPatient", common.HexToAddress(wallet))
}

func (r *accessReader) HasAccess(ctx context.Context, patientWallet, doctorWallet string) (bool, error) {
	return r.callBool(ctx, "patientToDoctorAccess",
		common.HexToAddress(patientWallet), common.HexToAddress(doctorWallet))
}

func (r *accessReader) callBool(ctx context.Context, method string, args ...interface{}) (bool, error) {
	var out []interface{}
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return false, fmt.Errorf("contract call %s failed: %w", method, err)
	}
	if len(out) != 1 {
		return false, fmt.Errorf("contract call %s returned %d values", method, len(out))
	}
	result, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("contract call %s returned non-bool", method)
	}
	return result, nil
}
