package blockchain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// medicalAccessABI covers the contract methods this service consumes. The
// contract's storage layout is its own business; only the external surface
// matters here.
const medicalAccessABI = `[
	{"type":"function","name":"registerPatient","stateMutability":"nonpayable","inputs":[{"name":"wallet","type":"address"}],"outputs":[]},
	{"type":"function","name":"registerDoctor","stateMutability":"nonpayable","inputs":[{"name":"wallet","type":"address"}],"outputs":[]},
	{"type":"function","name":"setDoctorAccess","stateMutability":"nonpayable","inputs":[{"name":"patient","type":"address"},{"name":"doctor","type":"address"},{"name":"allowed","type":"bool"}],"outputs":[]},
	{"type":"function","name":"addPrescriptionByRelayer","stateMutability":"nonpayable","inputs":[{"name":"doctor","type":"address"},{"name":"patient","type":"address"},{"name":"name","type":"string"},{"name":"dosage","type":"string"},{"name":"schedule","type":"string"},{"name":"contentHash","type":"string"}],"outputs":[]},
	{"type":"function","name":"patientToDoctorAccess","stateMutability":"view","inputs":[{"name":"patient","type":"address"},{"name":"doctor","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"isDoctor","stateMutability":"view","inputs":[{"name":"wallet","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"isPatient","stateMutability":"view","inputs":[{"name":"wallet","type":"address"}],"outputs":[{"name":"","type":"bool"}]}
]`

// Client bundles the RPC connection and the bound access-control contract.
// It is constructed once at startup and injected wherever chain access is
// needed.
type Client struct {
	eth      *ethclient.Client
	contract *bind.BoundContract
	address  common.Address
}

func NewClient(rpcURL, contractAddress string) (*Client, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain node: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(medicalAccessABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	addr := common.HexToAddress(contractAddress)
	contract := bind.NewBoundContract(addr, parsed, eth, eth, eth)

	return &Client{eth: eth, contract: contract, address: addr}, nil
}

// Eth exposes the underlying RPC client for receipt and nonce queries.
func (c *Client) Eth() *ethclient.Client {
	return c.eth
}

// Contract exposes the bound contract for transactions and calls.
func (c *Client) Contract() *bind.BoundContract {
	return c.contract
}

func (c *Client) Close() {
	c.eth.Close()
}
