package host

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"auctionfactory/internal/derivation"
	"auctionfactory/internal/instance"
	"auctionfactory/internal/storage"
)

// Gas schedule for module placement, mirroring CREATE2 on the EVM
const (
	CreateGas         uint64 = params.Create2Gas
	CodeDepositGas    uint64 = params.CreateDataGas
	DefaultDeployGas  uint64 = 30_000_000
	DefaultMaxCodeLen        = params.MaxCodeSize
)

// DeployError is the failure result of deployModule. Payload is the raw
// diagnostic returned by the host and must reach callers unmodified.
type DeployError struct {
	Payload []byte
}

func (e *DeployError) Error() string {
	return string(e.Payload)
}

func deployFailure(format string, args ...any) *DeployError {
	return &DeployError{Payload: []byte(fmt.Sprintf(format, args...))}
}

// ModuleDeployer places a precompiled module at a deterministic address.
// A failed deployment must leave no trace in tx.
type ModuleDeployer interface {
	DeployModule(ctx context.Context, tx storage.Tx, deployer common.Address, image []byte, salt common.Hash, value *uint256.Int) (common.Address, error)
}

// Create2Deployer places modules at CREATE2(deployer, salt, keccak256(image))
type Create2Deployer struct {
	MaxCodeSize  int
	GasLimit     uint64
	ValidateWasm bool
}

// NewCreate2Deployer returns a deployer with EVM default limits
func NewCreate2Deployer() *Create2Deployer {
	return &Create2Deployer{
		MaxCodeSize:  DefaultMaxCodeLen,
		GasLimit:     DefaultDeployGas,
		ValidateWasm: true,
	}
}

// DeployGas is the gas charged for placing image
func DeployGas(image []byte) uint64 {
	return CreateGas + CodeDepositGas*uint64(len(image))
}

// CheckImage reports whether image can be placed under d's limits
func (d *Create2Deployer) CheckImage(image []byte) error {
	if len(image) == 0 {
		return deployFailure("empty module image")
	}
	if d.ValidateWasm && !bytes.HasPrefix(image, instance.WasmMagic) {
		return deployFailure("invalid module: missing wasm magic")
	}
	if d.MaxCodeSize > 0 && len(image) > d.MaxCodeSize {
		return deployFailure("max code size exceeded: %d > %d", len(image), d.MaxCodeSize)
	}
	if gas := DeployGas(image); d.GasLimit > 0 && gas > d.GasLimit {
		return deployFailure("out of gas: need %d, limit %d", gas, d.GasLimit)
	}
	return nil
}

// DeployModule implements ModuleDeployer. Every failure is a *DeployError.
func (d *Create2Deployer) DeployModule(ctx context.Context, tx storage.Tx, deployer common.Address, image []byte, salt common.Hash, value *uint256.Int) (common.Address, error) {
	// The factory account holds no balance
	if value != nil && !value.IsZero() {
		return common.Address{}, deployFailure("insufficient balance for transfer")
	}
	if err := d.CheckImage(image); err != nil {
		return common.Address{}, err
	}

	addr := derivation.PredictAddress(deployer, salt, image)

	existing, err := tx.GetCode(ctx, addr)
	if err != nil {
		return common.Address{}, err
	}
	if len(existing) > 0 {
		return common.Address{}, deployFailure("contract address collision at %s", addr.Hex())
	}

	if err := tx.SetCode(ctx, addr, image); err != nil {
		return common.Address{}, err
	}
	return addr, nil
}
