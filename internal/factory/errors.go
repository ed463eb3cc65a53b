package factory

import (
	"errors"
	"fmt"

	"auctionfactory/internal/host"
)

// Call failures. Every one aborts the call with no state change.
var (
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotOwner           = errors.New("only owner")
	ErrPaused             = errors.New("factory is paused")
	ErrInvalidAsset       = errors.New("invalid NFT contract")
	ErrInvalidDuration    = errors.New("invalid duration")
	ErrInvalidDeposit     = errors.New("min deposit must be > 0")
	ErrDeploymentFailed   = errors.New("deployment failed")
)

// Auction phases checked by InvalidDuration
const (
	PhaseCommit = "commit"
	PhaseReveal = "reveal"
)

// DurationError reports which phase had a zero duration. It matches
// ErrInvalidDuration.
type DurationError struct {
	Phase string
}

func (e *DurationError) Error() string {
	return fmt.Sprintf("%s duration must be > 0", e.Phase)
}

func (e *DurationError) Is(target error) bool {
	return target == ErrInvalidDuration
}

// DeploymentFailedError carries the deploy primitive's payload unmodified.
// It matches ErrDeploymentFailed.
type DeploymentFailedError struct {
	Payload []byte
}

func (e *DeploymentFailedError) Error() string {
	return fmt.Sprintf("deployment failed: %s", e.Payload)
}

func (e *DeploymentFailedError) Is(target error) bool {
	return target == ErrDeploymentFailed
}

// Kind names the failure class of err for metrics and API responses.
// Errors outside the taxonomy are "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyInitialized):
		return "already_initialized"
	case errors.Is(err, ErrNotOwner):
		return "not_owner"
	case errors.Is(err, ErrPaused):
		return "paused"
	case errors.Is(err, ErrInvalidAsset):
		return "invalid_asset"
	case errors.Is(err, ErrInvalidDuration):
		return "invalid_duration"
	case errors.Is(err, ErrInvalidDeposit):
		return "invalid_deposit"
	case errors.Is(err, ErrDeploymentFailed):
		return "deployment_failed"
	case errors.Is(err, host.ErrZeroSender):
		return "invalid_caller"
	default:
		return "internal"
	}
}
