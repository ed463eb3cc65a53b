package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"auctionfactory/internal/storage"
)

// ErrZeroSender is returned when a state-changing call comes from the zero
// address, which stands for "unset" throughout the ledger.
var ErrZeroSender = errors.New("state-changing call from the zero address")

// Env is the environment of one call: who called, which account is
// executing, and the storage and deploy primitives bound to the call's
// transaction.
type Env struct {
	ctx      context.Context
	tx       storage.Tx
	deployer ModuleDeployer

	Sender common.Address
	Self   common.Address
}

// Load reads a storage word of the executing account
func (e *Env) Load(slot common.Hash) (common.Hash, error) {
	return e.tx.GetState(e.ctx, e.Self, slot)
}

// Store writes a storage word of the executing account
func (e *Env) Store(slot, value common.Hash) error {
	return e.tx.SetState(e.ctx, e.Self, slot, value)
}

// DeployModule places image at a salt-determined address with Self as the
// deployer. Failures are *DeployError values.
func (e *Env) DeployModule(image []byte, salt common.Hash, value *uint256.Int) (common.Address, error) {
	return e.deployer.DeployModule(e.ctx, e.tx, e.Self, image, salt, value)
}

// Host runs calls against one contract account. Calls are applied one at a
// time in arrival order and each is all-or-nothing.
type Host struct {
	mu       sync.Mutex
	ledger   storage.Ledger
	deployer ModuleDeployer
	self     common.Address
}

// New creates a Host executing as account self
func New(ledger storage.Ledger, deployer ModuleDeployer, self common.Address) *Host {
	return &Host{
		ledger:   ledger,
		deployer: deployer,
		self:     self,
	}
}

// Address returns the account the host executes as
func (h *Host) Address() common.Address { return h.self }

// Execute runs fn as a state-changing call from sender. If fn fails or ctx
// ends before commit, every write made by fn is discarded. The zero address
// cannot send.
func (h *Host) Execute(ctx context.Context, sender common.Address, fn func(env *Env) error) error {
	if sender == (common.Address{}) {
		return ErrZeroSender
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("call aborted before execution: %w", err)
	}

	return h.ledger.RunInTransaction(ctx, func(tx storage.Tx) error {
		env := &Env{
			ctx:      ctx,
			tx:       tx,
			deployer: h.deployer,
			Sender:   sender,
			Self:     h.self,
		}
		if err := fn(env); err != nil {
			slog.Debug("Call rolled back", "sender", sender.Hex(), "error", err)
			return err
		}
		return nil
	})
}

// Query runs fn as a read-only call. Stores and deployments fail.
func (h *Host) Query(ctx context.Context, sender common.Address, fn func(env *Env) error) error {
	return h.ledger.View(ctx, func(tx storage.Tx) error {
		return fn(&Env{
			ctx:      ctx,
			tx:       tx,
			deployer: readOnlyDeployer{},
			Sender:   sender,
			Self:     h.self,
		})
	})
}

type readOnlyDeployer struct{}

func (readOnlyDeployer) DeployModule(context.Context, storage.Tx, common.Address, []byte, common.Hash, *uint256.Int) (common.Address, error) {
	return common.Address{}, storage.ErrReadOnly
}
