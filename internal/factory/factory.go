package factory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"auctionfactory/internal/derivation"
	"auctionfactory/internal/host"
	"auctionfactory/internal/metrics"
)

// Deployment describes one successful createAuction
type Deployment struct {
	ID      uint64
	Address common.Address
	Creator common.Address
	Salt    common.Hash
}

// Prediction is the outcome createAuction would have if called next
type Prediction struct {
	ID      uint64
	Salt    common.Hash
	Address common.Address
}

// Record is one registry entry
type Record struct {
	ID      uint64
	Address common.Address
	Creator common.Address
}

// Factory deploys sealed-bid auction instances and keeps their registry.
// All persisted state lives in the host ledger; Factory itself only holds
// the instance module image.
type Factory struct {
	host  *host.Host
	image []byte
}

// New creates a Factory running on h and deploying image
func New(h *host.Host, image []byte) *Factory {
	metrics.ModuleImageBytes.Set(float64(len(image)))
	return &Factory{
		host:  h,
		image: image,
	}
}

// Address returns the factory's account address
func (f *Factory) Address() common.Address {
	return f.host.Address()
}

// Initialize makes caller the owner. Only the first call succeeds.
func (f *Factory) Initialize(ctx context.Context, caller common.Address) error {
	start := time.Now()
	err := f.host.Execute(ctx, caller, func(env *host.Env) error {
		return initialize(env, NewState(env))
	})
	observe("initialize", start, err)
	if err == nil {
		slog.Info("Factory initialized", "owner", caller.Hex(), "factory", f.Address().Hex())
		metrics.SetPaused(false)
	}
	return err
}

// Pause stops new deployments. Owner only.
func (f *Factory) Pause(ctx context.Context, caller common.Address) error {
	return f.setPaused(ctx, "pause", caller, true)
}

// Unpause resumes deployments. Owner only.
func (f *Factory) Unpause(ctx context.Context, caller common.Address) error {
	return f.setPaused(ctx, "unpause", caller, false)
}

func (f *Factory) setPaused(ctx context.Context, op string, caller common.Address, paused bool) error {
	start := time.Now()
	err := f.host.Execute(ctx, caller, func(env *host.Env) error {
		st := NewState(env)
		if err := requireOwner(env, st); err != nil {
			return err
		}
		return st.SetPaused(paused)
	})
	observe(op, start, err)
	if err == nil {
		slog.Info("Factory pause flag set", "paused", paused, "by", caller.Hex())
		metrics.SetPaused(paused)
	}
	return err
}

// CreateAuction validates terms, deploys a new instance at its
// deterministic address and registers it under the next id.
func (f *Factory) CreateAuction(ctx context.Context, caller common.Address, terms derivation.AuctionTerms) (Deployment, error) {
	start := time.Now()

	var dep Deployment
	err := f.host.Execute(ctx, caller, func(env *host.Env) error {
		var err error
		dep, err = createAuction(env, NewState(env), f.image, terms)
		return err
	})
	observe("createAuction", start, err)

	var failed *DeploymentFailedError
	switch {
	case err == nil:
		metrics.DeploymentsTotal.Inc()
		metrics.AuctionCount.Set(float64(dep.ID))
		slog.Info("Auction deployed",
			"auction_id", dep.ID,
			"address", dep.Address.Hex(),
			"creator", dep.Creator.Hex(),
			"nft_contract", terms.NFTContract.Hex(),
			"salt", dep.Salt.Hex(),
		)
	case errors.As(err, &failed):
		metrics.DeploymentFailures.WithLabelValues(deployFailureReason(failed.Payload)).Inc()
		slog.Warn("Auction deployment failed",
			"creator", caller.Hex(),
			"payload", string(failed.Payload),
		)
		return Deployment{}, err
	default:
		return Deployment{}, err
	}
	return dep, nil
}

// GetAuction returns the instance registered under id, or the zero address
func (f *Factory) GetAuction(ctx context.Context, id uint64) (common.Address, error) {
	var addr common.Address
	err := f.query(ctx, func(st *State) error {
		var err error
		addr, err = st.Auction(id)
		return err
	})
	return addr, err
}

// GetCreator returns who requested the deployment of id, or the zero address
func (f *Factory) GetCreator(ctx context.Context, id uint64) (common.Address, error) {
	var addr common.Address
	err := f.query(ctx, func(st *State) error {
		var err error
		addr, err = st.Creator(id)
		return err
	})
	return addr, err
}

// GetAuctionCount returns the number of successful deployments
func (f *Factory) GetAuctionCount(ctx context.Context) (uint64, error) {
	var n uint64
	err := f.query(ctx, func(st *State) error {
		var err error
		n, err = st.AuctionCount()
		return err
	})
	return n, err
}

// GetOwner returns the owner, zero before initialization
func (f *Factory) GetOwner(ctx context.Context) (common.Address, error) {
	var owner common.Address
	err := f.query(ctx, func(st *State) error {
		var err error
		owner, err = st.Owner()
		return err
	})
	return owner, err
}

// IsPaused reports the pause flag
func (f *Factory) IsPaused(ctx context.Context) (bool, error) {
	var paused bool
	err := f.query(ctx, func(st *State) error {
		var err error
		paused, err = st.Paused()
		return err
	})
	return paused, err
}

// InstanceModuleSize returns the size in bytes of the embedded instance module
func (f *Factory) InstanceModuleSize() int {
	return len(f.image)
}

// PredictAuctionAddress returns the id, salt and address the next
// createAuction from caller with terms would get. It does not validate terms.
func (f *Factory) PredictAuctionAddress(ctx context.Context, caller common.Address, terms derivation.AuctionTerms) (Prediction, error) {
	var p Prediction
	err := f.query(ctx, func(st *State) error {
		count, err := st.AuctionCount()
		if err != nil {
			return err
		}
		p.ID = count + 1
		p.Salt, p.Address = derivation.PredictAuctionAddress(f.Address(), f.image, derivation.SaltInput{
			ID:      p.ID,
			Creator: caller,
			Terms:   terms,
		})
		return nil
	})
	return p, err
}

// ListAuctions returns up to limit registry entries starting after offset,
// in id order, and the total count.
func (f *Factory) ListAuctions(ctx context.Context, offset, limit uint64) ([]Record, uint64, error) {
	var (
		records []Record
		total   uint64
	)
	err := f.query(ctx, func(st *State) error {
		var err error
		total, err = st.AuctionCount()
		if err != nil {
			return err
		}
		if offset >= total {
			return nil
		}
		for id := offset + 1; id <= total && uint64(len(records)) < limit; id++ {
			rec := Record{ID: id}
			if rec.Address, err = st.Auction(id); err != nil {
				return err
			}
			if rec.Creator, err = st.Creator(id); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, total, err
}

func (f *Factory) query(ctx context.Context, fn func(st *State) error) error {
	return f.host.Query(ctx, common.Address{}, func(env *host.Env) error {
		return fn(NewState(env))
	})
}

func initialize(env *host.Env, st *State) error {
	initialized, err := st.Initialized()
	if err != nil {
		return err
	}
	if initialized {
		return ErrAlreadyInitialized
	}
	if err := st.SetAuctionCount(0); err != nil {
		return err
	}
	if err := st.SetOwner(env.Sender); err != nil {
		return err
	}
	return st.SetPaused(false)
}

func requireOwner(env *host.Env, st *State) error {
	owner, err := st.Owner()
	if err != nil {
		return err
	}
	if env.Sender != owner {
		return ErrNotOwner
	}
	return nil
}

// validateTerms applies the checks in order; the first failure wins
func validateTerms(paused bool, terms derivation.AuctionTerms) error {
	if paused {
		return ErrPaused
	}
	if terms.NFTContract == (common.Address{}) {
		return ErrInvalidAsset
	}
	if isZero(terms.CommitDuration) {
		return &DurationError{Phase: PhaseCommit}
	}
	if isZero(terms.RevealDuration) {
		return &DurationError{Phase: PhaseReveal}
	}
	if isZero(terms.MinDeposit) {
		return ErrInvalidDeposit
	}
	return nil
}

func createAuction(env *host.Env, st *State, image []byte, terms derivation.AuctionTerms) (Deployment, error) {
	paused, err := st.Paused()
	if err != nil {
		return Deployment{}, err
	}
	if err := validateTerms(paused, terms); err != nil {
		return Deployment{}, err
	}

	count, err := st.AuctionCount()
	if err != nil {
		return Deployment{}, err
	}
	id := count + 1
	salt := derivation.Salt(derivation.SaltInput{
		ID:      id,
		Creator: env.Sender,
		Terms:   terms,
	})

	addr, err := env.DeployModule(image, salt, uint256.NewInt(0))
	if err != nil {
		var derr *host.DeployError
		if errors.As(err, &derr) {
			return Deployment{}, &DeploymentFailedError{Payload: derr.Payload}
		}
		return Deployment{}, fmt.Errorf("deploy module: %w", err)
	}

	if err := st.SetAuction(id, addr); err != nil {
		return Deployment{}, err
	}
	if err := st.SetCreator(id, env.Sender); err != nil {
		return Deployment{}, err
	}
	if err := st.SetAuctionCount(id); err != nil {
		return Deployment{}, err
	}

	return Deployment{
		ID:      id,
		Address: addr,
		Creator: env.Sender,
		Salt:    salt,
	}, nil
}

func isZero(v *uint256.Int) bool {
	return v == nil || v.IsZero()
}

func observe(op string, start time.Time, err error) {
	metrics.CallsTotal.WithLabelValues(op, Kind(err)).Inc()
	metrics.CallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// deployFailureReason buckets a deploy payload into a low-cardinality label
func deployFailureReason(payload []byte) string {
	for _, reason := range []string{
		"out of gas",
		"max code size exceeded",
		"invalid module",
		"empty module image",
		"contract address collision",
		"insufficient balance",
	} {
		if strings.HasPrefix(string(payload), reason) {
			return reason
		}
	}
	return "other"
}
