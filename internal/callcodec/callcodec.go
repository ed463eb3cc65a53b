package callcodec

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/lmittmann/w3"

	"auctionfactory/internal/derivation"
	"auctionfactory/internal/factory"
)

// Factory ABI
var (
	FuncInitialize            = w3.MustNewFunc("initialize()", "")
	FuncPause                 = w3.MustNewFunc("pause()", "")
	FuncUnpause               = w3.MustNewFunc("unpause()", "")
	FuncCreateAuction         = w3.MustNewFunc("createAuction(address,uint256,uint256,uint256,uint256,uint256)", "address")
	FuncGetAuction            = w3.MustNewFunc("getAuction(uint256)", "address")
	FuncGetCreator            = w3.MustNewFunc("getCreator(uint256)", "address")
	FuncGetAuctionCount       = w3.MustNewFunc("getAuctionCount()", "uint256")
	FuncGetOwner              = w3.MustNewFunc("getOwner()", "address")
	FuncIsPaused              = w3.MustNewFunc("isPaused()", "bool")
	FuncGetInstanceModuleSize = w3.MustNewFunc("getInstanceModuleSize()", "uint256")
)

var ErrUnknownSelector = errors.New("unknown function selector")

// RevertError is a domain failure. Data is the raw revert payload.
type RevertError struct {
	Data []byte
	Err  error
}

func (e *RevertError) Error() string { return fmt.Sprintf("execution reverted: %s", e.Data) }
func (e *RevertError) Unwrap() error { return e.Err }

type handler func(ctx context.Context, f *factory.Factory, caller common.Address, input []byte) ([]byte, error)

var handlers = map[[4]byte]handler{
	FuncInitialize.Selector: func(ctx context.Context, f *factory.Factory, caller common.Address, _ []byte) ([]byte, error) {
		return nil, f.Initialize(ctx, caller)
	},
	FuncPause.Selector: func(ctx context.Context, f *factory.Factory, caller common.Address, _ []byte) ([]byte, error) {
		return nil, f.Pause(ctx, caller)
	},
	FuncUnpause.Selector: func(ctx context.Context, f *factory.Factory, caller common.Address, _ []byte) ([]byte, error) {
		return nil, f.Unpause(ctx, caller)
	},
	FuncCreateAuction.Selector:         createAuction,
	FuncGetAuction.Selector:            registryLookup(FuncGetAuction, (*factory.Factory).GetAuction),
	FuncGetCreator.Selector:            registryLookup(FuncGetCreator, (*factory.Factory).GetCreator),
	FuncGetAuctionCount.Selector:       getAuctionCount,
	FuncGetOwner.Selector:              getOwner,
	FuncIsPaused.Selector:              isPaused,
	FuncGetInstanceModuleSize.Selector: getInstanceModuleSize,
}

// Dispatch decodes calldata, runs the selected operation as caller and
// returns the ABI-encoded result. Domain failures come back as
// *RevertError; anything else is an infrastructure or decoding error.
func Dispatch(ctx context.Context, f *factory.Factory, caller common.Address, calldata []byte) ([]byte, error) {
	if len(calldata) < 4 {
		return nil, fmt.Errorf("%w: calldata too short (%d bytes)", ErrUnknownSelector, len(calldata))
	}
	var sel [4]byte
	copy(sel[:], calldata)

	h, ok := handlers[sel]
	if !ok {
		return nil, fmt.Errorf("%w: 0x%x", ErrUnknownSelector, sel)
	}

	ret, err := h(ctx, f, caller, calldata)
	if err != nil {
		if reason, ok := RevertReason(err); ok {
			return nil, &RevertError{Data: reason, Err: err}
		}
		return nil, err
	}
	return ret, nil
}

// RevertReason renders a domain error as the contract's revert message.
// ok is false for errors outside the factory taxonomy.
func RevertReason(err error) (reason []byte, ok bool) {
	var (
		derr   *factory.DurationError
		failed *factory.DeploymentFailedError
	)
	switch {
	case errors.Is(err, factory.ErrAlreadyInitialized):
		return []byte("Already initialized"), true
	case errors.Is(err, factory.ErrNotOwner):
		return []byte("Only owner"), true
	case errors.Is(err, factory.ErrPaused):
		return []byte("Factory is paused"), true
	case errors.Is(err, factory.ErrInvalidAsset):
		return []byte("Invalid NFT contract"), true
	case errors.As(err, &derr):
		if derr.Phase == factory.PhaseReveal {
			return []byte("Reveal duration must be > 0"), true
		}
		return []byte("Commit duration must be > 0"), true
	case errors.Is(err, factory.ErrInvalidDeposit):
		return []byte("Min deposit must be > 0"), true
	case errors.As(err, &failed):
		return append([]byte("Deployment failed: "), failed.Payload...), true
	}
	return nil, false
}

// EncodeCreateAuction builds createAuction calldata for terms
func EncodeCreateAuction(terms derivation.AuctionTerms) ([]byte, error) {
	return FuncCreateAuction.EncodeArgs(
		terms.NFTContract,
		toBig(terms.TokenID),
		toBig(terms.ReservePrice),
		toBig(terms.CommitDuration),
		toBig(terms.RevealDuration),
		toBig(terms.MinDeposit),
	)
}

// DecodeCreateAuction is the inverse of EncodeCreateAuction
func DecodeCreateAuction(calldata []byte) (derivation.AuctionTerms, error) {
	var (
		nft                                      common.Address
		tokenID, reserve, commit, reveal, minDep *big.Int
	)
	if err := FuncCreateAuction.DecodeArgs(calldata, &nft, &tokenID, &reserve, &commit, &reveal, &minDep); err != nil {
		return derivation.AuctionTerms{}, fmt.Errorf("decode createAuction: %w", err)
	}

	terms := derivation.AuctionTerms{NFTContract: nft}
	for _, f := range []struct {
		dst **uint256.Int
		src *big.Int
	}{
		{&terms.TokenID, tokenID},
		{&terms.ReservePrice, reserve},
		{&terms.CommitDuration, commit},
		{&terms.RevealDuration, reveal},
		{&terms.MinDeposit, minDep},
	} {
		v, overflow := uint256.FromBig(f.src)
		if overflow {
			return derivation.AuctionTerms{}, fmt.Errorf("decode createAuction: value %s overflows uint256", f.src)
		}
		*f.dst = v
	}
	return terms, nil
}

func createAuction(ctx context.Context, f *factory.Factory, caller common.Address, input []byte) ([]byte, error) {
	terms, err := DecodeCreateAuction(input)
	if err != nil {
		return nil, err
	}
	dep, err := f.CreateAuction(ctx, caller, terms)
	if err != nil {
		return nil, err
	}
	return FuncCreateAuction.EncodeReturns(dep.Address)
}

// registryLookup serves getAuction and getCreator. Ids beyond uint64 were
// never assigned and read as the zero address.
func registryLookup(fn *w3.Func, get func(*factory.Factory, context.Context, uint64) (common.Address, error)) handler {
	return func(ctx context.Context, f *factory.Factory, _ common.Address, input []byte) ([]byte, error) {
		var id *big.Int
		if err := fn.DecodeArgs(input, &id); err != nil {
			return nil, fmt.Errorf("decode %s: %w", fn.Signature, err)
		}
		var addr common.Address
		if id.IsUint64() {
			var err error
			if addr, err = get(f, ctx, id.Uint64()); err != nil {
				return nil, err
			}
		}
		return fn.EncodeReturns(addr)
	}
}

func getAuctionCount(ctx context.Context, f *factory.Factory, _ common.Address, _ []byte) ([]byte, error) {
	n, err := f.GetAuctionCount(ctx)
	if err != nil {
		return nil, err
	}
	return FuncGetAuctionCount.EncodeReturns(new(big.Int).SetUint64(n))
}

func getOwner(ctx context.Context, f *factory.Factory, _ common.Address, _ []byte) ([]byte, error) {
	owner, err := f.GetOwner(ctx)
	if err != nil {
		return nil, err
	}
	return FuncGetOwner.EncodeReturns(owner)
}

func isPaused(ctx context.Context, f *factory.Factory, _ common.Address, _ []byte) ([]byte, error) {
	paused, err := f.IsPaused(ctx)
	if err != nil {
		return nil, err
	}
	return FuncIsPaused.EncodeReturns(paused)
}

func getInstanceModuleSize(_ context.Context, f *factory.Factory, _ common.Address, _ []byte) ([]byte, error) {
	return FuncGetInstanceModuleSize.EncodeReturns(big.NewInt(int64(f.InstanceModuleSize())))
}

func toBig(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}
