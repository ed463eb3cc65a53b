package callcodec

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"auctionfactory/internal/derivation"
	"auctionfactory/internal/factory"
	"auctionfactory/internal/host"
	"auctionfactory/internal/instance"
	"auctionfactory/internal/storage"
)

var (
	factoryAddr = common.HexToAddress("0x000000000000000000000000000000000000fac7")
	owner       = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	other       = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func newFactory() *factory.Factory {
	h := host.New(storage.NewMemoryLedger(), host.NewCreate2Deployer(), factoryAddr)
	return factory.New(h, instance.Image())
}

func terms() derivation.AuctionTerms {
	return derivation.AuctionTerms{
		NFTContract:    common.HexToAddress("0x0100000000000000000000000000000000000000"),
		TokenID:        uint256.NewInt(5),
		ReservePrice:   uint256.NewInt(100),
		CommitDuration: uint256.NewInt(3600),
		RevealDuration: uint256.NewInt(1800),
		MinDeposit:     uint256.NewInt(10),
	}
}

func mustEncode(t *testing.T, data []byte, err error) []byte {
	t.Helper()
	require.NoError(t, err)
	return data
}

func requireRevert(t *testing.T, err error, reason string) {
	t.Helper()
	var rerr *RevertError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, reason, string(rerr.Data))
}

func TestDispatchLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFactory()

	_, err := Dispatch(ctx, f, owner, mustEncode(t, FuncInitialize.EncodeArgs()))
	require.NoError(t, err)

	_, err = Dispatch(ctx, f, other, mustEncode(t, FuncInitialize.EncodeArgs()))
	requireRevert(t, err, "Already initialized")
	require.ErrorIs(t, err, factory.ErrAlreadyInitialized)

	ret, err := Dispatch(ctx, f, other, mustEncode(t, EncodeCreateAuction(terms())))
	require.NoError(t, err)
	var deployed common.Address
	require.NoError(t, FuncCreateAuction.DecodeReturns(ret, &deployed))
	require.NotEqual(t, common.Address{}, deployed)

	ret, err = Dispatch(ctx, f, owner, mustEncode(t, FuncGetAuctionCount.EncodeArgs()))
	require.NoError(t, err)
	var count *big.Int
	require.NoError(t, FuncGetAuctionCount.DecodeReturns(ret, &count))
	require.Equal(t, int64(1), count.Int64())

	ret, err = Dispatch(ctx, f, owner, mustEncode(t, FuncGetAuction.EncodeArgs(big.NewInt(1))))
	require.NoError(t, err)
	var got common.Address
	require.NoError(t, FuncGetAuction.DecodeReturns(ret, &got))
	require.Equal(t, deployed, got)

	ret, err = Dispatch(ctx, f, owner, mustEncode(t, FuncGetCreator.EncodeArgs(big.NewInt(1))))
	require.NoError(t, err)
	require.NoError(t, FuncGetCreator.DecodeReturns(ret, &got))
	require.Equal(t, other, got)

	ret, err = Dispatch(ctx, f, other, mustEncode(t, FuncGetOwner.EncodeArgs()))
	require.NoError(t, err)
	require.NoError(t, FuncGetOwner.DecodeReturns(ret, &got))
	require.Equal(t, owner, got)

	_, err = Dispatch(ctx, f, other, mustEncode(t, FuncPause.EncodeArgs()))
	requireRevert(t, err, "Only owner")

	_, err = Dispatch(ctx, f, owner, mustEncode(t, FuncPause.EncodeArgs()))
	require.NoError(t, err)

	ret, err = Dispatch(ctx, f, other, mustEncode(t, FuncIsPaused.EncodeArgs()))
	require.NoError(t, err)
	var paused bool
	require.NoError(t, FuncIsPaused.DecodeReturns(ret, &paused))
	require.True(t, paused)

	_, err = Dispatch(ctx, f, other, mustEncode(t, EncodeCreateAuction(terms())))
	requireRevert(t, err, "Factory is paused")

	_, err = Dispatch(ctx, f, owner, mustEncode(t, FuncUnpause.EncodeArgs()))
	require.NoError(t, err)

	ret, err = Dispatch(ctx, f, other, mustEncode(t, FuncGetInstanceModuleSize.EncodeArgs()))
	require.NoError(t, err)
	var size *big.Int
	require.NoError(t, FuncGetInstanceModuleSize.DecodeReturns(ret, &size))
	require.Equal(t, int64(len(instance.Image())), size.Int64())
}

func TestDispatchValidationReverts(t *testing.T) {
	ctx := context.Background()
	f := newFactory()
	_, err := Dispatch(ctx, f, owner, mustEncode(t, FuncInitialize.EncodeArgs()))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*derivation.AuctionTerms)
		reason string
	}{
		{"nft", func(tr *derivation.AuctionTerms) { tr.NFTContract = common.Address{} }, "Invalid NFT contract"},
		{"commit", func(tr *derivation.AuctionTerms) {
			tr.CommitDuration = uint256.NewInt(0)
			tr.RevealDuration = uint256.NewInt(0)
		}, "Commit duration must be > 0"},
		{"reveal", func(tr *derivation.AuctionTerms) { tr.RevealDuration = uint256.NewInt(0) }, "Reveal duration must be > 0"},
		{"deposit", func(tr *derivation.AuctionTerms) { tr.MinDeposit = uint256.NewInt(0) }, "Min deposit must be > 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := terms()
			tt.mutate(&tr)
			_, err := Dispatch(ctx, f, owner, mustEncode(t, EncodeCreateAuction(tr)))
			requireRevert(t, err, tt.reason)
		})
	}
}

func TestDispatchLookupBeyondUint64(t *testing.T) {
	f := newFactory()
	huge := new(big.Int).Lsh(big.NewInt(1), 200)

	ret, err := Dispatch(context.Background(), f, owner, mustEncode(t, FuncGetAuction.EncodeArgs(huge)))
	require.NoError(t, err)
	var got common.Address
	require.NoError(t, FuncGetAuction.DecodeReturns(ret, &got))
	require.Equal(t, common.Address{}, got)
}

func TestDispatchUnknownSelector(t *testing.T) {
	f := newFactory()
	for _, data := range [][]byte{nil, {0x01, 0x02}, {0xde, 0xad, 0xbe, 0xef}} {
		_, err := Dispatch(context.Background(), f, owner, data)
		require.ErrorIs(t, err, ErrUnknownSelector)
	}
}

func TestRevertReasonDeploymentPayload(t *testing.T) {
	payload := []byte{'o', 'o', 'g', 0x00, 0xff}
	reason, ok := RevertReason(&factory.DeploymentFailedError{Payload: payload})
	require.True(t, ok)
	require.Equal(t, append([]byte("Deployment failed: "), payload...), reason)

	_, ok = RevertReason(context.Canceled)
	require.False(t, ok)
}

func TestCreateAuctionCalldataRoundTrip(t *testing.T) {
	want := terms()
	want.TokenID = new(uint256.Int).Lsh(uint256.NewInt(1), 255)

	data, err := EncodeCreateAuction(want)
	require.NoError(t, err)
	require.Equal(t, FuncCreateAuction.Selector[:], data[:4])

	got, err := DecodeCreateAuction(data)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
