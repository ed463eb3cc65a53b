package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"auctionfactory/internal/callcodec"
	"auctionfactory/internal/chainclient"
	"auctionfactory/internal/derivation"
	"auctionfactory/internal/factory"
	"auctionfactory/internal/host"
	"auctionfactory/internal/instance"
	"auctionfactory/internal/storage"
)

var (
	factoryAddr = common.HexToAddress("0x000000000000000000000000000000000000fac7")
	owner       = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	creator     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func liveTerms() derivation.AuctionTerms {
	return derivation.AuctionTerms{
		NFTContract:    common.HexToAddress("0x0100000000000000000000000000000000000000"),
		TokenID:        uint256.NewInt(5),
		ReservePrice:   uint256.NewInt(100),
		CommitDuration: uint256.NewInt(3600),
		RevealDuration: uint256.NewInt(1800),
		MinDeposit:     uint256.NewInt(10),
	}
}

// node serves eth_call reads from an in-process factory
func node(t *testing.T, f *factory.Factory) *chainclient.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage   `json:"id"`
			Params []json.RawMessage `json:"params"`
		}
		var args struct {
			Data  hexutil.Bytes `json:"data"`
			Input hexutil.Bytes `json:"input"`
		}
		resp := map[string]any{"jsonrpc": "2.0"}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && len(req.Params) > 0 {
			resp["id"] = req.ID
			_ = json.Unmarshal(req.Params[0], &args)
		}
		input := args.Input
		if len(input) == 0 {
			input = args.Data
		}
		ret, err := callcodec.Dispatch(r.Context(), f, common.Address{}, input)
		if err != nil {
			resp["error"] = map[string]any{"code": -32000, "message": err.Error()}
		} else {
			resp["result"] = hexutil.Bytes(ret)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	c, err := chainclient.Dial(srv.URL, factoryAddr, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func deployedFactory(t *testing.T) *factory.Factory {
	t.Helper()
	ctx := context.Background()
	f := factory.New(host.New(storage.NewMemoryLedger(), host.NewCreate2Deployer(), factoryAddr), instance.Image())
	require.NoError(t, f.Initialize(ctx, owner))
	_, err := f.CreateAuction(ctx, creator, liveTerms())
	require.NoError(t, err)
	return f
}

func TestVerifyAuctionMatchesLiveDeployment(t *testing.T) {
	ctx := context.Background()
	f := deployedFactory(t)
	c := node(t, f)

	terms := liveTerms()
	v, err := verifyAuction(ctx, c, 1, instance.Image(), &terms)
	require.NoError(t, err)
	require.True(t, v.ok())
	require.Equal(t, factoryAddr, v.Factory)
	require.Equal(t, owner, v.Owner)
	require.False(t, v.Paused)
	require.Equal(t, creator, v.Creator)
	require.Equal(t, uint64(len(instance.Image())), v.ModuleSize)

	addr, err := f.GetAuction(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, addr, v.Address)
	require.Equal(t, addr, *v.Predicted)
}

func TestVerifyAuctionReportsMismatches(t *testing.T) {
	ctx := context.Background()
	c := node(t, deployedFactory(t))

	other := liveTerms()
	other.TokenID = uint256.NewInt(6)
	v, err := verifyAuction(ctx, c, 1, instance.Image(), &other)
	require.NoError(t, err)
	require.True(t, v.moduleMatches())
	require.False(t, v.addressMatches())
	require.False(t, v.ok())

	v, err = verifyAuction(ctx, c, 1, append([]byte{}, instance.Image()[:8]...), nil)
	require.NoError(t, err)
	require.Nil(t, v.Predicted)
	require.False(t, v.moduleMatches())
	require.False(t, v.ok())

	_, err = verifyAuction(ctx, c, 2, instance.Image(), nil)
	require.ErrorContains(t, err, "not registered")
}

func TestDecodePreimage(t *testing.T) {
	in := derivation.SaltInput{ID: 3, Creator: creator, Terms: liveTerms()}

	got, err := decodePreimage(hexutil.Encode(derivation.EncodePreimage(in)))
	require.NoError(t, err)
	require.Equal(t, in.ID, got.ID)
	require.Equal(t, in.Creator, got.Creator)
	require.Equal(t, derivation.Salt(in), derivation.Salt(got))

	_, err = decodePreimage("0x1234")
	require.ErrorContains(t, err, "preimage must be")

	_, err = decodePreimage("zz")
	require.Error(t, err)
}
