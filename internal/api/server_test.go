package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"auctionfactory/internal/callcodec"
	"auctionfactory/internal/factory"
	"auctionfactory/internal/host"
	"auctionfactory/internal/instance"
	"auctionfactory/internal/models"
	"auctionfactory/internal/storage"
)

var (
	factoryAddr = common.HexToAddress("0x000000000000000000000000000000000000fac7")
	ownerA      = "0x00000000000000000000000000000000000000A1"
	callerB     = "0x00000000000000000000000000000000000000B2"
)

func validBody(tokenID string) models.CreateAuctionRequest {
	return models.CreateAuctionRequest{
		NFTContract:    "0x0100000000000000000000000000000000000000",
		TokenID:        tokenID,
		ReservePrice:   "100",
		CommitDuration: "3600",
		RevealDuration: "1800",
		MinDeposit:     "10",
	}
}

type harness struct {
	t       *testing.T
	handler http.Handler
}

func newHarness(t *testing.T, ledger storage.Ledger) *harness {
	t.Helper()
	if ledger == nil {
		ledger = storage.NewMemoryLedger()
	}
	f := factory.New(host.New(ledger, host.NewCreate2Deployer(), factoryAddr), instance.Image())
	return &harness{t: t, handler: NewServer(0, f, ledger).Handler()}
}

func (h *harness) do(method, path, caller string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		req.Header.Set(CallerHeader, caller)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestFactoryLifecycle(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/factory/initialize", ownerA, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, "/factory/initialize", callerB, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	errResp := decode[models.ErrorResponse](t, rec)
	require.Equal(t, "already_initialized", errResp.Kind)
	require.NotEmpty(t, errResp.RequestID)

	rec = h.do(http.MethodPost, "/auctions", ownerA, validBody("5"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[models.DeploymentResponse](t, rec)
	require.Equal(t, uint64(1), first.ID)
	require.Equal(t, common.HexToAddress(ownerA).Hex(), first.Creator)

	rec = h.do(http.MethodPost, "/auctions/predict", callerB, validBody("6"))
	require.Equal(t, http.StatusOK, rec.Code)
	predicted := decode[models.PredictionResponse](t, rec)
	require.Equal(t, uint64(2), predicted.ID)

	rec = h.do(http.MethodPost, "/auctions", callerB, validBody("6"))
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decode[models.DeploymentResponse](t, rec)
	require.Equal(t, uint64(2), second.ID)
	require.Equal(t, predicted.Address, second.Address)
	require.NotEqual(t, first.Address, second.Address)

	rec = h.do(http.MethodGet, "/auctions/2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.AuctionResponse](t, rec)
	require.Equal(t, second.Address, got.Address)
	require.Equal(t, common.HexToAddress(callerB).Hex(), got.Creator)

	rec = h.do(http.MethodGet, "/auctions/count", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint64(2), decode[models.CountResponse](t, rec).Count)

	rec = h.do(http.MethodGet, "/auctions?offset=1&limit=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[models.AuctionListResponse](t, rec)
	require.Equal(t, uint64(2), list.Total)
	require.Len(t, list.Auctions, 1)
	require.Equal(t, uint64(2), list.Auctions[0].ID)

	rec = h.do(http.MethodPost, "/factory/pause", callerB, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodPost, "/factory/pause", ownerA, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodPost, "/auctions", ownerA, validBody("7"))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "paused", decode[models.ErrorResponse](t, rec).Kind)

	rec = h.do(http.MethodGet, "/factory", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[models.FactoryInfo](t, rec)
	require.True(t, info.Initialized)
	require.True(t, info.Paused)
	require.Equal(t, uint64(2), info.AuctionCount)
	require.Equal(t, common.HexToAddress(ownerA).Hex(), info.Owner)
	require.Equal(t, len(instance.Image()), info.InstanceModuleSize)

	rec = h.do(http.MethodPost, "/factory/unpause", ownerA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAuctionErrors(t *testing.T) {
	h := newHarness(t, nil)
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/factory/initialize", ownerA, nil).Code)

	zeroCommit := validBody("1")
	zeroCommit.CommitDuration = "0"

	tests := []struct {
		name   string
		caller string
		body   any
		code   int
		kind   string
	}{
		{"missing caller", "", validBody("1"), http.StatusBadRequest, ""},
		{"bad caller", "alice", validBody("1"), http.StatusBadRequest, ""},
		{"unknown field", ownerA, map[string]string{"nft": "0x01"}, http.StatusBadRequest, ""},
		{"bad number", ownerA, models.CreateAuctionRequest{NFTContract: "0x0100000000000000000000000000000000000000", TokenID: "-1"}, http.StatusBadRequest, ""},
		{"zero nft", ownerA, models.CreateAuctionRequest{}, http.StatusUnprocessableEntity, "invalid_asset"},
		{"zero commit", ownerA, zeroCommit, http.StatusUnprocessableEntity, "invalid_duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(http.MethodPost, "/auctions", tt.caller, tt.body)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			resp := decode[models.ErrorResponse](t, rec)
			require.Equal(t, tt.kind, resp.Kind)
		})
	}

	rec := h.do(http.MethodGet, "/auctions/count", "", nil)
	require.Equal(t, uint64(0), decode[models.CountResponse](t, rec).Count)
}

func TestZeroCallerIsRefused(t *testing.T) {
	h := newHarness(t, nil)
	zero := "0x0000000000000000000000000000000000000000"

	for _, path := range []string{"/factory/initialize", "/factory/pause"} {
		rec := h.do(http.MethodPost, path, zero, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
	rec := h.do(http.MethodPost, "/auctions", zero, validBody("1"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// raw writes without a caller reach the host and are refused there
	pauseData, err := callcodec.FuncPause.EncodeArgs()
	require.NoError(t, err)
	rec = h.do(http.MethodPost, "/call", "", models.CallRequest{Data: hexutil.Encode(pauseData)})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	require.Equal(t, "invalid_caller", decode[models.ErrorResponse](t, rec).Kind)

	rec = h.do(http.MethodGet, "/factory", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[models.FactoryInfo](t, rec)
	require.False(t, info.Initialized)
	require.False(t, info.Paused)

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/factory/initialize", ownerA, nil).Code)
}

func TestGetAuctionNotFound(t *testing.T) {
	h := newHarness(t, nil)

	require.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/auctions/1", "", nil).Code)
	require.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/auctions/abc", "", nil).Code)
	require.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/nope", "", nil).Code)
	require.Equal(t, http.StatusMethodNotAllowed, h.do(http.MethodDelete, "/auctions/1", "", nil).Code)
}

func TestRawCall(t *testing.T) {
	h := newHarness(t, nil)

	initData, err := callcodec.FuncInitialize.EncodeArgs()
	require.NoError(t, err)

	rec := h.do(http.MethodPost, "/call", ownerA, models.CallRequest{Data: hexutil.Encode(initData)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.False(t, decode[models.CallResponse](t, rec).Reverted)

	rec = h.do(http.MethodPost, "/call", callerB, models.CallRequest{Data: hexutil.Encode(initData)})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[models.CallResponse](t, rec)
	require.True(t, resp.Reverted)
	require.Equal(t, "Already initialized", resp.RevertReason)

	ownerData, err := callcodec.FuncGetOwner.EncodeArgs()
	require.NoError(t, err)
	rec = h.do(http.MethodPost, "/call", "", models.CallRequest{Data: hexutil.Encode(ownerData)})
	require.Equal(t, http.StatusOK, rec.Code)

	ret, err := hexutil.Decode(decode[models.CallResponse](t, rec).Result)
	require.NoError(t, err)
	var owner common.Address
	require.NoError(t, callcodec.FuncGetOwner.DecodeReturns(ret, &owner))
	require.Equal(t, common.HexToAddress(ownerA), owner)

	rec = h.do(http.MethodPost, "/call", "", models.CallRequest{Data: "0xdeadbeef"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/call", "", models.CallRequest{Data: "nothex"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

type downLedger struct {
	storage.Ledger
}

func (downLedger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	h = newHarness(t, downLedger{Ledger: storage.NewMemoryLedger()})
	rec = h.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "unhealthy"))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	h.do(http.MethodGet, "/auctions/count", "", nil)

	rec := h.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "factory_http_requests_total")
	require.Contains(t, rec.Body.String(), "factory_instance_module_bytes")
}
