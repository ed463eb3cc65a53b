package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"auctionfactory/internal/callcodec"
	"auctionfactory/internal/factory"
	"auctionfactory/internal/models"
)

// handleIndex returns basic service information
// GET / - Returns service info and available endpoints
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"service":     "Auction Factory",
		"version":     "1.0.0",
		"description": "Deploys sealed-bid auction instances at deterministic addresses",
		"factory":     s.factory.Address().Hex(),
		"endpoints": map[string]string{
			"GET /":                    "This page - Service information",
			"GET /health":              "Health check endpoint",
			"GET /metrics":             "Prometheus metrics for monitoring",
			"GET /factory":             "Owner, pause flag, auction count and module size",
			"POST /factory/initialize": "Claim ownership (first caller only)",
			"POST /factory/pause":      "Stop new deployments (owner only)",
			"POST /factory/unpause":    "Resume deployments (owner only)",
			"GET /auctions":            "List auctions (supports ?offset=, ?limit=)",
			"POST /auctions":           "Deploy a new auction instance",
			"GET /auctions/count":      "Number of deployed auctions",
			"GET /auctions/{id}":       "Auction address and creator by id",
			"POST /auctions/predict":   "Address the next deployment with these terms would get",
			"POST /call":               "Execute raw ABI calldata",
		},
	}

	s.sendJSON(w, http.StatusOK, info)
}

// handleHealth returns health status
// GET /health - Pings the ledger
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if err := s.ledger.Ping(r.Context()); err != nil {
		slog.Error("Ledger health check failed", "error", err)
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	s.sendJSON(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"service":   "auction-factory",
	})
}

// handleMetrics returns Prometheus metrics
// GET /metrics - Prometheus scraping endpoint
func (s *Server) handleMetrics() http.Handler {
	return promhttp.Handler()
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// GET /factory
func (s *Server) handleFactoryInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := s.factory.GetOwner(ctx)
	if err != nil {
		s.sendFactoryError(w, r, err)
		return
	}
	paused, err := s.factory.IsPaused(ctx)
	if err != nil {
		s.sendFactoryError(w, r, err)
		return
	}
	count, err := s.factory.GetAuctionCount(ctx)
	if err != nil {
		s.sendFactoryError(w, r, err)
		return
	}

	s.sendJSON(w, http.StatusOK, models.FactoryInfo{
		Address:            s.factory.Address().Hex(),
		Owner:              owner.Hex(),
		Initialized:        owner != (common.Address{}),
		Paused:             paused,
		AuctionCount:       count,
		InstanceModuleSize: s.factory.InstanceModuleSize(),
	})
}

// POST /factory/initialize
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	if err := s.factory.Initialize(r.Context(), caller); err != nil {
		s.sendFactoryError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"owner": caller.Hex()})
}

// POST /factory/pause
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.setPaused(w, r, true)
}

// POST /factory/unpause
func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	s.setPaused(w, r, false)
}

func (s *Server) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	op := s.factory.Unpause
	if paused {
		op = s.factory.Pause
	}
	if err := op(r.Context(), caller); err != nil {
		s.sendFactoryError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]bool{"paused": paused})
}

// =============================================================================
// AUCTION ENDPOINTS
// =============================================================================

// handleListAuctions lists registered auctions in id order
// GET /auctions?offset=0&limit=50
func (s *Server) handleListAuctions(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)

	records, total, err := s.factory.ListAuctions(r.Context(), offset, limit)
	if err != nil {
		slog.Error("Failed to list auctions", "error", err)
		s.sendFactoryError(w, r, err)
		return
	}

	auctions := make([]models.AuctionResponse, 0, len(records))
	for _, rec := range records {
		auctions = append(auctions, models.NewAuctionResponse(rec))
	}

	s.sendJSON(w, http.StatusOK, models.AuctionListResponse{
		Auctions: auctions,
		Total:    total,
		Offset:   offset,
		Limit:    limit,
	})
}

// handleCreateAuction deploys a new instance
// POST /auctions
func (s *Server) handleCreateAuction(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	req, ok := s.readTerms(w, r)
	if !ok {
		return
	}
	terms, err := req.Terms()
	if err != nil {
		s.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	dep, err := s.factory.CreateAuction(r.Context(), caller, terms)
	if err != nil {
		s.sendFactoryError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, models.NewDeploymentResponse(dep))
}

// handlePredict returns the address the next deployment would get
// POST /auctions/predict
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	req, ok := s.readTerms(w, r)
	if !ok {
		return
	}
	terms, err := req.Terms()
	if err != nil {
		s.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := s.factory.PredictAuctionAddress(r.Context(), caller, terms)
	if err != nil {
		s.sendFactoryError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, models.NewPredictionResponse(p))
}

// GET /auctions/count
func (s *Server) handleAuctionCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.factory.GetAuctionCount(r.Context())
	if err != nil {
		s.sendFactoryError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, models.CountResponse{Count: count})
}

// handleGetAuction returns one registry entry
// GET /auctions/{id}
func (s *Server) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.sendError(w, r, "Auction id must be an unsigned integer", http.StatusBadRequest)
		return
	}

	addr, err := s.factory.GetAuction(ctx, id)
	if err != nil {
		s.sendFactoryError(w, r, err)
		return
	}
	if addr == (common.Address{}) {
		s.sendError(w, r, "Auction not found", http.StatusNotFound)
		return
	}
	creator, err := s.factory.GetCreator(ctx, id)
	if err != nil {
		s.sendFactoryError(w, r, err)
		return
	}

	s.sendJSON(w, http.StatusOK, models.NewAuctionResponse(factory.Record{
		ID:      id,
		Address: addr,
		Creator: creator,
	}))
}

// =============================================================================
// RAW CALLS
// =============================================================================

// handleCall executes ABI calldata as the X-Caller account. Reverts are a
// 200 with reverted=true, the way eth_call reports them.
// POST /call
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	var req models.CallRequest
	if err := readJSON(r, &req); err != nil {
		s.sendError(w, r, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	calldata, err := hexutil.Decode(req.Data)
	if err != nil {
		s.sendError(w, r, "data must be 0x-prefixed hex: "+err.Error(), http.StatusBadRequest)
		return
	}

	// reads may omit the caller; the host refuses writes without one
	var caller common.Address
	if r.Header.Get(CallerHeader) != "" {
		if caller, err = callerFrom(r); err != nil {
			s.sendError(w, r, err.Error(), http.StatusBadRequest)
			return
		}
	}

	ret, err := callcodec.Dispatch(r.Context(), s.factory, caller, calldata)
	var rerr *callcodec.RevertError
	switch {
	case err == nil:
		s.sendJSON(w, http.StatusOK, models.CallResponse{Result: hexutil.Encode(ret)})
	case errors.As(err, &rerr):
		s.sendJSON(w, http.StatusOK, models.CallResponse{
			Reverted:     true,
			RevertData:   hexutil.Encode(rerr.Data),
			RevertReason: string(rerr.Data),
		})
	case errors.Is(err, callcodec.ErrUnknownSelector):
		s.sendError(w, r, err.Error(), http.StatusBadRequest)
	default:
		s.sendFactoryError(w, r, err)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Server) requireCaller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	caller, err := callerFrom(r)
	if err != nil {
		s.sendError(w, r, err.Error(), http.StatusBadRequest)
		return common.Address{}, false
	}
	return caller, true
}

func (s *Server) readTerms(w http.ResponseWriter, r *http.Request) (models.CreateAuctionRequest, bool) {
	var req models.CreateAuctionRequest
	if err := readJSON(r, &req); err != nil {
		s.sendError(w, r, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, r *http.Request, message string, code int) {
	s.sendJSON(w, code, models.ErrorResponse{
		RequestID: RequestIDFrom(r.Context()),
		Error:     http.StatusText(code),
		Message:   message,
		Code:      code,
	})
}

// sendFactoryError maps a factory error to a status. Internal failures
// are logged and not echoed.
func (s *Server) sendFactoryError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		slog.Error("Factory call failed",
			"request_id", RequestIDFrom(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		message = "Internal server error"
	}

	s.sendJSON(w, code, models.ErrorResponse{
		RequestID: RequestIDFrom(r.Context()),
		Error:     http.StatusText(code),
		Kind:      factory.Kind(err),
		Message:   message,
		Code:      code,
	})
}
