package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"auctionfactory/internal/factory"
	"auctionfactory/internal/host"
)

const (
	// CallerHeader names the account a state-changing request acts as
	CallerHeader = "X-Caller"

	defaultPageSize = 50
	maxPageSize     = 100
)

var errNoCaller = errors.New(CallerHeader + " header required")

func NewRequestID() string { return "req_" + uuid.NewString() }

// callerFrom reads the caller address from the X-Caller header
func callerFrom(r *http.Request) (common.Address, error) {
	raw := r.Header.Get(CallerHeader)
	if raw == "" {
		return common.Address{}, errNoCaller
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%s is not a hex address: %q", CallerHeader, raw)
	}
	caller := common.HexToAddress(raw)
	if caller == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%s must not be the zero address", CallerHeader)
	}
	return caller, nil
}

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusFor maps a factory error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, host.ErrZeroSender):
		return http.StatusBadRequest
	case errors.Is(err, factory.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, factory.ErrAlreadyInitialized),
		errors.Is(err, factory.ErrPaused):
		return http.StatusConflict
	case errors.Is(err, factory.ErrInvalidAsset),
		errors.Is(err, factory.ErrInvalidDuration),
		errors.Is(err, factory.ErrInvalidDeposit),
		errors.Is(err, factory.ErrDeploymentFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// pageParams parses ?offset= and ?limit=, falling back to defaults on bad input
func pageParams(r *http.Request) (offset, limit uint64) {
	query := r.URL.Query()

	limit = defaultPageSize
	if limitStr := query.Get("limit"); limitStr != "" {
		if parsed, err := strconv.ParseUint(limitStr, 10, 64); err == nil && parsed > 0 && parsed <= maxPageSize {
			limit = parsed
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if parsed, err := strconv.ParseUint(offsetStr, 10, 64); err == nil {
			offset = parsed
		}
	}
	return offset, limit
}
