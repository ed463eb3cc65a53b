package models

import (
	"auctionfactory/internal/factory"
)

// AuctionResponse is one registry entry
type AuctionResponse struct {
	ID      uint64 `json:"id"`
	Address string `json:"address"`
	Creator string `json:"creator"`
}

// DeploymentResponse is returned by POST /auctions
type DeploymentResponse struct {
	ID      uint64 `json:"id"`
	Address string `json:"address"`
	Creator string `json:"creator"`
	Salt    string `json:"salt"`
}

// PredictionResponse is returned by POST /auctions/predict
type PredictionResponse struct {
	ID      uint64 `json:"id"`
	Address string `json:"address"`
	Salt    string `json:"salt"`
}

// AuctionListResponse represents a paginated list of auctions
type AuctionListResponse struct {
	Auctions []AuctionResponse `json:"auctions"`
	Total    uint64            `json:"total"`
	Offset   uint64            `json:"offset"`
	Limit    uint64            `json:"limit"`
}

type CountResponse struct {
	Count uint64 `json:"count"`
}

// FactoryInfo is the admin and registry summary
type FactoryInfo struct {
	Address            string `json:"address"`
	Owner              string `json:"owner"`
	Initialized        bool   `json:"initialized"`
	Paused             bool   `json:"paused"`
	AuctionCount       uint64 `json:"auction_count"`
	InstanceModuleSize int    `json:"instance_module_size"`
}

// CallRequest carries raw ABI calldata, 0x-prefixed hex
type CallRequest struct {
	Data string `json:"data"`
}

// CallResponse is the outcome of a raw call. On revert, RevertData holds
// the payload and RevertReason its text form.
type CallResponse struct {
	Result       string `json:"result,omitempty"`
	Reverted     bool   `json:"reverted"`
	RevertData   string `json:"revert_data,omitempty"`
	RevertReason string `json:"revert_reason,omitempty"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Message   string `json:"message,omitempty"`
	Code      int    `json:"code"`
}

func NewAuctionResponse(rec factory.Record) AuctionResponse {
	return AuctionResponse{
		ID:      rec.ID,
		Address: rec.Address.Hex(),
		Creator: rec.Creator.Hex(),
	}
}

func NewDeploymentResponse(dep factory.Deployment) DeploymentResponse {
	return DeploymentResponse{
		ID:      dep.ID,
		Address: dep.Address.Hex(),
		Creator: dep.Creator.Hex(),
		Salt:    dep.Salt.Hex(),
	}
}

func NewPredictionResponse(p factory.Prediction) PredictionResponse {
	return PredictionResponse{
		ID:      p.ID,
		Address: p.Address.Hex(),
		Salt:    p.Salt.Hex(),
	}
}
