package models

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"auctionfactory/internal/derivation"
)

// CreateAuctionRequest is the body of POST /auctions and
// POST /auctions/predict. Numbers are decimal or 0x-prefixed hex strings
// so the full uint256 range survives JSON; empty means zero.
type CreateAuctionRequest struct {
	NFTContract    string `json:"nft_contract"`
	TokenID        string `json:"token_id"`
	ReservePrice   string `json:"reserve_price"`
	CommitDuration string `json:"commit_duration"`
	RevealDuration string `json:"reveal_duration"`
	MinDeposit     string `json:"min_deposit"`
}

// Terms parses the request. Only malformed input is rejected here; range
// checks belong to the factory.
func (r CreateAuctionRequest) Terms() (derivation.AuctionTerms, error) {
	var terms derivation.AuctionTerms

	if r.NFTContract != "" {
		if !common.IsHexAddress(r.NFTContract) {
			return terms, fmt.Errorf("nft_contract: not a hex address: %q", r.NFTContract)
		}
		terms.NFTContract = common.HexToAddress(r.NFTContract)
	}

	for _, f := range []struct {
		name string
		raw  string
		dst  **uint256.Int
	}{
		{"token_id", r.TokenID, &terms.TokenID},
		{"reserve_price", r.ReservePrice, &terms.ReservePrice},
		{"commit_duration", r.CommitDuration, &terms.CommitDuration},
		{"reveal_duration", r.RevealDuration, &terms.RevealDuration},
		{"min_deposit", r.MinDeposit, &terms.MinDeposit},
	} {
		v, err := ParseUint256(f.raw)
		if err != nil {
			return derivation.AuctionTerms{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return terms, nil
}

// ParseUint256 accepts decimal or 0x-prefixed hex
func ParseUint256(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(uint256.Int), nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := strings.TrimLeft(s[2:], "0")
		if digits == "" {
			return new(uint256.Int), nil
		}
		return uint256.FromHex("0x" + digits)
	}
	return uint256.FromDecimal(s)
}
