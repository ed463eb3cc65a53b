package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"auctionfactory/internal/chainclient"
	"auctionfactory/internal/derivation"
)

// verification is what a live factory reports for one auction id, checked
// against the local instance module
type verification struct {
	Factory    common.Address
	Owner      common.Address
	Paused     bool
	ID         uint64
	Address    common.Address
	Creator    common.Address
	ModuleSize uint64
	LocalSize  uint64

	// set only when terms were supplied
	Predicted *common.Address
}

func verifyAuction(ctx context.Context, c *chainclient.Client, id uint64, image []byte, terms *derivation.AuctionTerms) (*verification, error) {
	v := &verification{Factory: c.Factory(), ID: id, LocalSize: uint64(len(image))}

	var err error
	if v.Owner, err = c.Owner(ctx); err != nil {
		return nil, err
	}
	if v.Paused, err = c.Paused(ctx); err != nil {
		return nil, err
	}
	if v.ModuleSize, err = c.InstanceModuleSize(ctx); err != nil {
		return nil, err
	}
	if v.Address, err = c.Auction(ctx, id); err != nil {
		return nil, err
	}
	if v.Address == (common.Address{}) {
		return nil, fmt.Errorf("auction %d is not registered", id)
	}
	if v.Creator, err = c.Creator(ctx, id); err != nil {
		return nil, err
	}

	if terms != nil {
		_, addr := derivation.PredictAuctionAddress(v.Factory, image, derivation.SaltInput{
			ID:      id,
			Creator: v.Creator,
			Terms:   *terms,
		})
		v.Predicted = &addr
	}
	return v, nil
}

func (v *verification) moduleMatches() bool { return v.ModuleSize == v.LocalSize }

func (v *verification) addressMatches() bool {
	return v.Predicted == nil || *v.Predicted == v.Address
}

func (v *verification) ok() bool { return v.moduleMatches() && v.addressMatches() }

func (v *verification) print() {
	fmt.Printf("factory: %s\n", v.Factory.Hex())
	fmt.Printf("owner:   %s\n", v.Owner.Hex())
	fmt.Printf("paused:  %t\n", v.Paused)
	fmt.Printf("id:      %d\n", v.ID)
	fmt.Printf("address: %s\n", v.Address.Hex())
	fmt.Printf("creator: %s\n", v.Creator.Hex())
	fmt.Printf("module:  %d bytes live, %d bytes local %s\n", v.ModuleSize, v.LocalSize, mark(v.moduleMatches()))
	if v.Predicted != nil {
		fmt.Printf("terms:   predicted %s %s\n", v.Predicted.Hex(), mark(v.addressMatches()))
	}
}

func mark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}
