package chainclient

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
	"github.com/lmittmann/w3/module/eth"
	"github.com/lmittmann/w3/w3types"

	"auctionfactory/internal/callcodec"
	"auctionfactory/internal/retry"
)

// Client reads a factory deployed on a live chain over JSON-RPC
type Client struct {
	client  *w3.Client
	factory common.Address
	retry   retry.Strategy
}

// Dial connects to rpcURL. Every read goes through strategy.
func Dial(rpcURL string, factory common.Address, strategy retry.Strategy) (*Client, error) {
	client, err := w3.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return New(client, factory, strategy), nil
}

// New wraps an existing w3 client
func New(client *w3.Client, factory common.Address, strategy retry.Strategy) *Client {
	if strategy == nil {
		strategy = retry.NewNoRetryStrategy()
	}
	return &Client{
		client:  client,
		factory: factory,
		retry:   strategy,
	}
}

func (c *Client) Factory() common.Address {
	return c.factory
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) AuctionCount(ctx context.Context) (uint64, error) {
	var n *big.Int
	if err := c.call(ctx, "getAuctionCount", eth.CallFunc(c.factory, callcodec.FuncGetAuctionCount).Returns(&n)); err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("auction count overflows uint64: %s", n)
	}
	return n.Uint64(), nil
}

func (c *Client) Auction(ctx context.Context, id uint64) (common.Address, error) {
	var addr common.Address
	err := c.call(ctx, "getAuction", eth.CallFunc(c.factory, callcodec.FuncGetAuction, new(big.Int).SetUint64(id)).Returns(&addr))
	return addr, err
}

func (c *Client) Creator(ctx context.Context, id uint64) (common.Address, error) {
	var addr common.Address
	err := c.call(ctx, "getCreator", eth.CallFunc(c.factory, callcodec.FuncGetCreator, new(big.Int).SetUint64(id)).Returns(&addr))
	return addr, err
}

func (c *Client) Owner(ctx context.Context) (common.Address, error) {
	var owner common.Address
	err := c.call(ctx, "getOwner", eth.CallFunc(c.factory, callcodec.FuncGetOwner).Returns(&owner))
	return owner, err
}

func (c *Client) Paused(ctx context.Context) (bool, error) {
	var paused bool
	err := c.call(ctx, "isPaused", eth.CallFunc(c.factory, callcodec.FuncIsPaused).Returns(&paused))
	return paused, err
}

func (c *Client) InstanceModuleSize(ctx context.Context) (uint64, error) {
	var n *big.Int
	if err := c.call(ctx, "getInstanceModuleSize", eth.CallFunc(c.factory, callcodec.FuncGetInstanceModuleSize).Returns(&n)); err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("instance module size overflows uint64: %s", n)
	}
	return n.Uint64(), nil
}

func (c *Client) call(ctx context.Context, name string, call w3types.RPCCaller) error {
	err := c.retry.Execute(ctx, name, func(ctx context.Context) error {
		return c.client.CallCtx(ctx, call)
	})
	if err != nil {
		slog.Debug("Chain read failed", "call", name, "factory", c.factory.Hex(), "error", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
