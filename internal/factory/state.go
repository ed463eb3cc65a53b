package factory

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"auctionfactory/internal/host"
)

// Storage layout, following Solidity rules so the words line up with the
// deployed contract:
//
//	slot 0: auction_count          uint256
//	slot 1: auctions               mapping(uint256 => address)
//	slot 2: creators               mapping(uint256 => address)
//	slot 3: owner (bytes 12..31) | paused (byte 11)
var (
	SlotAuctionCount = common.BigToHash(common.Big0)
	SlotAuctions     = common.BigToHash(common.Big1)
	SlotCreators     = common.BigToHash(common.Big2)
	SlotAdmin        = common.BigToHash(common.Big3)
)

const pausedOffset = common.HashLength - common.AddressLength - 1

// MappingSlot returns the slot holding key in the mapping rooted at root
func MappingSlot(root common.Hash, key uint64) common.Hash {
	k := uint256.NewInt(key).Bytes32()
	return crypto.Keccak256Hash(k[:], root.Bytes())
}

// State is the factory's persisted state, bound to the transaction of one
// call. Invariants:
//
//   - AuctionCount equals the number of successful deployments and never
//     decreases.
//   - Auction(id) and Creator(id) are set together for every
//     1 <= id <= AuctionCount, exactly once, and read as the zero address
//     for every other id.
//   - Owner is the zero address until initialization and immutable after.
type State struct {
	env *host.Env
}

// NewState binds State to env
func NewState(env *host.Env) *State {
	return &State{env: env}
}

func (s *State) AuctionCount() (uint64, error) {
	word, err := s.env.Load(SlotAuctionCount)
	if err != nil {
		return 0, fmt.Errorf("load auction count: %w", err)
	}
	n := new(uint256.Int).SetBytes32(word[:])
	if !n.IsUint64() {
		return 0, fmt.Errorf("auction count overflows uint64: %s", n.Dec())
	}
	return n.Uint64(), nil
}

func (s *State) SetAuctionCount(n uint64) error {
	if err := s.env.Store(SlotAuctionCount, common.Hash(uint256.NewInt(n).Bytes32())); err != nil {
		return fmt.Errorf("store auction count: %w", err)
	}
	return nil
}

func (s *State) Auction(id uint64) (common.Address, error) {
	return s.loadAddress(MappingSlot(SlotAuctions, id))
}

// SetAuction writes the registry entry for id. Entries are write-once.
func (s *State) SetAuction(id uint64, addr common.Address) error {
	return s.storeOnce("auctions", MappingSlot(SlotAuctions, id), id, addr)
}

func (s *State) Creator(id uint64) (common.Address, error) {
	return s.loadAddress(MappingSlot(SlotCreators, id))
}

// SetCreator writes the creator log entry for id. Entries are write-once.
func (s *State) SetCreator(id uint64, creator common.Address) error {
	return s.storeOnce("creators", MappingSlot(SlotCreators, id), id, creator)
}

func (s *State) Owner() (common.Address, error) {
	word, err := s.loadAdmin()
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(word[pausedOffset+1:]), nil
}

func (s *State) SetOwner(owner common.Address) error {
	word, err := s.loadAdmin()
	if err != nil {
		return err
	}
	copy(word[pausedOffset+1:], owner.Bytes())
	return s.storeAdmin(word)
}

// Initialized reports whether an owner has been set
func (s *State) Initialized() (bool, error) {
	owner, err := s.Owner()
	if err != nil {
		return false, err
	}
	return owner != (common.Address{}), nil
}

func (s *State) Paused() (bool, error) {
	word, err := s.loadAdmin()
	if err != nil {
		return false, err
	}
	return word[pausedOffset] != 0, nil
}

func (s *State) SetPaused(paused bool) error {
	word, err := s.loadAdmin()
	if err != nil {
		return err
	}
	word[pausedOffset] = 0
	if paused {
		word[pausedOffset] = 1
	}
	return s.storeAdmin(word)
}

func (s *State) loadAdmin() (common.Hash, error) {
	word, err := s.env.Load(SlotAdmin)
	if err != nil {
		return common.Hash{}, fmt.Errorf("load admin slot: %w", err)
	}
	return word, nil
}

func (s *State) storeAdmin(word common.Hash) error {
	if err := s.env.Store(SlotAdmin, word); err != nil {
		return fmt.Errorf("store admin slot: %w", err)
	}
	return nil
}

func (s *State) loadAddress(slot common.Hash) (common.Address, error) {
	word, err := s.env.Load(slot)
	if err != nil {
		return common.Address{}, fmt.Errorf("load slot %s: %w", slot.Hex(), err)
	}
	return common.BytesToAddress(word.Bytes()), nil
}

func (s *State) storeOnce(mapping string, slot common.Hash, id uint64, addr common.Address) error {
	current, err := s.loadAddress(slot)
	if err != nil {
		return err
	}
	if current != (common.Address{}) {
		return fmt.Errorf("%s[%d] already set to %s", mapping, id, current.Hex())
	}
	if err := s.env.Store(slot, common.BytesToHash(addr.Bytes())); err != nil {
		return fmt.Errorf("store %s[%d]: %w", mapping, id, err)
	}
	return nil
}
