package derivation

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Field widths of the salt preimage
const (
	WordSize    = 32
	AddressSize = common.AddressLength

	// PreimageSize = id + creator + nft + tokenId + reserve + commit + reveal + deposit
	PreimageSize = WordSize + 2*AddressSize + 5*WordSize
)

// AuctionTerms are the economically relevant parameters of one auction instance
type AuctionTerms struct {
	NFTContract    common.Address
	TokenID        *uint256.Int
	ReservePrice   *uint256.Int
	CommitDuration *uint256.Int
	RevealDuration *uint256.Int
	MinDeposit     *uint256.Int
}

// SaltInput is everything bound into the deployment salt
type SaltInput struct {
	ID      uint64
	Creator common.Address
	Terms   AuctionTerms
}

// EncodePreimage serializes the input in fixed field order:
//
//	id (32, LE) | creator (20) | nftContract (20) | tokenId (32, LE) |
//	reservePrice (32, LE) | commitDuration (32, LE) | revealDuration (32, LE) |
//	minDeposit (32, LE)
//
// Every field has a fixed width so no delimiters are needed. Nil integers
// encode as zero.
func EncodePreimage(in SaltInput) []byte {
	buf := make([]byte, 0, PreimageSize)
	buf = appendWordLE(buf, uint256.NewInt(in.ID))
	buf = append(buf, in.Creator.Bytes()...)
	buf = append(buf, in.Terms.NFTContract.Bytes()...)
	buf = appendWordLE(buf, in.Terms.TokenID)
	buf = appendWordLE(buf, in.Terms.ReservePrice)
	buf = appendWordLE(buf, in.Terms.CommitDuration)
	buf = appendWordLE(buf, in.Terms.RevealDuration)
	buf = appendWordLE(buf, in.Terms.MinDeposit)
	return buf
}

// DecodePreimage is the inverse of EncodePreimage
func DecodePreimage(b []byte) (SaltInput, error) {
	if len(b) != PreimageSize {
		return SaltInput{}, fmt.Errorf("preimage must be %d bytes, got %d", PreimageSize, len(b))
	}

	var in SaltInput
	id := readWordLE(b[0:WordSize])
	if !id.IsUint64() {
		return SaltInput{}, fmt.Errorf("preimage id overflows uint64: %s", id.Dec())
	}
	in.ID = id.Uint64()

	off := WordSize
	in.Creator = common.BytesToAddress(b[off : off+AddressSize])
	off += AddressSize
	in.Terms.NFTContract = common.BytesToAddress(b[off : off+AddressSize])
	off += AddressSize

	words := []**uint256.Int{
		&in.Terms.TokenID,
		&in.Terms.ReservePrice,
		&in.Terms.CommitDuration,
		&in.Terms.RevealDuration,
		&in.Terms.MinDeposit,
	}
	for _, w := range words {
		*w = readWordLE(b[off : off+WordSize])
		off += WordSize
	}
	return in, nil
}

// Salt returns keccak256 of the encoded preimage
func Salt(in SaltInput) common.Hash {
	return crypto.Keccak256Hash(EncodePreimage(in))
}

// PredictAddress returns the CREATE2 address a deployer places image at
// under the given salt.
func PredictAddress(deployer common.Address, salt common.Hash, image []byte) common.Address {
	return crypto.CreateAddress2(deployer, salt, crypto.Keccak256(image))
}

// PredictAuctionAddress derives the salt for in and the resulting instance
// address for a factory deployed at factory.
func PredictAuctionAddress(factory common.Address, image []byte, in SaltInput) (common.Hash, common.Address) {
	salt := Salt(in)
	return salt, PredictAddress(factory, salt, image)
}

func appendWordLE(buf []byte, v *uint256.Int) []byte {
	var word [WordSize]byte
	if v != nil {
		word = v.Bytes32()
	}
	for i := WordSize - 1; i >= 0; i-- {
		buf = append(buf, word[i])
	}
	return buf
}

func readWordLE(b []byte) *uint256.Int {
	var be [WordSize]byte
	for i := 0; i < WordSize; i++ {
		be[WordSize-1-i] = b[i]
	}
	return new(uint256.Int).SetBytes32(be[:])
}
