package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"auctionfactory/internal/chainclient"
	"auctionfactory/internal/config"
	"auctionfactory/internal/derivation"
	"auctionfactory/internal/instance"
	"auctionfactory/internal/models"
	"auctionfactory/internal/retry"
)

func main() {
	var (
		factoryAddr = flag.String("factory", config.DefaultFactoryAddress, "Factory address (CREATE2 deployer)")
		creator     = flag.String("creator", "", "Account that will call createAuction")
		nft         = flag.String("nft", "", "NFT contract address")
		tokenID     = flag.String("token-id", "0", "Token id")
		reserve     = flag.String("reserve", "0", "Reserve price")
		commit      = flag.String("commit", "0", "Commit phase duration")
		reveal      = flag.String("reveal", "0", "Reveal phase duration")
		deposit     = flag.String("deposit", "0", "Minimum deposit")
		id          = flag.Uint64("id", 0, "Auction id (0 = next id, needs -count or -rpc-url)")
		count       = flag.Uint64("count", 0, "Current auction count when -id is 0")
		modulePath  = flag.String("module", "", "Instance module image (default: embedded)")
		rpcURL      = flag.String("rpc-url", "", "JSON-RPC endpoint to read the live auction count from")
		showImage   = flag.Bool("preimage", false, "Also print the salt preimage")
		verifyID    = flag.Uint64("verify", 0, "Read auction <id> from -rpc-url and check it against the local module (and -nft terms when given)")
		decodeHex   = flag.String("decode", "", "Decode a hex salt preimage and print its fields, salt and address")
	)
	flag.Parse()

	log.SetFlags(0)

	if !common.IsHexAddress(*factoryAddr) {
		log.Fatalf("❌ -factory is not a hex address: %q", *factoryAddr)
	}
	factory := common.HexToAddress(*factoryAddr)

	terms, err := models.CreateAuctionRequest{
		NFTContract:    *nft,
		TokenID:        *tokenID,
		ReservePrice:   *reserve,
		CommitDuration: *commit,
		RevealDuration: *reveal,
		MinDeposit:     *deposit,
	}.Terms()
	if err != nil {
		log.Fatalf("❌ Invalid terms: %v", err)
	}

	image := instance.Image()
	if *modulePath != "" {
		if image, err = instance.LoadImage(*modulePath); err != nil {
			log.Fatalf("❌ %v", err)
		}
	}

	switch {
	case *decodeHex != "":
		in, err := decodePreimage(*decodeHex)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		printSaltInput(in)
		salt, addr := derivation.PredictAuctionAddress(factory, image, in)
		fmt.Printf("salt:    %s\n", salt.Hex())
		fmt.Printf("address: %s\n", addr.Hex())
		os.Exit(0)

	case *verifyID != 0:
		if *rpcURL == "" {
			log.Fatalf("❌ -verify needs -rpc-url")
		}
		var withTerms *derivation.AuctionTerms
		if *nft != "" {
			withTerms = &terms
		}
		v, err := liveVerify(*rpcURL, factory, *verifyID, image, withTerms)
		if err != nil {
			log.Fatalf("❌ Failed to verify auction %d: %v", *verifyID, err)
		}
		v.print()
		if !v.ok() {
			os.Exit(1)
		}
		os.Exit(0)
	}

	if !common.IsHexAddress(*creator) {
		log.Fatalf("❌ -creator is required and must be a hex address")
	}

	auctionID := *id
	if auctionID == 0 {
		current := *count
		if *rpcURL != "" {
			if current, err = liveCount(*rpcURL, factory); err != nil {
				log.Fatalf("❌ Failed to read auction count: %v", err)
			}
		}
		auctionID = current + 1
	}

	in := derivation.SaltInput{
		ID:      auctionID,
		Creator: common.HexToAddress(*creator),
		Terms:   terms,
	}
	salt, addr := derivation.PredictAuctionAddress(factory, image, in)

	fmt.Printf("id:      %d\n", auctionID)
	fmt.Printf("salt:    %s\n", salt.Hex())
	fmt.Printf("address: %s\n", addr.Hex())
	if *showImage {
		fmt.Printf("preimage: %s\n", hexutil.Encode(derivation.EncodePreimage(in)))
	}

	os.Exit(0)
}

func dial(rpcURL string, factory common.Address) (*chainclient.Client, error) {
	return chainclient.Dial(rpcURL, factory, retry.NewStrategy(retry.DefaultConfig()))
}

func liveCount(rpcURL string, factory common.Address) (uint64, error) {
	client, err := dial(rpcURL, factory)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return client.AuctionCount(ctx)
}

func liveVerify(rpcURL string, factory common.Address, id uint64, image []byte, terms *derivation.AuctionTerms) (*verification, error) {
	client, err := dial(rpcURL, factory)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return verifyAuction(ctx, client, id, image, terms)
}

func decodePreimage(raw string) (derivation.SaltInput, error) {
	b, err := hexutil.Decode(raw)
	if err != nil {
		return derivation.SaltInput{}, fmt.Errorf("-decode: %w", err)
	}
	return derivation.DecodePreimage(b)
}

func printSaltInput(in derivation.SaltInput) {
	fmt.Printf("id:      %d\n", in.ID)
	fmt.Printf("creator: %s\n", in.Creator.Hex())
	fmt.Printf("nft:     %s\n", in.Terms.NFTContract.Hex())
	fmt.Printf("token:   %s\n", in.Terms.TokenID.Dec())
	fmt.Printf("reserve: %s\n", in.Terms.ReservePrice.Dec())
	fmt.Printf("commit:  %s\n", in.Terms.CommitDuration.Dec())
	fmt.Printf("reveal:  %s\n", in.Terms.RevealDuration.Dec())
	fmt.Printf("deposit: %s\n", in.Terms.MinDeposit.Dec())
}
