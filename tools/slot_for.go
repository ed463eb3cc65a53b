package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"auctionfactory/internal/factory"
)

// Prints the factory storage slot of a registry entry, for eth_getStorageAt
func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: slot_for <auctions|creators> <id>")
		os.Exit(1)
	}

	var root common.Hash
	switch os.Args[1] {
	case "auctions":
		root = factory.SlotAuctions
	case "creators":
		root = factory.SlotCreators
	default:
		fmt.Printf("Unknown mapping %q\n", os.Args[1])
		os.Exit(1)
	}

	id, err := strconv.ParseUint(os.Args[2], 10, 64)
	if err != nil {
		fmt.Printf("Error parsing id: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", factory.MappingSlot(root, id).Hex())
}
