package instance

import (
	"bytes"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

const (
	name    = "SealedBidAuction"
	version = "0.1.0"
)

// WasmMagic prefixes every valid WebAssembly module
var WasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

//go:embed SealedBidAuction.bin
var bytecodeHex string

func Name() string    { return name }
func Version() string { return version }

// Image returns the embedded precompiled instance module
func Image() []byte {
	b, err := decodeHex(bytecodeHex)
	if err != nil {
		panic(fmt.Sprintf("decode embedded %s image: %v", name, err))
	}
	return b
}

// LoadImage reads a module image from path. Files holding hex text (as the
// embedded .bin does) are decoded; anything else is taken as raw bytes.
func LoadImage(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module image: %w", err)
	}
	if bytes.HasPrefix(raw, WasmMagic) {
		return raw, nil
	}
	b, err := decodeHex(string(raw))
	if err != nil {
		return nil, fmt.Errorf("module image %s is neither wasm nor hex: %w", path, err)
	}
	return b, nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	return hex.DecodeString(s)
}
