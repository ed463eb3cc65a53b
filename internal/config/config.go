package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"auctionfactory/internal/host"
	"auctionfactory/internal/retry"
)

// DefaultFactoryAddress is the account the factory executes as when
// FACTORY_ADDRESS is unset
const DefaultFactoryAddress = "0x000000000000000000000000000000000000Fac7"

type Config struct {
	// HTTP API port
	HTTPPort int

	// Postgres connection string ( empty means in-memory ledger )
	DatabaseURL string

	// Account the factory executes as, and the CREATE2 deployer address
	FactoryAddress common.Address

	// Optional instance module override ( raw wasm or hex )
	InstanceModulePath string

	// Deploy primitive limits
	MaxCodeSize    int
	DeployGasLimit uint64
	ValidateWasm   bool

	// debug | info | warn | error
	LogLevel string

	// Optional JSON-RPC endpoint of a live chain
	RPCURL string

	Retry retry.Config

	factoryAddressRaw string
}

// Load reads the configuration from the environment. Callers load .env
// first with godotenv.
func Load() *Config {
	factoryAddress := getEnv("FACTORY_ADDRESS", DefaultFactoryAddress)
	return &Config{
		HTTPPort:           getEnvAsInt("HTTP_PORT", 2112),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		FactoryAddress:     common.HexToAddress(factoryAddress),
		factoryAddressRaw:  factoryAddress,
		InstanceModulePath: os.Getenv("INSTANCE_MODULE_PATH"),
		MaxCodeSize:        getEnvAsInt("MAX_CODE_SIZE", host.DefaultMaxCodeLen),
		DeployGasLimit:     getEnvAsUint64("DEPLOY_GAS_LIMIT", host.DefaultDeployGas),
		ValidateWasm:       getEnvAsBool("VALIDATE_WASM", true),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		RPCURL:             os.Getenv("RPC_URL"),
		Retry: retry.Config{
			Enabled:      getEnvAsBool("RETRY_ENABLED", true),
			MaxRetries:   getEnvAsInt("RETRY_MAX_RETRIES", 5),
			InitialDelay: time.Duration(getEnvAsInt("RETRY_INITIAL_DELAY_SEC", 1)) * time.Second,
			MaxDelay:     time.Duration(getEnvAsInt("RETRY_MAX_DELAY_SEC", 30)) * time.Second,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT out of range: %d", c.HTTPPort)
	}
	if c.factoryAddressRaw != "" && !common.IsHexAddress(c.factoryAddressRaw) {
		return fmt.Errorf("FACTORY_ADDRESS is not a hex address: %q", c.factoryAddressRaw)
	}
	if c.FactoryAddress == (common.Address{}) {
		return fmt.Errorf("FACTORY_ADDRESS must not be the zero address")
	}
	if c.MaxCodeSize <= 0 {
		return fmt.Errorf("MAX_CODE_SIZE must be > 0")
	}
	if c.DeployGasLimit == 0 {
		return fmt.Errorf("DEPLOY_GAS_LIMIT must be > 0")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error: %q", c.LogLevel)
	}
	if c.Retry.Enabled && c.Retry.MaxRetries < 0 {
		return fmt.Errorf("RETRY_MAX_RETRIES must be >= 0")
	}
	return nil
}

// Deployer builds the deploy primitive from the configured limits
func (c *Config) Deployer() *host.Create2Deployer {
	d := host.NewCreate2Deployer()
	d.MaxCodeSize = c.MaxCodeSize
	d.GasLimit = c.DeployGasLimit
	d.ValidateWasm = c.ValidateWasm
	return d
}

// Helper: get string from env
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Helper: get bool from env
func getEnvAsBool(key string, defaultVal bool) bool {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

// Helper: get int from env
func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

// Helper: get uint64 from env; negative values fall back to the default
func getEnvAsUint64(key string, defaultVal uint64) uint64 {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseUint(valStr, 10, 64)
	if err != nil {
		return defaultVal
	}
	return val
}
