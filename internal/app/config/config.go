// Package config loads environment-driven settings for the marketplace
// ledger daemon.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// init loads .env when present. godotenv.Load never overrides variables
// already set, so OS environment takes precedence over the file.
func init() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	}
}

// Config captures everything the daemon needs to wire the services.
type Config struct {
	Env        string // deployment environment (dev, staging, prod)
	ListenAddr string // ops HTTP server bind address
	LogLevel   string // debug, info, warn, error

	DatabaseDSN string // PostgreSQL DSN; empty selects the in-memory store

	AdminAddress string // administrator identity for gated operations
	EscrowAddr   string // custodial address holding escrowed funds
	FeeCollector string // platform fee payout address
	PlatformFee  int64  // platform fee in basis points, 0..1000

	ChainID          uint64 // this deployment's chain id
	RelayerEndpoint  string // primary transport dispatch URL; empty disables it
	RelayerAPIKey    string // bearer token for the relayer endpoint
	NATSURL          string // broker URL for events and the fallback transport
	StrictMessageIDs bool   // timestamp-including inbound id derivation
}

const (
	defaultEnv        = "dev"
	defaultListenAddr = ":8080"
	defaultLogLevel   = "info"
	defaultEscrowAddr = "0xescrow"
	defaultChainID    = 1
)

// Load reads the environment and produces a validated Config.
func Load() (Config, error) {
	cfg := Config{
		Env:        getenv("LEDGER_ENV", defaultEnv),
		ListenAddr: getenv("LEDGER_LISTEN_ADDR", defaultListenAddr),
		LogLevel:   getenv("LEDGER_LOG_LEVEL", defaultLogLevel),

		DatabaseDSN: os.Getenv("LEDGER_DATABASE_DSN"),

		AdminAddress: os.Getenv("LEDGER_ADMIN_ADDRESS"),
		EscrowAddr:   getenv("LEDGER_ESCROW_ADDRESS", defaultEscrowAddr),
		FeeCollector: os.Getenv("LEDGER_FEE_COLLECTOR"),

		RelayerEndpoint: os.Getenv("LEDGER_RELAYER_ENDPOINT"),
		RelayerAPIKey:   os.Getenv("LEDGER_RELAYER_API_KEY"),
		NATSURL:         os.Getenv("LEDGER_NATS_URL"),
	}

	fee, err := getint("LEDGER_PLATFORM_FEE_BPS", 0)
	if err != nil {
		return Config{}, err
	}
	if fee < 0 || fee > 1000 {
		return Config{}, fmt.Errorf("LEDGER_PLATFORM_FEE_BPS out of range: %d", fee)
	}
	cfg.PlatformFee = fee

	chainID, err := getint("LEDGER_CHAIN_ID", defaultChainID)
	if err != nil {
		return Config{}, err
	}
	if chainID <= 0 {
		return Config{}, fmt.Errorf("LEDGER_CHAIN_ID must be positive: %d", chainID)
	}
	cfg.ChainID = uint64(chainID)

	strict, err := getbool("LEDGER_STRICT_MESSAGE_IDS", false)
	if err != nil {
		return Config{}, err
	}
	cfg.StrictMessageIDs = strict

	if cfg.PlatformFee > 0 && cfg.FeeCollector == "" {
		return Config{}, fmt.Errorf("LEDGER_FEE_COLLECTOR is required when LEDGER_PLATFORM_FEE_BPS is set")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int64) (int64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getbool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
