package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	ListenAddr  string

	OTLPEndpoint string

	Chain       ChainConfig
	Facilitator FacilitatorConfig
	PriceFeed   PriceFeedConfig
}

// ChainConfig points the gateway at the JSON-RPC endpoint and the deployed
// contract set. An empty pool address disables on-chain reads and the gateway
// degrades to config fallbacks.
type ChainConfig struct {
	RPCURL           string
	ChainID          int64
	PoolAddress      string
	SessionManager   string
	PaymentAdapter   string
	TokenAddresses   map[string]string
	PaymentAddress   string
	PaymentAssetAddr string
}

type FacilitatorConfig struct {
	URL          string
	ProbeTimeout time.Duration
}

type PriceFeedConfig struct {
	URL          string
	PollInterval time.Duration
	FetchTimeout time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:      getenv("APP_SERVICE", "orbital-gateway"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		ListenAddr:   getenv("LISTEN_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		Chain: ChainConfig{
			RPCURL:         getenv("CHAIN_RPC_URL", "https://rpc-amoy.polygon.technology"),
			ChainID:        getenvInt64("CHAIN_ID", 80002),
			PoolAddress:    getenv("ORBITALPOOL_ADDRESS", getenv("CONTRACT_ADDRESS", "")),
			SessionManager: getenv("X402_SESSION_MANAGER_ADDRESS", ""),
			PaymentAdapter: getenv("X402_PAYMENT_ADAPTER_ADDRESS", ""),
			TokenAddresses: map[string]string{
				"PYUSD": getenv("PYUSD", ""),
				"USDC":  getenv("USDC", ""),
			},
			PaymentAddress:   getenv("PAYMENT_ADDRESS", "0x0"),
			PaymentAssetAddr: getenv("PAYMENT_ASSET", "0x0"),
		},
		Facilitator: FacilitatorConfig{
			URL:          getenv("X402_FACILITATOR_URL", getenv("FACILITATOR_URL", "https://x402.polygon.technology")),
			ProbeTimeout: getenvDuration("X402_PROBE_TIMEOUT", 5*time.Second),
		},
		PriceFeed: PriceFeedConfig{
			URL:          getenv("PRICE_FEED_URL", "https://hermes.pyth.network/v2/updates/price/latest"),
			PollInterval: getenvDuration("PRICE_POLL_INTERVAL", 15*time.Second),
			FetchTimeout: getenvDuration("PRICE_FETCH_TIMEOUT", 8*time.Second),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
