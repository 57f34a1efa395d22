package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Asset describes one tracked price feed: the upstream feed identifier and the
// display symbol. The table is fixed at startup; entries are never added or
// removed at runtime.
type Asset struct {
	FeedID string `mapstructure:"feed_id"`
	Symbol string `mapstructure:"symbol"`
}

// AssetTable maps a stable asset key to its feed configuration.
type AssetTable map[string]Asset

// DefaultAssetTable returns the stablecoin set tracked by the demo pool,
// keyed the way the upstream aggregator names them.
func DefaultAssetTable() AssetTable {
	return AssetTable{
		"usd-coin": {FeedID: "eaa020c61cc479712813461ce153894a96a6c00b21ed0cfc2798d1f9a9e9c94a", Symbol: "USDC"},
		"tether":   {FeedID: "2b89b9dc8fdf9f34709a5b106b472f0f39bb6ca9ce04b0fd7f2e971688e2e53b", Symbol: "USDT"},
		"dai":      {FeedID: "b0948a5e5313200c632b51bb5ca32f6de0d36e9950a942d19751e833f70dabfd", Symbol: "DAI"},
		"pyusd":    {FeedID: "6ec879b1e9963de5ee97e9c8710b742d6228252a5e2ca12d4ae81d7fe5ee8c5d", Symbol: "PYUSD"},
	}
}

// LoadAssetTable reads the asset table from an optional assets.yml. When no
// file is present the compiled-in defaults are used. The result is validated
// once and then treated as immutable.
func LoadAssetTable() (AssetTable, error) {
	v := viper.New()

	v.SetConfigName("assets")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/orbital-gateway")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		table := DefaultAssetTable()
		return table, validateAssetTable(table)
	}

	var table AssetTable
	if err := v.UnmarshalKey("assets", &table); err != nil {
		return nil, err
	}
	if len(table) == 0 {
		table = DefaultAssetTable()
	}
	if err := validateAssetTable(table); err != nil {
		return nil, err
	}
	return table, nil
}

func validateAssetTable(table AssetTable) error {
	if len(table) == 0 {
		return errors.New("asset table cannot be empty")
	}
	seen := make(map[string]string, len(table))
	for key, asset := range table {
		if strings.TrimSpace(key) == "" {
			return errors.New("asset key cannot be empty")
		}
		feedID := strings.ToLower(strings.TrimSpace(asset.FeedID))
		if feedID == "" {
			return errors.New("asset " + key + ": feed_id cannot be empty")
		}
		if prev, ok := seen[feedID]; ok {
			return errors.New("assets " + prev + " and " + key + " share feed_id " + feedID)
		}
		seen[feedID] = key
		if strings.TrimSpace(asset.Symbol) == "" {
			return errors.New("asset " + key + ": symbol cannot be empty")
		}
	}
	return nil
}
