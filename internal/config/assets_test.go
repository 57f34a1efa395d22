package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAssetTable_Valid(t *testing.T) {
	table := DefaultAssetTable()
	require.NoError(t, validateAssetTable(table))
	assert.Len(t, table, 4)
	assert.Equal(t, "USDC", table["usd-coin"].Symbol)
	assert.Equal(t, "PYUSD", table["pyusd"].Symbol)
}

func TestValidateAssetTable(t *testing.T) {
	assert.Error(t, validateAssetTable(AssetTable{}))

	assert.Error(t, validateAssetTable(AssetTable{
		"usdc": {FeedID: "", Symbol: "USDC"},
	}))

	assert.Error(t, validateAssetTable(AssetTable{
		"usdc": {FeedID: "aa00", Symbol: ""},
	}))

	// Feed id collisions are detected case-insensitively.
	assert.Error(t, validateAssetTable(AssetTable{
		"usdc": {FeedID: "AA00", Symbol: "USDC"},
		"dai":  {FeedID: "aa00", Symbol: "DAI"},
	}))

	assert.NoError(t, validateAssetTable(AssetTable{
		"usdc": {FeedID: "aa00", Symbol: "USDC"},
		"dai":  {FeedID: "bb11", Symbol: "DAI"},
	}))
}
