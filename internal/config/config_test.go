package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestInitConfigDefaults(t *testing.T) {
	InitConfig()

	assert.Equal(t, "8080", AppConfig.HTTPPort)
	assert.Equal(t, int64(1), AppConfig.EthChainId.Int64())
	assert.Equal(t, 12*time.Second, AppConfig.ReadCacheTTL)
	assert.Equal(t, 750*time.Millisecond, AppConfig.SimRetryInterval)
	assert.Equal(t, "100000000000000000", AppConfig.PrivateSaleMaxWei.String())
	assert.Equal(t, "50000000000000000", AppConfig.PublicSaleMaxWei.String())
	assert.Equal(t, uint64(103560), AppConfig.SaleTotalTokens)
	assert.Equal(t, "proofs_22849225.json", AppConfig.WhitelistFiles["airdrop-0"])
	assert.Len(t, AppConfig.WhitelistFiles, 4)
	assert.False(t, HasContract(AppConfig.AirdropContract))
	assert.True(t, HasContract(AppConfig.MemeTokenContract))
	assert.Equal(t, 30*time.Minute, AppConfig.TxConfirmWait)
}

func TestInitConfigFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("AIRDROP_CONTRACT", "0x00000000000000000000000000000000000A1d70")
	t.Setenv("SIM_RETRY_INTERVAL", "5s")
	t.Setenv("PUBLIC_SALE_MAX_ETH", "0.25")
	t.Setenv("WHITELIST_FILES", "airdrop-0=a.json, broken ,presale = p.json")
	InitConfig()

	assert.Equal(t, "9090", AppConfig.HTTPPort)
	assert.Equal(t, common.HexToAddress("0xa1d70"), AppConfig.AirdropContract)
	assert.Equal(t, time.Second, AppConfig.SimRetryInterval, "clamped to the retry ceiling")
	assert.Equal(t, "250000000000000000", AppConfig.PublicSaleMaxWei.String())
	assert.Equal(t, map[string]string{"airdrop-0": "a.json", "presale": "p.json"}, AppConfig.WhitelistFiles)
}

func TestSimRetryIntervalFloor(t *testing.T) {
	t.Setenv("SIM_RETRY_INTERVAL", "10ms")
	InitConfig()
	assert.Equal(t, 500*time.Millisecond, AppConfig.SimRetryInterval)
}
