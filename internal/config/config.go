package config

import (
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var AppConfig Config

func InitConfig() {
	// .env is optional, real environment wins
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Default config
	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DB_DIR", "/app/db")
	viper.SetDefault("ETH_RPC", "http://localhost:8545")
	viper.SetDefault("ETH_JWT_SECRET", "")
	viper.SetDefault("ETH_CHAIN_ID", "1")
	viper.SetDefault("WALLET_PRIVATE_KEY", "")
	viper.SetDefault("AIRDROP_CONTRACT", "")
	viper.SetDefault("FAUCET_CONTRACT", "")
	viper.SetDefault("PRIVATE_SALE_CONTRACT", "")
	viper.SetDefault("PUBLIC_SALE_CONTRACT", "")
	viper.SetDefault("CLAIM_V2_CONTRACT", "")
	viper.SetDefault("ART_DROP_CONTRACT", "")
	viper.SetDefault("MEME_ART_CONTRACT", "")
	viper.SetDefault("MEME_TOKEN_CONTRACT", "0x84965cf265d75478abd7c6aa45e1b80b5d5e38cf")
	viper.SetDefault("WHITELIST_DIR", "/app/whitelists")
	viper.SetDefault("WHITELIST_FILES", "airdrop-0=proofs_22849225.json,airdrop-1=proofs_round2.json,presale=proofs_presale.json,claim-v2=proofs_claim_v2.json")
	viper.SetDefault("READ_CACHE_TTL", "12s")
	viper.SetDefault("RPC_TIMEOUT", "15s")
	viper.SetDefault("SIM_RETRY_INTERVAL", "750ms")
	viper.SetDefault("SALE_EARLY_BUFFER", "5s")
	viper.SetDefault("TX_SUBMIT_RETRY", 3)
	viper.SetDefault("TX_TIP_WEI", "1000000000")
	viper.SetDefault("API_RATE_LIMIT", 2)
	viper.SetDefault("API_RATE_BURST", 5)
	viper.SetDefault("API_JWT_SECRET", "")
	viper.SetDefault("TX_CONFIRM_WAIT", "30m")
	viper.SetDefault("PRIVATE_SALE_OPENS_AT", 1754582400)
	viper.SetDefault("PUBLIC_SALE_OPENS_AT", 1754586000)
	viper.SetDefault("PRIVATE_SALE_MAX_ETH", "0.1")
	viper.SetDefault("PUBLIC_SALE_MAX_ETH", "0.05")
	viper.SetDefault("SALE_WEI_PER_TOKEN", "28968713789107")
	viper.SetDefault("SALE_TOTAL_TOKENS", 103560)
	viper.SetDefault("ART_EDITION_SIZE", 100)
	viper.SetDefault("ART_HOLDER_DISCOUNT_BPS", 2000)
	viper.SetDefault("ART_HOLDER_THRESHOLD", 100)

	logLevel, err := logrus.ParseLevel(strings.ToLower(viper.GetString("LOG_LEVEL")))
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}

	chainId, err := strconv.ParseInt(viper.GetString("ETH_CHAIN_ID"), 10, 64)
	if err != nil {
		logrus.Fatalf("Failed to parse eth chain id: %v", err)
	}

	weiPerToken, ok := new(big.Int).SetString(viper.GetString("SALE_WEI_PER_TOKEN"), 10)
	if !ok || weiPerToken.Sign() <= 0 {
		logrus.Fatalf("Invalid SALE_WEI_PER_TOKEN: %s", viper.GetString("SALE_WEI_PER_TOKEN"))
	}

	tipWei, ok := new(big.Int).SetString(viper.GetString("TX_TIP_WEI"), 10)
	if !ok {
		logrus.Fatalf("Invalid TX_TIP_WEI: %s", viper.GetString("TX_TIP_WEI"))
	}

	AppConfig = Config{
		HTTPPort:             viper.GetString("HTTP_PORT"),
		LogLevel:             logLevel,
		DbDir:                viper.GetString("DB_DIR"),
		EthRPC:               viper.GetString("ETH_RPC"),
		EthJwtSecret:         viper.GetString("ETH_JWT_SECRET"),
		EthChainId:           big.NewInt(chainId),
		WalletPriKey:         viper.GetString("WALLET_PRIVATE_KEY"),
		AirdropContract:      contractAddress("AIRDROP_CONTRACT"),
		FaucetContract:       contractAddress("FAUCET_CONTRACT"),
		PrivateSaleContract:  contractAddress("PRIVATE_SALE_CONTRACT"),
		PublicSaleContract:   contractAddress("PUBLIC_SALE_CONTRACT"),
		ClaimV2Contract:      contractAddress("CLAIM_V2_CONTRACT"),
		ArtDropContract:      contractAddress("ART_DROP_CONTRACT"),
		MemeArtContract:      contractAddress("MEME_ART_CONTRACT"),
		MemeTokenContract:    contractAddress("MEME_TOKEN_CONTRACT"),
		WhitelistDir:         viper.GetString("WHITELIST_DIR"),
		WhitelistFiles:       parseFileMap(viper.GetString("WHITELIST_FILES")),
		ReadCacheTTL:         viper.GetDuration("READ_CACHE_TTL"),
		RPCTimeout:           viper.GetDuration("RPC_TIMEOUT"),
		SimRetryInterval:     viper.GetDuration("SIM_RETRY_INTERVAL"),
		SaleEarlyBuffer:      viper.GetDuration("SALE_EARLY_BUFFER"),
		TxSubmitRetry:        viper.GetInt("TX_SUBMIT_RETRY"),
		TxTipWei:             tipWei,
		APIRateLimit:         viper.GetFloat64("API_RATE_LIMIT"),
		APIRateBurst:         viper.GetInt("API_RATE_BURST"),
		APIJwtSecret:         viper.GetString("API_JWT_SECRET"),
		TxConfirmWait:        viper.GetDuration("TX_CONFIRM_WAIT"),
		PrivateSaleOpensAt:   viper.GetInt64("PRIVATE_SALE_OPENS_AT"),
		PublicSaleOpensAt:    viper.GetInt64("PUBLIC_SALE_OPENS_AT"),
		PrivateSaleMaxWei:    etherToWei("PRIVATE_SALE_MAX_ETH"),
		PublicSaleMaxWei:     etherToWei("PUBLIC_SALE_MAX_ETH"),
		SaleWeiPerToken:      weiPerToken,
		SaleTotalTokens:      viper.GetUint64("SALE_TOTAL_TOKENS"),
		ArtEditionSize:       viper.GetUint64("ART_EDITION_SIZE"),
		ArtHolderDiscountBps: viper.GetUint64("ART_HOLDER_DISCOUNT_BPS"),
		ArtHolderThreshold:   big.NewInt(viper.GetInt64("ART_HOLDER_THRESHOLD")),
	}

	if AppConfig.SimRetryInterval < 500*time.Millisecond || AppConfig.SimRetryInterval > time.Second {
		logrus.Warnf("SIM_RETRY_INTERVAL %v out of range, clamped to [500ms, 1s]", AppConfig.SimRetryInterval)
		AppConfig.SimRetryInterval = min(max(AppConfig.SimRetryInterval, 500*time.Millisecond), time.Second)
	}

	logrus.Infof("Init config, EthRPC %s, ChainId %v, ReadCacheTTL %v, SimRetryInterval %v",
		AppConfig.EthRPC, AppConfig.EthChainId, AppConfig.ReadCacheTTL, AppConfig.SimRetryInterval)

	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(AppConfig.LogLevel)
}

// HasContract reports whether a configured address points at a deployed contract slot,
// i.e. it is set and not the zero address.
func HasContract(addr common.Address) bool {
	return addr != (common.Address{})
}

func contractAddress(key string) common.Address {
	v := strings.TrimSpace(viper.GetString(key))
	if v == "" {
		return common.Address{}
	}
	if !common.IsHexAddress(v) {
		logrus.Fatalf("Invalid contract address for %s: %s", key, v)
	}
	return common.HexToAddress(v)
}

// parseFileMap parses "round=file,round=file"
func parseFileMap(raw string) map[string]string {
	files := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		round, file, found := strings.Cut(pair, "=")
		if !found {
			logrus.Warnf("Ignore malformed whitelist mapping: %s", pair)
			continue
		}
		files[strings.TrimSpace(round)] = strings.TrimSpace(file)
	}
	return files
}

func etherToWei(key string) *big.Int {
	f, ok := new(big.Float).SetPrec(256).SetString(viper.GetString(key))
	if !ok || f.Sign() < 0 {
		logrus.Fatalf("Invalid ether amount for %s: %s", key, viper.GetString(key))
	}
	wei, _ := new(big.Float).Mul(f, new(big.Float).SetInt(big.NewInt(params.Ether))).Int(nil)
	return wei
}

type Config struct {
	HTTPPort             string
	LogLevel             logrus.Level
	DbDir                string
	EthRPC               string
	EthJwtSecret         string
	EthChainId           *big.Int
	WalletPriKey         string
	AirdropContract      common.Address
	FaucetContract       common.Address
	PrivateSaleContract  common.Address
	PublicSaleContract   common.Address
	ClaimV2Contract      common.Address
	ArtDropContract      common.Address
	MemeArtContract      common.Address
	MemeTokenContract    common.Address
	WhitelistDir         string
	WhitelistFiles       map[string]string
	ReadCacheTTL         time.Duration
	RPCTimeout           time.Duration
	SimRetryInterval     time.Duration
	SaleEarlyBuffer      time.Duration
	TxSubmitRetry        int
	TxTipWei             *big.Int
	APIRateLimit         float64
	APIRateBurst         int
	APIJwtSecret         string
	TxConfirmWait        time.Duration
	PrivateSaleOpensAt   int64
	PublicSaleOpensAt    int64
	PrivateSaleMaxWei    *big.Int
	PublicSaleMaxWei     *big.Int
	SaleWeiPerToken      *big.Int
	SaleTotalTokens      uint64
	ArtEditionSize       uint64
	ArtHolderDiscountBps uint64
	ArtHolderThreshold   *big.Int
}
