package main

import (
	"context"
	"math/big"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/memecoin2016/meme-desk/internal/campaign"
	"github.com/memecoin2016/meme-desk/internal/chain"
	"github.com/memecoin2016/meme-desk/internal/chain/abis"
	"github.com/memecoin2016/meme-desk/internal/clock"
	"github.com/memecoin2016/meme-desk/internal/config"
	"github.com/memecoin2016/meme-desk/internal/db"
	"github.com/memecoin2016/meme-desk/internal/deeplink"
	"github.com/memecoin2016/meme-desk/internal/eligibility"
	"github.com/memecoin2016/meme-desk/internal/gallery"
	"github.com/memecoin2016/meme-desk/internal/http"
	"github.com/memecoin2016/meme-desk/internal/proof"
	"github.com/memecoin2016/meme-desk/internal/state"
	"github.com/memecoin2016/meme-desk/internal/tx"
	"github.com/memecoin2016/meme-desk/internal/types"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type Application struct {
	DatabaseManager *db.DatabaseManager
	EventBus        *state.EventBus
	Registry        *proof.Registry
	Reader          *chain.Reader
	Countdown       *clock.Countdown
	Orchestrator    *tx.Orchestrator
	Journal         *db.Journal
	Airdrop         *campaign.Airdrop
	HTTPServer      *http.HTTPServer
}

func NewApplication() *Application {
	config.InitConfig()
	cfg := config.AppConfig

	ethClient, err := chain.DialEthClient()
	if err != nil {
		log.Fatalf("Failed to dial eth client: %v", err)
	}

	registry, err := proof.LoadRegistry(cfg.WhitelistDir, cfg.WhitelistFiles)
	if err != nil {
		log.Fatalf("Failed to load whitelists: %v", err)
	}

	realClock := clockwork.NewRealClock()
	countdown := clock.NewCountdown(realClock)
	reader := chain.NewReader(ethClient, realClock, cfg.ReadCacheTTL, cfg.RPCTimeout)
	bus := state.NewEventBus()

	var sender tx.Sender
	if cfg.WalletPriKey != "" {
		key, err := types.PrivateKeyFromHex(cfg.WalletPriKey)
		if err != nil {
			log.Fatalf("Failed to parse wallet private key: %v", err)
		}
		wallet := tx.NewWallet(ethClient, key, cfg.EthChainId, cfg.TxTipWei, cfg.TxSubmitRetry)
		log.Infof("Actions are sent from %s", wallet.Address().Hex())
		sender = wallet
	} else {
		log.Warn("WALLET_PRIVATE_KEY not set, actions are read-only")
	}
	orch := tx.NewOrchestrator(ethClient, sender, reader, bus, realClock, cfg.SimRetryInterval)
	orch.SetConfirmWait(cfg.TxConfirmWait)

	resolver := eligibility.NewResolver(registry)
	env := campaign.Env{Reader: reader, Actions: orch, Now: countdown.Now, Resolver: resolver}
	catalog := gallery.Season1()

	airdrop := campaign.NewAirdrop(env, chain.Contract{Address: cfg.AirdropContract, ABI: abis.AirdropABI})
	campaigns := http.Campaigns{
		Airdrop: airdrop,
		Faucet:  campaign.NewFaucet(env, chain.Contract{Address: cfg.FaucetContract, ABI: abis.FaucetABI}),
		PrivateSale: campaign.NewSale(env, campaign.SaleConfig{
			Name:           deeplink.ViewPresale,
			Title:          "Private Sale",
			Contract:       chain.Contract{Address: cfg.PrivateSaleContract, ABI: abis.PrivateSaleABI},
			WhitelistRound: proof.RoundPresale,
			PresetOpensAt:  cfg.PrivateSaleOpensAt,
			MaxWei:         cfg.PrivateSaleMaxWei,
			WeiPerToken:    cfg.SaleWeiPerToken,
			TotalTokens:    cfg.SaleTotalTokens,
			EarlyBuffer:    cfg.SaleEarlyBuffer,
		}),
		PublicSale: campaign.NewSale(env, campaign.SaleConfig{
			Name:          deeplink.ViewPublicSale,
			Title:         "Public Sale",
			Contract:      chain.Contract{Address: cfg.PublicSaleContract, ABI: abis.PublicSaleABI},
			PresetOpensAt: cfg.PublicSaleOpensAt,
			MaxWei:        cfg.PublicSaleMaxWei,
			WeiPerToken:   cfg.SaleWeiPerToken,
			TotalTokens:   cfg.SaleTotalTokens,
			EarlyBuffer:   cfg.SaleEarlyBuffer,
		}),
		ClaimV2: campaign.NewClaimV2(env, chain.Contract{Address: cfg.ClaimV2Contract, ABI: abis.ClaimV2ABI}, cfg.SaleEarlyBuffer),
		ArtDrop: campaign.NewArtDrop(env, campaign.ArtDropConfig{
			Contract:        chain.Contract{Address: cfg.ArtDropContract, ABI: abis.ArtDropABI},
			Art:             chain.Contract{Address: cfg.MemeArtContract, ABI: abis.ERC1155ABI},
			Token:           chain.Contract{Address: cfg.MemeTokenContract, ABI: abis.ERC20ABI},
			EditionSize:     cfg.ArtEditionSize,
			DiscountBps:     cfg.ArtHolderDiscountBps,
			HolderThreshold: new(big.Int).Mul(cfg.ArtHolderThreshold, big.NewInt(1e18)),
			Catalog:         catalog,
		}),
	}

	dbm := db.NewDatabaseManager()
	journal := db.NewJournal(dbm, bus)
	httpServer := http.NewHTTPServer(campaigns, resolver, orch, journal, countdown, catalog, deeplink.NewDesktop(), http.Options{
		Port:      cfg.HTTPPort,
		JWTSecret: []byte(cfg.APIJwtSecret),
		RateLimit: rate.Limit(cfg.APIRateLimit),
		RateBurst: cfg.APIRateBurst,
	})

	return &Application{
		DatabaseManager: dbm,
		EventBus:        bus,
		Registry:        registry,
		Reader:          reader,
		Countdown:       countdown,
		Orchestrator:    orch,
		Journal:         journal,
		Airdrop:         airdrop,
		HTTPServer:      httpServer,
	}
}

// verifyWhitelists checks each airdrop round dataset against the root the contract holds.
// A mismatch is logged, never fatal: the contract rejects bad proofs on its own.
func (app *Application) verifyWhitelists(ctx context.Context) {
	if !config.HasContract(app.Airdrop.Contract().Address) {
		return
	}
	count, err := app.Airdrop.RoundsCount(ctx)
	if err != nil {
		log.Warnf("Skip whitelist verification, rounds unavailable: %v", err)
		return
	}
	for id := uint64(0); id < count; id++ {
		round, err := app.Airdrop.Round(ctx, id)
		if err != nil {
			log.Warnf("Skip whitelist verification of round %d: %v", id, err)
			continue
		}
		checked, mismatched := app.Registry.VerifyAgainstRoot(proof.AirdropRound(id), round.MerkleRoot)
		fields := log.Fields{"round": id, "checked": checked, "mismatched": mismatched, "root": round.MerkleRoot.Hex()}
		if mismatched > 0 {
			log.WithFields(fields).Warn("Whitelist dataset does not match the on-chain merkle root")
			continue
		}
		log.WithFields(fields).Info("Whitelist dataset verified")
	}
}

func (app *Application) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.Journal.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.HTTPServer.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.verifyWhitelists(ctx)
	}()

	<-stop
	log.Info("Receiving exit signal...")

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := app.Orchestrator.Close(closeCtx); err != nil {
		log.Warnf("Pending transactions still unconfirmed at shutdown: %v", err)
	}
	cancel()

	wg.Wait()
	if err := app.DatabaseManager.Close(); err != nil {
		log.Warnf("Failed to close database: %v", err)
	}
	log.Info("Server stopped")
}

func main() {
	app := NewApplication()
	app.Run()
}
