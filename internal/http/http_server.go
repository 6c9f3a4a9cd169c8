package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/memecoin2016/meme-desk/internal/campaign"
	"github.com/memecoin2016/meme-desk/internal/clock"
	"github.com/memecoin2016/meme-desk/internal/db"
	"github.com/memecoin2016/meme-desk/internal/deeplink"
	"github.com/memecoin2016/meme-desk/internal/eligibility"
	"github.com/memecoin2016/meme-desk/internal/gallery"
	"github.com/memecoin2016/meme-desk/internal/tx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Orchestrator is the subset of *tx.Orchestrator the action routes drive.
type Orchestrator interface {
	Simulate(ctx context.Context, key string, call tx.Call, gate func() bool) (tx.State, error)
	Submit(ctx context.Context, key string, call tx.Call, inv tx.Settlement) (tx.State, error)
	Snapshot(key string) tx.State
	Snapshots() []tx.State
	Cancel(key string)
	// From is the server wallet every action is sent from.
	From() common.Address
}

// Journal is satisfied by *db.Journal.
type Journal interface {
	List(action string, limit int) ([]db.TxRecord, error)
}

// Campaigns are the views the API serves; nil views answer 404.
type Campaigns struct {
	Airdrop     *campaign.Airdrop
	Faucet      *campaign.Faucet
	PrivateSale *campaign.Sale
	PublicSale  *campaign.Sale
	ClaimV2     *campaign.ClaimV2
	ArtDrop     *campaign.ArtDrop
}

type Options struct {
	Port      string
	JWTSecret []byte
	RateLimit rate.Limit
	RateBurst int
}

type HTTPServer struct {
	campaigns Campaigns
	resolver  *eligibility.Resolver
	orch      Orchestrator
	journal   Journal
	countdown *clock.Countdown
	catalog   *gallery.Catalog
	desktop   *deeplink.Desktop
	limiter   *RateLimiter
	opts      Options

	// retry loops started by simulate outlive the request; they stop with this context
	baseCtx context.Context
	engine  *gin.Engine
}

func NewHTTPServer(campaigns Campaigns, resolver *eligibility.Resolver, orch Orchestrator,
	journal Journal, countdown *clock.Countdown, catalog *gallery.Catalog, desktop *deeplink.Desktop, opts Options) *HTTPServer {
	if opts.RateLimit == 0 {
		opts.RateLimit = 2
	}
	if opts.RateBurst == 0 {
		opts.RateBurst = 5
	}
	if catalog == nil {
		catalog = gallery.Season1()
	}
	if desktop == nil {
		desktop = deeplink.NewDesktop()
	}
	hs := &HTTPServer{
		campaigns: campaigns,
		resolver:  resolver,
		orch:      orch,
		journal:   journal,
		countdown: countdown,
		catalog:   catalog,
		desktop:   desktop,
		limiter:   NewRateLimiter(opts.RateLimit, opts.RateBurst),
		opts:      opts,
		baseCtx:   context.Background(),
	}
	hs.engine = hs.routes()
	return hs
}

func (hs *HTTPServer) Handler() http.Handler {
	return hs.engine
}

func (hs *HTTPServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	for _, path := range deeplink.LegacyPaths() {
		target, _ := deeplink.Redirect(path)
		r.GET(path, redirectTo(target))
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.GET("/health", hs.handleHealth)
	v1.GET("/eligibility", hs.handleEligibility)
	v1.GET("/airdrop/rounds", hs.handleAirdropRounds)
	v1.GET("/airdrop/rounds/:round", hs.handleAirdropStatus)
	v1.GET("/faucet", hs.handleFaucetStatus)
	v1.GET("/sales/:name", hs.handleSaleStatus)
	v1.GET("/claim", hs.handleClaimV2Status)
	v1.GET("/artdrop/:id", hs.handleArtDropStatus)
	v1.GET("/gallery", hs.handleGallery)
	v1.GET("/gallery/:id", hs.handleArtwork)
	v1.GET("/countdown", hs.handleCountdown)
	v1.GET("/deeplink", hs.handleDeepLink)
	v1.GET("/desktop", hs.handleDesktop)
	v1.POST("/desktop/views/:view", hs.handleOpenView)
	v1.DELETE("/desktop/views/:view", hs.handleCloseView)
	v1.DELETE("/desktop/items/:item", hs.handleRemoveItem)
	v1.GET("/journal", hs.handleJournal)

	actions := v1.Group("/actions", AuthMiddleware(hs.opts.JWTSecret))
	actions.GET("", hs.handleActionList)
	actions.GET("/state", hs.handleActionState)
	actions.DELETE("/state", hs.handleActionCancel)
	actions.POST("/:kind/simulate", RateLimitMiddleware(hs.limiter), hs.handleSimulate)
	actions.POST("/:kind/submit", RateLimitMiddleware(hs.limiter), hs.handleSubmit)
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("HTTP request")
	}
}

func redirectTo(target string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Redirect(http.StatusFound, target)
	}
}

// Start serves until ctx is done, then drains in-flight requests.
func (hs *HTTPServer) Start(ctx context.Context) {
	hs.baseCtx = ctx
	srv := &http.Server{
		Addr:              ":" + hs.opts.Port,
		Handler:           hs.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		pruneTicker := time.NewTicker(time.Minute)
		defer pruneTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Warnf("HTTP server shutdown: %v", err)
				}
				return
			case <-pruneTicker.C:
				hs.limiter.Prune()
			}
		}
	}()

	log.Infof("HTTP server is running on port %s", hs.opts.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start HTTP server: %v", err)
	}
	log.Info("HTTP server stopped.")
}

func (hs *HTTPServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": gin.H{"now": hs.now().Unix()}})
}

func (hs *HTTPServer) now() time.Time {
	if hs.countdown == nil {
		return time.Now()
	}
	return hs.countdown.Now()
}
