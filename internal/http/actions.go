package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/memecoin2016/meme-desk/internal/campaign"
	"github.com/memecoin2016/meme-desk/internal/tx"
	log "github.com/sirupsen/logrus"
)

const (
	KindAirdropRegister = "airdrop-register"
	KindAirdropClaim    = "airdrop-claim"
	KindFaucetClaim     = "faucet-claim"
	KindClaim           = "claim"
	KindArtDropBuy      = "artdrop-buy"
	// sales are addressed as "<sale name>-buy"
	saleBuySuffix = "-buy"
)

type ActionRequest struct {
	Round       uint64 `json:"round"`
	ID          uint64 `json:"id"`
	Beneficiary string `json:"beneficiary"`
	Amount      string `json:"amount"`
}

// buildAction prepares the call for kind, sent from the server wallet.
func (hs *HTTPServer) buildAction(ctx context.Context, kind string, req ActionRequest) (campaign.Action, error) {
	caller := hs.orch.From()
	if caller == (common.Address{}) {
		return campaign.Action{}, tx.ErrNoWallet
	}
	switch {
	case kind == KindAirdropRegister && hs.campaigns.Airdrop != nil:
		return hs.campaigns.Airdrop.RegisterAction(req.Round, caller)
	case kind == KindAirdropClaim && hs.campaigns.Airdrop != nil:
		return hs.campaigns.Airdrop.ClaimAction(req.Round, caller)
	case kind == KindFaucetClaim && hs.campaigns.Faucet != nil:
		return hs.campaigns.Faucet.ClaimAction(caller)
	case kind == KindClaim && hs.campaigns.ClaimV2 != nil:
		return hs.campaigns.ClaimV2.ClaimAction(ctx, caller, req.Beneficiary)
	case kind == KindArtDropBuy && hs.campaigns.ArtDrop != nil:
		return hs.campaigns.ArtDrop.BuyAction(ctx, caller, req.ID, req.Amount)
	case strings.HasSuffix(kind, saleBuySuffix):
		if s := hs.sale(strings.TrimSuffix(kind, saleBuySuffix)); s != nil {
			return s.BuyAction(ctx, caller, campaign.SaleRequest{
				Caller:      &caller,
				Beneficiary: req.Beneficiary,
				Amount:      req.Amount,
			})
		}
	}
	return campaign.Action{}, errNotFound
}

func (hs *HTTPServer) bindAction(c *gin.Context) (campaign.Action, bool) {
	var req ActionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
			return campaign.Action{}, false
		}
	}
	a, err := hs.buildAction(c.Request.Context(), c.Param("kind"), req)
	if err != nil {
		fail(c, err)
		return campaign.Action{}, false
	}
	return a, true
}

// respondState answers with the action state, and the error when there is one.
func respondState(c *gin.Context, st tx.State, err error) {
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"status": "error", "error": err.Error(), "data": st})
		return
	}
	ok(c, st)
}

func (hs *HTTPServer) handleSimulate(c *gin.Context) {
	a, bound := hs.bindAction(c)
	if !bound {
		return
	}
	st, err := hs.orch.Simulate(hs.baseCtx, a.Key, a.Call, a.Gate)
	if err != nil && !errors.Is(err, tx.ErrSimulation) {
		log.WithField("action", a.Key).Warnf("Simulate failed: %v", err)
	}
	respondState(c, st, err)
}

func (hs *HTTPServer) handleSubmit(c *gin.Context) {
	a, bound := hs.bindAction(c)
	if !bound {
		return
	}
	st, err := hs.orch.Submit(c.Request.Context(), a.Key, a.Call, a.Settlement)
	if err != nil {
		log.WithField("action", a.Key).Warnf("Submit failed: %v", err)
	}
	respondState(c, st, err)
}

func (hs *HTTPServer) handleActionList(c *gin.Context) {
	ok(c, hs.orch.Snapshots())
}

func (hs *HTTPServer) handleActionState(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		fail(c, errNotFound)
		return
	}
	ok(c, hs.orch.Snapshot(key))
}

func (hs *HTTPServer) handleActionCancel(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		fail(c, errNotFound)
		return
	}
	hs.orch.Cancel(key)
	ok(c, hs.orch.Snapshot(key))
}
