package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/memecoin2016/meme-desk/internal/campaign"
	"github.com/memecoin2016/meme-desk/internal/deeplink"
	"github.com/memecoin2016/meme-desk/internal/eligibility"
	"github.com/memecoin2016/meme-desk/internal/proof"
	"github.com/memecoin2016/meme-desk/internal/tx"
	"github.com/memecoin2016/meme-desk/internal/types"
)

var errNotFound = errors.New("not found")

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": data})
}

func fail(c *gin.Context, err error) {
	c.JSON(errorStatus(err), gin.H{"status": "error", "error": err.Error()})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, eligibility.ErrMalformedAddress),
		errors.Is(err, campaign.ErrNotEligible),
		errors.Is(err, campaign.ErrInvalidAmount),
		errors.Is(err, campaign.ErrNotConnected):
		return http.StatusBadRequest
	case errors.Is(err, tx.ErrSettled),
		errors.Is(err, tx.ErrPending),
		errors.Is(err, tx.ErrUnconfirmed),
		errors.Is(err, tx.ErrNotSimulated),
		errors.Is(err, tx.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, tx.ErrSimulation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, campaign.ErrNoContract), errors.Is(err, tx.ErrNoWallet):
		return http.StatusServiceUnavailable
	case errors.Is(err, tx.ErrSubmit):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// optionalAddress reads an address query parameter; absent means not connected.
func optionalAddress(c *gin.Context, name string) (*common.Address, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	addr, err := eligibility.ResolveAddress(raw)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

func uintParam(c *gin.Context, name string) (uint64, error) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, errNotFound
	}
	return n, nil
}

func (hs *HTTPServer) handleEligibility(c *gin.Context) {
	round := c.DefaultQuery("round", proof.AirdropRound(0))
	outcome := hs.resolver.Check(c.Query("address"), round)
	ok(c, gin.H{
		"round":    round,
		"status":   outcome.Status,
		"eligible": outcome.Eligible(),
		"address":  outcome.Address,
		"proof":    outcome.Proof,
		"message":  outcome.Message(),
	})
}

func (hs *HTTPServer) handleAirdropRounds(c *gin.Context) {
	if hs.campaigns.Airdrop == nil {
		fail(c, errNotFound)
		return
	}
	count, err := hs.campaigns.Airdrop.RoundsCount(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"count": count})
}

func (hs *HTTPServer) handleAirdropStatus(c *gin.Context) {
	if hs.campaigns.Airdrop == nil {
		fail(c, errNotFound)
		return
	}
	round, err := uintParam(c, "round")
	if err != nil {
		fail(c, err)
		return
	}
	account, err := optionalAddress(c, "account")
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, hs.campaigns.Airdrop.Status(c.Request.Context(), round, account))
}

func (hs *HTTPServer) handleFaucetStatus(c *gin.Context) {
	if hs.campaigns.Faucet == nil {
		fail(c, errNotFound)
		return
	}
	account, err := optionalAddress(c, "account")
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, hs.campaigns.Faucet.Status(c.Request.Context(), account))
}

func (hs *HTTPServer) sale(name string) *campaign.Sale {
	for _, s := range []*campaign.Sale{hs.campaigns.PrivateSale, hs.campaigns.PublicSale} {
		if s != nil && s.Config().Name == name {
			return s
		}
	}
	return nil
}

func (hs *HTTPServer) handleSaleStatus(c *gin.Context) {
	s := hs.sale(c.Param("name"))
	if s == nil {
		fail(c, errNotFound)
		return
	}
	caller, err := optionalAddress(c, "account")
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, s.Status(c.Request.Context(), campaign.SaleRequest{
		Caller:      caller,
		Beneficiary: c.Query("beneficiary"),
		Amount:      c.Query("amount"),
	}))
}

func (hs *HTTPServer) handleClaimV2Status(c *gin.Context) {
	if hs.campaigns.ClaimV2 == nil {
		fail(c, errNotFound)
		return
	}
	caller, err := optionalAddress(c, "account")
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, hs.campaigns.ClaimV2.Status(c.Request.Context(), caller, c.Query("beneficiary")))
}

func (hs *HTTPServer) handleArtDropStatus(c *gin.Context) {
	if hs.campaigns.ArtDrop == nil {
		fail(c, errNotFound)
		return
	}
	id, err := uintParam(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	caller, err := optionalAddress(c, "account")
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, hs.campaigns.ArtDrop.Status(c.Request.Context(), id, caller, c.DefaultQuery("amount", "1")))
}

func (hs *HTTPServer) handleGallery(c *gin.Context) {
	ok(c, hs.catalog.List())
}

func (hs *HTTPServer) handleArtwork(c *gin.Context) {
	id, err := uintParam(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	art, found := hs.catalog.Get(id)
	if !found {
		fail(c, errNotFound)
		return
	}
	ok(c, art)
}

// handleCountdown streams one server-sent event per clock tick. With until=<unix seconds>
// each event also carries the remaining time.
func (hs *HTTPServer) handleCountdown(c *gin.Context) {
	if hs.countdown == nil {
		fail(c, errNotFound)
		return
	}
	var until int64
	if raw := c.Query("until"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "until must be unix seconds"})
			return
		}
		until = n
	}

	ticks, cancel := hs.countdown.Subscribe()
	defer cancel()
	c.Stream(func(io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case t, open := <-ticks:
			if !open {
				return false
			}
			ev := gin.H{"now": t.Unix()}
			if until > 0 {
				left := max(until-t.Unix(), 0)
				ev["remaining"] = left
				ev["countdown"] = types.FormatCountdown(time.Duration(left) * time.Second)
			}
			c.SSEvent("tick", ev)
			return true
		}
	})
}

func (hs *HTTPServer) handleDeepLink(c *gin.Context) {
	link, err := deeplink.Resolve(c.Query("url"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}
	ok(c, link)
}

func (hs *HTTPServer) handleDesktop(c *gin.Context) {
	ok(c, gin.H{"open": hs.desktop.OpenViews(), "items": hs.desktop.Items()})
}

func (hs *HTTPServer) handleOpenView(c *gin.Context) {
	n, found := hs.desktop.Open(c.Param("view"))
	if !found {
		fail(c, errNotFound)
		return
	}
	ok(c, gin.H{"open": hs.desktop.OpenViews(), "stack": n})
}

func (hs *HTTPServer) handleCloseView(c *gin.Context) {
	hs.desktop.Close(c.Param("view"))
	ok(c, gin.H{"open": hs.desktop.OpenViews()})
}

func (hs *HTTPServer) handleRemoveItem(c *gin.Context) {
	item := c.Param("item")
	if _, known := hs.desktop.Items()[item]; !known {
		fail(c, errNotFound)
		return
	}
	hs.desktop.RemoveItem(item)
	ok(c, gin.H{"items": hs.desktop.Items()})
}

func (hs *HTTPServer) handleJournal(c *gin.Context) {
	if hs.journal == nil {
		fail(c, errNotFound)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	records, err := hs.journal.List(c.Query("action"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, records)
}
