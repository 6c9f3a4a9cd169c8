package campaign

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/memecoin2016/meme-desk/internal/chain"
	"github.com/memecoin2016/meme-desk/internal/clock"
	"github.com/memecoin2016/meme-desk/internal/eligibility"
	"github.com/memecoin2016/meme-desk/internal/proof"
	"github.com/memecoin2016/meme-desk/internal/tx"
)

type ClaimV2Status struct {
	HasContract  bool               `json:"hasContract"`
	Paused       *bool              `json:"paused,omitempty"`
	OpensAt      int64              `json:"opensAt"`
	Open         bool               `json:"open"`
	BeforeOpen   bool               `json:"beforeOpen"`
	OpensIn      string             `json:"opensIn"`
	Headline     string             `json:"headline"`
	Caller       *common.Address    `json:"caller,omitempty"`
	Beneficiary  *common.Address    `json:"beneficiary,omitempty"`
	Eligibility  eligibility.Status `json:"eligibility,omitempty"`
	Message      string             `json:"message,omitempty"`
	Delegate     bool               `json:"delegate"`
	Claimed      *bool              `json:"claimed,omitempty"`
	DelegateUsed *bool              `json:"delegateUsed,omitempty"`
	Claim        Button             `json:"claim"`
}

// ClaimV2 is the second airdrop: a merkle claim any wallet may submit once on behalf of a
// whitelisted beneficiary.
type ClaimV2 struct {
	env         Env
	contract    chain.Contract
	earlyBuffer time.Duration
}

func NewClaimV2(env Env, contract chain.Contract, earlyBuffer time.Duration) *ClaimV2 {
	return &ClaimV2{env: env, contract: contract, earlyBuffer: earlyBuffer}
}

// claimKey names one logical claim: who submits it and for whom.
func (c *ClaimV2) claimKey(caller, beneficiary common.Address) string {
	return actionKey(proof.RoundClaimV2, "claim", accountKey(caller), accountKey(beneficiary))
}

func (c *ClaimV2) window(ctx context.Context) (clock.Window, *bool) {
	paused := c.env.readBool(ctx, c.contract, "paused")
	w := clock.Window{Paused: !isFalse(paused), EarlyBuffer: c.earlyBuffer}
	if opensAt := c.env.readUint64(ctx, c.contract, "claimOpensAt"); opensAt != nil {
		w.OpensAt = int64(*opensAt)
	}
	return w, paused
}

func claimBeneficiary(caller *common.Address, text string) string {
	if strings.TrimSpace(text) != "" {
		return text
	}
	if caller == nil {
		return ""
	}
	return caller.Hex()
}

func (c *ClaimV2) Status(ctx context.Context, caller *common.Address, beneficiary string) ClaimV2Status {
	now := c.env.now()
	st := ClaimV2Status{HasContract: hasContract(c.contract), Caller: caller, Headline: "Claim Closed"}
	if !st.HasContract {
		st.Claim = Button{Label: "Closed"}
		return st
	}

	w, paused := c.window(ctx)
	st.Paused = paused
	st.OpensAt = w.OpensAt
	st.Open = w.IsOpen(now)
	st.BeforeOpen = w.IsBeforeOpen(now)
	st.OpensIn = w.OpensIn(now)
	switch {
	case st.Open:
		st.Headline = "Claim Open"
	case isTrue(paused):
		st.Headline = "Claim Paused"
	case st.BeforeOpen:
		st.Headline = "Claim Opens in " + st.OpensIn
	}

	eligible := false
	if text := claimBeneficiary(caller, beneficiary); text != "" {
		outcome := c.env.Resolver.Check(text, proof.RoundClaimV2)
		st.Eligibility = outcome.Status
		st.Message = outcome.Message()
		eligible = outcome.Eligible()
		if outcome.Status != eligibility.StatusInvalid {
			addr := outcome.Address
			st.Beneficiary = &addr
			st.Claimed = c.env.readBool(ctx, c.contract, "claimed", addr)
		}
	}
	if caller != nil {
		st.DelegateUsed = c.env.readBool(ctx, c.contract, "delegateUsed", *caller)
	}
	st.Delegate = caller != nil && st.Beneficiary != nil && *caller != *st.Beneficiary
	if isTrue(st.Claimed) || isTrue(st.DelegateUsed) {
		st.Message = ""
	}

	var b Button
	if caller != nil {
		beneficiary := *caller
		if st.Beneficiary != nil {
			beneficiary = *st.Beneficiary
		}
		b = c.env.button(c.claimKey(*caller, beneficiary))
	}
	switch {
	case b.pending():
		b.Label = LabelPending
	case caller == nil:
		b.Label = LabelConnectWallet
	case isTrue(st.Claimed):
		b.Label = LabelAlreadyClaim
	case isTrue(st.DelegateUsed):
		b.Label = "Delegate Slot Used"
	case isTrue(paused):
		b.Label = "Paused"
	case st.BeforeOpen:
		b.Label = "Starts Soon"
	case !eligible:
		b.Label = "Not Eligible"
	case st.Delegate:
		b.Label = "Delegate Claim"
	default:
		b.Label = LabelClaim
	}
	b.Enabled = caller != nil && st.Open && eligible &&
		isFalse(st.Claimed) && isFalse(st.DelegateUsed) && !b.blocked()
	st.Claim = b
	return st
}

func (c *ClaimV2) ClaimAction(ctx context.Context, caller common.Address, beneficiary string) (Action, error) {
	if !hasContract(c.contract) {
		return Action{}, ErrNoContract
	}
	addr, err := eligibility.ResolveAddress(claimBeneficiary(&caller, beneficiary))
	if err != nil {
		return Action{}, err
	}
	p := c.env.Resolver.Proof(addr, proof.RoundClaimV2)
	if len(p) == 0 {
		return Action{}, ErrNotEligible
	}
	w, _ := c.window(ctx)
	return Action{
		Key:  c.claimKey(caller, addr),
		Call: tx.NewCall(c.contract, "claim", nil, addr, p.Bytes32()),
		Settlement: tx.Settlement{Keys: []chain.Key{
			c.contract.Key("claimed", addr),
			c.contract.Key("delegateUsed", caller),
		}},
		Gate: func() bool { return w.IsOpen(c.env.now()) },
	}, nil
}
