package campaign

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/memecoin2016/meme-desk/internal/chain"
	"github.com/memecoin2016/meme-desk/internal/clock"
	"github.com/memecoin2016/meme-desk/internal/eligibility"
	"github.com/memecoin2016/meme-desk/internal/tx"
	"github.com/memecoin2016/meme-desk/internal/types"
)

type SaleConfig struct {
	Name     string
	Title    string
	Contract chain.Contract
	// WhitelistRound selects the proof dataset; empty means an open sale with buy().
	WhitelistRound string
	// PresetOpensAt is shown as a countdown before the contract is deployed.
	PresetOpensAt int64
	MaxWei        *big.Int
	WeiPerToken   *big.Int
	TotalTokens   uint64
	EarlyBuffer   time.Duration
}

func (c SaleConfig) whitelisted() bool {
	return c.WhitelistRound != ""
}

// SaleRequest is the form state of a sale view.
type SaleRequest struct {
	Caller      *common.Address
	Beneficiary string
	Amount      string
}

type SaleStatus struct {
	Name         string             `json:"name"`
	HasContract  bool               `json:"hasContract"`
	Paused       *bool              `json:"paused,omitempty"`
	OpensAt      int64              `json:"opensAt"`
	Open         bool               `json:"open"`
	BeforeOpen   bool               `json:"beforeOpen"`
	OpensIn      string             `json:"opensIn"`
	Headline     string             `json:"headline"`
	TokensSold   *big.Int           `json:"tokensSold,omitempty"`
	TotalTokens  uint64             `json:"totalTokens"`
	SoldOut      bool               `json:"soldOut"`
	MaxWei       *big.Int           `json:"maxWei"`
	Caller       *common.Address    `json:"caller,omitempty"`
	Beneficiary  *common.Address    `json:"beneficiary,omitempty"`
	Eligibility  eligibility.Status `json:"eligibility,omitempty"`
	Message      string             `json:"message,omitempty"`
	Delegate     bool               `json:"delegate"`
	Purchased    *bool              `json:"purchased,omitempty"`
	DelegateUsed *bool              `json:"delegateUsed,omitempty"`
	Value        *big.Int           `json:"value,omitempty"`
	Tokens       *big.Int           `json:"tokens"`
	Buy          Button             `json:"buy"`
}

// Sale is a fixed-price token sale, whitelisted with delegate buys or open to everyone.
type Sale struct {
	env Env
	cfg SaleConfig
}

func NewSale(env Env, cfg SaleConfig) *Sale {
	return &Sale{env: env, cfg: cfg}
}

func (s *Sale) Config() SaleConfig {
	return s.cfg
}

// buyKey names one logical purchase: who pays and for whom.
func (s *Sale) buyKey(caller, beneficiary common.Address) string {
	return actionKey(s.cfg.Name, "buy", accountKey(caller), accountKey(beneficiary))
}

// window reads the sale schedule. Unknown paused state counts as paused.
func (s *Sale) window(ctx context.Context) (clock.Window, *bool) {
	if !hasContract(s.cfg.Contract) {
		return clock.Window{OpensAt: s.cfg.PresetOpensAt, Paused: true, EarlyBuffer: s.cfg.EarlyBuffer}, nil
	}
	paused := s.env.readBool(ctx, s.cfg.Contract, "paused")
	w := clock.Window{Paused: !isFalse(paused), EarlyBuffer: s.cfg.EarlyBuffer}
	if opensAt := s.env.readUint64(ctx, s.cfg.Contract, "saleOpensAt"); opensAt != nil {
		w.OpensAt = int64(*opensAt)
	}
	return w, paused
}

// beneficiary defaults to the caller; an open sale always buys for the caller.
func (s *Sale) beneficiary(req SaleRequest) string {
	if !s.cfg.whitelisted() || strings.TrimSpace(req.Beneficiary) == "" {
		if req.Caller == nil {
			return ""
		}
		return req.Caller.Hex()
	}
	return req.Beneficiary
}

func (s *Sale) amount(text string) (*big.Int, bool) {
	v, err := types.ParseEther(text)
	if err != nil || v.Sign() <= 0 {
		return nil, false
	}
	return v, s.cfg.MaxWei == nil || v.Cmp(s.cfg.MaxWei) <= 0
}

func (s *Sale) Status(ctx context.Context, req SaleRequest) SaleStatus {
	now := s.env.now()
	st := SaleStatus{
		Name:        s.cfg.Name,
		HasContract: hasContract(s.cfg.Contract),
		TotalTokens: s.cfg.TotalTokens,
		MaxWei:      s.cfg.MaxWei,
		Caller:      req.Caller,
		Tokens:      new(big.Int),
	}

	w, paused := s.window(ctx)
	st.Paused = paused
	st.OpensAt = w.OpensAt
	st.Open = st.HasContract && w.IsOpen(now)
	st.BeforeOpen = w.IsBeforeOpen(now)
	st.OpensIn = w.OpensIn(now)
	if st.HasContract {
		st.TokensSold = s.env.readBigInt(ctx, s.cfg.Contract, "tokensSold")
		st.SoldOut = st.TokensSold != nil && st.TokensSold.Cmp(new(big.Int).SetUint64(s.cfg.TotalTokens)) >= 0
	}
	st.Headline = s.headline(st)

	eligible := true
	if text := s.beneficiary(req); text != "" {
		if s.cfg.whitelisted() {
			outcome := s.env.Resolver.Check(text, s.cfg.WhitelistRound)
			st.Eligibility = outcome.Status
			st.Message = outcome.Message()
			eligible = outcome.Eligible()
			if outcome.Status != eligibility.StatusInvalid {
				addr := outcome.Address
				st.Beneficiary = &addr
			}
		} else if addr, err := eligibility.ResolveAddress(text); err == nil {
			st.Beneficiary = &addr
		}
	} else if s.cfg.whitelisted() {
		eligible = false
	}

	if st.HasContract && st.Beneficiary != nil {
		st.Purchased = s.env.readBool(ctx, s.cfg.Contract, "hasPurchased", *st.Beneficiary)
	}
	if st.HasContract && s.cfg.whitelisted() && req.Caller != nil {
		st.DelegateUsed = s.env.readBool(ctx, s.cfg.Contract, "delegateUsed", *req.Caller)
	}
	st.Delegate = req.Caller != nil && st.Beneficiary != nil && *req.Caller != *st.Beneficiary
	if isTrue(st.Purchased) || isTrue(st.DelegateUsed) {
		st.Message = ""
	}

	value, valueOk := s.amount(req.Amount)
	st.Value = value
	st.Tokens = types.TokensForWei(value, s.cfg.WeiPerToken)

	var b Button
	if req.Caller != nil {
		beneficiary := *req.Caller
		if st.Beneficiary != nil {
			beneficiary = *st.Beneficiary
		}
		b = s.env.button(s.buyKey(*req.Caller, beneficiary))
	}
	switch {
	case b.pending():
		b.Label = LabelPending
	case st.SoldOut:
		b.Label = "Sold Out"
	case req.Caller == nil:
		b.Label = LabelConnectWallet
	case isTrue(st.Purchased):
		b.Label = "Already Purchased"
	case isTrue(st.DelegateUsed):
		b.Label = "Delegate Slot Used"
	case st.BeforeOpen:
		b.Label = "Starts Soon"
	case !eligible:
		b.Label = "Not Eligible"
	case value == nil:
		b.Label = "Enter ETH Amount"
	case st.Delegate:
		b.Label = "Delegate Buy"
	default:
		b.Label = "Buy " + TokenSymbol
	}
	b.Enabled = st.HasContract &&
		req.Caller != nil &&
		st.Open &&
		eligible &&
		isFalse(st.Purchased) &&
		(!s.cfg.whitelisted() || isFalse(st.DelegateUsed)) &&
		valueOk &&
		st.TokensSold != nil && !st.SoldOut &&
		!b.blocked()
	st.Buy = b
	return st
}

func (s *Sale) headline(st SaleStatus) string {
	if !st.HasContract {
		if st.BeforeOpen {
			return "Round Opens in " + st.OpensIn
		}
		return "Round Closed"
	}
	switch {
	case st.SoldOut:
		return "Round Sold Out"
	case st.Open:
		return s.cfg.Title + " Open"
	case st.BeforeOpen:
		return s.cfg.Title + " Opens in " + st.OpensIn
	default:
		return s.cfg.Title + " Closed"
	}
}

// BuyAction prepares buy(beneficiary, proof) for a whitelisted sale or buy() for an open one.
func (s *Sale) BuyAction(ctx context.Context, caller common.Address, req SaleRequest) (Action, error) {
	if !hasContract(s.cfg.Contract) {
		return Action{}, ErrNoContract
	}
	req.Caller = &caller
	value, ok := s.amount(req.Amount)
	if !ok {
		return Action{}, ErrInvalidAmount
	}
	w, _ := s.window(ctx)
	gate := func() bool { return w.IsOpen(s.env.now()) }

	c := s.cfg.Contract
	if !s.cfg.whitelisted() {
		return Action{
			Key:  s.buyKey(caller, caller),
			Call: tx.NewCall(c, "buy", value),
			Settlement: tx.Settlement{Keys: []chain.Key{
				c.Key("hasPurchased", caller),
				c.Key("tokensSold"),
			}},
			Gate: gate,
		}, nil
	}

	beneficiary, err := eligibility.ResolveAddress(s.beneficiary(req))
	if err != nil {
		return Action{}, err
	}
	p := s.env.Resolver.Proof(beneficiary, s.cfg.WhitelistRound)
	if len(p) == 0 {
		return Action{}, ErrNotEligible
	}
	return Action{
		Key:  s.buyKey(caller, beneficiary),
		Call: tx.NewCall(c, "buy", value, beneficiary, p.Bytes32()),
		Settlement: tx.Settlement{Keys: []chain.Key{
			c.Key("hasPurchased", beneficiary),
			c.Key("tokensSold"),
			c.Key("delegateUsed", caller),
		}},
		Gate: gate,
	}, nil
}
