package campaign

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/memecoin2016/meme-desk/internal/chain"
	"github.com/memecoin2016/meme-desk/internal/clock"
	"github.com/memecoin2016/meme-desk/internal/proof"
	"github.com/memecoin2016/meme-desk/internal/tx"
)

// Round mirrors the airdrop contract's rounds(id) tuple.
type Round struct {
	ID              uint64      `json:"id"`
	RegEnds         int64       `json:"regEnds"`
	MerkleRoot      common.Hash `json:"merkleRoot"`
	Pool            *big.Int    `json:"pool"`
	SharePerWallet  *big.Int    `json:"sharePerWallet"`
	RegistrantCount uint64      `json:"registrantCount"`
	Closed          bool        `json:"closed"`
}

func (r Round) Registration() clock.Deadline {
	return clock.Deadline{EndsAt: r.RegEnds, Closed: r.Closed}
}

type AirdropStatus struct {
	Round            *Round          `json:"round"`
	RegistrationOpen bool            `json:"registrationOpen"`
	Headline         string          `json:"headline"`
	Account          *common.Address `json:"account,omitempty"`
	Eligible         bool            `json:"eligible"`
	Registered       *bool           `json:"registered,omitempty"`
	Claimed          *bool           `json:"claimed,omitempty"`
	Register         *Button         `json:"register,omitempty"`
	Claim            *Button         `json:"claim,omitempty"`
	Notes            []string        `json:"notes,omitempty"`
}

// Airdrop is the register-then-claim round view.
type Airdrop struct {
	env      Env
	contract chain.Contract
}

func NewAirdrop(env Env, contract chain.Contract) *Airdrop {
	return &Airdrop{env: env, contract: contract}
}

func (a *Airdrop) Contract() chain.Contract {
	return a.contract
}

func (a *Airdrop) RoundsCount(ctx context.Context) (uint64, error) {
	vs, err := a.env.Reader.Read(ctx, a.contract, "roundsCount")
	if err != nil {
		return 0, err
	}
	return vs.Uint64(0)
}

func (a *Airdrop) Round(ctx context.Context, id uint64) (Round, error) {
	vs, err := a.env.Reader.Read(ctx, a.contract, "rounds", new(big.Int).SetUint64(id))
	if err != nil {
		return Round{}, err
	}
	r := Round{ID: id}
	regEnds, err := vs.Uint64(0)
	if err != nil {
		return Round{}, err
	}
	r.RegEnds = int64(regEnds)
	if r.MerkleRoot, err = vs.Hash(1); err != nil {
		return Round{}, err
	}
	if r.Pool, err = vs.BigInt(2); err != nil {
		return Round{}, err
	}
	if r.SharePerWallet, err = vs.BigInt(3); err != nil {
		return Round{}, err
	}
	if r.RegistrantCount, err = vs.Uint64(4); err != nil {
		return Round{}, err
	}
	if r.Closed, err = vs.Bool(5); err != nil {
		return Round{}, err
	}
	return r, nil
}

func (a *Airdrop) registerKey(round uint64, account common.Address) string {
	return actionKey("airdrop", strconv.FormatUint(round, 10), "register", accountKey(account))
}

func (a *Airdrop) claimKey(round uint64, account common.Address) string {
	return actionKey("airdrop", strconv.FormatUint(round, 10), "claim", accountKey(account))
}

// Status computes the round view for account; a nil account is a disconnected visitor.
func (a *Airdrop) Status(ctx context.Context, round uint64, account *common.Address) AirdropStatus {
	now := a.env.now()
	st := AirdropStatus{Account: account, Headline: "Round closed"}

	r, err := a.Round(ctx, round)
	if err != nil {
		logReadError(a.contract, "rounds", err)
		st.Headline = "Loading…"
	} else {
		st.Round = &r
		st.RegistrationOpen = r.Registration().Active(now)
		if st.RegistrationOpen {
			st.Headline = "Registration ends in " + r.Registration().EndsIn(now)
		}
	}
	if account == nil || st.Round == nil {
		return st
	}

	roundArg := new(big.Int).SetUint64(round)
	st.Eligible = a.env.Resolver.IsEligible(*account, proof.AirdropRound(round))
	st.Registered = a.env.readBool(ctx, a.contract, "registered", roundArg, *account)
	st.Claimed = a.env.readBool(ctx, a.contract, "claimed", roundArg, *account)

	if st.RegistrationOpen {
		b := a.env.button(a.registerKey(round, *account))
		switch {
		case isTrue(st.Registered):
			b.Label = "Already Registered"
		case st.Eligible && b.pending():
			b.Label = LabelPending
		default:
			b.Label = "Register"
		}
		b.Enabled = isFalse(st.Registered) && st.Eligible && !b.blocked()
		st.Register = &b

		switch {
		case isTrue(st.Registered):
			st.Notes = append(st.Notes, "Waiting for the round to close...")
		case st.Eligible:
			st.Notes = append(st.Notes, "Your wallet is on the whitelist.")
		default:
			st.Notes = append(st.Notes, "Your wallet is NOT on the whitelist.")
		}
		return st
	}

	switch {
	case isTrue(st.Registered):
		st.Notes = append(st.Notes, "Round has ended. Claim your share!")
		b := a.env.button(a.claimKey(round, *account))
		switch {
		case isTrue(st.Claimed):
			b.Label = LabelAlreadyClaim
		case b.pending():
			b.Label = LabelPending
		default:
			b.Label = LabelClaim
		}
		b.Enabled = isFalse(st.Claimed) && !b.blocked()
		st.Claim = &b
		if !r.Closed && !isTrue(st.Claimed) {
			st.Notes = append(st.Notes, "Your claim will automatically close the round.")
		}
		if r.Closed {
			st.Notes = append(st.Notes, fmt.Sprintf("Share per wallet: %s %s", r.SharePerWallet, TokenSymbol))
		}
	case isFalse(st.Registered):
		st.Notes = append(st.Notes, "Round has ended.")
		if st.Eligible {
			st.Notes = append(st.Notes, "You didn’t register in time.")
		} else {
			st.Notes = append(st.Notes, "Your wallet was not on the whitelist.")
		}
	}
	return st
}

func (a *Airdrop) settlement(round uint64, account common.Address) tx.Settlement {
	roundArg := new(big.Int).SetUint64(round)
	return tx.Settlement{Keys: []chain.Key{
		a.contract.Key("rounds", roundArg),
		a.contract.Key("registered", roundArg, account),
		a.contract.Key("claimed", roundArg, account),
	}}
}

func (a *Airdrop) RegisterAction(round uint64, account common.Address) (Action, error) {
	if !hasContract(a.contract) {
		return Action{}, ErrNoContract
	}
	p := a.env.Resolver.Proof(account, proof.AirdropRound(round))
	if len(p) == 0 {
		return Action{}, ErrNotEligible
	}
	return Action{
		Key:        a.registerKey(round, account),
		Call:       tx.NewCall(a.contract, "register", nil, new(big.Int).SetUint64(round), p.Bytes32()),
		Settlement: a.settlement(round, account),
	}, nil
}

func (a *Airdrop) ClaimAction(round uint64, account common.Address) (Action, error) {
	if !hasContract(a.contract) {
		return Action{}, ErrNoContract
	}
	return Action{
		Key:        a.claimKey(round, account),
		Call:       tx.NewCall(a.contract, "claim", nil, new(big.Int).SetUint64(round)),
		Settlement: a.settlement(round, account),
	}, nil
}

type FaucetStatus struct {
	Open             *bool           `json:"open,omitempty"`
	LimitPerWallet   *big.Int        `json:"limitPerWallet,omitempty"`
	AvailableBalance *big.Int        `json:"availableBalance,omitempty"`
	Funded           bool            `json:"funded"`
	Headline         string          `json:"headline"`
	Account          *common.Address `json:"account,omitempty"`
	Claimed          *bool           `json:"claimed,omitempty"`
	Claim            Button          `json:"claim"`
}

// Faucet is the fixed-amount, once-per-wallet token faucet.
type Faucet struct {
	env      Env
	contract chain.Contract
}

func NewFaucet(env Env, contract chain.Contract) *Faucet {
	return &Faucet{env: env, contract: contract}
}

func (f *Faucet) claimKey(account common.Address) string {
	return actionKey("faucet", "claim", accountKey(account))
}

func (f *Faucet) Status(ctx context.Context, account *common.Address) FaucetStatus {
	st := FaucetStatus{Account: account}
	st.Open = f.env.readBool(ctx, f.contract, "faucetOpen")
	st.LimitPerWallet = f.env.readBigInt(ctx, f.contract, "limitPerWallet")
	st.AvailableBalance = f.env.readBigInt(ctx, f.contract, "availableBalance")
	st.Funded = st.AvailableBalance != nil && st.LimitPerWallet != nil && st.AvailableBalance.Cmp(st.LimitPerWallet) >= 0
	if isTrue(st.Open) {
		st.Headline = "Faucet open"
	} else {
		st.Headline = "Faucet closed"
	}

	var b Button
	if account != nil {
		b = f.env.button(f.claimKey(*account))
		st.Claimed = f.env.readBool(ctx, f.contract, "hasClaimed", *account)
	}
	empty := st.AvailableBalance == nil || st.AvailableBalance.Sign() == 0
	switch {
	case b.pending():
		b.Label = LabelPending
	case isTrue(st.Claimed):
		b.Label = LabelAlreadyClaim
	case !isTrue(st.Open):
		b.Label = "Faucet Closed"
	case account == nil:
		b.Label = LabelConnectWallet
	case empty:
		b.Label = "Faucet Empty"
	default:
		b.Label = LabelClaim
	}
	b.Enabled = account != nil && isTrue(st.Open) && isFalse(st.Claimed) && !empty && !b.blocked()
	st.Claim = b
	return st
}

func (f *Faucet) ClaimAction(account common.Address) (Action, error) {
	if !hasContract(f.contract) {
		return Action{}, ErrNoContract
	}
	return Action{
		Key:  f.claimKey(account),
		Call: tx.NewCall(f.contract, "claim", nil),
		// a claim moves the faucet balance every wallet sees
		Settlement: tx.Settlement{Contracts: []common.Address{f.contract.Address}},
	}, nil
}
