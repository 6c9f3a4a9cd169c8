package eligibility

import (
	"errors"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/memecoin2016/meme-desk/internal/proof"
)

var ErrMalformedAddress = errors.New("input is not an ethereum address")

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

type Status string

const (
	StatusInvalid    Status = "invalid"
	StatusIneligible Status = "ineligible"
	StatusEligible   Status = "eligible"
)

// Outcome of checking free-form address text against a round's whitelist.
type Outcome struct {
	Status  Status         `json:"status"`
	Address common.Address `json:"address"`
	Proof   proof.Proof    `json:"proof"`
}

func (o Outcome) Eligible() bool {
	return o.Status == StatusEligible
}

// Message is the user facing line shown under an eligibility check.
func (o Outcome) Message() string {
	switch o.Status {
	case StatusInvalid:
		return "Input is not an Ethereum address."
	case StatusIneligible:
		return "Wallet is not on the whitelist."
	default:
		return "Wallet is on the whitelist!"
	}
}

// ProofSource is satisfied by *proof.Registry.
type ProofSource interface {
	Lookup(addr string, round string) proof.Proof
}

type Resolver struct {
	proofs ProofSource
}

func NewResolver(proofs ProofSource) *Resolver {
	return &Resolver{proofs: proofs}
}

// ResolveAddress validates the literal shape of an address: 0x prefix and 40 hex digits.
// Checksum casing is not enforced.
func ResolveAddress(text string) (common.Address, error) {
	text = strings.TrimSpace(text)
	if !addressPattern.MatchString(text) {
		return common.Address{}, ErrMalformedAddress
	}
	return common.HexToAddress(text), nil
}

func (r *Resolver) Proof(addr common.Address, round string) proof.Proof {
	return r.proofs.Lookup(addr.Hex(), round)
}

// IsEligible is proof presence only, the contract verifies the proof itself.
func (r *Resolver) IsEligible(addr common.Address, round string) bool {
	return len(r.Proof(addr, round)) > 0
}

// Check validates text before any lookup, so a malformed input never reads as "not whitelisted".
func (r *Resolver) Check(text string, round string) Outcome {
	addr, err := ResolveAddress(text)
	if err != nil {
		return Outcome{Status: StatusInvalid, Proof: proof.Proof{}}
	}
	p := r.Proof(addr, round)
	if len(p) == 0 {
		return Outcome{Status: StatusIneligible, Address: addr, Proof: p}
	}
	return Outcome{Status: StatusEligible, Address: addr, Proof: p}
}

const bpsDenominator = 10_000

// DiscountedPrice applies a flat holder discount (in basis points) to listPrice. Non holders
// and a nil price pay the list price; the discount is capped at 100%.
func DiscountedPrice(listPrice *big.Int, holder bool, discountBps uint64) *big.Int {
	if listPrice == nil {
		return new(big.Int)
	}
	if !holder || discountBps == 0 {
		return new(big.Int).Set(listPrice)
	}
	bps := min(discountBps, bpsDenominator)
	price := new(big.Int).Mul(listPrice, new(big.Int).SetUint64(bpsDenominator-bps))
	return price.Quo(price, big.NewInt(bpsDenominator))
}

// IsHolder reports whether balance meets the holder threshold. An unknown balance is not
// a holder.
func IsHolder(balance, threshold *big.Int) bool {
	if balance == nil || threshold == nil {
		return false
	}
	return balance.Cmp(threshold) >= 0
}
