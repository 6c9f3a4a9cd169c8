// Package campaign turns contract reads, the countdown clock and whitelist proofs into the
// status and action state of each campaign view, and prepares the calls those views submit.
package campaign

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/memecoin2016/meme-desk/internal/chain"
	"github.com/memecoin2016/meme-desk/internal/eligibility"
	"github.com/memecoin2016/meme-desk/internal/tx"
	log "github.com/sirupsen/logrus"
)

const (
	TokenSymbol = "MEME"

	LabelPending       = "Pending…"
	LabelConnectWallet = "Connect Wallet"
	LabelClaim         = "Claim"
	LabelAlreadyClaim  = "Already Claimed"
)

var (
	ErrNotConnected  = errors.New("wallet not connected")
	ErrNotEligible   = errors.New("wallet is not on the whitelist")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrNoContract    = errors.New("contract not configured")
)

// Reads is satisfied by *chain.Reader.
type Reads interface {
	Read(ctx context.Context, c chain.Contract, method string, args ...interface{}) (chain.Values, error)
}

// Actions is satisfied by *tx.Orchestrator.
type Actions interface {
	Snapshot(key string) tx.State
}

// Env is what every view reads from.
type Env struct {
	Reader   Reads
	Actions  Actions
	Now      func() time.Time
	Resolver *eligibility.Resolver
}

// Button is the state of one action control. Enabled means the action may be simulated
// and, once the simulation succeeds, submitted.
type Button struct {
	Label   string   `json:"label"`
	Enabled bool     `json:"enabled"`
	Action  string   `json:"action,omitempty"`
	Phase   tx.Phase `json:"phase"`
	Reason  string   `json:"reason,omitempty"`

	settled bool
}

// Action is a prepared write for the orchestrator.
type Action struct {
	Key        string
	Call       tx.Call
	Settlement tx.Settlement
	// Gate reports whether the local clock considers the window open; nil never retries.
	Gate func() bool
}

func actionKey(parts ...string) string {
	return strings.Join(parts, "/")
}

func accountKey(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func (e Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e Env) button(key string) Button {
	b := Button{Action: key}
	if e.Actions != nil && key != "" {
		st := e.Actions.Snapshot(key)
		b.Phase = st.Phase
		b.settled = st.Settled
		if st.Phase == tx.SimulationFailed || st.Phase == tx.Reverted || (st.Phase == tx.Idle && st.Reason != "") {
			b.Reason = st.Reason
		}
	}
	return b
}

// pending covers a transaction that may still land, including one past the confirmation wait.
func (b Button) pending() bool {
	return b.Phase == tx.Submitting || b.Phase == tx.Pending || b.Phase == tx.Unconfirmed
}

// blocked reports whether the orchestrator would refuse the action: in flight or done for good.
func (b Button) blocked() bool {
	return b.pending() || b.settled
}

// read errors degrade to nil, which every view treats as "unknown, keep the action disabled"

func (e Env) readBool(ctx context.Context, c chain.Contract, method string, args ...interface{}) *bool {
	vs, err := e.Reader.Read(ctx, c, method, args...)
	if err != nil {
		logReadError(c, method, err)
		return nil
	}
	v, err := vs.Bool(0)
	if err != nil {
		logReadError(c, method, err)
		return nil
	}
	return &v
}

func (e Env) readBigInt(ctx context.Context, c chain.Contract, method string, args ...interface{}) *big.Int {
	vs, err := e.Reader.Read(ctx, c, method, args...)
	if err != nil {
		logReadError(c, method, err)
		return nil
	}
	v, err := vs.BigInt(0)
	if err != nil {
		logReadError(c, method, err)
		return nil
	}
	return v
}

func (e Env) readUint64(ctx context.Context, c chain.Contract, method string, args ...interface{}) *uint64 {
	vs, err := e.Reader.Read(ctx, c, method, args...)
	if err != nil {
		logReadError(c, method, err)
		return nil
	}
	v, err := vs.Uint64(0)
	if err != nil {
		logReadError(c, method, err)
		return nil
	}
	return &v
}

func logReadError(c chain.Contract, method string, err error) {
	log.WithFields(log.Fields{"contract": c.Address.Hex(), "method": method}).Debugf("Read failed: %v", err)
}

func isTrue(b *bool) bool {
	return b != nil && *b
}

func isFalse(b *bool) bool {
	return b != nil && !*b
}

func hasContract(c chain.Contract) bool {
	return c.ABI != nil && c.Address != (common.Address{})
}
