package tx

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jonboulle/clockwork"
	"github.com/memecoin2016/meme-desk/internal/chain"
	"github.com/memecoin2016/meme-desk/internal/metrics"
	"github.com/memecoin2016/meme-desk/internal/state"
	log "github.com/sirupsen/logrus"
)

var (
	ErrSettled      = errors.New("action already settled")
	ErrPending      = errors.New("action has a transaction in flight")
	ErrNotSimulated = errors.New("no successful simulation for this call")
	ErrSuperseded   = errors.New("simulation superseded by a newer call")
	ErrNoWallet     = errors.New("no wallet configured")
	ErrSimulation   = errors.New("simulation failed")
	ErrSubmit       = errors.New("submit failed")
	ErrUnconfirmed  = errors.New("earlier transaction is still unconfirmed")
)

const (
	MinRetryInterval     = 500 * time.Millisecond
	MaxRetryInterval     = time.Second
	DefaultRetryInterval = 750 * time.Millisecond
	DefaultConfirmWait   = 30 * time.Minute
)

type Phase int

const (
	Idle Phase = iota
	Simulating
	SimulationFailed
	SimulationOk
	Submitting
	Pending
	Mined
	Reverted
	// Unconfirmed has no receipt within the confirmation wait. The transaction may
	// still land, so the action stays blocked until a receipt lookup settles it.
	Unconfirmed
)

func (p Phase) String() string {
	return [...]string{"idle", "simulating", "simulation_failed", "simulation_ok", "submitting", "pending", "mined", "reverted", "unconfirmed"}[p]
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for q := Idle; q <= Unconfirmed; q++ {
		if q.String() == string(text) {
			*p = q
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Sender broadcasts transactions from one account. *Wallet is the production Sender.
type Sender interface {
	Address() common.Address
	SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	// Lookup returns the receipt of hash if there is one. Without a receipt, known
	// reports whether the node still has the transaction.
	Lookup(ctx context.Context, hash common.Hash) (receipt *types.Receipt, known bool, err error)
}

// Invalidator drops cached reads. *chain.Reader is the production Invalidator.
type Invalidator interface {
	Invalidate(keys ...chain.Key)
	InvalidateContract(addr common.Address)
}

// Settlement is what a mined transaction changes: the reads to drop, and whether the
// action may run again (a repeat purchase) or is done for good (a one-time claim).
type Settlement struct {
	Keys       []chain.Key
	Contracts  []common.Address
	Repeatable bool
}

// State is a snapshot of one action.
type State struct {
	Action      string      `json:"action"`
	Phase       Phase       `json:"phase"`
	Fingerprint common.Hash `json:"fingerprint"`
	Reason      string      `json:"reason,omitempty"`
	Retrying    bool        `json:"retrying"`
	Attempts    int         `json:"attempts"`
	TxHash      common.Hash `json:"txHash"`
	Settled     bool        `json:"settled"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

type action struct {
	key         string
	phase       Phase
	fingerprint common.Hash
	reason      string
	txHash      common.Hash
	settled     bool
	attempts    int
	updatedAt   time.Time

	// the broadcast call, kept for settling an unconfirmed transaction later
	sentCall   Call
	settlement Settlement

	// gen bumps on every new simulation or submit; stale results compare unequal
	gen         uint64
	stopRetry   context.CancelFunc
	lastAttempt time.Time
	done        chan struct{}
}

func (a *action) snapshot() State {
	return State{
		Action:      a.key,
		Phase:       a.phase,
		Fingerprint: a.fingerprint,
		Reason:      a.reason,
		Retrying:    a.stopRetry != nil,
		Attempts:    a.attempts,
		TxHash:      a.txHash,
		Settled:     a.settled,
		UpdatedAt:   a.updatedAt,
	}
}

// Orchestrator runs the simulate-then-submit flow for independent action keys.
type Orchestrator struct {
	caller      ethereum.ContractCaller
	sender      Sender
	invalidator Invalidator
	bus         *state.EventBus
	clock       clockwork.Clock
	interval    time.Duration
	classify    Classifier
	confirmWait time.Duration

	mu      sync.Mutex
	actions map[string]*action
	wg      sync.WaitGroup
}

func NewOrchestrator(caller ethereum.ContractCaller, sender Sender, invalidator Invalidator, bus *state.EventBus, clock clockwork.Clock, interval time.Duration) *Orchestrator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval == 0 {
		interval = DefaultRetryInterval
	}
	interval = min(max(interval, MinRetryInterval), MaxRetryInterval)
	return &Orchestrator{
		caller:      caller,
		sender:      sender,
		invalidator: invalidator,
		bus:         bus,
		clock:       clock,
		interval:    interval,
		classify:    NotOpenYet,
		confirmWait: DefaultConfirmWait,
		actions:     make(map[string]*action),
	}
}

func (o *Orchestrator) SetClassifier(c Classifier) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.classify = c
}

func (o *Orchestrator) SetConfirmWait(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.confirmWait = d
}

func (o *Orchestrator) RetryInterval() time.Duration {
	return o.interval
}

// From is the account simulations run as.
func (o *Orchestrator) From() common.Address {
	if o.sender == nil {
		return common.Address{}
	}
	return o.sender.Address()
}

// actionLocked returns the action for key, creating an idle one. Caller holds o.mu.
func (o *Orchestrator) actionLocked(key string) *action {
	a, ok := o.actions[key]
	if !ok {
		a = &action{key: key, phase: Idle, updatedAt: o.clock.Now()}
		o.actions[key] = a
	}
	return a
}

func (a *action) stopRetryLoop() {
	if a.stopRetry != nil {
		a.stopRetry()
		a.stopRetry = nil
	}
}

func (o *Orchestrator) setPhase(a *action, p Phase, reason string) {
	a.phase = p
	a.reason = reason
	a.updatedAt = o.clock.Now()
}

func (o *Orchestrator) publish(t state.EventType, a *action, call Call) {
	if o.bus == nil {
		return
	}
	ev := state.TxEvent{
		Type:        t,
		Action:      a.key,
		Contract:    call.To.Hex(),
		Method:      call.Method,
		Value:       call.value().String(),
		Fingerprint: a.fingerprint.Hex(),
		Reason:      a.reason,
	}
	if a.txHash != (common.Hash{}) {
		ev.TxHash = a.txHash.Hex()
	}
	o.bus.Publish(t, ev)
}

// Snapshot returns the current state of key; unknown keys are Idle.
func (o *Orchestrator) Snapshot(key string) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if a, ok := o.actions[key]; ok {
		return a.snapshot()
	}
	return State{Action: key, Phase: Idle}
}

func (o *Orchestrator) Snapshots() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]State, 0, len(o.actions))
	for _, a := range o.actions {
		out = append(out, a.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out
}

// dryRun is eth_call from the sending account with the attached value. No state changes.
func (o *Orchestrator) dryRun(ctx context.Context, call Call) error {
	data, err := call.Data()
	if err != nil {
		return err
	}
	to := call.To
	_, err = o.caller.CallContract(ctx, ethereum.CallMsg{
		From:  o.From(),
		To:    &to,
		Data:  data,
		Value: call.value(),
	}, nil)
	return err
}

func reasonOf(err error) string {
	if r := RevertReason(err); r != "" {
		return r
	}
	return err.Error()
}

// Simulate dry-runs call for key. A failure the classifier calls transient, while gate
// reports the window open, starts a retry loop bound to ctx and returns the
// SimulationFailed state with Retrying set and a nil error. Any other failure is returned
// wrapped in ErrSimulation. A newer Simulate or Submit for the same key supersedes this one.
func (o *Orchestrator) Simulate(ctx context.Context, key string, call Call, gate func() bool) (State, error) {
	fp, err := call.Fingerprint()
	if err != nil {
		return State{}, err
	}
	if err := o.recheck(ctx, key); err != nil {
		return o.Snapshot(key), err
	}

	o.mu.Lock()
	a := o.actionLocked(key)
	switch {
	case a.settled:
		o.mu.Unlock()
		return a.snapshot(), ErrSettled
	case a.phase == Submitting || a.phase == Pending:
		o.mu.Unlock()
		return a.snapshot(), ErrPending
	case a.phase == Unconfirmed:
		o.mu.Unlock()
		return a.snapshot(), ErrUnconfirmed
	}
	a.stopRetryLoop()
	a.gen++
	gen := a.gen
	a.fingerprint = fp
	a.attempts = 1
	a.lastAttempt = o.clock.Now()
	o.setPhase(a, Simulating, "")
	o.publish(state.TxSimulating, a, call)
	classify := o.classify
	o.mu.Unlock()

	simErr := o.dryRun(ctx, call)

	o.mu.Lock()
	defer o.mu.Unlock()
	if a.gen != gen {
		return a.snapshot(), ErrSuperseded
	}
	if simErr == nil {
		metrics.SimulationsTotal.WithLabelValues(call.Method, "ok").Inc()
		o.setPhase(a, SimulationOk, "")
		o.publish(state.TxSimulationOk, a, call)
		return a.snapshot(), nil
	}

	reason := reasonOf(simErr)
	o.setPhase(a, SimulationFailed, reason)
	if classify(simErr) && gate != nil && gate() {
		metrics.SimulationsTotal.WithLabelValues(call.Method, "transient").Inc()
		loopCtx, cancel := context.WithCancel(ctx)
		a.stopRetry = cancel
		o.wg.Add(1)
		go o.retryLoop(loopCtx, o.clock.NewTicker(o.interval), a, gen, call, gate)
		log.WithFields(log.Fields{"action": key, "reason": reason}).Debug("Simulation not open yet, retrying")
		o.publish(state.TxSimulationRetry, a, call)
		return a.snapshot(), nil
	}

	metrics.SimulationsTotal.WithLabelValues(call.Method, "failed").Inc()
	o.publish(state.TxSimulationFailed, a, call)
	return a.snapshot(), fmt.Errorf("%w: %s", ErrSimulation, reason)
}

func (o *Orchestrator) retryLoop(ctx context.Context, ticker clockwork.Ticker, a *action, gen uint64, call Call, gate func() bool) {
	defer o.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.mu.Lock()
			if a.gen == gen {
				a.stopRetry = nil
			}
			o.mu.Unlock()
			return
		case <-ticker.Chan():
		}

		o.mu.Lock()
		if a.gen != gen {
			o.mu.Unlock()
			return
		}
		// ticks can bunch up behind a slow call
		if o.clock.Since(a.lastAttempt) < MinRetryInterval {
			o.mu.Unlock()
			continue
		}
		if !gate() {
			a.stopRetryLoop()
			o.publish(state.TxSimulationFailed, a, call)
			o.mu.Unlock()
			return
		}
		a.lastAttempt = o.clock.Now()
		a.attempts++
		o.mu.Unlock()

		err := o.dryRun(ctx, call)

		o.mu.Lock()
		if a.gen != gen || ctx.Err() != nil {
			o.mu.Unlock()
			continue
		}
		switch {
		case err == nil:
			metrics.SimulationsTotal.WithLabelValues(call.Method, "ok").Inc()
			a.stopRetryLoop()
			o.setPhase(a, SimulationOk, "")
			o.publish(state.TxSimulationOk, a, call)
			log.WithFields(log.Fields{"action": a.key, "attempts": a.attempts}).Info("Simulation succeeded after retry")
			o.mu.Unlock()
			return
		case o.classify(err):
			metrics.SimulationsTotal.WithLabelValues(call.Method, "transient").Inc()
			a.reason = reasonOf(err)
			o.mu.Unlock()
		default:
			metrics.SimulationsTotal.WithLabelValues(call.Method, "failed").Inc()
			a.stopRetryLoop()
			o.setPhase(a, SimulationFailed, reasonOf(err))
			o.publish(state.TxSimulationFailed, a, call)
			o.mu.Unlock()
			return
		}
	}
}

// Cancel stops a running retry loop for key, as when its view goes away. A submitted
// transaction is not affected.
func (o *Orchestrator) Cancel(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.actions[key]
	if !ok || a.stopRetry == nil {
		return
	}
	a.stopRetryLoop()
	a.gen++
}

// Submit broadcasts call for key. It requires that the last simulation for key succeeded
// for the same fingerprint, and consumes it: a second Submit needs a new simulation.
func (o *Orchestrator) Submit(ctx context.Context, key string, call Call, inv Settlement) (State, error) {
	fp, err := call.Fingerprint()
	if err != nil {
		return State{}, err
	}
	if o.sender == nil {
		return State{}, ErrNoWallet
	}
	if err := o.recheck(ctx, key); err != nil {
		return o.Snapshot(key), err
	}

	o.mu.Lock()
	a := o.actionLocked(key)
	switch {
	case a.settled:
		o.mu.Unlock()
		return a.snapshot(), ErrSettled
	case a.phase == Submitting || a.phase == Pending:
		o.mu.Unlock()
		return a.snapshot(), ErrPending
	case a.phase == Unconfirmed:
		o.mu.Unlock()
		return a.snapshot(), ErrUnconfirmed
	case a.phase != SimulationOk || a.fingerprint != fp:
		o.mu.Unlock()
		return a.snapshot(), ErrNotSimulated
	}
	a.stopRetryLoop()
	a.gen++
	a.txHash = common.Hash{}
	o.setPhase(a, Submitting, "")
	o.mu.Unlock()

	data, err := call.Data()
	if err != nil {
		return o.submitFailed(a, call, err)
	}
	tx, err := o.sender.SendTransaction(ctx, call.To, data, call.value())
	if err != nil {
		return o.submitFailed(a, call, err)
	}

	o.mu.Lock()
	a.txHash = tx.Hash()
	a.sentCall = call
	a.settlement = inv
	a.done = make(chan struct{})
	o.setPhase(a, Pending, "")
	o.publish(state.TxSubmitted, a, call)
	snap := a.snapshot()
	confirmWait := o.confirmWait
	o.mu.Unlock()
	metrics.SubmissionsTotal.WithLabelValues(call.Method, "submitted").Inc()

	o.wg.Add(1)
	go o.confirm(a, call, tx, inv, confirmWait)
	return snap, nil
}

func (o *Orchestrator) submitFailed(a *action, call Call, err error) (State, error) {
	metrics.SubmissionsTotal.WithLabelValues(call.Method, "error").Inc()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.setPhase(a, Idle, err.Error())
	o.publish(state.TxSubmitFailed, a, call)
	log.WithFields(log.Fields{"action": a.key}).Warnf("Submit failed: %v", err)
	return a.snapshot(), fmt.Errorf("%w: %v", ErrSubmit, err)
}

// confirm outlives the request that submitted, the transaction is already broadcast.
func (o *Orchestrator) confirm(a *action, call Call, tx *types.Transaction, inv Settlement, wait time.Duration) {
	defer o.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	receipt, err := o.sender.WaitMined(ctx, tx)
	if err == nil {
		o.invalidate(receipt, inv)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	defer close(a.done)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(call.Method, "unconfirmed").Inc()
		o.setPhase(a, Unconfirmed, "no receipt yet: "+err.Error())
		o.publish(state.TxUnconfirmed, a, call)
		log.WithFields(log.Fields{"action": a.key, "hash": tx.Hash().Hex()}).Warnf("Wait for transaction failed: %v", err)
		return
	}
	o.settleLocked(a, call, receipt, inv)
}

// invalidate drops the reads a successful receipt changed, before anyone can observe Mined.
func (o *Orchestrator) invalidate(receipt *types.Receipt, inv Settlement) {
	if receipt.Status != types.ReceiptStatusSuccessful || o.invalidator == nil {
		return
	}
	o.invalidator.Invalidate(inv.Keys...)
	for _, c := range inv.Contracts {
		o.invalidator.InvalidateContract(c)
	}
}

// settleLocked applies a receipt. Caller holds o.mu.
func (o *Orchestrator) settleLocked(a *action, call Call, receipt *types.Receipt, inv Settlement) {
	fields := log.Fields{"action": a.key, "hash": a.txHash.Hex()}
	if receipt.Status != types.ReceiptStatusSuccessful {
		metrics.SubmissionsTotal.WithLabelValues(call.Method, "reverted").Inc()
		o.setPhase(a, Reverted, "transaction reverted")
		o.publish(state.TxReverted, a, call)
		log.WithFields(fields).Warn("Transaction reverted")
		return
	}
	metrics.SubmissionsTotal.WithLabelValues(call.Method, "mined").Inc()
	a.settled = !inv.Repeatable
	o.setPhase(a, Mined, "")
	o.publish(state.TxMined, a, call)
	log.WithFields(fields).Infof("Transaction mined in block %v", receipt.BlockNumber)
}

// recheck looks up the receipt of an unconfirmed transaction for key. It returns
// ErrUnconfirmed while the node still knows the transaction without a receipt, or when
// the lookup fails. A receipt settles the action, a dropped transaction frees it.
func (o *Orchestrator) recheck(ctx context.Context, key string) error {
	o.mu.Lock()
	a, ok := o.actions[key]
	if !ok || a.phase != Unconfirmed {
		o.mu.Unlock()
		return nil
	}
	hash, call, inv := a.txHash, a.sentCall, a.settlement
	o.mu.Unlock()

	receipt, known, err := o.sender.Lookup(ctx, hash)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnconfirmed, err)
	}
	if receipt != nil {
		o.invalidate(receipt, inv)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if a.phase != Unconfirmed || a.txHash != hash {
		return nil
	}
	switch {
	case receipt != nil:
		o.settleLocked(a, call, receipt, inv)
	case known:
		return ErrUnconfirmed
	default:
		metrics.SubmissionsTotal.WithLabelValues(call.Method, "dropped").Inc()
		o.setPhase(a, Idle, "transaction dropped")
		o.publish(state.TxDropped, a, call)
		log.WithFields(log.Fields{"action": a.key, "hash": hash.Hex()}).Warn("Transaction dropped")
	}
	return nil
}

// Wait blocks until the in-flight transaction of key is confirmed or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context, key string) (State, error) {
	o.mu.Lock()
	a, ok := o.actions[key]
	if !ok || a.done == nil {
		o.mu.Unlock()
		return o.Snapshot(key), nil
	}
	done := a.done
	o.mu.Unlock()

	select {
	case <-done:
		return o.Snapshot(key), nil
	case <-ctx.Done():
		return o.Snapshot(key), ctx.Err()
	}
}

// Close cancels retry loops and waits for them and for pending confirmations until ctx ends.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	for _, a := range o.actions {
		if a.stopRetry != nil {
			a.stopRetryLoop()
			a.gen++
		}
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
