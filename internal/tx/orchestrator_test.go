package tx

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jonboulle/clockwork"
	"github.com/memecoin2016/meme-desk/internal/chain"
	"github.com/memecoin2016/meme-desk/internal/chain/abis"
	"github.com/memecoin2016/meme-desk/internal/chain/chaintest"
	"github.com/memecoin2016/meme-desk/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	airdrop = chain.Contract{Address: common.HexToAddress("0x00000000000000000000000000000000000a1d70"), ABI: abis.AirdropABI}
	sale    = chain.Contract{Address: common.HexToAddress("0x0000000000000000000000000000000000005a1e"), ABI: abis.PublicSaleABI}
	user    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []*types.Transaction
	sendErr  error
	statuses chan uint64
	// receipt and known answer Lookup
	receipt *types.Receipt
	known   bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{statuses: make(chan uint64, 4)}
}

func (s *fakeSender) Address() common.Address { return user }

func (s *fakeSender) SendTransaction(_ context.Context, to common.Address, data []byte, value *big.Int) (*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	tx := types.NewTx(&types.DynamicFeeTx{Nonce: uint64(len(s.sent)), To: &to, Data: data, Value: value})
	s.sent = append(s.sent, tx)
	return tx, nil
}

func (s *fakeSender) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	select {
	case status := <-s.statuses:
		return &types.Receipt{Status: status, TxHash: tx.Hash(), BlockNumber: big.NewInt(100)}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSender) Lookup(context.Context, common.Hash) (*types.Receipt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receipt, s.known || s.receipt != nil, nil
}

func (s *fakeSender) setLookup(receipt *types.Receipt, known bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipt, s.known = receipt, known
}

func (s *fakeSender) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type harness struct {
	fake   *chaintest.FakeChain
	clock  *clockwork.FakeClock
	reader *chain.Reader
	sender *fakeSender
	bus    *state.EventBus
	orch   *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		fake:   chaintest.New(),
		clock:  clockwork.NewFakeClock(),
		sender: newFakeSender(),
		bus:    state.NewEventBus(),
	}
	h.reader = chain.NewReader(h.fake, h.clock, time.Minute, time.Second)
	h.orch = NewOrchestrator(h.fake, h.sender, h.reader, h.bus, h.clock, DefaultRetryInterval)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.orch.Close(ctx)
	})
	return h
}

func open() bool { return true }

func claimCall(round int64) Call {
	return NewCall(airdrop, "claim", nil, big.NewInt(round))
}

func TestSubmitRequiresSimulation(t *testing.T) {
	h := newHarness(t)
	h.fake.Return(airdrop, "claim")

	_, err := h.orch.Submit(context.Background(), "claim-0", claimCall(0), Settlement{})
	assert.ErrorIs(t, err, ErrNotSimulated)
	assert.Equal(t, 0, h.sender.Sent())

	_, err = h.orch.Simulate(context.Background(), "claim-0", claimCall(0), open)
	require.NoError(t, err)

	// a simulation of other arguments does not cover this call
	_, err = h.orch.Submit(context.Background(), "claim-0", claimCall(1), Settlement{})
	assert.ErrorIs(t, err, ErrNotSimulated)
	assert.Equal(t, 0, h.sender.Sent())
}

func TestMinedActionIsSettledAndInvalidatesReads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	var claimed atomic.Bool
	h.fake.Return(airdrop, "claim")
	h.fake.Handle(airdrop, "claimed", func(ethereum.CallMsg, []interface{}) ([]interface{}, error) {
		return []interface{}{claimed.Load()}, nil
	})

	events := make(chan interface{}, 8)
	h.bus.Subscribe(state.TxMined, events)

	before, err := h.reader.ReadBool(ctx, airdrop, "claimed", big.NewInt(0), user)
	require.NoError(t, err)
	require.False(t, before)

	_, err = h.orch.Simulate(ctx, "claim-0", claimCall(0), open)
	require.NoError(t, err)
	st, err := h.orch.Submit(ctx, "claim-0", claimCall(0), Settlement{Keys: []chain.Key{airdrop.Key("claimed", big.NewInt(0), user)}})
	require.NoError(t, err)
	assert.Equal(t, Pending, st.Phase)
	assert.NotEqual(t, common.Hash{}, st.TxHash)

	_, err = h.orch.Submit(ctx, "claim-0", claimCall(0), Settlement{})
	assert.ErrorIs(t, err, ErrPending)
	_, err = h.orch.Simulate(ctx, "claim-0", claimCall(0), open)
	assert.ErrorIs(t, err, ErrPending)

	claimed.Store(true)
	h.sender.statuses <- types.ReceiptStatusSuccessful
	st, err = h.orch.Wait(ctx, "claim-0")
	require.NoError(t, err)
	assert.Equal(t, Mined, st.Phase)
	assert.True(t, st.Settled)

	after, err := h.reader.ReadBool(ctx, airdrop, "claimed", big.NewInt(0), user)
	require.NoError(t, err)
	assert.True(t, after)

	ev := (<-events).(state.TxEvent)
	assert.Equal(t, "claim-0", ev.Action)
	assert.Equal(t, st.TxHash.Hex(), ev.TxHash)

	_, err = h.orch.Simulate(ctx, "claim-0", claimCall(0), open)
	assert.ErrorIs(t, err, ErrSettled)
	_, err = h.orch.Submit(ctx, "claim-0", claimCall(0), Settlement{})
	assert.ErrorIs(t, err, ErrSettled)
	assert.Equal(t, 1, h.sender.Sent())
}

func TestSubmitConsumesSimulation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fake.Return(airdrop, "claim")
	h.sender.sendErr = errors.New("user rejected the request")

	_, err := h.orch.Simulate(ctx, "claim-0", claimCall(0), open)
	require.NoError(t, err)
	st, err := h.orch.Submit(ctx, "claim-0", claimCall(0), Settlement{})
	assert.ErrorIs(t, err, ErrSubmit)
	assert.Equal(t, Idle, st.Phase)
	assert.Contains(t, st.Reason, "user rejected")

	h.sender.sendErr = nil
	_, err = h.orch.Submit(ctx, "claim-0", claimCall(0), Settlement{})
	assert.ErrorIs(t, err, ErrNotSimulated)

	_, err = h.orch.Simulate(ctx, "claim-0", claimCall(0), open)
	require.NoError(t, err)
	_, err = h.orch.Submit(ctx, "claim-0", claimCall(0), Settlement{})
	require.NoError(t, err)
}

func TestRevertedReceiptIsRetryable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fake.Return(airdrop, "claim")

	_, err := h.orch.Simulate(ctx, "claim-0", claimCall(0), open)
	require.NoError(t, err)
	_, err = h.orch.Submit(ctx, "claim-0", claimCall(0), Settlement{})
	require.NoError(t, err)
	h.sender.statuses <- types.ReceiptStatusFailed

	st, err := h.orch.Wait(ctx, "claim-0")
	require.NoError(t, err)
	assert.Equal(t, Reverted, st.Phase)
	assert.False(t, st.Settled)

	_, err = h.orch.Simulate(ctx, "claim-0", claimCall(0), open)
	assert.NoError(t, err)
}

func TestTerminalRevertIsNotRetried(t *testing.T) {
	h := newHarness(t)
	h.fake.Revert(airdrop, "claim", "Already claimed")

	st, err := h.orch.Simulate(context.Background(), "claim-0", claimCall(0), open)
	assert.ErrorIs(t, err, ErrSimulation)
	assert.Equal(t, SimulationFailed, st.Phase)
	assert.Equal(t, "Already claimed", st.Reason)
	assert.False(t, st.Retrying)

	h.clock.Advance(5 * time.Second)
	assert.Equal(t, 1, h.fake.Calls("claim"))
}

func TestNotOpenWhileLocalClockClosedIsTerminal(t *testing.T) {
	h := newHarness(t)
	h.fake.Revert(sale, "buy", "Sale not open")

	st, err := h.orch.Simulate(context.Background(), "public-sale", NewCall(sale, "buy", big.NewInt(1)), func() bool { return false })
	assert.ErrorIs(t, err, ErrSimulation)
	assert.False(t, st.Retrying)
}

func TestNotOpenRetriesUntilContractOpens(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	var saleOpen atomic.Bool
	h.fake.Handle(sale, "buy", func(msg ethereum.CallMsg, _ []interface{}) ([]interface{}, error) {
		if msg.From != user || msg.Value.Cmp(big.NewInt(1e16)) != 0 {
			return nil, errors.New("execution reverted: bad call")
		}
		if !saleOpen.Load() {
			return nil, errors.New("execution reverted: Sale not open")
		}
		return nil, nil
	})
	buy := NewCall(sale, "buy", big.NewInt(1e16))

	st, err := h.orch.Simulate(ctx, "public-sale", buy, open)
	require.NoError(t, err)
	assert.Equal(t, SimulationFailed, st.Phase)
	assert.True(t, st.Retrying)
	assert.Equal(t, "Sale not open", st.Reason)

	h.clock.Advance(DefaultRetryInterval)
	require.Eventually(t, func() bool { return h.orch.Snapshot("public-sale").Attempts == 2 }, time.Second, time.Millisecond)
	assert.True(t, h.orch.Snapshot("public-sale").Retrying)

	saleOpen.Store(true)
	h.clock.Advance(DefaultRetryInterval)
	require.Eventually(t, func() bool { return h.orch.Snapshot("public-sale").Phase == SimulationOk }, time.Second, time.Millisecond)
	assert.False(t, h.orch.Snapshot("public-sale").Retrying)

	_, err = h.orch.Submit(ctx, "public-sale", buy, Settlement{})
	require.NoError(t, err)
}

func TestRetryIntervalIsClamped(t *testing.T) {
	assert.Equal(t, MinRetryInterval, NewOrchestrator(nil, nil, nil, nil, nil, 10*time.Millisecond).RetryInterval())
	assert.Equal(t, MaxRetryInterval, NewOrchestrator(nil, nil, nil, nil, nil, 5*time.Second).RetryInterval())
	assert.Equal(t, DefaultRetryInterval, NewOrchestrator(nil, nil, nil, nil, nil, 0).RetryInterval())
}

func TestNewerSimulationSupersedesRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fake.Handle(sale, "buy", func(msg ethereum.CallMsg, _ []interface{}) ([]interface{}, error) {
		if msg.Value.Cmp(big.NewInt(1)) == 0 {
			return nil, errors.New("execution reverted: Sale not open")
		}
		return nil, nil
	})

	st, err := h.orch.Simulate(ctx, "public-sale", NewCall(sale, "buy", big.NewInt(1)), open)
	require.NoError(t, err)
	require.True(t, st.Retrying)

	second := NewCall(sale, "buy", big.NewInt(2))
	st, err = h.orch.Simulate(ctx, "public-sale", second, open)
	require.NoError(t, err)
	assert.Equal(t, SimulationOk, st.Phase)
	assert.False(t, st.Retrying)

	calls := h.fake.Calls("buy")
	h.clock.Advance(3 * DefaultRetryInterval)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, h.fake.Calls("buy"))

	fp, err := second.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fp, h.orch.Snapshot("public-sale").Fingerprint)
}

func TestCancelStopsRetryLoop(t *testing.T) {
	h := newHarness(t)
	h.fake.Revert(sale, "buy", "Sale not open")

	st, err := h.orch.Simulate(context.Background(), "public-sale", NewCall(sale, "buy", big.NewInt(1)), open)
	require.NoError(t, err)
	require.True(t, st.Retrying)

	h.orch.Cancel("public-sale")
	assert.False(t, h.orch.Snapshot("public-sale").Retrying)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.orch.Close(ctx))

	h.clock.Advance(3 * DefaultRetryInterval)
	assert.Equal(t, 1, h.fake.Calls("buy"))
}

func TestActionsAreIndependent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fake.Return(airdrop, "claim")

	_, err := h.orch.Simulate(ctx, "claim-0", claimCall(0), open)
	require.NoError(t, err)
	_, err = h.orch.Submit(ctx, "claim-0", claimCall(0), Settlement{})
	require.NoError(t, err)

	_, err = h.orch.Simulate(ctx, "claim-1", claimCall(1), open)
	assert.NoError(t, err)
	assert.Equal(t, Pending, h.orch.Snapshot("claim-0").Phase)
	assert.Equal(t, SimulationOk, h.orch.Snapshot("claim-1").Phase)
	assert.Len(t, h.orch.Snapshots(), 2)

	h.sender.statuses <- types.ReceiptStatusSuccessful
	_, err = h.orch.Wait(ctx, "claim-0")
	require.NoError(t, err)
}

func TestRepeatableActionCanRunAgain(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fake.Return(sale, "buy")
	buy := NewCall(sale, "buy", big.NewInt(1))

	for i := 0; i < 2; i++ {
		_, err := h.orch.Simulate(ctx, "art", buy, open)
		require.NoError(t, err)
		_, err = h.orch.Submit(ctx, "art", buy, Settlement{Repeatable: true})
		require.NoError(t, err)
		h.sender.statuses <- types.ReceiptStatusSuccessful
		st, err := h.orch.Wait(ctx, "art")
		require.NoError(t, err)
		assert.Equal(t, Mined, st.Phase)
		assert.False(t, st.Settled)
	}
	assert.Equal(t, 2, h.sender.Sent())
}

func submitUnconfirmed(t *testing.T, h *harness, inv Settlement) State {
	t.Helper()
	ctx := context.Background()
	h.orch.SetConfirmWait(20 * time.Millisecond)
	_, err := h.orch.Simulate(ctx, "claim-0", claimCall(0), open)
	require.NoError(t, err)
	_, err = h.orch.Submit(ctx, "claim-0", claimCall(0), inv)
	require.NoError(t, err)
	st, err := h.orch.Wait(ctx, "claim-0")
	require.NoError(t, err)
	require.Equal(t, Unconfirmed, st.Phase)
	return st
}

func TestUnconfirmedBlocksUntilReceiptFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fake.Return(airdrop, "claim")
	h.fake.Return(airdrop, "claimed", false)
	claimed := airdrop.Key("claimed", big.NewInt(0), user)

	events := make(chan interface{}, 8)
	h.bus.Subscribe(state.TxUnconfirmed, events)
	h.bus.Subscribe(state.TxReverted, events)

	_, err := h.reader.ReadBool(ctx, airdrop, "claimed", big.NewInt(0), user)
	require.NoError(t, err)
	st := submitUnconfirmed(t, h, Settlement{Keys: []chain.Key{claimed}})
	assert.False(t, st.Settled)
	assert.Contains(t, st.Reason, "no receipt yet")

	ev := (<-events).(state.TxEvent)
	assert.Equal(t, state.TxUnconfirmed, ev.Type)
	assert.Empty(t, events)

	// still in the pool: neither a new simulation nor a resubmit
	h.sender.setLookup(nil, true)
	_, err = h.orch.Simulate(ctx, "claim-0", claimCall(0), open)
	assert.ErrorIs(t, err, ErrUnconfirmed)
	_, err = h.orch.Submit(ctx, "claim-0", claimCall(0), Settlement{})
	assert.ErrorIs(t, err, ErrUnconfirmed)
	assert.Equal(t, 1, h.sender.Sent())
	assert.True(t, h.reader.Cached(claimed))

	// mined late
	h.sender.setLookup(&types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(120)}, true)
	st, err = h.orch.Simulate(ctx, "claim-0", claimCall(0), open)
	assert.ErrorIs(t, err, ErrSettled)
	assert.Equal(t, Mined, st.Phase)
	assert.True(t, st.Settled)
	assert.False(t, h.reader.Cached(claimed))
	assert.Equal(t, 1, h.sender.Sent())
}

func TestDroppedTransactionFreesAction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fake.Return(airdrop, "claim")

	events := make(chan interface{}, 8)
	h.bus.Subscribe(state.TxDropped, events)

	submitUnconfirmed(t, h, Settlement{})
	h.sender.setLookup(nil, false)

	st, err := h.orch.Simulate(ctx, "claim-0", claimCall(0), open)
	require.NoError(t, err)
	assert.Equal(t, SimulationOk, st.Phase)

	ev := (<-events).(state.TxEvent)
	assert.Equal(t, "transaction dropped", ev.Reason)
	assert.NotEmpty(t, ev.TxHash)
}
