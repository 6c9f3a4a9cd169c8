package campaign

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jonboulle/clockwork"
	"github.com/memecoin2016/meme-desk/internal/chain"
	"github.com/memecoin2016/meme-desk/internal/chain/abis"
	"github.com/memecoin2016/meme-desk/internal/chain/chaintest"
	"github.com/memecoin2016/meme-desk/internal/eligibility"
	"github.com/memecoin2016/meme-desk/internal/proof"
	"github.com/memecoin2016/meme-desk/internal/state"
	"github.com/memecoin2016/meme-desk/internal/tx"
	"github.com/stretchr/testify/require"
)

var (
	alice   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol   = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	airdrop = chain.Contract{Address: common.HexToAddress("0x00000000000000000000000000000000000a1d70"), ABI: abis.AirdropABI}
	faucet  = chain.Contract{Address: common.HexToAddress("0x00000000000000000000000000000000000fa0ce"), ABI: abis.FaucetABI}
	presale = chain.Contract{Address: common.HexToAddress("0x0000000000000000000000000000000000005a1e"), ABI: abis.PrivateSaleABI}
	public  = chain.Contract{Address: common.HexToAddress("0x0000000000000000000000000000000000005a1f"), ABI: abis.PublicSaleABI}
	claimV2 = chain.Contract{Address: common.HexToAddress("0x00000000000000000000000000000000000c1a12"), ABI: abis.ClaimV2ABI}
	artDrop = chain.Contract{Address: common.HexToAddress("0x0000000000000000000000000000000000a7d409"), ABI: abis.ArtDropABI}
	memeArt = chain.Contract{Address: common.HexToAddress("0x0000000000000000000000000000000000a71155"), ABI: abis.ERC1155ABI}
	meme    = chain.Contract{Address: common.HexToAddress("0x84965cf265d75478abd7c6aa45e1b80b5d5e38cf"), ABI: abis.ERC20ABI}
)

// caller is who the orchestrator's sender signs as in every test.
var caller = alice

type fakeSender struct {
	mu       sync.Mutex
	sent     int
	statuses chan uint64
}

func (s *fakeSender) Address() common.Address { return caller }

func (s *fakeSender) SendTransaction(_ context.Context, to common.Address, data []byte, value *big.Int) (*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	return types.NewTx(&types.DynamicFeeTx{Nonce: uint64(s.sent), To: &to, Data: data, Value: value}), nil
}

func (s *fakeSender) Lookup(context.Context, common.Hash) (*types.Receipt, bool, error) {
	return nil, true, nil
}

func (s *fakeSender) WaitMined(ctx context.Context, t *types.Transaction) (*types.Receipt, error) {
	select {
	case status := <-s.statuses:
		return &types.Receipt{Status: status, TxHash: t.Hash(), BlockNumber: big.NewInt(1)}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fixture struct {
	fake   *chaintest.FakeChain
	clock  *clockwork.FakeClock
	reader *chain.Reader
	sender *fakeSender
	orch   *tx.Orchestrator
	env    Env
}

func whitelist(addrs ...common.Address) *proof.Index {
	entries := make([]proof.WhitelistEntry, len(addrs))
	for i, a := range addrs {
		entries[i] = proof.WhitelistEntry{Address: a.Hex(), Proof: []common.Hash{{byte(i + 1)}, {0xaa}, {0xbb}}}
	}
	return proof.BuildIndex(entries)
}

func newFixture(t *testing.T, now int64) *fixture {
	t.Helper()
	f := &fixture{
		fake:   chaintest.New(),
		clock:  clockwork.NewFakeClockAt(time.Unix(now, 0)),
		sender: &fakeSender{statuses: make(chan uint64, 4)},
	}
	f.reader = chain.NewReader(f.fake, f.clock, time.Hour, time.Second)
	f.orch = tx.NewOrchestrator(f.fake, f.sender, f.reader, state.NewEventBus(), f.clock, tx.DefaultRetryInterval)
	registry := proof.NewRegistry(map[string]*proof.Index{
		proof.AirdropRound(0): whitelist(alice, bob),
		proof.RoundPresale:    whitelist(alice, bob),
		proof.RoundClaimV2:    whitelist(bob),
	})
	f.env = Env{Reader: f.reader, Actions: f.orch, Now: f.clock.Now, Resolver: eligibility.NewResolver(registry)}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = f.orch.Close(ctx)
	})
	return f
}

// run takes an action through simulate, submit and a mined receipt.
func (f *fixture) run(t *testing.T, a Action) tx.State {
	t.Helper()
	ctx := context.Background()
	_, err := f.orch.Simulate(ctx, a.Key, a.Call, a.Gate)
	require.NoError(t, err)
	_, err = f.orch.Submit(ctx, a.Key, a.Call, a.Settlement)
	require.NoError(t, err)
	f.sender.statuses <- types.ReceiptStatusSuccessful
	st, err := f.orch.Wait(ctx, a.Key)
	require.NoError(t, err)
	require.Equal(t, tx.Mined, st.Phase)
	return st
}
