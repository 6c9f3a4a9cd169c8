package campaign

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/memecoin2016/meme-desk/internal/chain"
	"github.com/memecoin2016/meme-desk/internal/chain/abis"
	"github.com/memecoin2016/meme-desk/internal/eligibility"
	"github.com/memecoin2016/meme-desk/internal/proof"
	"github.com/memecoin2016/meme-desk/internal/tx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func privateSaleConfig(buffer time.Duration) SaleConfig {
	return SaleConfig{
		Name:           "private-sale",
		Title:          "Private Sale",
		Contract:       presale,
		WhitelistRound: proof.RoundPresale,
		PresetOpensAt:  1754582400,
		MaxWei:         big.NewInt(1e17),
		WeiPerToken:    big.NewInt(28968713789107),
		TotalTokens:    103560,
		EarlyBuffer:    buffer,
	}
}

func (f *fixture) privateSale(opensAt uint64, paused bool, sold int64) {
	f.fake.Return(presale, "paused", paused)
	f.fake.Return(presale, "saleOpensAt", opensAt)
	f.fake.Return(presale, "tokensSold", big.NewInt(sold))
	f.fake.Return(presale, "hasPurchased", false)
	f.fake.Return(presale, "delegateUsed", false)
}

func TestSaleOpensAtOpenTime(t *testing.T) {
	f := newFixture(t, 999)
	f.privateSale(1000, false, 0)
	s := NewSale(f.env, privateSaleConfig(0))
	req := SaleRequest{Caller: &alice, Amount: "0.1"}

	st := s.Status(context.Background(), req)
	assert.True(t, st.BeforeOpen)
	assert.False(t, st.Open)
	assert.Equal(t, "0d 0h 0m 1s", st.OpensIn)
	assert.Equal(t, "Private Sale Opens in 0d 0h 0m 1s", st.Headline)
	assert.Equal(t, "Starts Soon", st.Buy.Label)
	assert.False(t, st.Buy.Enabled)

	f.clock.Advance(time.Second)
	st = s.Status(context.Background(), req)
	assert.True(t, st.Open)
	assert.Equal(t, "Private Sale Open", st.Headline)
	assert.Equal(t, "Buy MEME", st.Buy.Label)
	assert.True(t, st.Buy.Enabled)
	assert.Equal(t, "3452", st.Tokens.String())
}

func TestSaleEarlyBuffer(t *testing.T) {
	f := newFixture(t, 995)
	f.privateSale(1000, false, 0)

	st := NewSale(f.env, privateSaleConfig(5*time.Second)).Status(context.Background(), SaleRequest{Caller: &alice, Amount: "0.05"})
	assert.True(t, st.Open)
	assert.True(t, st.Buy.Enabled)
}

func TestSalePausedIsNeverOpen(t *testing.T) {
	f := newFixture(t, 5000)
	f.privateSale(1000, true, 0)

	st := NewSale(f.env, privateSaleConfig(0)).Status(context.Background(), SaleRequest{Caller: &alice, Amount: "0.1"})
	assert.False(t, st.Open)
	assert.Equal(t, "Private Sale Closed", st.Headline)
	assert.False(t, st.Buy.Enabled)
}

func TestSaleLabels(t *testing.T) {
	tests := []struct {
		name         string
		caller       *common.Address
		beneficiary  string
		amount       string
		sold         int64
		purchased    bool
		delegateUsed bool
		wantLabel    string
		wantOn       bool
	}{
		{"sold out wins", &alice, "", "0.1", 103560, true, true, "Sold Out", false},
		{"disconnected", nil, "", "0.1", 0, false, false, "Connect Wallet", false},
		{"already purchased before delegate", &alice, "", "0.1", 0, true, true, "Already Purchased", false},
		{"delegate slot used", &alice, "", "0.1", 0, false, true, "Delegate Slot Used", false},
		{"not eligible", &carol, "", "0.1", 0, false, false, "Not Eligible", false},
		{"malformed beneficiary", &alice, "0x1234", "0.1", 0, false, false, "Not Eligible", false},
		{"empty amount", &alice, "", "", 0, false, false, "Enter ETH Amount", false},
		{"over allocation", &alice, "", "0.2", 0, false, false, "Buy MEME", false},
		{"delegate buy", &carol, bob.Hex(), "0.1", 0, false, false, "Delegate Buy", true},
		{"self buy", &alice, "", "0.1", 0, false, false, "Buy MEME", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 2000)
			f.fake.Return(presale, "paused", false)
			f.fake.Return(presale, "saleOpensAt", uint64(1000))
			f.fake.Return(presale, "tokensSold", big.NewInt(tt.sold))
			f.fake.Return(presale, "hasPurchased", tt.purchased)
			f.fake.Return(presale, "delegateUsed", tt.delegateUsed)

			st := NewSale(f.env, privateSaleConfig(0)).Status(context.Background(), SaleRequest{
				Caller: tt.caller, Beneficiary: tt.beneficiary, Amount: tt.amount,
			})
			assert.Equal(t, tt.wantLabel, st.Buy.Label)
			assert.Equal(t, tt.wantOn, st.Buy.Enabled)
		})
	}
}

func TestSaleEligibilityMessages(t *testing.T) {
	f := newFixture(t, 2000)
	f.privateSale(1000, false, 0)
	s := NewSale(f.env, privateSaleConfig(0))

	st := s.Status(context.Background(), SaleRequest{Beneficiary: "not-an-address"})
	assert.Equal(t, eligibility.StatusInvalid, st.Eligibility)
	assert.Equal(t, "Input is not an Ethereum address.", st.Message)
	assert.Nil(t, st.Beneficiary)

	st = s.Status(context.Background(), SaleRequest{Beneficiary: carol.Hex()})
	assert.Equal(t, eligibility.StatusIneligible, st.Eligibility)
	assert.Equal(t, "Wallet is not on the whitelist.", st.Message)

	// case of the input must not matter
	st = s.Status(context.Background(), SaleRequest{Beneficiary: "0x00000000000000000000000000000000000000B2"})
	assert.Equal(t, eligibility.StatusEligible, st.Eligibility)
}

func TestSaleWithoutContractCountsDownToPreset(t *testing.T) {
	f := newFixture(t, 1754582400-90)
	cfg := privateSaleConfig(0)
	cfg.Contract = chain.Contract{ABI: abis.PrivateSaleABI}

	st := NewSale(f.env, cfg).Status(context.Background(), SaleRequest{Caller: &alice, Amount: "0.1"})
	assert.False(t, st.HasContract)
	assert.Equal(t, "Round Opens in 0d 0h 1m 30s", st.Headline)
	assert.False(t, st.Buy.Enabled)

	_, err := NewSale(f.env, cfg).BuyAction(context.Background(), alice, SaleRequest{Amount: "0.1"})
	assert.ErrorIs(t, err, ErrNoContract)
}

func TestSaleBuyAction(t *testing.T) {
	f := newFixture(t, 2000)
	f.privateSale(1000, false, 0)
	s := NewSale(f.env, privateSaleConfig(0))
	ctx := context.Background()

	_, err := s.BuyAction(ctx, alice, SaleRequest{Amount: "0.5"})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = s.BuyAction(ctx, carol, SaleRequest{Amount: "0.1"})
	assert.ErrorIs(t, err, ErrNotEligible)
	_, err = s.BuyAction(ctx, alice, SaleRequest{Beneficiary: "0xzz", Amount: "0.1"})
	assert.ErrorIs(t, err, eligibility.ErrMalformedAddress)

	action, err := s.BuyAction(ctx, carol, SaleRequest{Beneficiary: bob.Hex(), Amount: "0.1"})
	require.NoError(t, err)
	assert.Equal(t, "private-sale/buy/"+accountKey(carol)+"/"+accountKey(bob), action.Key)
	assert.Equal(t, bob, action.Call.Args[0])
	assert.Equal(t, "100000000000000000", action.Call.Value.String())
	assert.ElementsMatch(t, action.Settlement.Keys, []chain.Key{
		presale.Key("hasPurchased", bob),
		presale.Key("tokensSold"),
		presale.Key("delegateUsed", carol),
	})
	assert.True(t, action.Gate())
}

// While the contract still says "Sale not open" but the local clock says open, the
// simulation is retried until the contract agrees, then the purchase goes through.
func TestSaleSimulationRetriesUntilContractOpens(t *testing.T) {
	f := newFixture(t, 1000)
	f.privateSale(1000, false, 0)
	var open atomic.Bool
	f.fake.Handle(presale, "buy", func(msg ethereum.CallMsg, _ []interface{}) ([]interface{}, error) {
		if !open.Load() {
			return nil, errors.New("execution reverted: Sale not open")
		}
		return nil, nil
	})
	s := NewSale(f.env, privateSaleConfig(0))
	ctx := context.Background()

	action, err := s.BuyAction(ctx, alice, SaleRequest{Amount: "0.1"})
	require.NoError(t, err)
	st, err := f.orch.Simulate(ctx, action.Key, action.Call, action.Gate)
	require.NoError(t, err)
	require.True(t, st.Retrying)

	open.Store(true)
	f.clock.Advance(tx.DefaultRetryInterval)
	require.Eventually(t, func() bool {
		return f.orch.Snapshot(action.Key).Phase == tx.SimulationOk
	}, time.Second, time.Millisecond)

	_, err = f.orch.Submit(ctx, action.Key, action.Call, action.Settlement)
	require.NoError(t, err)
}

func TestPublicSale(t *testing.T) {
	f := newFixture(t, 2000)
	f.fake.Return(public, "paused", false)
	f.fake.Return(public, "saleOpensAt", uint64(1000))
	f.fake.Return(public, "tokensSold", big.NewInt(10))
	f.fake.Return(public, "hasPurchased", false)
	f.fake.Return(public, "buy")
	s := NewSale(f.env, SaleConfig{
		Name: "public-sale", Title: "Public Sale", Contract: public,
		MaxWei: big.NewInt(5e16), WeiPerToken: big.NewInt(28968713789107), TotalTokens: 103560,
	})
	ctx := context.Background()

	st := s.Status(ctx, SaleRequest{Caller: &carol, Amount: "0.05"})
	assert.Equal(t, "Public Sale Open", st.Headline)
	assert.Equal(t, "Buy MEME", st.Buy.Label)
	assert.True(t, st.Buy.Enabled)
	assert.Nil(t, st.DelegateUsed)

	action, err := s.BuyAction(ctx, carol, SaleRequest{Amount: "0.05"})
	require.NoError(t, err)
	assert.Empty(t, action.Call.Args)
	f.run(t, action)

	st = s.Status(ctx, SaleRequest{Caller: &carol, Amount: "0.05"})
	assert.Equal(t, tx.Mined, st.Buy.Phase)
	_, err = f.orch.Simulate(ctx, action.Key, action.Call, action.Gate)
	assert.ErrorIs(t, err, tx.ErrSettled)
}

func TestSaleOwnPurchaseDoesNotBlockDelegateBuy(t *testing.T) {
	f := newFixture(t, 2000)
	f.privateSale(1000, false, 0)
	f.fake.Return(presale, "buy")
	s := NewSale(f.env, privateSaleConfig(0))
	ctx := context.Background()

	own, err := s.BuyAction(ctx, alice, SaleRequest{Amount: "0.1"})
	require.NoError(t, err)
	f.run(t, own)

	st := s.Status(ctx, SaleRequest{Caller: &alice, Amount: "0.1"})
	assert.Equal(t, tx.Mined, st.Buy.Phase)
	assert.False(t, st.Buy.Enabled)

	st = s.Status(ctx, SaleRequest{Caller: &alice, Beneficiary: bob.Hex(), Amount: "0.1"})
	assert.Equal(t, "Delegate Buy", st.Buy.Label)
	assert.True(t, st.Buy.Enabled)

	delegate, err := s.BuyAction(ctx, alice, SaleRequest{Beneficiary: bob.Hex(), Amount: "0.1"})
	require.NoError(t, err)
	assert.NotEqual(t, own.Key, delegate.Key)
	f.run(t, delegate)
}
