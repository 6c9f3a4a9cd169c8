package campaign

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/memecoin2016/meme-desk/internal/chain"
	"github.com/memecoin2016/meme-desk/internal/clock"
	"github.com/memecoin2016/meme-desk/internal/eligibility"
	"github.com/memecoin2016/meme-desk/internal/gallery"
	"github.com/memecoin2016/meme-desk/internal/tx"
)

type ArtDropConfig struct {
	Contract chain.Contract
	// Art is the ERC-1155 collection; the drop contract's balance is the unsold inventory.
	Art         chain.Contract
	Token       chain.Contract
	EditionSize uint64
	DiscountBps uint64
	// HolderThreshold is the token balance that earns the holder discount.
	HolderThreshold *big.Int
	Catalog         *gallery.Catalog
}

// ArtSale mirrors the drop contract's sale(id) tuple.
type ArtSale struct {
	PriceWei  *big.Int       `json:"priceWei"`
	StartTime int64          `json:"startTime"`
	MaxPerTx  uint64         `json:"maxPerTx"`
	Artist    common.Address `json:"artist"`
}

type ArtDropStatus struct {
	ID          uint64           `json:"id"`
	Artwork     *gallery.Artwork `json:"artwork,omitempty"`
	HasContract bool             `json:"hasContract"`
	Paused      *bool            `json:"paused,omitempty"`
	Sale        *ArtSale         `json:"sale,omitempty"`
	Open        bool             `json:"open"`
	BeforeOpen  bool             `json:"beforeOpen"`
	Closed      bool             `json:"closed"`
	OpensIn     string           `json:"opensIn,omitempty"`
	Headline    string           `json:"headline"`
	Inventory   uint64           `json:"inventory"`
	Available   string           `json:"available"`
	SoldOut     bool             `json:"soldOut"`
	UnitPrice   *big.Int         `json:"unitPrice,omitempty"`
	HolderPrice *big.Int         `json:"holderPrice,omitempty"`
	Holder      bool             `json:"holder"`
	Discounted  bool             `json:"discounted"`
	DiscountPct uint64           `json:"discountPct"`
	Amount      uint64           `json:"amount"`
	AmountOk    bool             `json:"amountOk"`
	Total       *big.Int         `json:"total"`
	Buy         Button           `json:"buy"`
	ShareURL    string           `json:"shareUrl,omitempty"`
}

// ArtDrop sells ERC-1155 editions of the gallery cards.
type ArtDrop struct {
	env Env
	cfg ArtDropConfig
}

func NewArtDrop(env Env, cfg ArtDropConfig) *ArtDrop {
	if cfg.Catalog == nil {
		cfg.Catalog = gallery.Season1()
	}
	return &ArtDrop{env: env, cfg: cfg}
}

func (d *ArtDrop) buyKey(id uint64, caller common.Address) string {
	return actionKey("artdrop", strconv.FormatUint(id, 10), "buy", accountKey(caller))
}

func (d *ArtDrop) Sale(ctx context.Context, id uint64) (ArtSale, error) {
	vs, err := d.env.Reader.Read(ctx, d.cfg.Contract, "sale", new(big.Int).SetUint64(id))
	if err != nil {
		return ArtSale{}, err
	}
	var s ArtSale
	if s.PriceWei, err = vs.BigInt(0); err != nil {
		return ArtSale{}, err
	}
	start, err := vs.Uint64(1)
	if err != nil {
		return ArtSale{}, err
	}
	s.StartTime = int64(start)
	if s.MaxPerTx, err = vs.Uint64(2); err != nil {
		return ArtSale{}, err
	}
	if s.Artist, err = vs.Address(3); err != nil {
		return ArtSale{}, err
	}
	return s, nil
}

// inventory is the drop contract's own balance of id. Unknown counts as zero, never unlimited.
func (d *ArtDrop) inventory(ctx context.Context, id uint64) uint64 {
	if !hasContract(d.cfg.Art) {
		return 0
	}
	n := d.env.readBigInt(ctx, d.cfg.Art, "balanceOf", d.cfg.Contract.Address, new(big.Int).SetUint64(id))
	if n == nil || !n.IsUint64() {
		return 0
	}
	return n.Uint64()
}

func (d *ArtDrop) unitPrice(ctx context.Context, caller *common.Address, id uint64) *big.Int {
	account := common.Address{}
	if caller != nil {
		account = *caller
	}
	return d.env.readBigInt(ctx, d.cfg.Contract, "unitPriceFor", account, new(big.Int).SetUint64(id))
}

// ParseAmount floors a free-form quantity; anything unparsable is zero.
func ParseAmount(text string) uint64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(f) || f < 1 {
		return 0
	}
	if f >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint64(math.Floor(f))
}

func amountOk(amount, maxPerTx, inventory uint64) bool {
	return amount > 0 &&
		(maxPerTx == 0 || amount <= maxPerTx) &&
		amount <= max(1, inventory)
}

func (d *ArtDrop) Status(ctx context.Context, id uint64, caller *common.Address, amountText string) ArtDropStatus {
	now := d.env.now()
	st := ArtDropStatus{
		ID:          id,
		HasContract: hasContract(d.cfg.Contract),
		DiscountPct: d.cfg.DiscountBps / 100,
		Total:       new(big.Int),
		Closed:      true,
	}
	if art, ok := d.cfg.Catalog.Get(id); ok {
		st.Artwork = &art
	}

	var maxPerTx uint64
	if st.HasContract {
		st.Paused = d.env.readBool(ctx, d.cfg.Contract, "paused")
		if sale, err := d.Sale(ctx, id); err == nil {
			st.Sale = &sale
			maxPerTx = sale.MaxPerTx
			w := clock.Window{OpensAt: sale.StartTime}
			st.Open = w.IsOpen(now)
			st.BeforeOpen = w.IsBeforeOpen(now)
			st.Closed = sale.StartTime == 0
			if st.BeforeOpen {
				st.OpensIn = w.OpensIn(now)
			}
			if sale.PriceWei.Sign() > 0 {
				st.UnitPrice = d.unitPrice(ctx, caller, id)
				st.HolderPrice = eligibility.DiscountedPrice(sale.PriceWei, true, d.cfg.DiscountBps)
			}
			st.Discounted = st.UnitPrice != nil && st.UnitPrice.Sign() > 0 && st.UnitPrice.Cmp(sale.PriceWei) < 0
		} else {
			logReadError(d.cfg.Contract, "sale", err)
		}
		st.Inventory = d.inventory(ctx, id)
	}
	st.SoldOut = st.Inventory == 0
	st.Available = fmt.Sprintf("%d/%d", st.Inventory, d.cfg.EditionSize)
	if caller != nil && hasContract(d.cfg.Token) {
		st.Holder = eligibility.IsHolder(d.env.readBigInt(ctx, d.cfg.Token, "balanceOf", *caller), d.cfg.HolderThreshold)
	}

	switch {
	case st.Closed:
		st.Headline = "Sale Closed"
	case st.BeforeOpen:
		st.Headline = "Opens in " + st.OpensIn
	case isTrue(st.Paused):
		st.Headline = "Paused"
	case st.SoldOut:
		st.Headline = "Sale Closed"
	default:
		st.Headline = "Sale Open"
	}

	st.Amount = ParseAmount(amountText)
	st.AmountOk = amountOk(st.Amount, maxPerTx, st.Inventory)
	if st.AmountOk && st.UnitPrice != nil {
		st.Total = new(big.Int).Mul(st.UnitPrice, new(big.Int).SetUint64(st.Amount))
	}

	var b Button
	if caller != nil {
		b = d.env.button(d.buyKey(id, *caller))
		if b.Phase == tx.Mined && st.Artwork != nil && st.Artwork.HasMedia() {
			st.ShareURL = gallery.ShareURL(d.cfg.Art.Address, *st.Artwork)
		}
	}
	switch {
	case b.pending():
		b.Label = LabelPending
	case caller == nil:
		b.Label = LabelConnectWallet
	case isTrue(st.Paused):
		b.Label = "Paused"
	case st.BeforeOpen:
		b.Label = "Starts Soon"
	case st.Closed:
		b.Label = "Closed"
	case st.Inventory == 0:
		b.Label = "Sold Out"
	case !st.AmountOk:
		b.Label = "Enter Valid Amount"
	default:
		b.Label = "Buy"
	}
	b.Enabled = st.HasContract && caller != nil && st.Open && isFalse(st.Paused) &&
		st.AmountOk && st.Total.Sign() > 0 && st.Inventory > 0 && !b.blocked()
	st.Buy = b
	return st
}

// BuyAction prepares buyTo(id, amount, caller) paying the caller's unit price.
func (d *ArtDrop) BuyAction(ctx context.Context, caller common.Address, id uint64, amountText string) (Action, error) {
	if !hasContract(d.cfg.Contract) {
		return Action{}, ErrNoContract
	}
	sale, err := d.Sale(ctx, id)
	if err != nil {
		return Action{}, fmt.Errorf("read sale %d: %w", id, err)
	}
	amount := ParseAmount(amountText)
	if !amountOk(amount, sale.MaxPerTx, d.inventory(ctx, id)) {
		return Action{}, ErrInvalidAmount
	}
	price := d.unitPrice(ctx, &caller, id)
	if price == nil || price.Sign() == 0 {
		return Action{}, fmt.Errorf("%w: unit price unknown", ErrInvalidAmount)
	}
	total := new(big.Int).Mul(price, new(big.Int).SetUint64(amount))
	idArg := new(big.Int).SetUint64(id)

	// unknown paused state keeps the retry gate closed
	paused := d.env.readBool(ctx, d.cfg.Contract, "paused")
	w := clock.Window{OpensAt: sale.StartTime, Paused: !isFalse(paused)}
	return Action{
		Key:  d.buyKey(id, caller),
		Call: tx.NewCall(d.cfg.Contract, "buyTo", total, idArg, new(big.Int).SetUint64(amount), caller),
		Settlement: tx.Settlement{
			Keys:       []chain.Key{d.cfg.Art.Key("balanceOf", d.cfg.Contract.Address, idArg)},
			Repeatable: true,
		},
		Gate: func() bool { return w.IsOpen(d.env.now()) },
	}, nil
}
