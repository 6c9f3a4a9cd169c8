package tx

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	log "github.com/sirupsen/logrus"
)

// Backend is the part of *ethclient.Client a Wallet needs.
type Backend interface {
	bind.DeployBackend
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
}

// Wallet signs and broadcasts EIP-1559 transactions with a local key.
type Wallet struct {
	// held from the nonce read until the broadcast returns
	sendMu sync.Mutex

	backend    Backend
	key        *ecdsa.PrivateKey
	from       common.Address
	chainID    *big.Int
	tip        *big.Int
	maxRetries int
	retryDelay time.Duration
}

func NewWallet(backend Backend, key *ecdsa.PrivateKey, chainID, tip *big.Int, maxRetries int) *Wallet {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if tip == nil {
		tip = big.NewInt(1_000_000_000)
	}
	return &Wallet{
		backend:    backend,
		key:        key,
		from:       crypto.PubkeyToAddress(key.PublicKey),
		chainID:    chainID,
		tip:        tip,
		maxRetries: maxRetries,
		retryDelay: time.Second,
	}
}

func (w *Wallet) Address() common.Address {
	return w.from
}

// SendTransaction builds, signs and broadcasts one transaction. Nonce and gas lookups are
// retried, the broadcast itself is not. Sends are serialized so concurrent actions never
// sign with the same pending nonce.
func (w *Wallet) SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (*types.Transaction, error) {
	w.sendMu.Lock()
	defer w.sendMu.Unlock()

	var err error
	var nonce, gasLimit uint64

	for i := 0; i < w.maxRetries; i++ {
		nonce, err = w.backend.PendingNonceAt(ctx, w.from)
		if err == nil {
			break
		}
		if !w.sleep(ctx) {
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("get head: %w", err)
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	// leave room for two base fee increases
	maxFeePerGas := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), w.tip)

	msg := ethereum.CallMsg{
		From:      w.from,
		To:        &to,
		Data:      data,
		Value:     value,
		GasFeeCap: maxFeePerGas,
		GasTipCap: w.tip,
	}
	for i := 0; i < w.maxRetries; i++ {
		gasLimit, err = w.backend.EstimateGas(ctx, msg)
		if err == nil {
			break
		}
		if !w.sleep(ctx) {
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}

	unsigned := types.NewTx(&types.DynamicFeeTx{
		ChainID:   w.chainID,
		Nonce:     nonce,
		GasTipCap: w.tip,
		GasFeeCap: maxFeePerGas,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	signed, err := types.SignTx(unsigned, types.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}
	log.WithFields(log.Fields{
		"hash":  signed.Hash().Hex(),
		"to":    to.Hex(),
		"nonce": nonce,
		"gas":   gasLimit,
	}).Info("Transaction sent")
	return signed, nil
}

func (w *Wallet) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, w.backend, tx)
}

func (w *Wallet) Lookup(ctx context.Context, hash common.Hash) (*types.Receipt, bool, error) {
	receipt, err := w.backend.TransactionReceipt(ctx, hash)
	if err == nil {
		return receipt, true, nil
	}
	if !errors.Is(err, ethereum.NotFound) {
		return nil, false, fmt.Errorf("get receipt: %w", err)
	}
	_, _, err = w.backend.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get tx: %w", err)
	}
	return nil, true, nil
}

func (w *Wallet) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(w.retryDelay):
		return true
	}
}
