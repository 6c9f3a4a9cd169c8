// Package chaintest provides an in-memory contract backend that speaks real ABI encoding.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/memecoin2016/meme-desk/internal/chain"
)

// Handler answers one call; msg carries From and Value for simulations.
type Handler func(msg ethereum.CallMsg, args []interface{}) ([]interface{}, error)

type handlerEntry struct {
	method abi.Method
	fn     Handler
}

type FakeChain struct {
	mu       sync.Mutex
	handlers map[common.Address]map[[4]byte]handlerEntry
	calls    map[string]int
	block    chan struct{}
}

func New() *FakeChain {
	return &FakeChain{
		handlers: make(map[common.Address]map[[4]byte]handlerEntry),
		calls:    make(map[string]int),
	}
}

func (f *FakeChain) Handle(c chain.Contract, method string, fn Handler) {
	m, ok := c.ABI.Methods[method]
	if !ok {
		panic(fmt.Sprintf("chaintest: method %s not in abi", method))
	}
	var sel [4]byte
	copy(sel[:], m.ID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers[c.Address] == nil {
		f.handlers[c.Address] = make(map[[4]byte]handlerEntry)
	}
	f.handlers[c.Address][sel] = handlerEntry{method: m, fn: fn}
}

// Return answers method with fixed outputs.
func (f *FakeChain) Return(c chain.Contract, method string, outputs ...interface{}) {
	f.Handle(c, method, func(ethereum.CallMsg, []interface{}) ([]interface{}, error) {
		return outputs, nil
	})
}

// Revert makes every call of method fail with "execution reverted: reason".
func (f *FakeChain) Revert(c chain.Contract, method string, reason string) {
	f.Handle(c, method, func(ethereum.CallMsg, []interface{}) ([]interface{}, error) {
		return nil, errors.New("execution reverted: " + reason)
	})
}

// Block holds every call until the returned release func runs.
func (f *FakeChain) Block() func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.block = ch
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.block = nil
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *FakeChain) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *FakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("chaintest: call without target or selector")
	}
	var sel [4]byte
	copy(sel[:], msg.Data[:4])

	f.mu.Lock()
	h, ok := f.handlers[*msg.To][sel]
	if ok {
		f.calls[h.method.Name]++
	}
	block := f.block
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("chaintest: no handler for %s selector %x", msg.To.Hex(), sel)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	args, err := h.method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	out, err := h.fn(msg, args)
	if err != nil {
		return nil, err
	}
	if len(h.method.Outputs) == 0 {
		return nil, nil
	}
	return h.method.Outputs.Pack(out...)
}
