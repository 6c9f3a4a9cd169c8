package tx

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/memecoin2016/meme-desk/internal/chain"
)

// Call is a prepared contract write: target, method, arguments and attached value.
type Call struct {
	To     common.Address
	ABI    *abi.ABI
	Method string
	Args   []interface{}
	Value  *big.Int
}

func NewCall(c chain.Contract, method string, value *big.Int, args ...interface{}) Call {
	return Call{To: c.Address, ABI: c.ABI, Method: method, Args: args, Value: value}
}

func (c Call) Data() ([]byte, error) {
	if c.ABI == nil {
		return nil, fmt.Errorf("call %s has no abi", c.Method)
	}
	data, err := c.ABI.Pack(c.Method, c.Args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", c.Method, err)
	}
	return data, nil
}

func (c Call) value() *big.Int {
	if c.Value == nil {
		return new(big.Int)
	}
	return c.Value
}

// Fingerprint is keccak256(to || calldata || value), equal exactly when two calls would
// produce the same transaction body.
func (c Call) Fingerprint() (common.Hash, error) {
	data, err := c.Data()
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(c.To.Bytes(), data, common.LeftPadBytes(c.value().Bytes(), 32)), nil
}
