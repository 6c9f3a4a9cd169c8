package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Contract is a deployed contract together with the ABI used to talk to it.
type Contract struct {
	Address common.Address
	ABI     *abi.ABI
}

// Key identifies one cached read: contract, method and canonicalised arguments.
type Key struct {
	Contract common.Address
	Method   string
	Args     string
}

func NewKey(contract common.Address, method string, args ...interface{}) Key {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = formatArg(a)
	}
	return Key{Contract: contract, Method: method, Args: strings.Join(parts, ",")}
}

func (c Contract) Key(method string, args ...interface{}) Key {
	return NewKey(c.Address, method, args...)
}

func (k Key) String() string {
	return fmt.Sprintf("%s.%s(%s)", strings.ToLower(k.Contract.Hex()), k.Method, k.Args)
}

// formatArg gives equal chain values equal text regardless of Go type or address casing.
func formatArg(a interface{}) string {
	switch v := a.(type) {
	case common.Address:
		return strings.ToLower(v.Hex())
	case *common.Address:
		if v == nil {
			return "nil"
		}
		return strings.ToLower(v.Hex())
	case *big.Int:
		if v == nil {
			return "nil"
		}
		return v.String()
	case common.Hash:
		return v.Hex()
	case [32]byte:
		return "0x" + hex.EncodeToString(v[:])
	case []byte:
		return "0x" + hex.EncodeToString(v)
	case [][32]byte:
		parts := make([]string, len(v))
		for i := range v {
			parts[i] = "0x" + hex.EncodeToString(v[i][:])
		}
		return "[" + strings.Join(parts, ",") + "]"
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
