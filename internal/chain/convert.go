package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

func asBool(v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("unexpected output type %T, want bool", v)
	}
	return b, nil
}

// asBigInt copies, cached values are shared between readers.
func asBigInt(v interface{}) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, fmt.Errorf("nil integer output")
		}
		return new(big.Int).Set(n), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), nil
	default:
		return nil, fmt.Errorf("unexpected output type %T, want integer", v)
	}
}

func asUint64(v interface{}) (uint64, error) {
	n, err := asBigInt(v)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("integer output %s overflows uint64", n)
	}
	return n.Uint64(), nil
}

func asHash(v interface{}) (common.Hash, error) {
	b, ok := v.([32]byte)
	if !ok {
		return common.Hash{}, fmt.Errorf("unexpected output type %T, want bytes32", v)
	}
	return common.Hash(b), nil
}

func asAddress(v interface{}) (common.Address, error) {
	a, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected output type %T, want address", v)
	}
	return a, nil
}

// Values wraps the unpacked outputs of one read with typed accessors.
type Values []interface{}

func (vs Values) at(i int) (interface{}, error) {
	if i < 0 || i >= len(vs) {
		return nil, fmt.Errorf("output %d out of range (%d outputs)", i, len(vs))
	}
	return vs[i], nil
}

func (vs Values) Bool(i int) (bool, error) {
	v, err := vs.at(i)
	if err != nil {
		return false, err
	}
	return asBool(v)
}

func (vs Values) BigInt(i int) (*big.Int, error) {
	v, err := vs.at(i)
	if err != nil {
		return nil, err
	}
	return asBigInt(v)
}

func (vs Values) Uint64(i int) (uint64, error) {
	v, err := vs.at(i)
	if err != nil {
		return 0, err
	}
	return asUint64(v)
}

func (vs Values) Hash(i int) (common.Hash, error) {
	v, err := vs.at(i)
	if err != nil {
		return common.Hash{}, err
	}
	return asHash(v)
}

func (vs Values) Address(i int) (common.Address, error) {
	v, err := vs.at(i)
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(v)
}
