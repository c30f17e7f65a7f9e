package abi

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	ethcrypto "github.com/mrz1836/ethdeploy/internal/chain/eth/crypto"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// byteser is satisfied by address types that expose their raw bytes.
type byteser interface {
	Bytes() []byte
}

// Convert turns a Go value into a Value of type t. Integers accept Go integer
// types, *big.Int, *uint256.Int and decimal or 0x-hex strings. Addresses accept
// [20]byte, types with a 20-byte Bytes method and hex strings (mixed case must
// carry a valid checksum). Byte types accept []byte and hex strings. Arrays
// and tuples accept []any, []string or a JSON array string.
func Convert(t Type, v any) (Value, error) {
	if val, ok := v.(Value); ok {
		if !val.typ.Equal(t) {
			return Value{}, mismatch(t, v, "value has type "+val.typ.String())
		}
		return val, nil
	}

	switch t.Kind {
	case KindUint, KindInt:
		x, err := toBigInt(t, v)
		if err != nil {
			return Value{}, err
		}
		if t.Kind == KindUint {
			return Uint(t.Size, x)
		}
		return Int(t.Size, x)

	case KindBool:
		switch b := v.(type) {
		case bool:
			return Bool(b), nil
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			if err != nil {
				return Value{}, mismatch(t, v, "not a boolean")
			}
			return Bool(parsed), nil
		}

	case KindAddress:
		addr, err := toAddress(t, v)
		if err != nil {
			return Value{}, err
		}
		return Address(addr), nil

	case KindFixedBytes:
		b, err := toBytes(t, v)
		if err != nil {
			return Value{}, err
		}
		return FixedBytes(t.Size, b)

	case KindBytes:
		b, err := toBytes(t, v)
		if err != nil {
			return Value{}, err
		}
		return Bytes(b), nil

	case KindString:
		if s, ok := v.(string); ok {
			return String(s), nil
		}

	case KindSlice, KindArray:
		return toArray(t, v)

	case KindTuple:
		return toTuple(t, v)
	}

	return Value{}, mismatch(t, v, "unsupported Go type")
}

func toBigInt(t Type, v any) (*big.Int, error) {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return nil, mismatch(t, v, "nil integer")
		}
		return new(big.Int).Set(x), nil
	case big.Int:
		return new(big.Int).Set(&x), nil
	case *uint256.Int:
		if x == nil {
			return nil, mismatch(t, v, "nil integer")
		}
		return x.ToBig(), nil
	case int:
		return big.NewInt(int64(x)), nil
	case int8:
		return big.NewInt(int64(x)), nil
	case int16:
		return big.NewInt(int64(x)), nil
	case int32:
		return big.NewInt(int64(x)), nil
	case int64:
		return big.NewInt(x), nil
	case uint:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case json.Number:
		return toBigInt(t, string(x))
	case string:
		s := strings.TrimSpace(x)
		base := 10
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			s, base = s[2:], 16
		}
		n, ok := new(big.Int).SetString(s, base)
		if !ok {
			return nil, mismatch(t, v, "not an integer")
		}
		return n, nil
	}
	return nil, mismatch(t, v, "unsupported Go type")
}

func toAddress(t Type, v any) ([20]byte, error) {
	var addr [20]byte
	switch x := v.(type) {
	case [20]byte:
		return x, nil
	case string:
		if err := ethcrypto.ValidateChecksum(strings.TrimSpace(x)); err != nil {
			return addr, deployerr.WithDetails(deployerr.WithCause(deployerr.ErrABITypeMismatch, err), map[string]string{
				"type":  t.String(),
				"value": x,
			})
		}
		s := strings.TrimSpace(x)
		b, _ := hex.DecodeString(s[len(s)-40:])
		copy(addr[:], b)
		return addr, nil
	case []byte:
		if len(x) != len(addr) {
			return addr, mismatch(t, v, "address must be 20 bytes")
		}
		copy(addr[:], x)
		return addr, nil
	case byteser:
		b := x.Bytes()
		if len(b) != len(addr) {
			return addr, mismatch(t, v, "address must be 20 bytes")
		}
		copy(addr[:], b)
		return addr, nil
	}
	return addr, mismatch(t, v, "unsupported Go type")
}

func toBytes(t Type, v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		s := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(x), "0x"), "0X")
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, mismatch(t, v, "not a hex string")
		}
		return b, nil
	}
	if t.Kind == KindFixedBytes && t.Size == WordSize {
		if h, ok := v.([WordSize]byte); ok {
			return h[:], nil
		}
	}
	return nil, mismatch(t, v, "unsupported Go type")
}

// listItems accepts the list forms shared by arrays and tuples.
func listItems(t Type, v any) ([]any, error) {
	var items []any
	switch x := v.(type) {
	case []any:
		items = x
	case []string:
		items = make([]any, len(x))
		for i, s := range x {
			items[i] = s
		}
	case string:
		dec := json.NewDecoder(strings.NewReader(x))
		dec.UseNumber()
		if err := dec.Decode(&items); err != nil {
			return nil, mismatch(t, v, "not a JSON array")
		}
	default:
		return nil, mismatch(t, v, "unsupported Go type")
	}
	return items, nil
}

func toArray(t Type, v any) (Value, error) {
	items, err := listItems(t, v)
	if err != nil {
		return Value{}, err
	}

	if t.Kind == KindArray && len(items) != t.Size {
		return Value{}, mismatch(t, v, fmt.Sprintf("expected %d elements, got %d", t.Size, len(items)))
	}

	elems := make([]Value, len(items))
	for i, item := range items {
		elem, err := Convert(*t.Elem, item)
		if err != nil {
			return Value{}, deployerr.Wrap(err, "element %d", i)
		}
		elems[i] = elem
	}
	if t.Kind == KindArray {
		return Array(*t.Elem, elems...)
	}
	return Slice(*t.Elem, elems...)
}

func toTuple(t Type, v any) (Value, error) {
	items, err := listItems(t, v)
	if err != nil {
		return Value{}, err
	}
	if len(items) != len(t.Elems) {
		return Value{}, mismatch(t, v, fmt.Sprintf("expected %d components, got %d", len(t.Elems), len(items)))
	}

	elems := make([]Value, len(items))
	for i, item := range items {
		elem, err := Convert(t.Elems[i], item)
		if err != nil {
			return Value{}, deployerr.Wrap(err, "component %d", i)
		}
		elems[i] = elem
	}
	return Tuple(elems...)
}

func mismatch(t Type, v any, reason string) error {
	return deployerr.WithDetails(deployerr.ErrABITypeMismatch, map[string]string{
		"type":    t.String(),
		"go_type": fmt.Sprintf("%T", v),
		"reason":  reason,
	})
}
