package abi

import (
	"math/big"
	"strconv"

	"github.com/holiman/uint256"

	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// Value is a typed ABI argument. Static scalars carry their encoded word;
// bytes and strings carry their payload; arrays and tuples carry their elements.
type Value struct {
	typ   Type
	word  [WordSize]byte
	data  []byte
	elems []Value
}

// Type returns the ABI type of the value.
func (v Value) Type() Type {
	return v.typ
}

// Uint returns a uintN value. It fails when x is negative or wider than bits.
func Uint(bits int, x *big.Int) (Value, error) {
	t := Type{Kind: KindUint, Size: bits}
	if _, ok := integerBits(strconv.Itoa(bits)); !ok {
		return Value{}, unknownType(t.String())
	}
	if x == nil || x.Sign() < 0 || x.BitLen() > bits {
		return Value{}, outOfRange(t, x)
	}
	u, _ := uint256.FromBig(x)
	return Value{typ: t, word: u.Bytes32()}, nil
}

// Uint256 returns a uint256 value from a 256-bit integer.
func Uint256(x *uint256.Int) Value {
	return Value{typ: Type{Kind: KindUint, Size: 256}, word: x.Bytes32()}
}

// Int returns an intN value encoded in two's complement.
func Int(bits int, x *big.Int) (Value, error) {
	t := Type{Kind: KindInt, Size: bits}
	if _, ok := integerBits(strconv.Itoa(bits)); !ok {
		return Value{}, unknownType(t.String())
	}
	if x == nil {
		return Value{}, outOfRange(t, x)
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	minValue := new(big.Int).Neg(limit)
	if x.Cmp(limit) >= 0 || x.Cmp(minValue) < 0 {
		return Value{}, outOfRange(t, x)
	}

	u, _ := uint256.FromBig(new(big.Int).Abs(x))
	if x.Sign() < 0 {
		u.Neg(u)
	}
	return Value{typ: t, word: u.Bytes32()}, nil
}

// Bool returns a bool value.
func Bool(b bool) Value {
	v := Value{typ: Type{Kind: KindBool}}
	if b {
		v.word[WordSize-1] = 1
	}
	return v
}

// Address returns an address value, right-aligned in its word.
func Address(addr [20]byte) Value {
	v := Value{typ: Type{Kind: KindAddress, Size: 160}}
	copy(v.word[WordSize-len(addr):], addr[:])
	return v
}

// FixedBytes returns a bytesN value with N = size. Shorter input is
// right-padded with zeros.
func FixedBytes(size int, b []byte) (Value, error) {
	t := Type{Kind: KindFixedBytes, Size: size}
	if size < 1 || size > WordSize {
		return Value{}, unknownType(t.String())
	}
	if len(b) > size {
		return Value{}, deployerr.WithDetails(deployerr.ErrABITypeMismatch, map[string]string{
			"type":   t.String(),
			"reason": "value has " + strconv.Itoa(len(b)) + " bytes",
		})
	}
	v := Value{typ: t}
	copy(v.word[:], b)
	return v, nil
}

// Bytes returns a dynamic bytes value.
func Bytes(b []byte) Value {
	return Value{typ: Type{Kind: KindBytes}, data: append([]byte{}, b...)}
}

// String returns a dynamic string value.
func String(s string) Value {
	return Value{typ: Type{Kind: KindString}, data: []byte(s)}
}

// Slice returns a dynamic array T[] of the given elements.
func Slice(elem Type, elems ...Value) (Value, error) {
	if err := checkElems(elem, elems); err != nil {
		return Value{}, err
	}
	e := elem
	return Value{typ: Type{Kind: KindSlice, Elem: &e}, elems: append([]Value{}, elems...)}, nil
}

// Array returns a fixed array T[n] with n = len(elems).
func Array(elem Type, elems ...Value) (Value, error) {
	if len(elems) == 0 {
		return Value{}, deployerr.WithDetails(deployerr.ErrABITypeMismatch, map[string]string{
			"type":   elem.String() + "[0]",
			"reason": "fixed arrays must not be empty",
		})
	}
	if err := checkElems(elem, elems); err != nil {
		return Value{}, err
	}
	e := elem
	return Value{typ: Type{Kind: KindArray, Size: len(elems), Elem: &e}, elems: append([]Value{}, elems...)}, nil
}

// Tuple returns a tuple of the given components, typed after them.
func Tuple(elems ...Value) (Value, error) {
	if len(elems) == 0 {
		return Value{}, deployerr.WithDetails(deployerr.ErrABITypeMismatch, map[string]string{
			"type":   "()",
			"reason": "tuples must not be empty",
		})
	}
	types := make([]Type, len(elems))
	for i, e := range elems {
		types[i] = e.typ
	}
	return Value{typ: Type{Kind: KindTuple, Elems: types}, elems: append([]Value{}, elems...)}, nil
}

func checkElems(elem Type, elems []Value) error {
	for i, v := range elems {
		if !v.typ.Equal(elem) {
			return deployerr.WithDetails(deployerr.ErrABITypeMismatch, map[string]string{
				"type":   elem.String(),
				"actual": v.typ.String(),
				"index":  strconv.Itoa(i),
			})
		}
	}
	return nil
}

func outOfRange(t Type, x *big.Int) error {
	value := "<nil>"
	if x != nil {
		value = x.String()
	}
	return deployerr.WithDetails(deployerr.ErrABITypeMismatch, map[string]string{
		"type":   t.String(),
		"value":  value,
		"reason": "integer out of range",
	})
}
