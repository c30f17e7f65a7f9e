// Package rlp implements canonical RLP (Recursive Length Prefix) encoding and
// decoding as used by Ethereum transactions.
// See: https://ethereum.org/en/developers/docs/data-structures-and-encoding/rlp/
package rlp

import (
	"fmt"
	"math/big"
)

// Encode encodes a value to RLP format.
// Supported types: []byte, *big.Int, uint64, Item, []Item and []any (for lists).
// Integers are written as minimal big-endian byte strings, so a value whose top
// byte is zero is written in fewer bytes, never padded. Encode panics on an
// unsupported type or a negative *big.Int, both of which are caller bugs.
func Encode(val any) []byte {
	switch v := val.(type) {
	case []byte:
		return encodeBytes(v)
	case *big.Int:
		return encodeBigInt(v)
	case uint64:
		return encodeUint64(v)
	case Item:
		return encodeItem(v)
	case []Item:
		return encodeItems(v)
	case []any:
		return encodeList(v)
	default:
		panic(fmt.Sprintf("rlp: cannot encode %T", val))
	}
}

// encodeBytes encodes a byte string.
// - A single byte in [0x00, 0x7f] is its own encoding.
// - 0-55 bytes are prefixed with (0x80 + length).
// - Longer strings are prefixed with (0xb7 + length of length) and the length.
func encodeBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return []byte{b[0]}
	}
	return concat(encodeLength(len(b), 0x80), b)
}

// encodeBigInt encodes a non-negative big.Int. Zero and nil encode as the empty string.
func encodeBigInt(i *big.Int) []byte {
	if i == nil || i.Sign() == 0 {
		return []byte{0x80}
	}
	if i.Sign() < 0 {
		panic("rlp: cannot encode negative integer " + i.String())
	}
	return encodeBytes(i.Bytes())
}

func encodeUint64(i uint64) []byte {
	if i == 0 {
		return []byte{0x80}
	}
	return encodeBytes(bigEndianBytes(i))
}

func encodeItem(it Item) []byte {
	if it.kind == KindList {
		return encodeItems(it.list)
	}
	return encodeBytes(it.data)
}

func encodeItems(items []Item) []byte {
	encoded := make([][]byte, len(items))
	for i, item := range items {
		encoded[i] = encodeItem(item)
	}
	return wrapList(encoded)
}

// encodeList encodes a heterogeneous list of supported values.
func encodeList(items []any) []byte {
	encoded := make([][]byte, len(items))
	for i, item := range items {
		encoded[i] = Encode(item)
	}
	return wrapList(encoded)
}

// wrapList joins encoded elements and prefixes them with a list header:
// (0xc0 + length) for payloads up to 55 bytes, (0xf7 + length of length) otherwise.
func wrapList(encoded [][]byte) []byte {
	totalLen := 0
	for _, e := range encoded {
		totalLen += len(e)
	}

	content := make([]byte, 0, totalLen)
	for _, e := range encoded {
		content = append(content, e...)
	}
	return concat(encodeLength(len(content), 0xc0), content)
}

// encodeLength encodes the length prefix for strings (offset=0x80) or lists (offset=0xc0).
func encodeLength(length int, offset byte) []byte {
	if length < 56 {
		return []byte{offset + byte(length)} //nolint:gosec // G115: length < 56, safe conversion
	}

	lenBytes := bigEndianBytes(uint64(length))
	return append([]byte{offset + 55 + byte(len(lenBytes))}, lenBytes...) //nolint:gosec // G115: len(lenBytes) <= 8 for any uint64
}

// bigEndianBytes converts a uint64 to minimal big-endian bytes (no leading zeros).
func bigEndianBytes(i uint64) []byte {
	if i == 0 {
		return nil
	}

	n := 0
	for v := i; v > 0; v >>= 8 {
		n++
	}

	result := make([]byte, n)
	for j := n - 1; j >= 0; j-- {
		result[j] = byte(i)
		i >>= 8
	}
	return result
}

func concat(slices ...[]byte) []byte {
	totalLen := 0
	for _, s := range slices {
		totalLen += len(s)
	}

	result := make([]byte, 0, totalLen)
	for _, s := range slices {
		result = append(result, s...)
	}
	return result
}
