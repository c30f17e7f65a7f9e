package rlp

import (
	"bytes"
	"math/big"
	"strconv"

	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// Kind distinguishes the two RLP item shapes.
type Kind uint8

// Item kinds.
const (
	KindString Kind = iota
	KindList
)

// String returns the kind name.
func (k Kind) String() string {
	if k == KindList {
		return "list"
	}
	return "string"
}

// Item is a decoded RLP value: either a byte string or an ordered list of items.
// Items produced by Decode share memory with the decoded input.
type Item struct {
	kind Kind
	data []byte
	list []Item
}

// NewString returns a byte-string item.
func NewString(b []byte) Item {
	return Item{kind: KindString, data: b}
}

// NewList returns a list item holding the given elements.
func NewList(items ...Item) Item {
	if items == nil {
		items = []Item{}
	}
	return Item{kind: KindList, list: items}
}

// NewUint returns the canonical string item for an unsigned integer.
func NewUint(i uint64) Item {
	return NewString(bigEndianBytes(i))
}

// NewBigInt returns the canonical string item for a non-negative big integer.
func NewBigInt(i *big.Int) Item {
	if i == nil || i.Sign() == 0 {
		return NewString(nil)
	}
	return NewString(i.Bytes())
}

// Kind returns the item kind.
func (it Item) Kind() Kind {
	return it.kind
}

// IsList reports whether the item is a list.
func (it Item) IsList() bool {
	return it.kind == KindList
}

// Bytes returns the content of a string item.
func (it Item) Bytes() ([]byte, error) {
	if it.kind != KindString {
		return nil, unexpectedKind(KindString, it.kind)
	}
	return it.data, nil
}

// List returns the elements of a list item.
func (it Item) List() ([]Item, error) {
	if it.kind != KindList {
		return nil, unexpectedKind(KindList, it.kind)
	}
	return it.list, nil
}

// Uint64 interprets a string item as a canonical unsigned integer of at most 8 bytes.
func (it Item) Uint64() (uint64, error) {
	b, err := it.integerBytes()
	if err != nil {
		return 0, err
	}
	if len(b) > 8 {
		return 0, deployerr.WithDetails(deployerr.ErrRLPMalformed, map[string]string{
			"reason": "integer overflows uint64",
			"size":   strconv.Itoa(len(b)),
		})
	}

	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

// BigInt interprets a string item as a canonical non-negative integer.
func (it Item) BigInt() (*big.Int, error) {
	b, err := it.integerBytes()
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// Equal reports whether two items have the same shape and content.
// A nil and an empty byte string are equal.
func (it Item) Equal(other Item) bool {
	if it.kind != other.kind {
		return false
	}
	if it.kind == KindString {
		return bytes.Equal(it.data, other.data)
	}
	if len(it.list) != len(other.list) {
		return false
	}
	for i := range it.list {
		if !it.list[i].Equal(other.list[i]) {
			return false
		}
	}
	return true
}

// integerBytes returns the content of a string item, rejecting leading zeros.
func (it Item) integerBytes() ([]byte, error) {
	b, err := it.Bytes()
	if err != nil {
		return nil, err
	}
	if len(b) > 0 && b[0] == 0 {
		return nil, deployerr.WithDetails(deployerr.ErrRLPNonCanonical, map[string]string{
			"reason": "integer has leading zero bytes",
		})
	}
	return b, nil
}

func unexpectedKind(want, got Kind) error {
	return deployerr.WithDetails(deployerr.ErrRLPUnexpectedType, map[string]string{
		"expected": want.String(),
		"actual":   got.String(),
	})
}
