package rlp

import (
	"strconv"

	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// maxSize caps decoded lengths so header arithmetic cannot overflow int.
const maxSize = 1<<31 - 1

// Decode parses the first RLP item in b and returns it together with any trailing
// bytes that follow it. Only canonical encodings are accepted.
func Decode(b []byte) (Item, []byte, error) {
	kind, content, rest, err := split(b)
	if err != nil {
		return Item{}, nil, err
	}

	if kind == KindString {
		return NewString(content), rest, nil
	}

	items := make([]Item, 0)
	for len(content) > 0 {
		item, tail, err := Decode(content)
		if err != nil {
			return Item{}, nil, err
		}
		items = append(items, item)
		content = tail
	}
	return NewList(items...), rest, nil
}

// DecodeExact parses b as exactly one RLP item and rejects trailing bytes.
func DecodeExact(b []byte) (Item, error) {
	item, rest, err := Decode(b)
	if err != nil {
		return Item{}, err
	}
	if len(rest) > 0 {
		return Item{}, deployerr.WithDetails(deployerr.ErrRLPMalformed, map[string]string{
			"reason":   "trailing bytes after top-level item",
			"trailing": strconv.Itoa(len(rest)),
		})
	}
	return item, nil
}

// split reads one item header and returns the item kind, its content and the
// remaining input.
func split(b []byte) (Kind, []byte, []byte, error) {
	if len(b) == 0 {
		return 0, nil, nil, deployerr.WithDetails(deployerr.ErrRLPMalformed, map[string]string{
			"reason": "empty input",
		})
	}

	prefix := b[0]
	switch {
	case prefix < 0x80:
		return KindString, b[:1], b[1:], nil

	case prefix < 0xb8:
		size := int(prefix - 0x80)
		if size == 1 && len(b) > 1 && b[1] < 0x80 {
			return 0, nil, nil, nonCanonical("single byte below 0x80 must not be length-prefixed")
		}
		content, rest, err := take(b, 1, size)
		return KindString, content, rest, err

	case prefix < 0xc0:
		size, err := readSize(b[1:], int(prefix-0xb7))
		if err != nil {
			return 0, nil, nil, err
		}
		content, rest, err := take(b, 1+int(prefix-0xb7), size)
		return KindString, content, rest, err

	case prefix < 0xf8:
		content, rest, err := take(b, 1, int(prefix-0xc0))
		return KindList, content, rest, err

	default:
		size, err := readSize(b[1:], int(prefix-0xf7))
		if err != nil {
			return 0, nil, nil, err
		}
		content, rest, err := take(b, 1+int(prefix-0xf7), size)
		return KindList, content, rest, err
	}
}

// readSize decodes a long-form length of lenOfLen bytes.
func readSize(b []byte, lenOfLen int) (int, error) {
	if len(b) < lenOfLen {
		return 0, malformedLength(lenOfLen, len(b))
	}
	if b[0] == 0 {
		return 0, nonCanonical("length has leading zero bytes")
	}

	var size uint64
	for _, c := range b[:lenOfLen] {
		size = size<<8 | uint64(c)
	}
	if size < 56 {
		return 0, nonCanonical("long form used for length below 56")
	}
	if size > maxSize {
		return 0, deployerr.WithDetails(deployerr.ErrRLPMalformed, map[string]string{
			"reason": "declared length too large",
			"length": strconv.FormatUint(size, 10),
		})
	}
	return int(size), nil
}

// take slices size bytes of content after a header of headerLen bytes.
func take(b []byte, headerLen, size int) ([]byte, []byte, error) {
	if len(b)-headerLen < size {
		return nil, nil, malformedLength(size, len(b)-headerLen)
	}
	end := headerLen + size
	return b[headerLen:end], b[end:], nil
}

func malformedLength(claimed, available int) error {
	return deployerr.WithDetails(deployerr.ErrRLPMalformed, map[string]string{
		"reason":    "length header exceeds available input",
		"claimed":   strconv.Itoa(claimed),
		"available": strconv.Itoa(available),
	})
}

func nonCanonical(reason string) error {
	return deployerr.WithDetails(deployerr.ErrRLPNonCanonical, map[string]string{
		"reason": reason,
	})
}
