// Package abi encodes typed argument lists with the Ethereum contract ABI
// head/tail convention, for constructor payloads and call data.
package abi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// Kind is the tag of an ABI type.
type Kind uint8

// ABI type kinds.
const (
	KindUint Kind = iota
	KindInt
	KindBool
	KindAddress
	KindFixedBytes
	KindBytes
	KindString
	KindSlice
	KindArray
	KindTuple
)

// WordSize is the size of one ABI head word.
const WordSize = 32

// maxArrayLength bounds fixed array types parsed from user input.
const maxArrayLength = 1 << 16

// Type is a parsed ABI type. Size holds the bit width for integers, the
// byte length for fixed bytes and the element count for fixed arrays.
// Elems lists the components of a tuple.
type Type struct {
	Kind  Kind
	Size  int
	Elem  *Type
	Elems []Type
}

//nolint:gochecknoglobals // Known names for type suggestions
var commonTypeNames = []string{
	"address", "bool", "string", "bytes",
	"uint8", "uint16", "uint32", "uint64", "uint128", "uint256",
	"int8", "int16", "int32", "int64", "int128", "int256",
	"bytes1", "bytes4", "bytes8", "bytes16", "bytes32",
}

// ParseType parses a canonical or aliased type name such as "uint256",
// "uint" (alias for uint256), "bytes32", "address[]", "uint8[3][]" or
// "(address,uint256)[]".
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Type{}, unknownType(s)
	}

	if strings.HasSuffix(s, "]") {
		open := strings.LastIndex(s, "[")
		if open <= 0 {
			return Type{}, unknownType(s)
		}
		elem, err := ParseType(s[:open])
		if err != nil {
			return Type{}, err
		}
		inner := s[open+1 : len(s)-1]
		if inner == "" {
			return Type{Kind: KindSlice, Elem: &elem}, nil
		}
		n, err := strconv.Atoi(inner)
		if err != nil || n <= 0 || n > maxArrayLength {
			return Type{}, unknownType(s)
		}
		return Type{Kind: KindArray, Size: n, Elem: &elem}, nil
	}

	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		return parseTuple(s)
	}

	switch s {
	case "address":
		return Type{Kind: KindAddress, Size: 160}, nil
	case "bool":
		return Type{Kind: KindBool}, nil
	case "string":
		return Type{Kind: KindString}, nil
	case "bytes":
		return Type{Kind: KindBytes}, nil
	case "byte":
		return Type{Kind: KindFixedBytes, Size: 1}, nil
	case "uint":
		return Type{Kind: KindUint, Size: 256}, nil
	case "int":
		return Type{Kind: KindInt, Size: 256}, nil
	}

	switch {
	case strings.HasPrefix(s, "uint"):
		if bits, ok := integerBits(s[len("uint"):]); ok {
			return Type{Kind: KindUint, Size: bits}, nil
		}
	case strings.HasPrefix(s, "int"):
		if bits, ok := integerBits(s[len("int"):]); ok {
			return Type{Kind: KindInt, Size: bits}, nil
		}
	case strings.HasPrefix(s, "bytes"):
		n, err := strconv.Atoi(s[len("bytes"):])
		if err == nil && n >= 1 && n <= WordSize && strconv.Itoa(n) == s[len("bytes"):] {
			return Type{Kind: KindFixedBytes, Size: n}, nil
		}
	}
	return Type{}, unknownType(s)
}

func parseTuple(s string) (Type, error) {
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return Type{}, unknownType(s)
	}
	parts := splitTopLevel(inner)
	elems := make([]Type, len(parts))
	for i, part := range parts {
		t, err := ParseType(part)
		if err != nil {
			return Type{}, err
		}
		elems[i] = t
	}
	return Type{Kind: KindTuple, Elems: elems}, nil
}

// MustParseType parses a type name, panicking on error. Only use with constants.
func MustParseType(s string) Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTypes parses a list of type names.
func ParseTypes(names []string) ([]Type, error) {
	types := make([]Type, len(names))
	for i, name := range names {
		t, err := ParseType(name)
		if err != nil {
			return nil, deployerr.WithDetails(err, map[string]string{
				"type":  name,
				"index": strconv.Itoa(i),
			})
		}
		types[i] = t
	}
	return types, nil
}

func integerBits(s string) (int, bool) {
	bits, err := strconv.Atoi(s)
	if err != nil || strconv.Itoa(bits) != s {
		return 0, false
	}
	return bits, bits >= 8 && bits <= 256 && bits%8 == 0
}

// String returns the canonical type name used in signatures.
func (t Type) String() string {
	switch t.Kind {
	case KindUint:
		return "uint" + strconv.Itoa(t.Size)
	case KindInt:
		return "int" + strconv.Itoa(t.Size)
	case KindBool:
		return "bool"
	case KindAddress:
		return "address"
	case KindFixedBytes:
		return "bytes" + strconv.Itoa(t.Size)
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	case KindSlice:
		return t.Elem.String() + "[]"
	case KindArray:
		return t.Elem.String() + "[" + strconv.Itoa(t.Size) + "]"
	case KindTuple:
		names := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			names[i] = e.String()
		}
		return "(" + strings.Join(names, ",") + ")"
	default:
		return fmt.Sprintf("kind(%d)", t.Kind)
	}
}

// Equal reports whether two types are identical.
func (t Type) Equal(other Type) bool {
	if t.Kind != other.Kind || t.Size != other.Size || len(t.Elems) != len(other.Elems) {
		return false
	}
	for i := range t.Elems {
		if !t.Elems[i].Equal(other.Elems[i]) {
			return false
		}
	}
	if t.Elem == nil || other.Elem == nil {
		return t.Elem == other.Elem
	}
	return t.Elem.Equal(*other.Elem)
}

// IsDynamic reports whether values of the type are encoded in the tail.
func (t Type) IsDynamic() bool {
	switch t.Kind {
	case KindBytes, KindString, KindSlice:
		return true
	case KindArray:
		return t.Elem.IsDynamic()
	case KindTuple:
		for _, e := range t.Elems {
			if e.IsDynamic() {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// headSize returns the number of head bytes the type occupies in a tuple.
func (t Type) headSize() int {
	if t.IsDynamic() {
		return WordSize
	}
	switch t.Kind {
	case KindArray:
		return t.Size * t.Elem.headSize()
	case KindTuple:
		size := 0
		for _, e := range t.Elems {
			size += e.headSize()
		}
		return size
	default:
		return WordSize
	}
}

func unknownType(name string) error {
	err := deployerr.WithDetails(deployerr.ErrABIUnknownType, map[string]string{
		"type": name,
	})
	if suggestion := closestTypeName(name); suggestion != "" {
		err = deployerr.WithSuggestion(err, fmt.Sprintf("did you mean %q?", suggestion))
	}
	return err
}

// closestTypeName returns the common type name nearest to name, or "" when
// nothing is within three edits.
func closestTypeName(name string) string {
	best, bestDist := "", 4
	lower := strings.ToLower(name)
	for _, candidate := range commonTypeNames {
		if d := levenshtein.ComputeDistance(lower, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}
