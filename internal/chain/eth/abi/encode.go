package abi

import (
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	ethcrypto "github.com/mrz1836/ethdeploy/internal/chain/eth/crypto"
	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// Encode encodes values as an ABI tuple: static values in the head, dynamic
// values as head offsets pointing into the tail. Encoding is deterministic.
func Encode(values ...Value) []byte {
	return encodeTuple(values)
}

func encodeTuple(values []Value) []byte {
	headLen := 0
	for _, v := range values {
		headLen += v.typ.headSize()
	}

	head := make([]byte, 0, headLen)
	var tail []byte
	for _, v := range values {
		if v.typ.IsDynamic() {
			head = append(head, word(headLen+len(tail))...)
			tail = append(tail, encodeValue(v)...)
			continue
		}
		head = append(head, encodeValue(v)...)
	}
	return append(head, tail...)
}

func encodeValue(v Value) []byte {
	switch v.typ.Kind {
	case KindBytes, KindString:
		out := word(len(v.data))
		return append(out, padRight(v.data)...)
	case KindSlice:
		return append(word(len(v.elems)), encodeTuple(v.elems)...)
	case KindArray, KindTuple:
		return encodeTuple(v.elems)
	default:
		out := make([]byte, WordSize)
		copy(out, v.word[:])
		return out
	}
}

// word encodes a length or offset as a uint256 word.
func word(n int) []byte {
	w := uint256.NewInt(uint64(n)).Bytes32()
	return w[:]
}

// padRight zero-pads b to a multiple of the word size.
func padRight(b []byte) []byte {
	size := (len(b) + WordSize - 1) / WordSize * WordSize
	out := make([]byte, size)
	copy(out, b)
	return out
}

// EncodeArgs parses type names and converts args, then encodes them.
// The error identifies the failing argument index and type.
func EncodeArgs(typeNames []string, args []any) ([]byte, error) {
	types, err := ParseTypes(typeNames)
	if err != nil {
		return nil, err
	}
	values, err := convertArgs(types, args)
	if err != nil {
		return nil, err
	}
	return Encode(values...), nil
}

func convertArgs(types []Type, args []any) ([]Value, error) {
	if len(types) != len(args) {
		return nil, deployerr.WithDetails(deployerr.ErrABIArgumentCount, map[string]string{
			"expected": strconv.Itoa(len(types)),
			"actual":   strconv.Itoa(len(args)),
		})
	}
	values := make([]Value, len(args))
	for i, arg := range args {
		v, err := Convert(types[i], arg)
		if err != nil {
			return nil, deployerr.Wrap(err, "argument %d (%s)", i, types[i])
		}
		values[i] = v
	}
	return values, nil
}

// ConstructorPayload returns bytecode followed by the encoded constructor
// arguments. With no arguments the payload is the bytecode alone.
func ConstructorPayload(bytecode []byte, typeNames []string, args []any) ([]byte, error) {
	encoded, err := EncodeArgs(typeNames, args)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, len(bytecode)+len(encoded))
	payload = append(payload, bytecode...)
	return append(payload, encoded...), nil
}

// Signature is a parsed function signature such as "transfer(address,uint256)".
type Signature struct {
	Name   string
	Inputs []Type
}

// ParseSignature parses "name(type,...)". Whitespace is ignored and type
// aliases are canonicalized.
func ParseSignature(sig string) (Signature, error) {
	sig = strings.ReplaceAll(strings.TrimSpace(sig), " ", "")
	open := strings.Index(sig, "(")
	if open <= 0 || !strings.HasSuffix(sig, ")") {
		return Signature{}, deployerr.WithDetails(deployerr.ErrInvalidInput, map[string]string{
			"signature": sig,
			"expected":  "name(type,...)",
		})
	}

	var names []string
	if inner := sig[open+1 : len(sig)-1]; inner != "" {
		names = splitTopLevel(inner)
	}
	types, err := ParseTypes(names)
	if err != nil {
		return Signature{}, err
	}
	return Signature{Name: sig[:open], Inputs: types}, nil
}

// splitTopLevel splits on commas outside brackets.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, c := range s {
		switch c {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// String returns the canonical signature.
func (s Signature) String() string {
	names := make([]string, len(s.Inputs))
	for i, t := range s.Inputs {
		names[i] = t.String()
	}
	return s.Name + "(" + strings.Join(names, ",") + ")"
}

// Selector returns the first four bytes of keccak256 of the canonical signature.
func (s Signature) Selector() [4]byte {
	var sel [4]byte
	copy(sel[:], ethcrypto.Keccak256([]byte(s.String())))
	return sel
}

// Selector parses sig and returns its 4-byte function selector.
func Selector(sig string) ([4]byte, error) {
	parsed, err := ParseSignature(sig)
	if err != nil {
		return [4]byte{}, err
	}
	return parsed.Selector(), nil
}

// EncodeCall returns selector(sig) followed by the encoded arguments.
func EncodeCall(sig string, args ...any) ([]byte, error) {
	parsed, err := ParseSignature(sig)
	if err != nil {
		return nil, err
	}
	values, err := convertArgs(parsed.Inputs, args)
	if err != nil {
		return nil, err
	}
	sel := parsed.Selector()
	return append(sel[:], Encode(values...)...), nil
}
