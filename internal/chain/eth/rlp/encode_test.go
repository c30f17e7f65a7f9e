package rlp

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"single byte 0x00", []byte{0x00}, "00"},
		{"single byte 0x7f", []byte{0x7f}, "7f"},
		{"single byte 0x80", []byte{0x80}, "8180"},
		{"empty bytes", []byte{}, "80"},
		{"nil bytes", nil, "80"},
		{"short string", []byte("dog"), "83646f67"},
		{"55 bytes", make([]byte, 55), "b7" + strings.Repeat("00", 55)},
		{"56 bytes", make([]byte, 56), "b838" + strings.Repeat("00", 56)},
		{"1024 bytes", make([]byte, 1024), "b90400" + strings.Repeat("00", 1024)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, hex.EncodeToString(Encode(tc.input)))
		})
	}
}

func TestEncodeBytes_doesNotAliasInput(t *testing.T) {
	t.Parallel()

	in := []byte{0x05}
	out := Encode(in)
	out[0] = 0x06
	assert.Equal(t, byte(0x05), in[0])
}

func TestEncodeBigInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    *big.Int
		expected string
	}{
		{"zero", big.NewInt(0), "80"},
		{"nil", nil, "80"},
		{"127", big.NewInt(127), "7f"},
		{"128", big.NewInt(128), "8180"},
		{"255", big.NewInt(255), "81ff"},
		{"256", big.NewInt(256), "820100"},
		{"1024", big.NewInt(1024), "820400"},
		{"1 ETH in wei", new(big.Int).SetBytes(hexBytes("0de0b6b3a7640000")), "880de0b6b3a7640000"},
		{"2^64", new(big.Int).Lsh(big.NewInt(1), 64), "89010000000000000000"},
		{
			"31 significant bytes",
			new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 248), big.NewInt(1)),
			"9f" + strings.Repeat("ff", 31),
		},
		{
			"32 significant bytes",
			new(big.Int).Lsh(big.NewInt(1), 248),
			"a001" + strings.Repeat("00", 31),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, hex.EncodeToString(Encode(tc.input)))
		})
	}
}

func TestEncodeUint64(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    uint64
		expected string
	}{
		{"zero", 0, "80"},
		{"one", 1, "01"},
		{"127", 127, "7f"},
		{"128", 128, "8180"},
		{"256", 256, "820100"},
		{"21000 (gas limit)", 21000, "825208"},
		{"max uint64", ^uint64(0), "88ffffffffffffffff"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, hex.EncodeToString(Encode(tc.input)))
		})
	}
}

func TestEncodeList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"empty list", []any{}, "c0"},
		{"list with strings", []any{[]byte("cat"), []byte("dog")}, "c88363617483646f67"},
		{"nested list", []any{[]any{}, []any{[]any{}}}, "c3c0c1c0"},
		{
			"set theoretic three",
			NewList(NewList(), NewList(NewList()), NewList(NewList(), NewList(NewList()))),
			"c7c0c1c0c3c0c1c0",
		},
		{"item slice", []Item{NewString([]byte("cat")), NewUint(1024)}, "c783636174820400"},
		{"mixed ints", []any{uint64(0), big.NewInt(0), uint64(1)}, "c3808001"},
		{
			"long list",
			[]any{make([]byte, 60)},
			"f83e" + "b83c" + strings.Repeat("00", 60),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, hex.EncodeToString(Encode(tc.input)))
		})
	}
}

func TestEncodeUnsupported(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input any
	}{
		{"string", "not bytes"},
		{"int", 42},
		{"int inside list", []any{5, uint64(1)}},
		{"negative big.Int", big.NewInt(-5)},
		{"negative big.Int inside list", []any{uint64(1), big.NewInt(-1)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Panics(t, func() { Encode(tc.input) })
		})
	}
}

func hexBytes(s string) []byte {
	b, _ := hex.DecodeString(s)
	return b
}
