package keys

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

const (
	// ethCoinType is the SLIP-44 coin type for Ethereum.
	ethCoinType = 60

	// maxTypoDistance bounds word suggestions for misspelled mnemonic words.
	maxTypoDistance = 2
)

var (
	// whitespaceRegex matches one or more whitespace characters.
	whitespaceRegex = regexp.MustCompile(`\s+`)

	// numberedListRegex matches numbered list prefixes like "1." "2)" "3:"
	numberedListRegex = regexp.MustCompile(`(?m)^\s*\d+[\.\)\:]\s*`)
)

// DerivationPath returns the BIP44 path for an Ethereum account and index.
func DerivationPath(account, index uint32) string {
	return fmt.Sprintf("m/44'/%d'/%d'/0/%d", ethCoinType, account, index)
}

// NormalizeMnemonic lowercases the phrase, strips list numbering and commas,
// and collapses whitespace.
func NormalizeMnemonic(input string) string {
	input = strings.ToLower(input)
	input = numberedListRegex.ReplaceAllString(input, " ")
	input = strings.ReplaceAll(input, ",", " ")
	input = whitespaceRegex.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// ValidateMnemonic checks word count, word membership and checksum. Unknown
// words produce a suggestion when a close BIP39 word exists.
func ValidateMnemonic(mnemonic string) error {
	normalized := NormalizeMnemonic(mnemonic)
	words := strings.Fields(normalized)

	switch len(words) {
	case 12, 15, 18, 21, 24:
	default:
		return deployerr.WithDetails(deployerr.ErrInvalidMnemonic, map[string]string{
			"words":    strconv.Itoa(len(words)),
			"expected": "12, 15, 18, 21 or 24 words",
		})
	}

	for i, word := range words {
		if _, ok := bip39.GetWordIndex(word); ok {
			continue
		}
		err := deployerr.WithDetails(deployerr.ErrInvalidMnemonic, map[string]string{
			"word":     word,
			"position": strconv.Itoa(i + 1),
		})
		if suggestion := suggestWord(word); suggestion != "" {
			err = deployerr.WithSuggestion(err, fmt.Sprintf("did you mean %q?", suggestion))
		}
		return err
	}

	if _, err := bip39.MnemonicToByteArray(normalized); err != nil {
		return deployerr.WithDetails(deployerr.ErrInvalidMnemonic, map[string]string{
			"reason": "checksum mismatch",
		})
	}
	return nil
}

// suggestWord returns the closest BIP39 word within maxTypoDistance, or "".
func suggestWord(input string) string {
	minDist := math.MaxInt
	var suggestion string
	for _, word := range bip39.GetWordList() {
		dist := levenshtein.ComputeDistance(input, word)
		if dist < minDist {
			minDist = dist
			suggestion = word
		}
	}
	if minDist <= maxTypoDistance {
		return suggestion
	}
	return ""
}

// FromMnemonic derives the key at m/44'/60'/account'/0/index from a BIP39
// mnemonic and optional passphrase.
func FromMnemonic(mnemonic, passphrase string, account, index uint32) (*Key, error) {
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}

	seed := bip39.NewSeed(NormalizeMnemonic(mnemonic), passphrase)
	defer zero(seed)

	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, deployerr.WithCause(deployerr.ErrInvalidMnemonic, err)
	}

	path := []uint32{
		bip32.FirstHardenedChild + 44,
		bip32.FirstHardenedChild + ethCoinType,
		bip32.FirstHardenedChild + account,
		0,
		index,
	}

	key := master
	for _, child := range path {
		next, err := key.NewChildKey(child)
		if key != master {
			zero(key.Key)
		}
		if err != nil {
			zero(master.Key)
			return nil, deployerr.WithDetails(deployerr.WithCause(deployerr.ErrInvalidPrivateKey, err), map[string]string{
				"path": DerivationPath(account, index),
			})
		}
		key = next
	}
	zero(master.Key)
	defer zero(key.Key)

	k, err := FromBytes(key.Key)
	if err != nil {
		return nil, err
	}
	k.origin = "mnemonic"
	return k, nil
}
