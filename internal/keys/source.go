package keys

import (
	"strings"

	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// Source names where the signing key is read from.
type Source string

// Key sources.
const (
	SourceHex      Source = "hex"
	SourceFile     Source = "file"
	SourceMnemonic Source = "mnemonic"
)

// ParseSource parses a configured key source.
func ParseSource(s string) (Source, error) {
	switch src := Source(strings.ToLower(strings.TrimSpace(s))); src {
	case SourceHex, SourceFile, SourceMnemonic:
		return src, nil
	default:
		return "", deployerr.WithDetails(deployerr.ErrInvalidInput, map[string]string{
			"key_source": s,
			"expected":   "hex, file or mnemonic",
		})
	}
}

// Spec describes how to obtain the signing key.
type Spec struct {
	Source Source

	// Hex is the raw key for SourceHex.
	Hex string

	// File is the age key file for SourceFile.
	File string

	// Mnemonic, MnemonicPassphrase, Account and Index drive SourceMnemonic.
	Mnemonic           string
	MnemonicPassphrase string
	Account            uint32
	Index              uint32
}

// PassphraseFunc supplies the passphrase for an encrypted key file.
type PassphraseFunc func(prompt string) (string, error)

// Load obtains the key described by spec. The passphrase function is only
// consulted for key files.
func Load(spec Spec, passphrase PassphraseFunc) (*Key, error) {
	switch spec.Source {
	case SourceHex:
		if spec.Hex == "" {
			return nil, missingKey("no private key supplied", "set ETHDEPLOY_PRIVATE_KEY")
		}
		return FromHex(spec.Hex)

	case SourceFile:
		if spec.File == "" {
			return nil, missingKey("no key file configured", "set keys.file or pass --key-file")
		}
		if passphrase == nil {
			return nil, deployerr.WithDetails(deployerr.ErrDecryptionFailed, map[string]string{
				"reason": "no passphrase available",
			})
		}
		pass, err := passphrase("Passphrase for " + spec.File + ": ")
		if err != nil {
			return nil, err
		}
		return LoadFile(spec.File, pass)

	case SourceMnemonic:
		if spec.Mnemonic == "" {
			return nil, missingKey("no mnemonic supplied", "set ETHDEPLOY_MNEMONIC")
		}
		return FromMnemonic(spec.Mnemonic, spec.MnemonicPassphrase, spec.Account, spec.Index)

	default:
		_, err := ParseSource(string(spec.Source))
		return nil, err
	}
}

func missingKey(reason, suggestion string) error {
	return deployerr.WithSuggestion(
		deployerr.WithDetails(deployerr.ErrKeyNotFound, map[string]string{"reason": reason}),
		suggestion,
	)
}
