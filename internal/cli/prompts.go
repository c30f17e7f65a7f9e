package cli

import (
	"fmt"
	"os"

	"golang.org/x/term"

	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// minPassphraseLength is the shortest passphrase accepted for new key files.
const minPassphraseLength = 8

// Prompt hooks, replaced in tests.
//
//nolint:gochecknoglobals // swapped by tests
var (
	promptPasswordFn    = promptPassword
	promptNewPasswordFn = promptNewPassword
)

// promptPassword prompts for a password with hidden input.
// The caller is responsible for zeroing the returned bytes after use.
func promptPassword(prompt string) ([]byte, error) {
	out(os.Stderr, "%s", prompt)

	password, err := term.ReadPassword(int(os.Stdin.Fd())) //nolint:gosec // G115: file descriptors fit in int
	outln(os.Stderr)

	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return password, nil
}

// promptNewPassword prompts for a new key file passphrase with confirmation.
// The caller is responsible for zeroing the returned bytes after use.
func promptNewPassword() ([]byte, error) {
	password, err := promptPasswordFn("Enter key file passphrase: ")
	if err != nil {
		return nil, err
	}

	if len(password) < minPassphraseLength {
		clear(password)
		return nil, deployerr.WithSuggestion(
			deployerr.ErrInvalidInput,
			fmt.Sprintf("passphrase must be at least %d characters", minPassphraseLength),
		)
	}

	confirm, err := promptPasswordFn("Confirm passphrase: ")
	if err != nil {
		clear(password)
		return nil, err
	}
	defer clear(confirm)

	if string(password) != string(confirm) {
		clear(password)
		return nil, deployerr.WithSuggestion(
			deployerr.ErrInvalidInput,
			"passphrases do not match",
		)
	}
	return password, nil
}

// passphraseFromEnvOrPrompt returns ETHDEPLOY_PASSPHRASE when set, otherwise
// asks on the terminal.
func passphraseFromEnvOrPrompt(envValue string) func(prompt string) (string, error) {
	return func(prompt string) (string, error) {
		if envValue != "" {
			return envValue, nil
		}
		pass, err := promptPasswordFn(prompt)
		if err != nil {
			return "", err
		}
		defer clear(pass)
		return string(pass), nil
	}
}
