// Package errors provides structured error handling for ethdeploy.
// It defines the error categories (encoding, signing, network, verification),
// sentinel errors, exit codes, and helpers for adding details and suggestions.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the CLI.
const (
	ExitSuccess      = 0 // Successful execution
	ExitGeneral      = 1 // General/unknown error
	ExitInput        = 2 // Invalid input (encoding, arguments, config)
	ExitAuth         = 3 // Key material could not be unlocked or used
	ExitNotFound     = 4 // Resource not found
	ExitVerification = 5 // On-chain result disagrees with the locally derived one
)

// Category groups error codes into the families callers react to.
type Category string

// Error categories.
const (
	CategoryGeneral      Category = "general"
	CategoryInput        Category = "input"
	CategoryEncoding     Category = "encoding"
	CategorySigning      Category = "signing"
	CategoryNetwork      Category = "network"
	CategoryVerification Category = "verification"
	CategoryConfig       Category = "config"
)

// DeployError is the structured error type for ethdeploy.
type DeployError struct {
	Code       string            // Machine-readable error code
	Category   Category          // Error family
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *DeployError) Error() string {
	msg := e.Message

	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *DeployError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for DeployError by comparing codes.
func (e *DeployError) Is(target error) bool {
	var t *DeployError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &DeployError{
		Code:     "GENERAL_ERROR",
		Category: CategoryGeneral,
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &DeployError{
		Code:     "INVALID_INPUT",
		Category: CategoryInput,
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrMissingField = &DeployError{
		Code:     "MISSING_FIELD",
		Category: CategoryInput,
		Message:  "required transaction field is missing",
		ExitCode: ExitInput,
	}

	ErrNotFound = &DeployError{
		Code:     "NOT_FOUND",
		Category: CategoryGeneral,
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	// Address errors.
	ErrInvalidAddress = &DeployError{
		Code:     "INVALID_ADDRESS",
		Category: CategoryInput,
		Message:  "invalid address format",
		ExitCode: ExitInput,
	}

	ErrInvalidChecksum = &DeployError{
		Code:     "INVALID_CHECKSUM",
		Category: CategoryInput,
		Message:  "invalid address checksum",
		ExitCode: ExitInput,
	}

	// Encoding errors.
	ErrRLPMalformed = &DeployError{
		Code:     "RLP_MALFORMED",
		Category: CategoryEncoding,
		Message:  "malformed RLP input",
		ExitCode: ExitInput,
	}

	ErrRLPNonCanonical = &DeployError{
		Code:     "RLP_NON_CANONICAL",
		Category: CategoryEncoding,
		Message:  "non-canonical RLP encoding",
		ExitCode: ExitInput,
	}

	ErrRLPUnexpectedType = &DeployError{
		Code:     "RLP_UNEXPECTED_TYPE",
		Category: CategoryEncoding,
		Message:  "unexpected RLP item kind",
		ExitCode: ExitInput,
	}

	ErrABITypeMismatch = &DeployError{
		Code:     "ABI_TYPE_MISMATCH",
		Category: CategoryEncoding,
		Message:  "value does not match its ABI type",
		ExitCode: ExitInput,
	}

	ErrABIUnknownType = &DeployError{
		Code:     "ABI_UNKNOWN_TYPE",
		Category: CategoryEncoding,
		Message:  "unknown ABI type",
		ExitCode: ExitInput,
	}

	ErrABIArgumentCount = &DeployError{
		Code:     "ABI_ARGUMENT_COUNT",
		Category: CategoryEncoding,
		Message:  "number of ABI values does not match number of types",
		ExitCode: ExitInput,
	}

	ErrInvalidTransaction = &DeployError{
		Code:     "INVALID_TRANSACTION",
		Category: CategoryEncoding,
		Message:  "invalid transaction encoding",
		ExitCode: ExitInput,
	}

	ErrInvalidHex = &DeployError{
		Code:     "INVALID_HEX",
		Category: CategoryEncoding,
		Message:  "invalid hex string",
		ExitCode: ExitInput,
	}

	// Signing errors.
	ErrInvalidPrivateKey = &DeployError{
		Code:     "INVALID_PRIVATE_KEY",
		Category: CategorySigning,
		Message:  "private key is not a valid secp256k1 scalar",
		ExitCode: ExitInput,
	}

	ErrInvalidDigest = &DeployError{
		Code:     "INVALID_DIGEST",
		Category: CategorySigning,
		Message:  "signing digest must be 32 bytes",
		ExitCode: ExitGeneral,
	}

	ErrInvalidSignature = &DeployError{
		Code:     "INVALID_SIGNATURE",
		Category: CategorySigning,
		Message:  "invalid signature",
		ExitCode: ExitInput,
	}

	ErrInvalidChainID = &DeployError{
		Code:     "INVALID_CHAIN_ID",
		Category: CategorySigning,
		Message:  "chain ID must be a positive integer",
		ExitCode: ExitInput,
	}

	// Key management errors.
	ErrDecryptionFailed = &DeployError{
		Code:     "DECRYPTION_FAILED",
		Category: CategoryInput,
		Message:  "decryption failed - wrong passphrase or corrupted file",
		ExitCode: ExitAuth,
	}

	ErrInvalidMnemonic = &DeployError{
		Code:     "INVALID_MNEMONIC",
		Category: CategoryInput,
		Message:  "invalid mnemonic phrase",
		ExitCode: ExitInput,
	}

	ErrKeyNotFound = &DeployError{
		Code:     "KEY_NOT_FOUND",
		Category: CategoryInput,
		Message:  "no signing key configured",
		ExitCode: ExitNotFound,
	}

	// Network errors.
	ErrNetworkTransient = &DeployError{
		Code:     "NETWORK_TRANSIENT",
		Category: CategoryNetwork,
		Message:  "network temporarily unavailable",
		ExitCode: ExitGeneral,
	}

	ErrReceiptTimeout = &DeployError{
		Code:     "RECEIPT_TIMEOUT",
		Category: CategoryNetwork,
		Message:  "transaction receipt not available before timeout",
		ExitCode: ExitGeneral,
	}

	ErrRPCError = &DeployError{
		Code:     "RPC_ERROR",
		Category: CategoryNetwork,
		Message:  "node returned an error",
		ExitCode: ExitGeneral,
	}

	ErrTxRejected = &DeployError{
		Code:     "TX_REJECTED",
		Category: CategoryNetwork,
		Message:  "transaction rejected by network",
		ExitCode: ExitGeneral,
	}

	// Verification errors.
	ErrReceiptMismatch = &DeployError{
		Code:     "RECEIPT_MISMATCH",
		Category: CategoryVerification,
		Message:  "derived contract address does not match receipt",
		ExitCode: ExitVerification,
	}

	ErrCodeMismatch = &DeployError{
		Code:     "CODE_MISMATCH",
		Category: CategoryVerification,
		Message:  "deployed runtime code does not match expected code",
		ExitCode: ExitVerification,
	}

	ErrDeploymentFailed = &DeployError{
		Code:     "DEPLOYMENT_FAILED",
		Category: CategoryVerification,
		Message:  "deployment transaction was mined but reverted",
		ExitCode: ExitVerification,
	}

	ErrReferenceMismatch = &DeployError{
		Code:     "REFERENCE_MISMATCH",
		Category: CategoryVerification,
		Message:  "reference client produced a different encoding",
		ExitCode: ExitVerification,
	}

	// Config errors.
	ErrConfigNotFound = &DeployError{
		Code:     "CONFIG_NOT_FOUND",
		Category: CategoryConfig,
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &DeployError{
		Code:     "CONFIG_INVALID",
		Category: CategoryConfig,
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}

	ErrChainIDMismatch = &DeployError{
		Code:     "CHAIN_ID_MISMATCH",
		Category: CategoryConfig,
		Message:  "configured chain ID does not match the node",
		ExitCode: ExitInput,
	}
)

// New creates a new DeployError with the given code and message.
func New(code, message string) *DeployError {
	return &DeployError{
		Code:     code,
		Category: CategoryGeneral,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var de *DeployError
	if errors.As(err, &de) {
		return &DeployError{
			Code:       de.Code,
			Category:   de.Category,
			Message:    fmt.Sprintf("%s: %s", msg, de.Message),
			Details:    de.Details,
			Suggestion: de.Suggestion,
			Cause:      err,
			ExitCode:   de.ExitCode,
		}
	}

	return &DeployError{
		Code:     "GENERAL_ERROR",
		Category: CategoryGeneral,
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithCause attaches an underlying cause to a sentinel error, keeping its code.
func WithCause(err, cause error) error {
	if err == nil {
		return nil
	}

	var de *DeployError
	if errors.As(err, &de) {
		return &DeployError{
			Code:       de.Code,
			Category:   de.Category,
			Message:    de.Message,
			Details:    de.Details,
			Suggestion: de.Suggestion,
			Cause:      cause,
			ExitCode:   de.ExitCode,
		}
	}

	return fmt.Errorf("%w: %w", err, cause)
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var de *DeployError
	if errors.As(err, &de) {
		return &DeployError{
			Code:       de.Code,
			Category:   de.Category,
			Message:    de.Message,
			Details:    details,
			Suggestion: de.Suggestion,
			Cause:      de.Cause,
			ExitCode:   de.ExitCode,
		}
	}

	return &DeployError{
		Code:     "GENERAL_ERROR",
		Category: CategoryGeneral,
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var de *DeployError
	if errors.As(err, &de) {
		return &DeployError{
			Code:       de.Code,
			Category:   de.Category,
			Message:    de.Message,
			Details:    de.Details,
			Suggestion: suggestion,
			Cause:      de.Cause,
			ExitCode:   de.ExitCode,
		}
	}

	return &DeployError{
		Code:       "GENERAL_ERROR",
		Category:   CategoryGeneral,
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var de *DeployError
	if errors.As(err, &de) {
		return de.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var de *DeployError
	if errors.As(err, &de) {
		return de.Code
	}
	return "GENERAL_ERROR"
}

// CategoryOf returns the category of the outermost DeployError in the chain.
func CategoryOf(err error) Category {
	var de *DeployError
	if errors.As(err, &de) {
		return de.Category
	}
	return CategoryGeneral
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, category Category) bool {
	if err == nil {
		return false
	}
	return CategoryOf(err) == category
}

// IsEncoding reports whether err is an encoding error (malformed RLP, ABI mismatch).
func IsEncoding(err error) bool { return IsCategory(err, CategoryEncoding) }

// IsSigning reports whether err is a signing error (invalid key, bad digest).
func IsSigning(err error) bool { return IsCategory(err, CategorySigning) }

// IsNetworkTransient reports whether err is a transient network error worth retrying.
func IsNetworkTransient(err error) bool {
	return errors.Is(err, ErrNetworkTransient) || errors.Is(err, ErrReceiptTimeout)
}

// IsReceiptMismatch reports whether err is a verification failure against on-chain data.
func IsReceiptMismatch(err error) bool { return IsCategory(err, CategoryVerification) }

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
