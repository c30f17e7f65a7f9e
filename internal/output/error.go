package output

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// ErrorOutput represents a structured error for JSON output.
type ErrorOutput struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code       string            `json:"code"`
	Category   string            `json:"category"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	ExitCode   int               `json:"exit_code"`
}

// NewErrorDetail flattens err into its printable form.
func NewErrorDetail(err error) ErrorDetail {
	var de *deployerr.DeployError
	if errors.As(err, &de) {
		detail := ErrorDetail{
			Code:       de.Code,
			Category:   string(de.Category),
			Message:    de.Message,
			Details:    de.Details,
			Suggestion: de.Suggestion,
			ExitCode:   de.ExitCode,
		}
		if de.Cause != nil {
			detail.Cause = de.Cause.Error()
		}
		return detail
	}

	return ErrorDetail{
		Code:     deployerr.ErrGeneral.Code,
		Category: string(deployerr.CategoryGeneral),
		Message:  err.Error(),
		ExitCode: deployerr.ExitGeneral,
	}
}

// FormatError formats an error for display.
func FormatError(w io.Writer, err error, format Format) error {
	if err == nil {
		return nil
	}

	detail := NewErrorDetail(err)
	if format == FormatJSON {
		return writeJSON(w, ErrorOutput{Error: detail})
	}
	return formatErrorText(w, detail)
}

// formatErrorText outputs error in text format. Details are sorted by key.
func formatErrorText(w io.Writer, detail ErrorDetail) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Error: %s\n", detail.Message)
	if detail.Cause != "" {
		fmt.Fprintf(&sb, "Cause: %s\n", detail.Cause)
	}

	if len(detail.Details) > 0 {
		keys := make([]string, 0, len(detail.Details))
		for k := range detail.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString("\nDetails:\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %s\n", k, detail.Details[k])
		}
	}

	if detail.Suggestion != "" {
		fmt.Fprintf(&sb, "\nSuggestion: %s\n", detail.Suggestion)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatSuccess formats a success message.
func FormatSuccess(w io.Writer, message string, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, map[string]string{"status": "success", "message": message})
	}
	_, err := fmt.Fprintln(w, message)
	return err
}
