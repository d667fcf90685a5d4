package config

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationErrors collects all ticker validation errors so a bad config
// reports every problem at once.
type ValidationErrors struct {
	InvalidTickers []string
}

// HasErrors returns true if any validation errors exist
func (e *ValidationErrors) HasErrors() bool {
	return len(e.InvalidTickers) > 0
}

// Error formats all validation errors into a clear message
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")

	if len(e.InvalidTickers) > 0 {
		sb.WriteString("\nInvalid tickers:\n")
		for _, t := range e.InvalidTickers {
			sb.WriteString(fmt.Sprintf("  - %s\n", t))
		}
		sb.WriteString(fmt.Sprintf("\nValid tickers: %s\n", validTickersList()))
	}

	return sb.String()
}

// ValidateTickers rejects any ticker outside the supported set.
func ValidateTickers(tickers []string) error {
	if len(tickers) == 0 {
		return fmt.Errorf("at least one ticker is required")
	}

	errs := &ValidationErrors{}
	for _, ticker := range tickers {
		if !ValidTickers[ticker] {
			errs.InvalidTickers = append(errs.InvalidTickers, ticker)
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validTickersList() string {
	tickers := make([]string, 0, len(ValidTickers))
	for t := range ValidTickers {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return strings.Join(tickers, ", ")
}
