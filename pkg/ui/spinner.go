package ui

import (
	"os"
	"strings"

	"github.com/pterm/pterm"
)

// Spinner wraps pterm spinner with convenience methods.
type Spinner struct {
	spinner *pterm.SpinnerPrinter
	message string
}

// NewSpinner creates and starts a new spinner with the given message.
func NewSpinner(message string) *Spinner {
	// Disable spinners in test mode to avoid race conditions with pterm's internal goroutines
	if isTestMode() {
		return &Spinner{
			spinner: nil,
			message: message,
		}
	}

	s, _ := pterm.DefaultSpinner.
		WithRemoveWhenDone(false). // Keep spinner result, don't remove
		Start(message)

	return &Spinner{
		spinner: s,
		message: message,
	}
}

// NewSilentSpinner creates a spinner that will be removed when stopped.
// Use this for child operations that should disappear without leaving blank lines.
func NewSilentSpinner(message string) *Spinner {
	// Disable spinners in test mode to avoid race conditions with pterm's internal goroutines
	if isTestMode() {
		return &Spinner{
			spinner: nil,
			message: message,
		}
	}

	s, _ := pterm.DefaultSpinner.
		WithRemoveWhenDone(true). // Remove completely when stopped
		Start(message)

	return &Spinner{
		spinner: s,
		message: message,
	}
}

// Success stops the spinner with a success message.
func (s *Spinner) Success(message string) {
	if message == "" {
		message = s.message
	}

	if s.spinner != nil {
		s.spinner.Success(message)
	}
}

// Fail stops the spinner with an error message.
func (s *Spinner) Fail(message string) {
	if message == "" {
		message = s.message
	}

	if s.spinner != nil {
		s.spinner.Fail(message)
	}
}

// Stop stops the spinner without a message.
func (s *Spinner) Stop() error {
	if s.spinner != nil {
		return s.spinner.Stop()
	}

	return nil
}

// WithSpinner executes a function with a spinner.
// If the function returns an error, spinner fails; otherwise succeeds.
func WithSpinner(message string, fn func() error) error {
	s := NewSpinner(message)

	err := fn()
	if err != nil {
		s.Fail(message)

		return err
	}

	s.Success(message)

	return nil
}

// isTestMode checks if we're running in test mode by examining os.Args and environment.
func isTestMode() bool {
	// Check if running under go test
	for _, arg := range os.Args {
		if strings.HasPrefix(arg, "-test.") {
			return true
		}
	}

	// Check for LIGHTKEEPER_TEST_MODE environment variable (for integration tests)
	if os.Getenv("LIGHTKEEPER_TEST_MODE") == "true" {
		return true
	}

	return false
}
