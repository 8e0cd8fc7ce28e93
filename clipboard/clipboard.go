// Package clipboard provides access to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/fwojciec/codeshell"
)

// Compile-time interface verification.
var _ codeshell.Clipboard = (*System)(nil)

// ErrUnsupported is returned when no clipboard utility is available,
// e.g. on a headless Linux box without xclip, xsel or wl-clipboard.
var ErrUnsupported = errors.New("clipboard unsupported on this system")

// System implements codeshell.Clipboard using the platform clipboard
// (pbcopy on macOS, xclip, xsel or wl-copy on Linux, the Win32 API on Windows).
type System struct{}

// NewSystem returns a new System clipboard.
func NewSystem() *System {
	return &System{}
}

// Read returns the text currently on the clipboard.
func (s *System) Read() (string, error) {
	if clipboard.Unsupported {
		return "", ErrUnsupported
	}
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	return text, nil
}

// Copy writes content to the clipboard.
func (s *System) Copy(content string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	if err := clipboard.WriteAll(content); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}
