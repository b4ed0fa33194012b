// SPDX-License-Identifier: MPL-2.0

// Package tui holds the interactive terminal surface: a yes/no confirm
// prompt gated on an attached terminal. Presentation stays here; callers
// get structured answers and sentinel errors only.
package tui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	// ErrUserDeclined is returned when the user answers no.
	ErrUserDeclined = errors.New("tui: user declined")

	// ErrNotInteractive is returned when confirmation is required but no
	// terminal is attached and auto-confirm is off.
	ErrNotInteractive = errors.New("tui: no interactive terminal attached")
)

var (
	promptStyle = lipgloss.NewStyle().Bold(true)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

type (
	// Prompter asks yes/no questions on a terminal.
	Prompter struct {
		in          io.Reader
		out         io.Writer
		interactive bool
		autoConfirm bool
	}

	// PrompterOption configures a Prompter.
	PrompterOption func(*Prompter)
)

// WithIO overrides the prompt's reader and writer; the prompter is treated
// as interactive. Intended for tests.
func WithIO(in io.Reader, out io.Writer) PrompterOption {
	return func(p *Prompter) {
		p.in = in
		p.out = out
		p.interactive = true
	}
}

// WithAutoConfirm makes every confirmation succeed without asking.
func WithAutoConfirm(auto bool) PrompterOption {
	return func(p *Prompter) { p.autoConfirm = auto }
}

// NewPrompter creates a Prompter bound to the process terminal. When stdin
// is not a terminal, every Confirm call fails with ErrNotInteractive unless
// auto-confirm is enabled.
func NewPrompter(opts ...PrompterOption) *Prompter {
	p := &Prompter{
		in:          os.Stdin,
		out:         os.Stderr,
		interactive: isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Confirm asks question and returns nil on yes, ErrUserDeclined on no, and
// ErrNotInteractive when no terminal is attached. defaultYes selects the
// answer taken on a bare Enter.
func (p *Prompter) Confirm(question string, defaultYes bool) error {
	if p.autoConfirm {
		return nil
	}
	if !p.interactive {
		return ErrNotInteractive
	}

	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}
	fmt.Fprintf(p.out, "%s %s ", promptStyle.Render(question), hintStyle.Render(hint))

	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("tui: read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	case "n", "no":
		return ErrUserDeclined
	case "":
		if defaultYes {
			return nil
		}
		return ErrUserDeclined
	default:
		return ErrUserDeclined
	}
}
