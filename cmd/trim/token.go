package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"

	"github.com/heimdex/heimdex-editor/internal/tui"
)

const (
	keyringService = "heimdex-editor"
	tokenEnv       = "HEIMDEX_TOKEN"
)

var errNoToken = errors.New("an agent token is required")

// tokenSource resolves the agent token: environment first, then the OS
// keyring, then an interactive prompt whose answer is stored in the keyring.
type tokenSource struct {
	getenv   func(string) string
	user     string
	prompt   func() (string, error)
	out      io.Writer
	noPrompt bool
}

func newTokenSource(out io.Writer) tokenSource {
	return tokenSource{
		getenv: os.Getenv,
		user:   systemUser(),
		prompt: readHidden,
		out:    out,
	}
}

func (ts tokenSource) Token() (string, error) {
	if tok := strings.TrimSpace(ts.getenv(tokenEnv)); tok != "" {
		return tok, nil
	}

	tok, err := keyring.Get(keyringService, ts.user)
	switch {
	case err == nil && tok != "":
		return tok, nil
	case err != nil && !errors.Is(err, keyring.ErrNotFound):
		return "", fmt.Errorf("read keyring: %w", err)
	}

	if ts.noPrompt {
		return "", errNoToken
	}
	return ts.Login()
}

// Login prompts for a token and stores it in the keyring.
func (ts tokenSource) Login() (string, error) {
	fmt.Fprint(ts.out, tui.BulletStyle.Render("├")+tui.TextStyle.Render("Agent token (printed by the agent on start): "))
	tok, err := ts.prompt()
	fmt.Fprintln(ts.out)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return "", errNoToken
	}

	if err := keyring.Set(keyringService, ts.user, tok); err != nil {
		return "", fmt.Errorf("save token: %w", err)
	}
	fmt.Fprintln(ts.out, tui.BulletStyle.Render("├")+tui.TextStyle.Render("Token saved to the system keyring."))
	return tok, nil
}

func readHidden() (string, error) {
	b, err := term.ReadPassword(int(syscall.Stdin))
	return string(b), err
}

func systemUser() string {
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	if username == "" {
		username = "anon"
	}
	return username
}
