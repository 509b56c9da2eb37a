package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/autolock"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/vault"
	"golang.org/x/term"
)

type App struct {
	manager *vault.Manager
	logger  logging.Logger
	reader  *bufio.Reader
	out     io.Writer
	now     func() time.Time

	// interactive means passwords are read from the terminal without echo;
	// otherwise they are read as plain lines, which is what scripts and
	// tests feed.
	interactive bool
}

// NewApp builds a CLI over m reading commands from in and writing to out.
func NewApp(m *vault.Manager, logger logging.Logger, in io.Reader, out io.Writer) *App {
	a := &App{
		manager: m,
		logger:  logger.With("module", "cli"),
		reader:  bufio.NewReader(in),
		out:     out,
		now:     time.Now,
	}
	if f, ok := in.(*os.File); ok {
		a.interactive = term.IsTerminal(int(f.Fd()))
	}

	m.OnLock(func(r autolock.Reason) {
		if r != autolock.ReasonExplicit {
			fmt.Fprintf(a.out, "\nVault locked (%s).\n", r)
		}
	})
	return a
}

// Run prints a greeting and serves the REPL until exit or end of input.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "gophvault (type 'help' for commands)")
	if st, err := a.manager.State(ctx); err == nil && st == vault.StateNoVault {
		fmt.Fprintln(a.out, "No vault yet. Use 'create' to make one.")
	}

	runREPL(ctx, a, a.status, a.reader)
	a.manager.Lock()
}

func (a *App) status() string {
	st, err := a.manager.State(context.Background())
	if err != nil {
		return "error"
	}
	return st.String()
}

func (a *App) isUnlocked() bool {
	return a.status() == vault.StateUnlocked.String()
}

func (a *App) touch() {
	a.manager.Touch()
}

// readSecret asks for a password. The caller wipes the result.
func (a *App) readSecret(prompt string) ([]byte, error) {
	if a.interactive {
		return GetPassword(a.out, prompt)
	}
	line, err := GetSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return nil, err
	}
	return []byte(line), nil
}

// readNewSecret asks for a password twice and fails if the two differ.
func (a *App) readNewSecret(prompt string) ([]byte, error) {
	first, err := a.readSecret(prompt)
	if err != nil {
		return nil, err
	}
	second, err := a.readSecret("Repeat " + lowerFirst(prompt))
	if err != nil {
		cryptox.Wipe(first)
		return nil, err
	}
	defer cryptox.Wipe(second)

	if string(first) != string(second) {
		cryptox.Wipe(first)
		return nil, errPasswordMismatch
	}
	return first, nil
}
