package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for REPL output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. *App satisfies
// it; tests use a stub.
type execIface interface {
	isUnlocked() bool
	touch()

	Status(ctx context.Context, args []string) error
	Create(ctx context.Context, args []string) error
	Unlock(ctx context.Context, args []string) error
	Lock(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Search(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Add(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Favorite(ctx context.Context, args []string) error
	TOTP(ctx context.Context, args []string) error
	Export(ctx context.Context, args []string) error
	Import(ctx context.Context, args []string) error
	ChangePassword(ctx context.Context, args []string) error
	Biometric(ctx context.Context, args []string) error
	Destroy(ctx context.Context, args []string) error
}

const (
	lockedHelp   = "Available commands: status, create, unlock [-b], exit"
	unlockedHelp = "Available commands: status, (l)ist [fav|<category>], search <q>, show <id> [-r], add, " +
		"edit <id>, delete <id...>, fav <id>, totp <id>, export <file>, import <file>, passwd, " +
		"biometric on|off, destroy, lock, exit"
)

// runREPL reads commands from r until EOF, "exit" or "quit".
//
// The first word is the command and the rest are its arguments. Handler
// errors are printed and the loop goes on. Every line counts as activity
// for the auto-lock timer.
func runREPL(ctx context.Context, a execIface, statusFn func() string, r *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("vault [%s] > ", statusFn()))

		line, err := r.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]
		a.touch()

		var handler func(context.Context, []string) error
		switch cmd {
		case "help":
			if a.isUnlocked() {
				printlnFn(unlockedHelp)
			} else {
				printlnFn(lockedHelp)
			}
		case "status":
			handler = a.Status
		case "create":
			handler = a.Create
		case "unlock":
			handler = a.Unlock
		case "lock":
			handler = a.Lock
		case "l", "list":
			handler = a.List
		case "search":
			handler = a.Search
		case "show":
			handler = a.Show
		case "add":
			handler = a.Add
		case "edit":
			handler = a.Edit
		case "delete", "rm":
			handler = a.Delete
		case "fav":
			handler = a.Favorite
		case "totp":
			handler = a.TOTP
		case "export":
			handler = a.Export
		case "import":
			handler = a.Import
		case "passwd":
			handler = a.ChangePassword
		case "biometric":
			handler = a.Biometric
		case "destroy":
			handler = a.Destroy
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if handler != nil {
			if err := handler(ctx, args); err != nil {
				printlnFn("Error:", err)
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}
