// Package cli provides the interactive vault command-line front-end.
//
// It drives a *vault.Manager from a read-eval-print loop: create or unlock
// the vault, browse and edit entries, read TOTP codes, export and import
// backups. Every command counts as activity for the auto-lock timer, and
// when the vault locks on its own the REPL says so and falls back to the
// locked prompt.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
