package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/vault"
)

var errUsage = errors.New("usage")

func usage(format string) error {
	return fmt.Errorf("%w: %s", errUsage, format)
}

// Status prints the vault state and the auto-lock settings.
func (a *App) Status(ctx context.Context, _ []string) error {
	st, err := a.manager.State(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "State: %s\n", st)
	if st == vault.StateNoVault {
		return nil
	}

	p := a.manager.AutoLockPolicy()
	if p.InactivityTimeout > 0 {
		fmt.Fprintf(a.out, "Auto-lock after: %s idle\n", p.InactivityTimeout)
	} else {
		fmt.Fprintln(a.out, "Auto-lock after: never")
	}

	bio, err := a.manager.BiometricEnabled(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Biometric unlock: %s\n", onOff(bio))

	if st == vault.StateUnlocked {
		entries, err := a.manager.Entries()
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Entries: %d\n", len(entries))
	}
	return nil
}

// Create makes a new vault protected by a master password.
func (a *App) Create(ctx context.Context, _ []string) error {
	pw, err := a.readNewSecret("Master password")
	if err != nil {
		return err
	}
	defer cryptox.Wipe(pw)

	if err := a.manager.Create(ctx, pw); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Vault created and unlocked.")
	return nil
}

// Unlock opens the vault with the master password, or with the biometric
// gate when called as "unlock -b".
func (a *App) Unlock(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "-b" {
		if err := a.manager.UnlockWithBiometric(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Vault unlocked.")
		return nil
	}

	pw, err := a.readSecret("Master password")
	if err != nil {
		return err
	}
	defer cryptox.Wipe(pw)

	if err := a.manager.Unlock(ctx, pw); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Vault unlocked.")
	return nil
}

func (a *App) Lock(_ context.Context, _ []string) error {
	a.manager.Lock()
	fmt.Fprintln(a.out, "Vault locked.")
	return nil
}

// ChangePassword replaces the master password.
func (a *App) ChangePassword(ctx context.Context, _ []string) error {
	current, err := a.readSecret("Current master password")
	if err != nil {
		return err
	}
	defer cryptox.Wipe(current)

	next, err := a.readNewSecret("New master password")
	if err != nil {
		return err
	}
	defer cryptox.Wipe(next)

	if err := a.manager.ChangeMasterPassword(ctx, current, next); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Master password changed.")
	return nil
}

// Biometric turns biometric unlock on or off.
func (a *App) Biometric(ctx context.Context, args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return usage("biometric on|off")
	}
	on := args[0] == "on"
	if err := a.manager.SetBiometricEnabled(ctx, on); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Biometric unlock %s.\n", onOff(on))
	return nil
}

// Export writes an encrypted backup of all entries to a file.
func (a *App) Export(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("export <file>")
	}
	if !a.isUnlocked() {
		return vault.ErrVaultLocked
	}

	pw, err := a.readNewSecret("Export password")
	if err != nil {
		return err
	}
	defer cryptox.Wipe(pw)

	data, err := a.manager.Export(ctx, pw)
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], data, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported to %s.\n", args[0])
	return nil
}

// Import adds the entries of a backup file to the vault.
func (a *App) Import(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("import <file>")
	}
	if !a.isUnlocked() {
		return vault.ErrVaultLocked
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	pw, err := a.readSecret("Export password")
	if err != nil {
		return err
	}
	defer cryptox.Wipe(pw)

	n, err := a.manager.Import(ctx, data, pw)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Imported %d entries.\n", n)
	return nil
}

// Destroy deletes the vault for good after a confirmation and the master
// password.
func (a *App) Destroy(ctx context.Context, _ []string) error {
	ok, err := Confirm(a.reader, "Delete the vault and every entry in it?", a.out)
	if err != nil || !ok {
		return err
	}

	pw, err := a.readSecret("Master password")
	if err != nil {
		return err
	}
	defer cryptox.Wipe(pw)

	if err := a.manager.DeleteVault(ctx, pw); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Vault deleted.")
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
