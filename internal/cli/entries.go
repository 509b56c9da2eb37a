package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/models"
	"github.com/dmitrijs2005/gophvault/internal/totp"
)

var errNameRequired = errors.New("name is required")

// List prints every entry, only favorites ("list fav"), or one category
// ("list wifi").
func (a *App) List(_ context.Context, args []string) error {
	var (
		entries []models.VaultEntry
		err     error
	)
	switch {
	case len(args) == 0:
		entries, err = a.manager.Entries()
	case args[0] == "fav" || args[0] == "favorites":
		entries, err = a.manager.Favorites()
	default:
		var cat models.Category
		cat, err = models.ParseCategory(args[0])
		if err != nil {
			return err
		}
		entries, err = a.manager.Entries()
		entries = byCategory(entries, cat)
	}
	if err != nil {
		return err
	}
	return printEntryTable(a.out, entries)
}

// Search lists entries whose name, username or URL contain the query.
func (a *App) Search(_ context.Context, args []string) error {
	if len(args) == 0 {
		return usage("search <query>")
	}
	entries, err := a.manager.SearchEntries(strings.Join(args, " "))
	if err != nil {
		return err
	}
	return printEntryTable(a.out, entries)
}

// Show prints one entry. Secrets stay masked unless "-r" is given.
func (a *App) Show(_ context.Context, args []string) error {
	if len(args) == 0 {
		return usage("show <id> [-r]")
	}
	e, err := a.manager.Entry(args[0])
	if err != nil {
		return err
	}
	reveal := len(args) > 1 && args[1] == "-r"
	printEntry(a.out, e, reveal)
	return nil
}

// Add prompts for a new entry and saves it.
func (a *App) Add(ctx context.Context, _ []string) error {
	e, err := a.inputEntry(models.VaultEntry{Category: models.CategoryLogin})
	if err != nil {
		return err
	}

	saved, err := a.manager.AddEntry(ctx, e)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s (%s).\n", saved.Name, saved.ID)
	return nil
}

// Edit prompts for new values with the current ones as defaults.
func (a *App) Edit(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("edit <id>")
	}
	current, err := a.manager.Entry(args[0])
	if err != nil {
		return err
	}

	e, err := a.inputEntry(current)
	if err != nil {
		return err
	}

	saved, err := a.manager.UpdateEntry(ctx, e)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %s.\n", saved.Name)
	return nil
}

// Delete removes one or more entries. Unknown ids are skipped.
func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("delete <id...>")
	}
	n, err := a.manager.DeleteEntries(ctx, args)
	if err != nil {
		return err
	}
	switch n {
	case 0:
		fmt.Fprintln(a.out, "No matching entries.")
	case 1:
		fmt.Fprintln(a.out, "Deleted 1 entry.")
	default:
		fmt.Fprintf(a.out, "Deleted %d entries.\n", n)
	}
	return nil
}

// Favorite flips an entry's favorite flag.
func (a *App) Favorite(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("fav <id>")
	}
	on, err := a.manager.ToggleFavorite(ctx, args[0])
	if err != nil {
		return err
	}
	if on {
		fmt.Fprintln(a.out, "Marked as favorite.")
	} else {
		fmt.Fprintln(a.out, "Removed from favorites.")
	}
	return nil
}

// TOTP prints the current one-time code of an entry.
func (a *App) TOTP(_ context.Context, args []string) error {
	if len(args) != 1 {
		return usage("totp <id>")
	}
	code, err := a.manager.TOTP(args[0], a.now())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (%ds left)\n", code.Code, code.Remaining)
	return nil
}

// inputEntry walks the user through every field, starting from base.
func (a *App) inputEntry(base models.VaultEntry) (models.VaultEntry, error) {
	e := base.Clone()

	cat, err := GetTextDefault(a.reader, "Category ("+categoryNames()+")", string(e.Category), a.out)
	if err != nil {
		return e, err
	}
	if e.Category, err = models.ParseCategory(cat); err != nil {
		return e, err
	}

	if e.Name, err = GetTextDefault(a.reader, "Name", e.Name, a.out); err != nil {
		return e, err
	}
	if strings.TrimSpace(e.Name) == "" {
		return e, errNameRequired
	}
	if e.Username, err = GetTextDefault(a.reader, "Username", e.Username, a.out); err != nil {
		return e, err
	}

	prompt := "Password"
	if e.Password != "" {
		prompt = "Password (empty keeps the current one)"
	}
	pw, err := a.readSecret(prompt)
	if err != nil {
		return e, err
	}
	if len(pw) > 0 {
		e.Password = string(pw)
	}

	if e.URL, err = GetTextDefault(a.reader, "URL", e.URL, a.out); err != nil {
		return e, err
	}

	secret, err := GetTextDefault(a.reader, "TOTP secret or otpauth:// URI", mask(e.TOTPSecret), a.out)
	if err != nil {
		return e, err
	}
	if secret != mask(e.TOTPSecret) {
		if err := checkTOTP(secret, a.now); err != nil {
			return e, err
		}
		e.TOTPSecret = secret
	}

	notes, err := GetMultiline(a.reader, "Notes", a.out)
	if err != nil {
		return e, err
	}
	if notes != "" {
		e.Notes = notes
	}

	lines, err := GetCustomFields(a.reader, a.out)
	if err != nil {
		return e, err
	}
	if len(lines) > 0 {
		if e.CustomFields, err = models.CustomFieldsFromStrings(lines); err != nil {
			return e, err
		}
	}
	return e, nil
}

// checkTOTP rejects seeds that could never produce a code.
func checkTOTP(secret string, now func() time.Time) error {
	if secret == "" {
		return nil
	}
	if strings.HasPrefix(strings.ToLower(secret), "otpauth://") {
		_, err := totp.ParseURI(secret)
		return err
	}
	_, err := totp.GenerateCode(secret, now())
	return err
}

func byCategory(entries []models.VaultEntry, c models.Category) []models.VaultEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

func categoryNames() string {
	names := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
