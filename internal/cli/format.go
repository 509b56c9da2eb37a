package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/models"
)

const masked = "********"

func mask(s string) string {
	if s == "" {
		return ""
	}
	return masked
}

func printEntryTable(w io.Writer, entries []models.VaultEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No entries.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tUSERNAME\tCATEGORY\t")
	for _, e := range entries {
		name := e.Name
		if e.Favorite {
			name = "* " + name
		}
		if e.HasTOTP() {
			name += " [2fa]"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", e.ID, name, e.Username, e.Category)
	}
	return tw.Flush()
}

func printEntry(w io.Writer, e models.VaultEntry, reveal bool) {
	secret := mask
	if reveal {
		secret = func(s string) string { return s }
	}

	fmt.Fprintf(w, "%s (%s)\n", e.Name, e.Category)
	fmt.Fprintf(w, "  ID:       %s\n", e.ID)
	fmt.Fprintf(w, "  Username: %s\n", e.Username)
	fmt.Fprintf(w, "  Password: %s\n", secret(e.Password))
	if e.URL != "" {
		fmt.Fprintf(w, "  URL:      %s\n", e.URL)
	}
	if e.HasTOTP() {
		fmt.Fprintf(w, "  TOTP:     %s\n", secret(e.TOTPSecret))
	}
	if e.Favorite {
		fmt.Fprintln(w, "  Favorite: yes")
	}
	for _, f := range e.CustomFields {
		v := f.Value
		if f.Secret {
			v = secret(v)
		}
		fmt.Fprintf(w, "  %s: %s\n", f.Label, v)
	}
	if e.Notes != "" {
		fmt.Fprintf(w, "  Notes:\n    %s\n", strings.ReplaceAll(e.Notes, "\n", "\n    "))
	}
	fmt.Fprintf(w, "  Created:  %s\n", e.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "  Modified: %s\n", e.ModifiedAt.Local().Format(time.DateTime))
}
