package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/term"
)

var errPasswordMismatch = errors.New("passwords do not match")

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// GetSimpleText prints a prompt to w and reads one line from reader with
// surrounding whitespace trimmed. A final line without a newline is
// returned as is.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetTextDefault is GetSimpleText that returns current when the user just
// presses Enter.
func GetTextDefault(reader *bufio.Reader, prompt, current string, w io.Writer) (string, error) {
	if current != "" {
		prompt = fmt.Sprintf("%s [%s]", prompt, current)
	}
	s, err := GetSimpleText(reader, prompt, w)
	if err != nil {
		return "", err
	}
	if s == "" {
		return current, nil
	}
	return s, nil
}

// GetPassword prints prompt to w and reads a password from the terminal
// without echo. The caller should wipe the result.
func GetPassword(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// GetMultiline reads lines until an empty one and joins them with '\n'.
func GetMultiline(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n(press Enter on an empty line to finish)\n"); err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Join(readLines(reader), "\n")), nil
}

// GetCustomFields reads "label=value" lines until an empty one. The lines
// are returned raw; models.CustomFieldsFromStrings parses them.
func GetCustomFields(reader *bufio.Reader, w io.Writer) ([]string, error) {
	if _, err := fmt.Fprintln(w, "Enter custom fields as label=value, prefix the label with ! to hide the value (empty line to finish)"); err != nil {
		return nil, err
	}
	return readLines(reader), nil
}

func readLines(reader *bufio.Reader) []string {
	lines := make([]string, 0)
	for {
		line, _ := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	return lines
}

// Confirm asks a yes/no question; anything but y or yes is no.
func Confirm(reader *bufio.Reader, prompt string, w io.Writer) (bool, error) {
	s, err := GetSimpleText(reader, prompt+" (y/N)", w)
	if err != nil {
		return false, err
	}
	s = strings.ToLower(s)
	return s == "y" || s == "yes", nil
}

func lowerFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[n:]
}
