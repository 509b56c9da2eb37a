// Package flagx lets several components read their own flags from one
// command line without tripping over each other.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// flagName strips the leading dashes, since the flag package treats -x and
// --x alike.
func flagName(arg string) string {
	return strings.TrimLeft(arg, "-")
}

// FilterArgs keeps only the allowed flags and their values, in order.
//
// A flag may be written with one or two dashes, with its value either
// after '=' (-c=conf.json) or as the next argument (-c conf.json). The next
// argument is taken as the value unless it starts with a dash. Everything
// after a bare "--" is dropped.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[flagName(f)] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		name, _, hasValue := strings.Cut(arg, "=")
		if _, ok := allowed[flagName(name)]; !ok {
			continue
		}
		filtered = append(filtered, arg)

		if !hasValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}
	return filtered
}

// ConfigFileFlag extracts the config file path given with -c or -config.
// Every other argument is ignored, so callers can run it before their own
// flag set is defined. The path may point to a JSON or YAML file.
func ConfigFileFlag(args []string) string {
	var config string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"c", "config"}))

	return config
}
