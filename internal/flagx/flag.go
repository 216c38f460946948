// Package flagx parses subsets of the command line so several config layers
// can each read only the flags they own.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs keeps only the allowed flags (and their values) from args.
//
// Accepted forms are "-c conf.json" and "--config=conf.json". A separate value
// is consumed only when it does not itself start with "-".
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// stringFlag returns the value of a string flag known under any of names
// (without dashes); the last occurrence wins.
func stringFlag(setName string, names ...string) string {
	var value string

	allowed := make([]string, 0, len(names)*2)
	fs := flag.NewFlagSet(setName, flag.ContinueOnError)
	for _, n := range names {
		allowed = append(allowed, "-"+n, "--"+n)
		fs.StringVar(&value, n, "", setName)
	}

	_ = fs.Parse(FilterArgs(os.Args[1:], allowed))
	return value
}

// JsonConfigFlags returns the JSON config path given by -c or -config,
// or "" when neither is present.
func JsonConfigFlags() string {
	return stringFlag("json", "config", "c")
}

// EnvFileFlags returns the dotenv path given by -env, or "" when absent.
func EnvFileFlags() string {
	return stringFlag("env", "env")
}
