package expand

import (
	"os"
	"os/user"
	"strings"
)

// Tilde resolves a `~` or `~name` prefix (with an optional `/rest`
// suffix already split off by the caller) to a home directory. `~`
// alone resolves to $HOME, falling back to the passwd entry for the
// current uid when unset. `~name` resolves to name's passwd entry;
// when no such user exists the original `~name` text is returned
// unchanged, per spec.md §4.3.
func Tilde(name string) (string, error) {
	if name == "" {
		if home := os.Getenv("HOME"); home != "" {
			return home, nil
		}

		u, err := user.Current()
		if err != nil {
			return "", err
		}

		return u.HomeDir, nil
	}

	u, err := user.Lookup(name)
	if err != nil {
		return "~" + name, nil //nolint:nilerr // unknown user: literal text
	}

	return u.HomeDir, nil
}

// TildeAndRest splits a `~[name][/rest]` token into its user portion
// and the remainder, for callers (the parser) that need to separate
// the resolvable prefix from a trailing path before constructing a
// TildePrefix AST node.
func TildeAndRest(token string) (name, rest string) {
	token = strings.TrimPrefix(token, "~")

	if i := strings.IndexByte(token, '/'); i >= 0 {
		return token[:i], token[i:]
	}

	return token, ""
}
