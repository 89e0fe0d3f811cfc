package policy

import (
	"fmt"
	"strings"

	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
)

// CheckCommandAllowed enforces the --enable-commands allowlist. An entry names
// a command path or a whole group: "swap" admits "swap quote" and "swap execute".
func CheckCommandAllowed(allowlist []string, commandPath string) error {
	if len(allowlist) == 0 {
		return nil
	}
	path := fields(commandPath)
	for _, allowed := range allowlist {
		if hasPrefix(path, fields(allowed)) {
			return nil
		}
	}
	return clierr.New(clierr.CodeBlocked, fmt.Sprintf("command %q blocked by --enable-commands policy", strings.Join(path, " ")))
}

func fields(v string) []string {
	return strings.Fields(strings.ToLower(strings.TrimSpace(v)))
}

func hasPrefix(path, prefix []string) bool {
	if len(prefix) == 0 || len(prefix) > len(path) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}
