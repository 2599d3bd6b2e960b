package launch_args

import (
	"strings"
)

// Substitute replaces every ${key} found in values. Unknown keys and
// unterminated tokens are left as they are.
func Substitute(s string, values map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var sb strings.Builder
	for {
		start := strings.Index(s, "${")
		if start == -1 {
			break
		}
		end := strings.IndexByte(s[start+2:], '}')
		if end == -1 {
			break
		}
		end += start + 2
		sb.WriteString(s[:start])
		if v, ok := values[s[start+2:end]]; ok {
			sb.WriteString(v)
		} else {
			sb.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
	sb.WriteString(s)
	return sb.String()
}

// SplitLegacy splits a flat minecraftArguments string on single spaces.
// Quoting is not supported, so empty tokens from repeated spaces are kept.
func SplitLegacy(flat string) []string {
	if flat == "" {
		return nil
	}
	return strings.Split(flat, " ")
}
