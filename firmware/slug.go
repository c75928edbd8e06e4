package firmware

import "strings"

// slugTrans maps characters that commonly appear in model and version
// strings to filename-safe replacements.
var slugTrans = map[rune]rune{
	' ': '_',
	'@': '-',
	':': '-',
}

// Sluggify converts value into a string that is safe to use as a file
// name. Characters outside [a-z0-9_-] are dropped after translation.
func Sluggify(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		if repl, ok := slugTrans[r]; ok {
			r = repl
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
