package infrastructure

import "strings"

// redactedFlags take a value that must not end up in the download log
var redactedFlags = map[string]bool{
	"--cookies":  true,
	"--password": true,
	"--username": true,
}

// ShellEscape quotes s for display in a copy-pasteable command line.
// Only used for the download log; exec never goes through a shell.
func ShellEscape(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsFunc(s, isShellSpecialChar) {
		return s
	}

	// close the quote, emit a double-quoted ', reopen
	var b strings.Builder
	b.WriteByte('\'')
	for _, c := range s {
		if c == '\'' {
			b.WriteString(`'"'"'`)
			continue
		}
		b.WriteRune(c)
	}
	b.WriteByte('\'')
	return b.String()
}

// ShellEscapeCommand renders a yt-dlp invocation for the download log,
// hiding the values of credential flags.
func ShellEscapeCommand(binary string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, ShellEscape(binary))

	redactNext := false
	for _, arg := range args {
		switch {
		case redactNext:
			parts = append(parts, "<redacted>")
			redactNext = false
		case redactedFlags[arg]:
			parts = append(parts, arg)
			redactNext = true
		default:
			if flag, _, ok := strings.Cut(arg, "="); ok && redactedFlags[flag] {
				parts = append(parts, flag+"=<redacted>")
				continue
			}
			parts = append(parts, ShellEscape(arg))
		}
	}
	return strings.Join(parts, " ")
}

func isShellSpecialChar(c rune) bool {
	switch c {
	case ' ', '\t', '\'', '"', '$', '`', '\\', '!', '*', '?', '[', ']',
		'(', ')', '{', '}', '|', ';', '<', '>', '&', '~', '#', '%', '\n', '\r':
		return true
	default:
		return false
	}
}
