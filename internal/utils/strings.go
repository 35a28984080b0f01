package utils

// Truncate shortens s to at most n runes, appending "..." when it cut
// anything. Used for audit previews and log lines.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
