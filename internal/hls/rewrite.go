package hls

import "strings"

// RewriteManifest rewrites a media playlist so every segment reference becomes
// an absolute URL under baseURL. Comment lines (leading '#') and blank lines
// pass through untouched; every other line is treated as a segment reference
// and prefixed. The original line order is preserved.
func RewriteManifest(manifest []byte, baseURL string) []byte {
	base := strings.TrimRight(baseURL, "/")
	lines := strings.Split(string(manifest), "\n")
	rewritten := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			rewritten = append(rewritten, line)
			continue
		}
		rewritten = append(rewritten, base+"/"+trimmed)
	}
	return []byte(strings.Join(rewritten, "\n"))
}
