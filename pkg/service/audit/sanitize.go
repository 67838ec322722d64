package audit

import (
	"regexp"
	"strings"
)

var (
	reBearer   = regexp.MustCompile(`(?i)\b(bearer\s+)([a-z0-9\-\._~\+\/]+=*)`)
	reSecretKV = regexp.MustCompile(`(?i)\b(password|passwd|pwd|api[_-]?key|secret[_-]?key|access[_-]?token|auth[_-]?token|client[_-]?secret|token|secret|authorization)(\s*[:=]\s*)(\S+)`)
	reAWSKey   = regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)
	reLongTok  = regexp.MustCompile(`\b[a-zA-Z0-9_\-]{32,}\b`)
)

const excerptLimit = 120

// maskSecrets redacts credential-looking values so report excerpts never
// leak what the rule caught
func maskSecrets(s string) string {
	out := s
	out = reBearer.ReplaceAllString(out, "${1}<redacted>")
	out = reSecretKV.ReplaceAllString(out, "${1}${2}<redacted>")
	out = reAWSKey.ReplaceAllString(out, "AKIA<redacted>")
	out = reLongTok.ReplaceAllStringFunc(out, func(tok string) string {
		return tok[:4] + "...<redacted>..." + tok[len(tok)-4:]
	})
	return out
}

// excerpt trims, masks, and truncates a source line for inclusion in
// reports
func excerpt(line string) string {
	out := maskSecrets(strings.TrimSpace(line))
	if len(out) > excerptLimit {
		out = out[:excerptLimit] + "..."
	}
	return out
}
