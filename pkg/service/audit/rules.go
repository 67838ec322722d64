package audit

import (
	"regexp"

	"github.com/Scarmonit/aistack/pkg/domain/types"
)

// Rule defines one line-oriented audit pattern.
//
// Absent rules invert the match: a finding is reported at line 1 when no
// line of the file matches the pattern (e.g. shell scripts without
// `set -e`).
type Rule struct {
	ID       types.RuleID
	Kind     types.AuditKind
	Severity types.Severity
	Title    string
	Detail   string

	Pattern *regexp.Regexp
	// Exclude suppresses a match when the line also matches this pattern
	Exclude *regexp.Regexp
	// Extensions limits the rule to these file extensions; empty applies
	// to every text file
	Extensions []string
	Absent     bool
}

// AppliesTo reports whether the rule covers a file with the given extension
func (r *Rule) AppliesTo(ext string) bool {
	if len(r.Extensions) == 0 {
		return true
	}
	for _, e := range r.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Matches reports whether the line trips the rule
func (r *Rule) Matches(line string) bool {
	if !r.Pattern.MatchString(line) {
		return false
	}
	if r.Exclude != nil && r.Exclude.MatchString(line) {
		return false
	}
	return true
}

var securityRules = []*Rule{
	{
		ID:       "SEC001",
		Kind:     types.AuditKindSecurity,
		Severity: types.SeverityHigh,
		Title:    "Hardcoded password",
		Detail:   "Move the credential into an environment variable or secret store",
		Pattern:  regexp.MustCompile(`(?i)\bpassword\s*[:=]\s*["'][^"']{4,}["']`),
		Exclude:  regexp.MustCompile(`(?i)(example|changeme|placeholder|your[_-]?password|\$\{|\$\()`),
	},
	{
		ID:       "SEC002",
		Kind:     types.AuditKindSecurity,
		Severity: types.SeverityHigh,
		Title:    "Hardcoded API key or token",
		Detail:   "Load the key from the environment instead of source",
		Pattern:  regexp.MustCompile(`(?i)\b(api[_-]?key|secret[_-]?key|access[_-]?token|auth[_-]?token|client[_-]?secret)\s*[:=]\s*["'][A-Za-z0-9_\-]{8,}["']`),
		Exclude:  regexp.MustCompile(`(?i)(example|sample|dummy|test|changeme|placeholder|xxxx|your[_-])`),
	},
	{
		ID:       "SEC003",
		Kind:     types.AuditKindSecurity,
		Severity: types.SeverityCritical,
		Title:    "AWS access key ID",
		Detail:   "Revoke the key and switch to instance roles or env credentials",
		Pattern:  regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
	},
	{
		ID:       "SEC004",
		Kind:     types.AuditKindSecurity,
		Severity: types.SeverityCritical,
		Title:    "Private key material",
		Detail:   "Remove the key from the repository and rotate it",
		Pattern:  regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY( BLOCK)?-----`),
	},
	{
		ID:       "SEC005",
		Kind:     types.AuditKindSecurity,
		Severity: types.SeverityHigh,
		Title:    "Remote script piped into a shell",
		Detail:   "Download to a file, verify its checksum, then execute",
		Pattern:  regexp.MustCompile(`(?i)\b(curl|wget)\b[^|;&]*\|\s*(sudo\s+)?(ba|z|da)?sh\b`),
	},
	{
		ID:       "SEC006",
		Kind:     types.AuditKindSecurity,
		Severity: types.SeverityMedium,
		Title:    "Dynamic eval of interpolated input",
		Detail:   "Replace eval with explicit parsing or a dispatch table",
		Pattern:  regexp.MustCompile(`(?i)\beval\s*[("'` + "`" + `$]`),
	},
	{
		ID:       "SEC007",
		Kind:     types.AuditKindSecurity,
		Severity: types.SeverityMedium,
		Title:    "World-writable permissions",
		Detail:   "Use the least permissive mode the service needs",
		Pattern:  regexp.MustCompile(`\bchmod\s+(-[A-Za-z]+\s+)?0?777\b`),
	},
	{
		ID:       "SEC008",
		Kind:     types.AuditKindSecurity,
		Severity: types.SeverityMedium,
		Title:    "Unencrypted http:// URL",
		Detail:   "Use https for anything fetched or posted over a network",
		Pattern:  regexp.MustCompile(`\bhttp://[A-Za-z0-9.-]+`),
		Exclude:  regexp.MustCompile(`http://(localhost|127\.0\.0\.1|0\.0\.0\.0|\[::1\]|\$)`),
	},
	{
		ID:       "SEC009",
		Kind:     types.AuditKindSecurity,
		Severity: types.SeverityHigh,
		Title:    "Privileged container",
		Detail:   "Grant specific capabilities instead of --privileged",
		Pattern:  regexp.MustCompile(`docker\s+run\b.*--privileged\b`),
	},
	{
		ID:       "SEC010",
		Kind:     types.AuditKindSecurity,
		Severity: types.SeverityMedium,
		Title:    "TLS verification disabled",
		Detail:   "Fix the certificate chain rather than disabling verification",
		Pattern:  regexp.MustCompile(`(?i)(verify\s*=\s*False|--insecure\b|--no-check-certificate\b|InsecureSkipVerify\s*:\s*true)`),
	},
}

var qualityRules = []*Rule{
	{
		ID:       "QUA001",
		Kind:     types.AuditKindQuality,
		Severity: types.SeverityLow,
		Title:    "Line exceeds 100 characters",
		Detail:   "Wrap or refactor the line",
		Pattern:  regexp.MustCompile(`^.{101,}$`),
	},
	{
		ID:       "QUA002",
		Kind:     types.AuditKindQuality,
		Severity: types.SeverityInfo,
		Title:    "Trailing whitespace",
		Detail:   "Strip trailing spaces and tabs",
		Pattern:  regexp.MustCompile(`[ \t]+$`),
	},
	{
		ID:       "QUA003",
		Kind:     types.AuditKindQuality,
		Severity: types.SeverityInfo,
		Title:    "Unresolved TODO/FIXME marker",
		Detail:   "File or link a tracked issue for the marker",
		Pattern:  regexp.MustCompile(`\b(TODO|FIXME|XXX|HACK)\b`),
	},
	{
		ID:         "QUA004",
		Kind:       types.AuditKindQuality,
		Severity:   types.SeverityMedium,
		Title:      "Bare except clause",
		Detail:     "Catch the specific exception types expected",
		Pattern:    regexp.MustCompile(`\bexcept\s*:`),
		Extensions: []string{".py"},
	},
	{
		ID:         "QUA005",
		Kind:       types.AuditKindQuality,
		Severity:   types.SeverityLow,
		Title:      "Overly broad exception handler",
		Detail:     "Narrow the handler or re-raise after logging",
		Pattern:    regexp.MustCompile(`\bexcept\s+(Exception|BaseException)\b`),
		Extensions: []string{".py"},
	},
	{
		ID:         "QUA006",
		Kind:       types.AuditKindQuality,
		Severity:   types.SeverityLow,
		Title:      "print() debugging",
		Detail:     "Use the logging module instead of print",
		Pattern:    regexp.MustCompile(`^\s*print\(`),
		Extensions: []string{".py"},
	},
	{
		ID:         "QUA007",
		Kind:       types.AuditKindQuality,
		Severity:   types.SeverityMedium,
		Title:      "Shell script without set -e",
		Detail:     "Add `set -euo pipefail` so failures stop the script",
		Pattern:    regexp.MustCompile(`\bset\s+-[a-z]*e`),
		Extensions: []string{".sh", ".bash"},
		Absent:     true,
	},
	{
		ID:       "QUA008",
		Kind:     types.AuditKindQuality,
		Severity: types.SeverityLow,
		Title:    "Mixed tab and space indentation",
		Detail:   "Pick one indentation style per file",
		Pattern:  regexp.MustCompile(`^( +\t|\t+ )`),
	},
}

// RulesForKinds returns the builtin rules covering the given audit kinds
func RulesForKinds(kinds []types.AuditKind) []*Rule {
	var rules []*Rule
	for _, kind := range kinds {
		switch kind {
		case types.AuditKindSecurity:
			rules = append(rules, securityRules...)
		case types.AuditKindQuality:
			rules = append(rules, qualityRules...)
		}
	}
	return rules
}
