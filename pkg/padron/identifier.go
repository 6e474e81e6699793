package padron

import (
	"regexp"
	"strings"
)

// Identifier length limit of the target store (Postgres NAMEDATALEN-1).
const maxIdentifierLen = 63

var (
	invalidIdentRE = regexp.MustCompile(`[^a-z0-9_]`)
	// SQL types a declared column may use. Anything else is rejected before
	// table DDL is assembled; declared names and types are the only
	// identifiers ever interpolated into SQL, values are always bound.
	allowedTypeRE = regexp.MustCompile(`(?i)^(VARCHAR\(\d+\)|TEXT|INTEGER|BIGINT|NUMERIC\(\d+\s*,\s*\d+\)|NUMERIC|DATE|TIMESTAMP|BOOLEAN)$`)
)

// SanitizeTableName forces a table identifier to [a-z0-9_], lowercase,
// prefixed when it would start with a digit, truncated to the store limit.
func SanitizeTableName(name string) string {
	return sanitizeIdent(name, "t_")
}

// SanitizeColumnName applies the same rules with the column prefix.
func SanitizeColumnName(name string) string {
	return sanitizeIdent(name, "c_")
}

func sanitizeIdent(name, digitPrefix string) string {
	s := invalidIdentRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	if s == "" {
		return s
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = digitPrefix + s
	}
	if len(s) > maxIdentifierLen {
		s = s[:maxIdentifierLen]
	}
	return s
}

// allowedType reports whether a declared SQL type is on the allow-list.
func allowedType(sqlType string) bool {
	return allowedTypeRE.MatchString(strings.TrimSpace(sqlType))
}
