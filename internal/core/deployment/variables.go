package deployment

import (
	"regexp"
	"strings"
)

// =============================================================================
// Variable Substitution Functions
// =============================================================================

// varPlaceholderRegex matches ${VAR} and ${VAR:-default} patterns.
// Groups:
//   - Group 1: Variable name (required)
//   - Group 2: Default value (optional, after :-)
var varPlaceholderRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// SubstituteVariables replaces ${VAR} and ${VAR:-default} placeholders with
// values from the variables map.
//
// Behavior:
//   - ${VAR} - replaced with variables["VAR"] if set, otherwise kept as-is
//   - ${VAR:-default} - replaced with variables["VAR"] if set, otherwise "default"
//   - Unmatched text is left unchanged
//
// Examples:
//
//	SubstituteVariables("${DB_HOST}", map[string]string{"DB_HOST": "localhost"})
//	// Returns: "localhost"
//
//	SubstituteVariables("${SUPERUSER_PASSWORD:-password}", map[string]string{})
//	// Returns: "password"
//
//	SubstituteVariables("${MISSING}", map[string]string{})
//	// Returns: "${MISSING}"
//
//	SubstituteVariables("postgres://${HOST}:${PORT}", map[string]string{"HOST": "db", "PORT": "5432"})
//	// Returns: "postgres://db:5432"
func SubstituteVariables(value string, variables map[string]string) string {
	return varPlaceholderRegex.ReplaceAllStringFunc(value, func(match string) string {
		submatch := varPlaceholderRegex.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}
		if val, ok := variables[submatch[1]]; ok {
			return val
		}
		// ${VAR:-default} falls back to the default, which may be empty.
		if strings.Contains(match, ":-") {
			return submatch[2]
		}
		return match
	})
}
