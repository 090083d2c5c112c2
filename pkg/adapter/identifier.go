package adapter

import (
	"regexp"
	"strings"

	"github.com/leapstack-labs/leapconn/pkg/core"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier checks that name is safe to weave into SQL text as a
// table or column name, and returns it unchanged.
//
// Values are always bound as parameters; identifiers cannot be, so this
// check is the only thing standing between a caller-supplied name and the
// statement text. Reserved-word collisions are not detected.
func ValidateIdentifier(name string) (string, error) {
	if !identifierPattern.MatchString(name) {
		return "", core.NewValidationError(core.CodeInvalidIdentifier,
			"invalid SQL identifier %q: only letters, digits and underscores are allowed, and it must not start with a digit", name)
	}
	return name, nil
}

// ValidateIdentifiers validates every name and stops at the first failure.
func ValidateIdentifiers(names ...string) error {
	for _, name := range names {
		if _, err := ValidateIdentifier(name); err != nil {
			return err
		}
	}
	return nil
}

// ParseOrderBy validates an ORDER BY expression of the form
// "col [ASC|DESC], col [ASC|DESC]" and returns it rebuilt from the
// validated parts. An empty expression yields an empty clause.
func ParseOrderBy(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", nil
	}

	terms := strings.Split(expr, ",")
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		fields := strings.Fields(term)
		if len(fields) == 0 || len(fields) > 2 {
			return "", core.NewValidationError(core.CodeInvalidOrderBy, "invalid ORDER BY term %q", strings.TrimSpace(term))
		}
		col, err := ValidateIdentifier(fields[0])
		if err != nil {
			return "", err
		}
		if len(fields) == 1 {
			out = append(out, col)
			continue
		}
		dir := strings.ToUpper(fields[1])
		if dir != "ASC" && dir != "DESC" {
			return "", core.NewValidationError(core.CodeInvalidOrderBy, "invalid ORDER BY direction %q", fields[1])
		}
		out = append(out, col+" "+dir)
	}
	return strings.Join(out, ", "), nil
}
