package common

import (
	"fmt"
	"regexp"
)

// validIdentifier validates SQL identifiers (table/column names) to prevent SQL injection
var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func IsValidIdentifier(name string) bool {
	return validIdentifier.MatchString(name)
}

// ValidateIdentifiers returns an error naming the first invalid identifier.
func ValidateIdentifiers(kind string, names ...string) error {
	for _, name := range names {
		if !IsValidIdentifier(name) {
			return fmt.Errorf("invalid %s name: %q", kind, name)
		}
	}
	return nil
}
