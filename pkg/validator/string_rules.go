package validator

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Required fails for empty or whitespace-only strings.
func Required(field, value string) Rule {
	return Rule{
		Check: func() bool {
			return strings.TrimSpace(value) != ""
		},
		Error: ValidationError{Field: field, Message: "can't be blank"},
	}
}

// MinLen counts characters, not bytes.
func MinLen(field, value string, min int) Rule {
	return Rule{
		Check: func() bool {
			return utf8.RuneCountInString(value) >= min
		},
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("is too short (minimum is %d %s)", min, characters(min)),
		},
	}
}

// MaxLen counts characters, not bytes.
func MaxLen(field, value string, max int) Rule {
	return Rule{
		Check: func() bool {
			return utf8.RuneCountInString(value) <= max
		},
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("is too long (maximum is %d %s)", max, characters(max)),
		},
	}
}

// ValidUTF8 fails for invalid UTF-8 and for NUL, which text columns reject.
func ValidUTF8(field, value string) Rule {
	return Rule{
		Check: func() bool {
			return utf8.ValidString(value) && !strings.ContainsRune(value, 0)
		},
		Error: ValidationError{Field: field, Message: "contains invalid characters"},
	}
}

func characters(n int) string {
	if n == 1 {
		return "character"
	}
	return "characters"
}
