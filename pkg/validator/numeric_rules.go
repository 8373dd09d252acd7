package validator

import "fmt"

// Min validates value >= min.
func Min[T Numeric](field string, value T, min T) Rule {
	return Rule{
		Check: func() bool {
			return value >= min
		},
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be greater than or equal to %v", min),
		},
	}
}

// Max validates value <= max.
func Max[T Numeric](field string, value T, max T) Rule {
	return Rule{
		Check: func() bool {
			return value <= max
		},
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be less than or equal to %v", max),
		},
	}
}
