// Package validator builds declarative validation from small Rule values.
//
// Each helper returns a Rule pairing a Check with the error reported when it
// fails. Apply evaluates rules in order and aggregates failures into
// ValidationErrors, which implements error:
//
//	err := validator.Apply(
//	    validator.Required("title", title),
//	    validator.MaxLen("title", title, 255),
//	    validator.Min("position", position, 0),
//	)
//	if verrs := validator.ExtractValidationErrors(err); verrs != nil {
//	    msgs := verrs.FullMessages() // ["Title can't be blank"]
//	}
//
// String lengths are counted in characters.
package validator
