package binder

import "errors"

var (
	// ErrBinderNotApplicable is returned when the request carries nothing
	// for this binder, for example an empty JSON body on a PATCH.
	ErrBinderNotApplicable = errors.New("binder not applicable")

	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrInvalidJSON          = errors.New("invalid JSON")
	ErrInvalidQuery         = errors.New("invalid query parameter")
	ErrInvalidPath          = errors.New("invalid path parameter")
)
