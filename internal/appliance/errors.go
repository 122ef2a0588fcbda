package appliance

import "errors"

// Domain errors for the appliance package.
var (
	// ErrUnknownType is returned by New for an unsupported device type.
	ErrUnknownType = errors.New("appliance: unknown device type")

	// ErrInvalidParameters is returned when command parameters are not a
	// JSON object.
	ErrInvalidParameters = errors.New("appliance: invalid parameters")

	// ErrInvalidParameter is returned when a single parameter has the wrong
	// JSON type.
	ErrInvalidParameter = errors.New("appliance: invalid parameter")
)
