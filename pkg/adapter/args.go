package adapter

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/leapconn/pkg/core"
)

// DecodeArgs decodes a constructor argument bag into out, a pointer to a
// backend config struct tagged with `mapstructure`. Unknown keys are
// rejected and scalar strings are converted ("5432" into an int field).
func DecodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return core.NewValidationError(core.CodeInvalidArguments, "invalid argument target: %v", err)
	}
	if err := dec.Decode(args); err != nil {
		return &core.ValidationError{
			Code:    core.CodeInvalidArguments,
			Message: "invalid connection arguments",
			Err:     err,
		}
	}
	return nil
}

// ArgsError reports a semantically invalid argument after decoding.
func ArgsError(format string, args ...any) error {
	return core.NewValidationError(core.CodeInvalidArguments, format, args...)
}

// HasArg reports whether key was given in args with a non-nil value.
// An empty string counts as given.
func HasArg(args map[string]any, key string) bool {
	v, ok := args[key]
	return ok && v != nil
}
