package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrUsage is returned when the number of positional arguments is wrong.
	ErrUsage = errors.New("wrong number of arguments")

	// ErrInvalidChar is returned when the identifier or info string contains
	// a forbidden character.
	ErrInvalidChar = errors.New("invalid character in parameter")

	// ErrInvalidPort is returned when the mapper port is not a valid port.
	ErrInvalidPort = errors.New("invalid port")
)

// invalidIDChars may not appear in an identifier or info string. ':' is the
// separator of the mapper announcement.
const invalidIDChars = "\n\r:"

// Args holds the validated positional arguments.
type Args struct {
	// ID is the plane identifier announced to the mapper.
	ID string

	// Info is the free-form info string.
	Info string

	// MapperPort is the discovery service port. 0 when no mapper was given.
	MapperPort int
}

// HasMapper reports whether a discovery port was supplied.
func (a Args) HasMapper() bool {
	return a.MapperPort != 0
}

type rawArgs struct {
	ID     string `validate:"planeid"`
	Info   string `validate:"planeid"`
	Mapper string `validate:"omitempty,tcpport"`
}

// ParseArgs validates the positional arguments "<id> <info> [mapper]".
// Arguments after the mapper port are ignored.
//
// Returns an error wrapping ErrUsage, ErrInvalidChar or ErrInvalidPort.
// Character checks run before the port check.
func ParseArgs(positional []string) (Args, error) {
	if len(positional) < 2 {
		return Args{}, ErrUsage
	}

	raw := rawArgs{ID: positional[0], Info: positional[1]}
	hasMapper := len(positional) >= 3
	if hasMapper {
		raw.Mapper = positional[2]
	}

	if err := validate.Struct(raw); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return Args{}, err
		}
		// Character errors take precedence over the port.
		for _, e := range validationErrs {
			if e.Tag() == "planeid" {
				return Args{}, fmt.Errorf("%w: %s", ErrInvalidChar, strings.ToLower(e.Field()))
			}
		}
		return Args{}, fmt.Errorf("%w: %q", ErrInvalidPort, raw.Mapper)
	}

	if hasMapper && raw.Mapper == "" {
		return Args{}, fmt.Errorf("%w: empty mapper port", ErrInvalidPort)
	}

	args := Args{ID: raw.ID, Info: raw.Info}
	if raw.Mapper != "" {
		// Already checked by the tcpport tag.
		args.MapperPort, _ = strconv.Atoi(raw.Mapper)
	}
	return args, nil
}

// registerArgValidators installs the custom tags used by ParseArgs.
func registerArgValidators(v *validator.Validate) {
	_ = v.RegisterValidation("planeid", func(fl validator.FieldLevel) bool {
		return IsValidID(fl.Field().String())
	})
	_ = v.RegisterValidation("tcpport", func(fl validator.FieldLevel) bool {
		_, ok := ParsePort(fl.Field().String())
		return ok
	})
}

// IsValidID reports whether s can be used as an identifier or info string:
// non-empty and free of newlines and ':'.
func IsValidID(s string) bool {
	return s != "" && !strings.ContainsAny(s, invalidIDChars)
}

// ParsePort parses a decimal TCP port in the range 1-65535. Signs,
// whitespace and other non-digit characters are rejected.
func ParsePort(s string) (int, bool) {
	if s == "" || len(s) > 5 {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, false
	}
	return port, true
}
