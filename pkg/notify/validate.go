package notify

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is shared; validator instances cache struct metadata and are safe
// for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names in errors so callers see the wire-level key
	// ("recipient_list"), not the Go identifier.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateConfig checks cfg against the schema for method and returns the
// typed configuration. It is pure: no side effects, called at binding
// creation time and again before every send.
//
// An unknown method yields *UnsupportedMethodError; every schema violation
// yields *ConfigError naming the offending field.
func ValidateConfig(method Method, cfg Config) (*ValidatedConfig, error) {
	switch method {
	case MethodEmail:
		var ec EmailConfig
		if err := decodeConfig(method, cfg, &ec); err != nil {
			return nil, err
		}
		return &ValidatedConfig{Method: method, Email: &ec}, nil
	case MethodSlack:
		var sc SlackConfig
		if err := decodeConfig(method, cfg, &sc); err != nil {
			return nil, err
		}
		return &ValidatedConfig{Method: method, Slack: &sc}, nil
	case MethodTelegram:
		var tc TelegramConfig
		if err := decodeConfig(method, cfg, &tc); err != nil {
			return nil, err
		}
		return &ValidatedConfig{Method: method, Telegram: &tc}, nil
	default:
		return nil, &UnsupportedMethodError{Method: string(method)}
	}
}

// decodeConfig round-trips the raw mapping through JSON into the typed struct
// and runs the struct tags. What gets validated is exactly what a reload from
// storage produces, so a config that passes here passes after persistence.
func decodeConfig(method Method, cfg Config, out any) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return &ConfigError{Method: method, Field: "config", Reason: "is not a serializable mapping"}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &ConfigError{Method: method, Field: typeErr.Field, Reason: "has the wrong type (" + typeErr.Value + ")"}
		}
		return &ConfigError{Method: method, Field: "config", Reason: "is malformed"}
	}
	if err := validate.Struct(out); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ConfigError{Method: method, Field: fe.Field(), Reason: reasonFor(fe)}
		}
		return &ConfigError{Method: method, Field: "config", Reason: err.Error()}
	}
	return nil
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must not be empty"
	case "email":
		return "is not a valid address"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
