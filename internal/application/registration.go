package application

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"

	MaxTimeoutSeconds = 5
)

// Registration is the payload a downstream application posts to register
// itself. Timeout is expressed in whole seconds.
type Registration struct {
	Scheme          string `json:"scheme"`
	Host            string `json:"host"`
	Port            int    `json:"port"`
	Path            string `json:"path"`
	HealthCheckPath string `json:"healthCheckPath"`
	Timeout         int    `json:"timeout"`
}

// Validate checks the payload. The returned error is a validation.Errors
// keyed by JSON field name.
func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Scheme,
			validation.Required,
			validation.By(validateScheme),
		),
		validation.Field(&r.Host,
			validation.Required,
			is.Host,
		),
		validation.Field(&r.Port,
			validation.Required,
			validation.Min(1),
			validation.Max(65535),
		),
		validation.Field(&r.HealthCheckPath,
			validation.Required,
		),
		validation.Field(&r.Timeout,
			validation.Min(0),
			validation.Max(MaxTimeoutSeconds),
		),
	)
}

func validateScheme(value interface{}) error {
	scheme, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	switch strings.ToLower(scheme) {
	case SchemeHTTP, SchemeHTTPS:
		return nil
	default:
		return validation.NewError("validation_invalid_scheme", "must be http or https")
	}
}
