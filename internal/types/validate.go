package types

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports field names by their json tag so errors match the
// config and API surface.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidateRiskParams checks risk-parameter bounds. Returns a
// *ConfigurationError naming the first offending field.
func ValidateRiskParams(p RiskParams) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return &ConfigurationError{Field: fe.Field(), Reason: "fails rule " + fe.Tag()}
	}
	return &ConfigurationError{Field: "risk_params", Reason: err.Error()}
}
