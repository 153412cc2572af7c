package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/leapstack-labs/leapgold/pkg/adapter"
	"github.com/leapstack-labs/leapgold/pkg/core"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierPattern.MatchString(fl.Field().String())
	})
	v.RegisterStructValidation(validateSource, core.AdapterConfig{})
	return v
}

// validateSource checks the source type against the adapter registry and
// the fields each kind of source needs.
func validateSource(sl validator.StructLevel) {
	src := sl.Current().Interface().(core.AdapterConfig)
	switch {
	case src.Type == "":
		sl.ReportError(src.Type, "type", "Type", "required", "")
	case !adapter.IsRegistered(strings.ToLower(src.Type)):
		sl.ReportError(src.Type, "type", "Type", "adapter", "")
	case (src.Type == "csv" || src.Type == "sqlite") && src.Path == "" && src.DSN == "":
		sl.ReportError(src.Path, "path", "Path", "required", "")
	}
}

// Validate checks the configuration. Errors name the offending key.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	key := configKey(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", key, fe.Param(), fmt.Sprint(fe.Value()))
	case "identifier":
		return fmt.Sprintf("%s %q is not a valid identifier", key, fmt.Sprint(fe.Value()))
	case "adapter":
		return (&adapter.UnknownAdapterError{Type: fmt.Sprint(fe.Value()), Available: adapter.ListAdapters()}).Error()
	case "gte", "lte":
		return fmt.Sprintf("%s must be %s %s, got %v", key, map[string]string{"gte": ">=", "lte": "<="}[fe.Tag()], fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s failed %s", key, fe.Tag())
}

// configKey maps a validator namespace like "Config.Refresh.KeepRuns" to
// the config key "refresh.keep_runs".
func configKey(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
