package analytics

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leapgold/pkg/core"
)

// ErrUnknownQuery is returned for a query name that is not registered.
var ErrUnknownQuery = errors.New("unknown query")

// ParamError reports an invalid query argument.
type ParamError struct {
	Query  string
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("query %s: parameter %s: %s", e.Query, e.Param, e.Reason)
}

// ParamKind is the type of a query parameter.
type ParamKind string

// Parameter kinds.
const (
	KindString ParamKind = "string"
	KindInt    ParamKind = "int"
	KindMonth  ParamKind = "month" // yyyy-MM
	KindDate   ParamKind = "date"  // yyyy-MM-dd
)

// Param declares one query parameter.
type Param struct {
	Name        string    `json:"name" yaml:"name"`
	Kind        ParamKind `json:"kind" yaml:"kind"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Default     string    `json:"default,omitempty" yaml:"default,omitempty"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Choices     []string  `json:"choices,omitempty" yaml:"choices,omitempty"`
	Min         int       `json:"min,omitempty" yaml:"min,omitempty"`
	Max         int       `json:"max,omitempty" yaml:"max,omitempty"`
}

// Args are bound, typed parameter values. Absent optional parameters are
// missing from the map.
type Args map[string]core.Value

// String returns a string argument, "" when absent.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns an int argument, 0 when absent.
func (a Args) Int(name string) int {
	i, _ := a[name].(int64)
	return int(i)
}

// Has reports whether name was given or defaulted.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// bind validates raw against the declared parameters.
func bind(query string, params []Param, raw map[string]string) (Args, error) {
	for name := range raw {
		if !slices.ContainsFunc(params, func(p Param) bool { return p.Name == name }) {
			return nil, &ParamError{Query: query, Param: name, Reason: "not accepted"}
		}
	}

	args := make(Args, len(params))
	for _, p := range params {
		s := strings.TrimSpace(raw[p.Name])
		if s == "" {
			s = p.Default
		}
		if s == "" {
			if p.Required {
				return nil, &ParamError{Query: query, Param: p.Name, Reason: "required"}
			}
			continue
		}
		v, err := p.parse(s)
		if err != nil {
			return nil, &ParamError{Query: query, Param: p.Name, Reason: err.Error()}
		}
		args[p.Name] = v
	}
	return args, nil
}

func (p Param) parse(s string) (core.Value, error) {
	if len(p.Choices) > 0 && !slices.Contains(p.Choices, s) {
		return nil, fmt.Errorf("%q is not one of %s", s, strings.Join(p.Choices, ", "))
	}
	switch p.Kind {
	case KindInt:
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", s)
		}
		if p.Max > 0 && (n < p.Min || n > p.Max) {
			return nil, fmt.Errorf("%d is outside [%d, %d]", n, p.Min, p.Max)
		}
		return int64(n), nil
	case KindMonth:
		if _, err := time.Parse("2006-01", s); err != nil {
			return nil, fmt.Errorf("%q is not a yyyy-MM month", s)
		}
		return s, nil
	case KindDate:
		d, err := time.Parse(core.DateLayout, s)
		if err != nil {
			return nil, fmt.Errorf("%q is not a yyyy-MM-dd date", s)
		}
		return d.UTC(), nil
	default:
		return s, nil
	}
}
