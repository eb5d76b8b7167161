package provider

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/unalkalkan/podcaster/internal/apperrors"
)

// Options is a provider configuration mapping from option name to value
type Options map[string]any

// OptionType is the declared type of an option
type OptionType string

const (
	TypeString OptionType = "string"
	TypeSecret OptionType = "secret"
	TypeInt    OptionType = "int"
	TypeFloat  OptionType = "float"
	TypeBool   OptionType = "bool"
)

// OptionSpec declares one configuration knob of a provider
type OptionSpec struct {
	Name        string     `json:"name"`
	Type        OptionType `json:"type"`
	Default     any        `json:"default,omitempty"`
	Min         *float64   `json:"min,omitempty"`
	Max         *float64   `json:"max,omitempty"`
	Choices     []string   `json:"choices,omitempty"`
	EnvVar      string     `json:"env_var,omitempty"`
	Required    bool       `json:"required,omitempty"`
	Description string     `json:"description,omitempty"`
}

func StringOption(name, def, description string) OptionSpec {
	return OptionSpec{Name: name, Type: TypeString, Default: def, Description: description}
}

func SecretOption(name, envVar, description string) OptionSpec {
	return OptionSpec{Name: name, Type: TypeSecret, EnvVar: envVar, Description: description}
}

func IntOption(name string, def, min, max int, description string) OptionSpec {
	lo, hi := float64(min), float64(max)
	return OptionSpec{Name: name, Type: TypeInt, Default: def, Min: &lo, Max: &hi, Description: description}
}

func FloatOption(name string, def, min, max float64, description string) OptionSpec {
	return OptionSpec{Name: name, Type: TypeFloat, Default: def, Min: &min, Max: &max, Description: description}
}

func BoolOption(name string, def bool, description string) OptionSpec {
	return OptionSpec{Name: name, Type: TypeBool, Default: def, Description: description}
}

// FromEnv sets the environment variable consulted when the option is not configured
func (s OptionSpec) FromEnv(envVar string) OptionSpec {
	s.EnvVar = envVar
	return s
}

// Require marks the option as mandatory after env and default fallback
func (s OptionSpec) Require() OptionSpec {
	s.Required = true
	return s
}

// OneOf restricts a string option to the given values
func (s OptionSpec) OneOf(choices ...string) OptionSpec {
	s.Choices = choices
	return s
}

// MergeOptions merges option layers key by key, later layers winning
func MergeOptions(layers ...Options) Options {
	merged := Options{}
	for _, layer := range layers {
		for k, v := range layer {
			merged[k] = v
		}
	}
	return merged
}

// ResolveOptions validates merged options against the declared specs.
// Unknown keys are dropped, missing keys fall back to the environment and
// then to the declared default, and values are coerced to the declared type.
func ResolveOptions(specs []OptionSpec, merged Options) (Options, error) {
	resolved := Options{}
	var missing []string

	for _, spec := range specs {
		raw, ok := merged[spec.Name]
		if ok && isBlank(raw) {
			ok = false
		}
		if !ok && spec.EnvVar != "" {
			if val, found := os.LookupEnv(spec.EnvVar); found && val != "" {
				raw, ok = val, true
			}
		}
		if !ok && !isBlank(spec.Default) {
			raw, ok = spec.Default, true
		}
		if !ok {
			if spec.Required {
				missing = append(missing, spec.Name)
			}
			continue
		}

		value, err := coerce(spec, raw)
		if err != nil {
			return nil, apperrors.Configuration(err.Error())
		}
		resolved[spec.Name] = value
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, apperrors.Configuration(fmt.Sprintf("missing required options: %s", strings.Join(missing, ", ")))
	}

	return resolved, nil
}

// CheckOptions coerces and validates only the options present in opts.
// Keys without a spec pass through unchanged and no defaults are filled.
func CheckOptions(specs []OptionSpec, opts Options) (Options, error) {
	byName := make(map[string]OptionSpec, len(specs))
	for _, spec := range specs {
		byName[spec.Name] = spec
	}

	checked := make(Options, len(opts))
	for name, raw := range opts {
		spec, ok := byName[name]
		if !ok {
			checked[name] = raw
			continue
		}
		value, err := coerce(spec, raw)
		if err != nil {
			return nil, apperrors.Configuration(err.Error())
		}
		checked[name] = value
	}
	return checked, nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func coerce(spec OptionSpec, raw any) (any, error) {
	switch spec.Type {
	case TypeString, TypeSecret:
		s := strings.TrimSpace(fmt.Sprint(raw))
		if len(spec.Choices) > 0 && !contains(spec.Choices, s) {
			return nil, fmt.Errorf("option %s: %q is not one of %s", spec.Name, s, strings.Join(spec.Choices, ", "))
		}
		return s, nil

	case TypeInt:
		n, err := toFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("option %s: %w", spec.Name, err)
		}
		if n != math.Trunc(n) {
			return nil, fmt.Errorf("option %s: %v is not an integer", spec.Name, raw)
		}
		if err := checkBounds(spec, n); err != nil {
			return nil, err
		}
		return int(n), nil

	case TypeFloat:
		n, err := toFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("option %s: %w", spec.Name, err)
		}
		if err := checkBounds(spec, n); err != nil {
			return nil, err
		}
		return n, nil

	case TypeBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("option %s: %q is not a boolean", spec.Name, v)
			}
			return b, nil
		default:
			return nil, fmt.Errorf("option %s: %v is not a boolean", spec.Name, raw)
		}

	default:
		return nil, fmt.Errorf("option %s: unknown type %s", spec.Name, spec.Type)
	}
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%v is not a number", raw)
	}
}

func checkBounds(spec OptionSpec, n float64) error {
	if spec.Min != nil && n < *spec.Min {
		return fmt.Errorf("option %s: %v is below minimum %v", spec.Name, n, *spec.Min)
	}
	if spec.Max != nil && n > *spec.Max {
		return fmt.Errorf("option %s: %v is above maximum %v", spec.Name, n, *spec.Max)
	}
	return nil
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// String returns a string option or "" when absent
func (o Options) String(key string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return ""
}

// Int returns an int option or 0 when absent
func (o Options) Int(key string) int {
	switch v := o[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Float returns a float option or 0 when absent
func (o Options) Float(key string) float64 {
	switch v := o[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// Bool returns a bool option or false when absent
func (o Options) Bool(key string) bool {
	v, _ := o[key].(bool)
	return v
}
