package model

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/YuminosukeSato/gridcv/pkg/errors"
)

// ParameterMapper resolves hyperparameter names, including aliases, to their
// canonical names and fills in defaults. Unknown names are rejected so a typo
// in a grid fails the trial instead of silently using the default.
type ParameterMapper struct {
	model    string
	aliases  map[string]string
	defaults map[string]interface{}
}

// NewParameterMapper creates an empty mapper for the named model.
func NewParameterMapper(modelName string) *ParameterMapper {
	return &ParameterMapper{
		model:    modelName,
		aliases:  make(map[string]string),
		defaults: make(map[string]interface{}),
	}
}

// Add registers a canonical parameter with its default value and aliases.
func (pm *ParameterMapper) Add(name string, def interface{}, aliases ...string) *ParameterMapper {
	pm.defaults[name] = def
	pm.aliases[name] = name
	for _, alias := range aliases {
		pm.aliases[alias] = name
	}
	return pm
}

// Names returns the canonical parameter names in sorted order.
func (pm *ParameterMapper) Names() []string {
	names := make([]string, 0, len(pm.defaults))
	for name := range pm.defaults {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Defaults returns a copy of the default values.
func (pm *ParameterMapper) Defaults() map[string]interface{} {
	out := make(map[string]interface{}, len(pm.defaults))
	for k, v := range pm.defaults {
		out[k] = v
	}
	return out
}

// Resolve maps params to canonical names on top of the defaults.
func (pm *ParameterMapper) Resolve(params map[string]interface{}) (map[string]interface{}, error) {
	out := pm.Defaults()
	seen := make(map[string]string, len(params))
	for key, value := range params {
		name, ok := pm.aliases[key]
		if !ok {
			return nil, errors.NewValidationError(key, "unknown parameter for "+pm.model, value)
		}
		if prev, dup := seen[name]; dup {
			return nil, errors.NewValidationError(name, fmt.Sprintf("set twice, as %q and %q", prev, key), value)
		}
		seen[name] = key
		out[name] = value
	}
	return out, nil
}

// AsFloat converts numeric grid values, including YAML ints and numeric strings.
func AsFloat(name string, v interface{}) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint64:
		f = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, errors.NewValidationError(name, "must be a number", v)
		}
		f = parsed
	default:
		return 0, errors.NewValidationError(name, "must be a number", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.NewValidationError(name, "must be finite", v)
	}
	return f, nil
}

// AsInt converts integral grid values. Floats are accepted when they hold a
// whole number.
func AsInt(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case uint64:
		return int(x), nil
	}
	f, err := AsFloat(name, v)
	if err != nil {
		return 0, errors.NewValidationError(name, "must be an integer", v)
	}
	if f != math.Trunc(f) {
		return 0, errors.NewValidationError(name, "must be an integer", v)
	}
	return int(f), nil
}

// AsBool converts booleans and the strings "true"/"false".
func AsBool(name string, v interface{}) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err == nil {
			return b, nil
		}
	}
	return false, errors.NewValidationError(name, "must be a boolean", v)
}

// Canonical returns the canonical name of a parameter or one of its aliases.
func (pm *ParameterMapper) Canonical(name string) (string, bool) {
	c, ok := pm.aliases[name]
	return c, ok
}
