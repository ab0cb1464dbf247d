package model_selection

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/gridcv/pkg/errors"
)

// Grid maps each hyperparameter name to its ordered candidate values.
type Grid map[string][]interface{}

// Param is one name/value pair of a Configuration.
type Param struct {
	Name  string
	Value interface{}
}

// Configuration is one point of a Grid: a value for every grid parameter,
// held in name order. It is immutable once enumerated.
type Configuration struct {
	params []Param
	key    string
}

// NewConfiguration builds a Configuration from a parameter map.
func NewConfiguration(params map[string]interface{}) Configuration {
	ps := make([]Param, 0, len(params))
	for name, v := range params {
		ps = append(ps, Param{Name: name, Value: v})
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].Name < ps[j].Name })
	return newConfiguration(ps)
}

func newConfiguration(ps []Param) Configuration {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.Name + "=" + FormatValue(p.Value)
	}
	return Configuration{params: ps, key: strings.Join(parts, ", ")}
}

// Key is the stable string form, "a=1, b=0.1", with names sorted.
func (c Configuration) Key() string { return c.key }

func (c Configuration) String() string { return "{" + c.key + "}" }

// Params returns a fresh map of the configuration's values, safe to hand to
// a model factory.
func (c Configuration) Params() map[string]interface{} {
	out := make(map[string]interface{}, len(c.params))
	for _, p := range c.params {
		out[p.Name] = p.Value
	}
	return out
}

// Pairs returns the name/value pairs in name order.
func (c Configuration) Pairs() []Param {
	return append([]Param(nil), c.params...)
}

// Get returns the value of a parameter.
func (c Configuration) Get(name string) (interface{}, bool) {
	for _, p := range c.params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Without returns the configuration minus one parameter.
func (c Configuration) Without(name string) Configuration {
	ps := make([]Param, 0, len(c.params))
	for _, p := range c.params {
		if p.Name != name {
			ps = append(ps, p)
		}
	}
	return newConfiguration(ps)
}

// FormatValue renders a grid value the way it appears in configuration keys.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// Names returns the parameter names in lexicographic order.
func (g Grid) Names() []string {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate rejects empty grids, empty value lists, nil values and values that
// repeat within a list.
func (g Grid) Validate() error {
	if len(g) == 0 {
		return errors.NewInvalidGridError("", "grid has no parameters")
	}
	for _, name := range g.Names() {
		if name == "" {
			return errors.NewInvalidGridError(name, "empty parameter name")
		}
		values := g[name]
		if len(values) == 0 {
			return errors.NewInvalidGridError(name, "no candidate values")
		}
		seen := make(map[string]bool, len(values))
		for _, v := range values {
			if v == nil {
				return errors.NewInvalidGridError(name, "nil candidate value")
			}
			s := FormatValue(v)
			if seen[s] {
				return errors.NewInvalidGridError(name, "duplicate candidate value "+s)
			}
			seen[s] = true
		}
	}
	return nil
}

// Size is the number of configurations, the product of the list lengths.
func (g Grid) Size() (int, error) {
	if err := g.Validate(); err != nil {
		return 0, err
	}
	n := 1
	for _, values := range g {
		n *= len(values)
	}
	return n, nil
}

// Enumerate lists every configuration of the Cartesian product. Names are
// sorted, the last name varies fastest, and values keep their list order.
func (g Grid) Enumerate() ([]Configuration, error) {
	size, err := g.Size()
	if err != nil {
		return nil, err
	}
	names := g.Names()
	configs := make([]Configuration, 0, size)
	idx := make([]int, len(names))
	for {
		ps := make([]Param, len(names))
		for i, name := range names {
			ps[i] = Param{Name: name, Value: g[name][idx[i]]}
		}
		configs = append(configs, newConfiguration(ps))

		// Odometer increment from the last name.
		i := len(names) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(g[names[i]]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return configs, nil
		}
	}
}
