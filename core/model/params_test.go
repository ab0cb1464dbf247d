package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/gridcv/pkg/errors"
)

func newTestMapper() *ParameterMapper {
	return NewParameterMapper("GradientBoostingClassifier").
		Add("learning_rate", 0.1, "eta", "shrinkage_rate").
		Add("n_estimators", 100, "num_iterations", "num_boost_round").
		Add("max_depth", 3)
}

func TestParameterMapperResolve(t *testing.T) {
	pm := newTestMapper()
	assert.Equal(t, []string{"learning_rate", "max_depth", "n_estimators"}, pm.Names())

	got, err := pm.Resolve(map[string]interface{}{"eta": 0.3, "num_boost_round": 20})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"learning_rate": 0.3,
		"n_estimators":  20,
		"max_depth":     3,
	}, got)

	_, err = pm.Resolve(map[string]interface{}{"lr": 0.3})
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "lr", ve.ParamName)

	_, err = pm.Resolve(map[string]interface{}{"eta": 0.3, "learning_rate": 0.1})
	assert.Error(t, err)

	// Defaults are not shared between calls.
	d := pm.Defaults()
	d["max_depth"] = 99
	assert.Equal(t, 3, pm.Defaults()["max_depth"])
}

func TestAsConversions(t *testing.T) {
	f, err := AsFloat("x", 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	f, err = AsFloat("x", "0.25")
	require.NoError(t, err)
	assert.Equal(t, 0.25, f)

	_, err = AsFloat("x", "abc")
	assert.Error(t, err)
	_, err = AsFloat("x", "NaN")
	assert.Error(t, err)

	i, err := AsInt("n", 4.0)
	require.NoError(t, err)
	assert.Equal(t, 4, i)
	_, err = AsInt("n", 4.5)
	assert.Error(t, err)

	b, err := AsBool("fit_intercept", "false")
	require.NoError(t, err)
	assert.False(t, b)
	_, err = AsBool("fit_intercept", 1)
	assert.Error(t, err)
}

func TestParameterMapperCanonical(t *testing.T) {
	pm := newTestMapper()
	name, ok := pm.Canonical("num_boost_round")
	assert.True(t, ok)
	assert.Equal(t, "n_estimators", name)

	name, ok = pm.Canonical("max_depth")
	assert.True(t, ok)
	assert.Equal(t, "max_depth", name)

	_, ok = pm.Canonical("depth")
	assert.False(t, ok)
}
