package cli

import (
	"sort"
	"strings"

	"github.com/YuminosukeSato/gridcv/core/model"
	"github.com/YuminosukeSato/gridcv/pkg/errors"
	"github.com/YuminosukeSato/gridcv/sklearn/ensemble"
	"github.com/YuminosukeSato/gridcv/sklearn/linear_model"
	"github.com/YuminosukeSato/gridcv/sklearn/model_selection"
)

type modelEntry struct {
	factory model.Factory
	params  *model.ParameterMapper
}

var models = map[string]modelEntry{
	"gradient_boosting":   {ensemble.Factory, ensemble.Parameters()},
	"logistic_regression": {linear_model.Factory, linear_model.Parameters()},
}

func modelNames() []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// lookupModel resolves a model name and checks that every grid parameter is
// one the model accepts, with no two names being aliases of each other.
func lookupModel(name string, grid model_selection.Grid) (model.Factory, error) {
	entry, ok := models[name]
	if !ok {
		return nil, errors.NewValidationError("model", "must be one of "+strings.Join(modelNames(), ", "), name)
	}
	seen := make(map[string]string)
	for _, p := range grid.Names() {
		canonical, ok := entry.params.Canonical(p)
		if !ok {
			return nil, errors.NewInvalidGridError(p,
				"unknown parameter for "+name+"; valid: "+strings.Join(entry.params.Names(), ", "))
		}
		if prev, dup := seen[canonical]; dup {
			return nil, errors.NewInvalidGridError(p, "same parameter as "+prev)
		}
		seen[canonical] = p
	}
	return entry.factory, nil
}
