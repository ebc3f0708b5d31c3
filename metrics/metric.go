package metrics

import (
	"sort"
	"strings"

	"github.com/YuminosukeSato/gbdata/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Func computes a metric from true values, predictions and optional weights.
type Func func(yTrue, yPred, weights *mat.VecDense) (float64, error)

// Metric is a named evaluation metric.
type Metric struct {
	Name string
	Fn   Func
	// HigherIsBetter is true for scores (auc) and false for losses.
	HigherIsBetter bool
}

var registry = map[string]Metric{
	"rmse":    {Name: "rmse", Fn: RMSE},
	"mae":     {Name: "mae", Fn: MAE},
	"error":   {Name: "error", Fn: ErrorRate},
	"logloss": {Name: "logloss", Fn: LogLoss},
	"auc":     {Name: "auc", Fn: AUC, HigherIsBetter: true},
}

// Get looks up a metric by its name, case-insensitively.
func Get(name string) (Metric, error) {
	m, ok := registry[strings.ToLower(name)]
	if !ok {
		return Metric{}, errors.NewValidationError("eval_metric",
			"unknown metric, expected one of "+strings.Join(Names(), ", "), name)
	}
	return m, nil
}

// Names returns the registered metric names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Float32Vec converts a float32 slice to a gonum vector. It returns nil for
// a nil slice so absent weights stay absent.
func Float32Vec(values []float32) *mat.VecDense {
	if values == nil {
		return nil
	}
	data := make([]float64, len(values))
	for i, v := range values {
		data[i] = float64(v)
	}
	if len(data) == 0 {
		return &mat.VecDense{}
	}
	return mat.NewVecDense(len(data), data)
}

// Float64Vec wraps values in a gonum vector without copying.
func Float64Vec(values []float64) *mat.VecDense {
	if len(values) == 0 {
		return &mat.VecDense{}
	}
	return mat.NewVecDense(len(values), values)
}
