package booster

import (
	"math"

	"github.com/YuminosukeSato/gbdata/pkg/errors"
)

// hessianFloor keeps the logistic hessian away from zero.
const hessianFloor = 1e-16

// Objective defines the loss being boosted, expressed on raw margins.
type Objective interface {
	// Name returns the parameter value selecting this objective
	Name() string

	// Gradient returns the first and second derivative of the loss at margin
	Gradient(margin, label float64) (grad, hess float64)

	// Transform maps a raw margin to the reported prediction
	Transform(margin float64) float64

	// BaseMargin converts base_score into the initial margin
	BaseMargin(baseScore float64) float64

	// CheckLabel reports whether label is valid for this objective
	CheckLabel(label float32) bool

	// DefaultMetrics returns the metrics evaluated when eval_metric is unset
	DefaultMetrics() []string
}

func newObjective(name string) (Objective, error) {
	switch name {
	case ObjectiveSquaredError, "reg:linear":
		return squaredError{}, nil
	case ObjectiveLogistic:
		return logistic{}, nil
	}
	return nil, errors.NewValidationError("objective",
		"unsupported, expected "+ObjectiveSquaredError+" or "+ObjectiveLogistic, name)
}

// squaredError implements 1/2 (margin - label)².
type squaredError struct{}

func (squaredError) Name() string { return ObjectiveSquaredError }

func (squaredError) Gradient(margin, label float64) (float64, float64) {
	return margin - label, 1
}

func (squaredError) Transform(margin float64) float64 { return margin }

func (squaredError) BaseMargin(baseScore float64) float64 { return baseScore }

// CheckLabel accepts any finite label.
func (squaredError) CheckLabel(float32) bool { return true }

func (squaredError) DefaultMetrics() []string { return []string{"rmse"} }

// logistic implements binary cross entropy on the logit scale.
type logistic struct{}

func (logistic) Name() string { return ObjectiveLogistic }

func (logistic) Gradient(margin, label float64) (float64, float64) {
	p := errors.Sigmoid(margin)
	return p - label, math.Max(p*(1-p), hessianFloor)
}

func (logistic) Transform(margin float64) float64 { return errors.Sigmoid(margin) }

// BaseMargin は base_score をロジットに変換する
func (logistic) BaseMargin(baseScore float64) float64 {
	return math.Log(baseScore / (1 - baseScore))
}

func (logistic) CheckLabel(label float32) bool { return label >= 0 && label <= 1 }

func (logistic) DefaultMetrics() []string { return []string{"error", "logloss"} }
