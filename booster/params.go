package booster

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/gbdata/metrics"
	"github.com/YuminosukeSato/gbdata/pkg/errors"
	"github.com/YuminosukeSato/gbdata/pkg/log"
)

// Objective names.
const (
	ObjectiveSquaredError = "reg:squarederror"
	ObjectiveLogistic     = "binary:logistic"
)

// Params contains the training hyperparameters.
type Params struct {
	Eta            float64  `json:"eta"`
	MaxDepth       int      `json:"max_depth"`
	Lambda         float64  `json:"lambda"`
	Gamma          float64  `json:"gamma"`
	MinChildWeight float64  `json:"min_child_weight"`
	Objective      string   `json:"objective"`
	BaseScore      float64  `json:"base_score"`
	EvalMetrics    []string `json:"eval_metric"`
	Silent         bool     `json:"silent"`
	NumThreads     int      `json:"nthread"`
}

// DefaultParams returns the defaults used for keys absent from the map.
func DefaultParams() Params {
	return Params{
		Eta:            0.3,
		MaxDepth:       6,
		Lambda:         1,
		Gamma:          0,
		MinChildWeight: 1,
		Objective:      ObjectiveSquaredError,
		BaseScore:      0.5,
	}
}

// ParseParams converts a parameter map into Params.
//
// Numeric values may be given as any Go integer or float type or as a
// numeric string. Unknown keys are ignored and logged at Debug. A value of
// the wrong type or out of range yields a ValidationError.
func ParseParams(params map[string]interface{}) (Params, error) {
	p := DefaultParams()

	// 決定的なエラー報告のためキーをソートして処理する
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var err error
	for _, key := range keys {
		val := params[key]
		switch key {
		case "eta", "learning_rate":
			p.Eta, err = toFloat(key, val)
		case "max_depth":
			p.MaxDepth, err = toInt(key, val)
		case "lambda", "reg_lambda":
			p.Lambda, err = toFloat(key, val)
		case "gamma", "min_split_loss":
			p.Gamma, err = toFloat(key, val)
		case "min_child_weight":
			p.MinChildWeight, err = toFloat(key, val)
		case "objective":
			p.Objective, err = toString(key, val)
		case "base_score":
			p.BaseScore, err = toFloat(key, val)
		case "eval_metric":
			p.EvalMetrics, err = toStrings(key, val)
		case "silent":
			p.Silent, err = toBool(key, val)
		case "nthread":
			p.NumThreads, err = toInt(key, val)
		default:
			log.GetLogger().Debug("ignoring unknown parameter",
				log.ComponentKey, "booster",
				"param", key,
			)
		}
		if err != nil {
			return Params{}, err
		}
	}

	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case !(p.Eta > 0):
		return errors.NewValidationError("eta", "must be positive", p.Eta)
	case p.MaxDepth < 1:
		return errors.NewValidationError("max_depth", "must be at least 1", p.MaxDepth)
	case p.Lambda < 0:
		return errors.NewValidationError("lambda", "must be non-negative", p.Lambda)
	case p.Gamma < 0:
		return errors.NewValidationError("gamma", "must be non-negative", p.Gamma)
	case p.MinChildWeight < 0:
		return errors.NewValidationError("min_child_weight", "must be non-negative", p.MinChildWeight)
	case p.NumThreads < 0:
		return errors.NewValidationError("nthread", "must be non-negative", p.NumThreads)
	}
	if _, err := newObjective(p.Objective); err != nil {
		return err
	}
	for _, name := range p.EvalMetrics {
		if _, err := metrics.Get(name); err != nil {
			return err
		}
	}
	if p.Objective == ObjectiveLogistic && !(p.BaseScore > 0 && p.BaseScore < 1) {
		return errors.NewValidationError("base_score", "must be in (0, 1) for "+ObjectiveLogistic, p.BaseScore)
	}
	return nil
}

// Map returns the parameters as a map accepted by ParseParams.
func (p Params) Map() map[string]interface{} {
	m := map[string]interface{}{
		"eta":              p.Eta,
		"max_depth":        p.MaxDepth,
		"lambda":           p.Lambda,
		"gamma":            p.Gamma,
		"min_child_weight": p.MinChildWeight,
		"objective":        p.Objective,
		"base_score":       p.BaseScore,
		"silent":           p.Silent,
		"nthread":          p.NumThreads,
	}
	if len(p.EvalMetrics) > 0 {
		m["eval_metric"] = append([]string(nil), p.EvalMetrics...)
	}
	return m
}

func toFloat(key string, val interface{}) (float64, error) {
	var f float64
	switch v := val.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, errors.NewValidationError(key, "not a number", val)
		}
		f = parsed
	default:
		return 0, errors.NewValidationError(key, "expected a number", val)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.NewValidationError(key, "must be finite", val)
	}
	return f, nil
}

func toInt(key string, val interface{}) (int, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	}
	f, err := toFloat(key, val)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, errors.NewValidationError(key, "expected an integer", val)
	}
	return int(f), nil
}

func toBool(key string, val interface{}) (bool, error) {
	switch v := val.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, errors.NewValidationError(key, "expected a boolean", val)
		}
		return b, nil
	}
	n, err := toInt(key, val)
	if err != nil {
		return false, errors.NewValidationError(key, "expected a boolean", val)
	}
	return n != 0, nil
}

func toString(key string, val interface{}) (string, error) {
	s, ok := val.(string)
	if !ok {
		return "", errors.NewValidationError(key, "expected a string", val)
	}
	return s, nil
}

func toStrings(key string, val interface{}) ([]string, error) {
	switch v := val.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return append([]string(nil), v...), nil
	case []interface{}:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, errors.NewValidationError(key, "expected a list of strings", val)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, errors.NewValidationError(key, "expected a string or list of strings", val)
}
