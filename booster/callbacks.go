package booster

import (
	"fmt"
	"math"
	"strings"

	"github.com/YuminosukeSato/gbdata/metrics"
	"github.com/YuminosukeSato/gbdata/pkg/errors"
	"github.com/YuminosukeSato/gbdata/pkg/log"
)

// Callback observes the training loop. Returning an error wrapping
// errors.ErrStopTraining from BeforeIteration or AfterIteration ends
// training early and keeps the trees built so far; any other error aborts
// Train.
type Callback interface {
	Init(env *CallbackEnv) error
	BeforeIteration(env *CallbackEnv) error
	AfterIteration(env *CallbackEnv) error
	Finalize(env *CallbackEnv) error
}

// EvalResult is one metric computed on one watch.
type EvalResult struct {
	Watch  string
	Metric string
	Score  float64
}

// Key returns "watch-metric".
func (r EvalResult) Key() string { return r.Watch + "-" + r.Metric }

// FormatEvals renders a round as "[i]\twatch-metric:score...".
func FormatEvals(iteration int, evals []EvalResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d]", iteration)
	for _, e := range evals {
		fmt.Fprintf(&b, "\t%s:%.6f", e.Key(), e.Score)
	}
	return b.String()
}

// CallbackEnv holds the environment for callbacks
type CallbackEnv struct {
	Iteration int
	NumRounds int
	Booster   *Booster
	Params    Params
	Logger    log.Logger

	// Evals holds this round's results in watch-name order.
	Evals []EvalResult
	// EvalHistory maps "watch-metric" to one score per finished round.
	EvalHistory map[string][]float64

	BestIteration int
	BestScore     float64
}

// CallbackFunc adapts a function to an AfterIteration-only Callback.
type CallbackFunc func(env *CallbackEnv) error

func (f CallbackFunc) Init(*CallbackEnv) error            { return nil }
func (f CallbackFunc) BeforeIteration(*CallbackEnv) error { return nil }
func (f CallbackFunc) AfterIteration(env *CallbackEnv) error {
	return f(env)
}
func (f CallbackFunc) Finalize(*CallbackEnv) error { return nil }

// LogEvaluationCallback logs every period-th round at Info.
type LogEvaluationCallback struct {
	period  int
	lastLog int
}

// NewLogEvaluationCallback creates a new evaluation logging callback
func NewLogEvaluationCallback(period int) *LogEvaluationCallback {
	return &LogEvaluationCallback{period: period, lastLog: -1}
}

// Init initializes the callback
func (cb *LogEvaluationCallback) Init(_ *CallbackEnv) error {
	if cb.period <= 0 {
		cb.period = 1
	}
	return nil
}

// BeforeIteration is called before each iteration
func (cb *LogEvaluationCallback) BeforeIteration(_ *CallbackEnv) error { return nil }

// AfterIteration is called after each iteration
func (cb *LogEvaluationCallback) AfterIteration(env *CallbackEnv) error {
	if env.Iteration%cb.period != 0 || len(env.Evals) == 0 {
		return nil
	}
	cb.log(env, env.Iteration)
	cb.lastLog = env.Iteration
	return nil
}

// Finalize logs the last completed round if the period skipped it. A round
// stopped in BeforeIteration added no tree and is not logged.
func (cb *LogEvaluationCallback) Finalize(env *CallbackEnv) error {
	done := len(env.Booster.Trees) - 1
	if cb.lastLog < done && len(env.Evals) > 0 {
		cb.log(env, done)
	}
	return nil
}

func (cb *LogEvaluationCallback) log(env *CallbackEnv, iteration int) {
	fields := []any{
		log.ComponentKey, "booster",
		log.OperationKey, log.OperationEval,
		log.IterationKey, iteration,
	}
	for _, e := range env.Evals {
		fields = append(fields, e.Key(), e.Score)
	}
	env.Logger.Info(FormatEvals(iteration, env.Evals), fields...)
}

// EarlyStoppingCallback stops training when the last metric of the last
// watch has not improved for stoppingRounds rounds.
type EarlyStoppingCallback struct {
	stoppingRounds int
	minDelta       float64

	bestScore      float64
	bestIteration  int
	waitCount      int
	isHigherBetter bool
	metricKey      string
}

// NewEarlyStoppingCallback creates a new early stopping callback
func NewEarlyStoppingCallback(stoppingRounds int) *EarlyStoppingCallback {
	return &EarlyStoppingCallback{stoppingRounds: stoppingRounds}
}

// Init initializes the callback
func (cb *EarlyStoppingCallback) Init(env *CallbackEnv) error {
	if cb.stoppingRounds <= 0 {
		return errors.NewValidationError("early_stopping_rounds", "must be positive", cb.stoppingRounds)
	}
	cb.waitCount = 0
	cb.metricKey = ""
	return nil
}

// BeforeIteration is called before each iteration
func (cb *EarlyStoppingCallback) BeforeIteration(_ *CallbackEnv) error { return nil }

// AfterIteration is called after each iteration
func (cb *EarlyStoppingCallback) AfterIteration(env *CallbackEnv) error {
	if len(env.Evals) == 0 {
		return nil
	}
	current := env.Evals[len(env.Evals)-1]

	if cb.metricKey == "" {
		m, err := metrics.Get(current.Metric)
		if err != nil {
			return err
		}
		cb.metricKey = current.Key()
		cb.isHigherBetter = m.HigherIsBetter
		cb.bestScore = math.Inf(1)
		if cb.isHigherBetter {
			cb.bestScore = math.Inf(-1)
		}
	}

	improved := current.Score < cb.bestScore-cb.minDelta
	if cb.isHigherBetter {
		improved = current.Score > cb.bestScore+cb.minDelta
	}

	if improved {
		cb.bestScore = current.Score
		cb.bestIteration = env.Iteration
		cb.waitCount = 0
		env.BestIteration = env.Iteration
		env.BestScore = current.Score
		return nil
	}

	cb.waitCount++
	if cb.waitCount >= cb.stoppingRounds {
		env.Logger.Info("early stopping",
			log.ComponentKey, "booster",
			log.IterationKey, env.Iteration,
			log.MetricKey, cb.metricKey,
			"best_iteration", cb.bestIteration,
			log.ScoreKey, cb.bestScore,
		)
		return errors.Wrapf(errors.ErrStopTraining, "%s did not improve for %d rounds", cb.metricKey, cb.stoppingRounds)
	}
	return nil
}

// Finalize is called after training
func (cb *EarlyStoppingCallback) Finalize(_ *CallbackEnv) error { return nil }

// RecordEvaluationCallback records evaluation results
type RecordEvaluationCallback struct {
	// EvalResult maps watch name to metric name to per-round scores.
	EvalResult map[string]map[string][]float64
}

// NewRecordEvaluationCallback creates a new record evaluation callback
func NewRecordEvaluationCallback() *RecordEvaluationCallback {
	return &RecordEvaluationCallback{EvalResult: make(map[string]map[string][]float64)}
}

// Init initializes the callback
func (cb *RecordEvaluationCallback) Init(_ *CallbackEnv) error { return nil }

// BeforeIteration is called before each iteration
func (cb *RecordEvaluationCallback) BeforeIteration(_ *CallbackEnv) error { return nil }

// AfterIteration is called after each iteration
func (cb *RecordEvaluationCallback) AfterIteration(env *CallbackEnv) error {
	for _, e := range env.Evals {
		byMetric, ok := cb.EvalResult[e.Watch]
		if !ok {
			byMetric = make(map[string][]float64)
			cb.EvalResult[e.Watch] = byMetric
		}
		byMetric[e.Metric] = append(byMetric[e.Metric], e.Score)
	}
	return nil
}

// Finalize is called after training
func (cb *RecordEvaluationCallback) Finalize(_ *CallbackEnv) error { return nil }
