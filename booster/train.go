package booster

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/YuminosukeSato/gbdata/core/dmatrix"
	"github.com/YuminosukeSato/gbdata/core/parallel"
	"github.com/YuminosukeSato/gbdata/metrics"
	"github.com/YuminosukeSato/gbdata/pkg/errors"
	"github.com/YuminosukeSato/gbdata/pkg/log"
)

// minParallelRows is the row count below which per-row loops stay on the
// calling goroutine.
const minParallelRows = 2048

// TrainOption is a functional option for training configuration
type TrainOption func(*trainOptions)

type trainOptions struct {
	callbacks  []Callback
	logger     log.Logger
	numThreads int
	hasThreads bool
}

// WithCallbacks adds callbacks to the training process
func WithCallbacks(callbacks ...Callback) TrainOption {
	return func(o *trainOptions) {
		o.callbacks = append(o.callbacks, callbacks...)
	}
}

// WithLogger sets the logger used for training progress.
func WithLogger(logger log.Logger) TrainOption {
	return func(o *trainOptions) {
		o.logger = logger
	}
}

// WithNumThreads overrides the nthread parameter. 0 means one worker per CPU.
func WithNumThreads(n int) TrainOption {
	return func(o *trainOptions) {
		o.numThreads = n
		o.hasThreads = true
	}
}

// watch is a named evaluation matrix with cached margins.
type watch struct {
	name    string
	data    *dmatrix.DMatrix
	margins []float64
	labels  []float32
	weights []float32
}

// Train trains a booster for rounds rounds on dtrain.
//
// Parameters:
//   - params: see ParseParams for the accepted keys
//   - dtrain: training matrix, must carry labels
//   - rounds: number of boosting rounds
//   - watches: matrices evaluated after every round, in name order
//   - options: callbacks, logger and thread count
//
// Every round appends exactly one tree. The result is deterministic for
// a given input regardless of the thread count.
func Train(params map[string]interface{}, dtrain *dmatrix.DMatrix, rounds int, watches map[string]*dmatrix.DMatrix, options ...TrainOption) (*Booster, error) {
	p, err := ParseParams(params)
	if err != nil {
		return nil, err
	}

	opts := &trainOptions{logger: log.GetLogger(), numThreads: p.NumThreads}
	for _, opt := range options {
		opt(opts)
	}
	if opts.hasThreads {
		p.NumThreads = opts.numThreads
	}
	logger := opts.logger.With(log.ComponentKey, "booster", log.PhaseKey, log.PhaseTraining)

	if rounds < 0 {
		return nil, errors.NewValidationError("rounds", "must be non-negative", rounds)
	}
	obj, err := newObjective(p.Objective)
	if err != nil {
		return nil, err
	}
	if err := checkTrainingMatrix(obj, dtrain); err != nil {
		return nil, err
	}
	evalMetrics, err := resolveMetrics(p, obj)
	if err != nil {
		return nil, err
	}
	ws, err := prepareWatches(watches)
	if err != nil {
		return nil, err
	}

	b := newBooster(p, obj)
	b.NumFeature = dtrain.NumCol()
	b.BaseMargin = obj.BaseMargin(p.BaseScore)
	workers := parallel.Workers(p.NumThreads, max(dtrain.Rows(), 1))

	callbacks := append([]Callback(nil), opts.callbacks...)
	if !p.Silent {
		callbacks = append([]Callback{NewLogEvaluationCallback(1)}, callbacks...)
	}

	env := &CallbackEnv{
		NumRounds:     rounds,
		Booster:       b,
		Params:        p,
		Logger:        logger,
		EvalHistory:   make(map[string][]float64),
		BestIteration: -1,
	}
	for _, cb := range callbacks {
		if err := cb.Init(env); err != nil {
			return nil, errors.Wrap(err, "callback initialization failed")
		}
	}

	logger.Info("start training",
		log.OperationKey, log.OperationTrain,
		log.ObjectiveKey, p.Objective,
		log.RoundsKey, rounds,
		log.RowsKey, dtrain.Rows(),
		log.ColsKey, b.NumFeature,
		log.NNZKey, dtrain.NonZeroCount(),
		log.WorkersKey, workers,
	)
	start := time.Now()

	store := dtrain.Store()
	labels := dtrain.Labels()
	g := newGrower(p, store, buildColumns(store, b.NumFeature), workers)
	margins := make([]float64, dtrain.Rows())
	for i := range margins {
		margins[i] = b.BaseMargin
	}
	for _, w := range ws {
		w.margins = make([]float64, w.data.Rows())
		for i := range w.margins {
			w.margins[i] = b.BaseMargin
		}
	}

	for iter := 0; iter < rounds; iter++ {
		env.Iteration = iter
		if stop, err := runCallbacks(callbacks, env, Callback.BeforeIteration); err != nil {
			return nil, err
		} else if stop {
			break
		}

		// 勾配とヘシアンを計算
		parallel.ParallelizeWithThreshold(len(margins), minParallelRows, workers, func(s, e int) {
			for i := s; i < e; i++ {
				gr, h := obj.Gradient(margins[i], float64(labels[i]))
				w := float64(dtrain.Weight(i))
				g.grad[i], g.hess[i] = gr*w, h*w
			}
		})

		tree, err := g.grow(iter)
		if err != nil {
			return nil, err
		}
		b.Trees = append(b.Trees, tree)
		for i := range margins {
			margins[i] += tree.Nodes[g.leafOf[i]].Leaf
		}

		env.Evals = env.Evals[:0]
		for _, w := range ws {
			w.addTree(&tree, workers)
			results, err := evaluate(w.name, w.margins, w.labels, w.weights, obj, evalMetrics)
			if err != nil {
				return nil, errors.Wrapf(err, "evaluate %s at round %d", w.name, iter)
			}
			env.Evals = append(env.Evals, results...)
		}
		for _, e := range env.Evals {
			env.EvalHistory[e.Key()] = append(env.EvalHistory[e.Key()], e.Score)
		}
		b.BestIteration = iter

		if stop, err := runCallbacks(callbacks, env, Callback.AfterIteration); err != nil {
			return nil, err
		} else if stop {
			break
		}
	}

	for _, cb := range callbacks {
		if err := cb.Finalize(env); err != nil {
			return nil, err
		}
	}
	if env.BestIteration >= 0 {
		b.BestIteration = env.BestIteration
		b.BestScore = env.BestScore
	}

	b.State.SetDimensions(b.NumFeature, dtrain.Rows())
	b.State.SetFitted()

	logger.Info("training finished",
		log.OperationKey, log.OperationTrain,
		"trees", len(b.Trees),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return b, nil
}

// runCallbacks calls hook on every callback. It reports stop when a
// callback asks to end training.
func runCallbacks(callbacks []Callback, env *CallbackEnv, hook func(Callback, *CallbackEnv) error) (stop bool, err error) {
	for _, cb := range callbacks {
		if err := hook(cb, env); err != nil {
			if errors.Is(err, errors.ErrStopTraining) {
				env.Logger.Debug("training stopped by callback",
					log.IterationKey, env.Iteration,
					"reason", err.Error(),
				)
				return true, nil
			}
			return false, err
		}
	}
	return false, nil
}

func checkTrainingMatrix(obj Objective, d *dmatrix.DMatrix) error {
	if d == nil {
		return errors.NewValueError("Train", "training matrix is nil")
	}
	if d.Rows() == 0 {
		return errors.Wrap(errors.ErrEmptyData, "Train")
	}
	if !d.HasLabels() {
		return errors.NewValueError("Train", "training matrix has no labels, call SetLabel first")
	}
	return checkLabels(obj, "Train", d.Labels())
}

func checkLabels(obj Objective, op string, labels []float32) error {
	warned := false
	for i, l := range labels {
		if math.IsNaN(float64(l)) || math.IsInf(float64(l), 0) {
			return errors.NewValueError(op, fmt.Sprintf("label at row %d is not finite", i))
		}
		if !warned && !obj.CheckLabel(l) {
			errors.Warn(errors.NewDataWarning(op, "labels outside [0,1] for "+obj.Name()))
			warned = true
		}
	}
	return nil
}

func resolveMetrics(p Params, obj Objective) ([]metrics.Metric, error) {
	names := p.EvalMetrics
	if len(names) == 0 {
		names = obj.DefaultMetrics()
	}
	out := make([]metrics.Metric, 0, len(names))
	for _, name := range names {
		m, err := metrics.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func prepareWatches(watches map[string]*dmatrix.DMatrix) ([]*watch, error) {
	names := make([]string, 0, len(watches))
	for name := range watches {
		names = append(names, name)
	}
	sort.Strings(names)

	ws := make([]*watch, 0, len(names))
	for _, name := range names {
		d := watches[name]
		if d == nil {
			return nil, errors.NewValueError("Train", "watch "+name+" is nil")
		}
		if d.Rows() == 0 {
			errors.Warn(errors.NewDataWarning("Train", "watch "+name+" has no rows and is skipped"))
			continue
		}
		if !d.HasLabels() {
			return nil, errors.NewValueError("Train", "watch "+name+" has no labels")
		}
		ws = append(ws, &watch{name: name, data: d, labels: d.Labels(), weights: d.Weights()})
	}
	return ws, nil
}

// addTree adds tree's output to the cached margins.
func (w *watch) addTree(tree *Tree, workers int) {
	store := w.data.Store()
	parallel.ParallelizeWithThreshold(len(w.margins), minParallelRows, workers, func(s, e int) {
		for i := s; i < e; i++ {
			w.margins[i] += tree.Predict(store, i)
		}
	})
}

func evaluate(name string, margins []float64, labels, weights []float32, obj Objective, ms []metrics.Metric) ([]EvalResult, error) {
	preds := make([]float64, len(margins))
	for i, m := range margins {
		preds[i] = obj.Transform(m)
	}
	yTrue := metrics.Float32Vec(labels)
	yPred := metrics.Float64Vec(preds)
	w := metrics.Float32Vec(weights)

	out := make([]EvalResult, 0, len(ms))
	for _, m := range ms {
		score, err := m.Fn(yTrue, yPred, w)
		if err != nil {
			return nil, err
		}
		out = append(out, EvalResult{Watch: name, Metric: m.Name, Score: score})
	}
	return out, nil
}
