// Package booster trains and applies gradient-boosted regression trees on
// dmatrix.DMatrix inputs.
//
// Training follows the exact greedy algorithm: every node tries every
// present value of every feature as a threshold, with absent entries
// treated as value 0. Two objectives are supported, reg:squarederror and
// binary:logistic.
//
//	bst, err := booster.Train(map[string]interface{}{
//	    "eta": 1.0, "max_depth": 2, "objective": "binary:logistic",
//	}, dtrain, 2, map[string]*dmatrix.DMatrix{"train": dtrain, "test": dtest})
//	preds, err := bst.Predict(dtest)
package booster

import (
	"time"

	"github.com/YuminosukeSato/gbdata/core/dmatrix"
	"github.com/YuminosukeSato/gbdata/core/model"
	"github.com/YuminosukeSato/gbdata/core/parallel"
	"github.com/YuminosukeSato/gbdata/core/sparse"
	"github.com/YuminosukeSato/gbdata/pkg/errors"
	"github.com/YuminosukeSato/gbdata/pkg/log"
)

// modelFormat tags gob-encoded boosters.
const modelFormat = "gbdata-booster/1"

// Booster is a trained tree ensemble. A fitted Booster is safe for
// concurrent Predict calls.
type Booster struct {
	Format        string
	Params        Params
	Trees         []Tree
	BaseMargin    float64
	NumFeature    int
	BestIteration int
	BestScore     float64
	State         *model.StateManager

	objective Objective
}

func newBooster(p Params, obj Objective) *Booster {
	return &Booster{
		Format:    modelFormat,
		Params:    p,
		State:     model.NewStateManager(),
		objective: obj,
	}
}

// NewBooster returns an untrained booster. Predict fails with
// NotFittedError until the booster is trained or loaded.
func NewBooster(params map[string]interface{}) (*Booster, error) {
	p, err := ParseParams(params)
	if err != nil {
		return nil, err
	}
	obj, err := newObjective(p.Objective)
	if err != nil {
		return nil, err
	}
	return newBooster(p, obj), nil
}

// NumTrees returns the number of boosting rounds kept.
func (b *Booster) NumTrees() int { return len(b.Trees) }

// PredictOption configures Predict.
type PredictOption func(*predictOptions)

type predictOptions struct {
	outputMargin bool
	treeLimit    int
}

// WithOutputMargin returns raw margins instead of transformed outputs.
func WithOutputMargin() PredictOption {
	return func(o *predictOptions) { o.outputMargin = true }
}

// WithTreeLimit uses only the first n trees. 0 means all trees.
func WithTreeLimit(n int) PredictOption {
	return func(o *predictOptions) { o.treeLimit = n }
}

// Predict returns one []float32 per row of d. Each element holds the
// transformed output (probability for binary:logistic). Columns unseen
// during training are ignored; absent entries are 0.
func (b *Booster) Predict(d *dmatrix.DMatrix, options ...PredictOption) ([][]float32, error) {
	if err := b.State.RequireFitted("Booster", "Predict"); err != nil {
		return nil, err
	}
	if d == nil {
		return nil, errors.NewValueError("Predict", "matrix is nil")
	}
	opts := &predictOptions{}
	for _, opt := range options {
		opt(opts)
	}
	trees := b.Trees
	if opts.treeLimit > 0 && opts.treeLimit < len(trees) {
		trees = trees[:opts.treeLimit]
	}

	start := time.Now()
	rows := d.Rows()
	store := d.Store()
	flat := make([]float32, rows)
	out := make([][]float32, rows)

	err := parallel.ParallelizeErr("Booster.Predict", rows, b.Params.NumThreads, func(s, e int) error {
		for i := s; i < e; i++ {
			margin := b.margin(trees, store, i)
			if !opts.outputMargin {
				margin = b.objective.Transform(margin)
			}
			flat[i] = float32(margin)
			out[i] = flat[i : i+1 : i+1]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.GetLogger().Debug("predicted",
		log.ComponentKey, "booster",
		log.OperationKey, log.OperationPredict,
		log.PhaseKey, log.PhaseInference,
		log.PredsKey, rows,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (b *Booster) margin(trees []Tree, store *sparse.CSR, row int) float64 {
	m := b.BaseMargin
	for t := range trees {
		m += trees[t].Predict(store, row)
	}
	return m
}

// Eval computes the configured metrics of b on d, named name.
func (b *Booster) Eval(name string, d *dmatrix.DMatrix) ([]EvalResult, error) {
	if err := b.State.RequireFitted("Booster", "Eval"); err != nil {
		return nil, err
	}
	if d == nil || !d.HasLabels() {
		return nil, errors.NewValueError("Eval", "matrix "+name+" has no labels")
	}
	ms, err := resolveMetrics(b.Params, b.objective)
	if err != nil {
		return nil, err
	}
	margins := make([]float64, d.Rows())
	store := d.Store()
	parallel.ParallelizeWithThreshold(len(margins), minParallelRows, b.Params.NumThreads, func(s, e int) {
		for i := s; i < e; i++ {
			margins[i] = b.margin(b.Trees, store, i)
		}
	})
	return evaluate(name, margins, d.Labels(), d.Weights(), b.objective, ms)
}

// SaveModel writes b to path atomically. A ".gz", ".zst" or ".lz4"
// suffix selects compression.
func (b *Booster) SaveModel(path string) error {
	if err := b.State.RequireFitted("Booster", "SaveModel"); err != nil {
		return err
	}
	if err := model.SaveModel(b, path); err != nil {
		return err
	}
	log.GetLogger().Debug("saved model",
		log.ComponentKey, "booster",
		log.OperationKey, log.OperationSave,
		log.PathKey, path,
		"trees", len(b.Trees),
	)
	return nil
}

// LoadModel reads a booster written by SaveModel.
func LoadModel(path string) (*Booster, error) {
	b := &Booster{}
	if err := model.LoadModel(b, path); err != nil {
		return nil, err
	}
	if b.Format != modelFormat {
		return nil, errors.NewModelError("LoadModel", "format",
			errors.Newf("unsupported model format %q", b.Format))
	}
	obj, err := newObjective(b.Params.Objective)
	if err != nil {
		return nil, errors.NewModelError("LoadModel", "objective", err)
	}
	if err := b.checkTrees(); err != nil {
		return nil, errors.NewModelError("LoadModel", "trees", err)
	}
	b.objective = obj
	if b.State == nil {
		b.State = model.NewStateManager()
	}
	b.State.SetFitted()

	nFeatures, nSamples := b.State.GetDimensions()
	log.GetLogger().Debug("loaded model",
		log.ComponentKey, "booster",
		log.OperationKey, log.OperationLoad,
		log.PathKey, path,
		log.ColsKey, nFeatures,
		log.RowsKey, nSamples,
		"trees", len(b.Trees),
	)
	return b, nil
}

// checkTrees rejects child links that would loop or leave the node slice.
func (b *Booster) checkTrees() error {
	for t, tree := range b.Trees {
		if len(tree.Nodes) == 0 {
			return errors.Newf("tree %d is empty", t)
		}
		for i, n := range tree.Nodes {
			if n.IsLeaf() {
				continue
			}
			for _, c := range [2]int32{n.Left, n.Right} {
				if int(c) <= i || int(c) >= len(tree.Nodes) {
					return errors.Newf("tree %d node %d: bad child %d", t, i, c)
				}
			}
		}
	}
	return nil
}

// CheckPredicts reports whether two prediction sets have the same shape and
// bit-identical values.
func CheckPredicts(a, b [][]float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sparse.Float32sBitEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
