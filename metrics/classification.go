package metrics

import (
	"sort"

	"github.com/YuminosukeSato/gbdata/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrorRate は二値分類の誤分類率を計算する
//
// yPred は正例の確率。0.5 より大きければ正例と判定する。
func ErrorRate(yTrue, yPred, weights *mat.VecDense) (float64, error) {
	return weightedMean("ErrorRate", yTrue, yPred, weights, func(t, p float64) float64 {
		predicted := 0.0
		if p > 0.5 {
			predicted = 1
		}
		if (t > 0.5) != (predicted > 0.5) {
			return 1
		}
		return 0
	})
}

// LogLoss は二値交差エントロピーを計算する
//
// 確率は [0, 1] にクリップし、log(0) は StabilizeLog で有限値に置き換える。
func LogLoss(yTrue, yPred, weights *mat.VecDense) (float64, error) {
	return weightedMean("LogLoss", yTrue, yPred, weights, func(t, p float64) float64 {
		p = errors.ClipValue(p, 0, 1)
		return -(t*errors.StabilizeLog(p) + (1-t)*errors.StabilizeLog(1-p))
	})
}

// AUC はROC曲線下面積を計算する
//
// 同じスコアのサンプルは台形で扱う。正例または負例が存在しない場合は
// UndefinedMetricWarning を出して 0.5 を返す。
func AUC(yTrue, yPred, weights *mat.VecDense) (float64, error) {
	n, err := checkInputs("AUC", yTrue, yPred, weights)
	if err != nil {
		return 0, err
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	// スコアの降順
	sort.SliceStable(idx, func(a, b int) bool {
		return yPred.AtVec(idx[a]) > yPred.AtVec(idx[b])
	})

	var area, tp, fp, prevTP, prevFP float64
	for k := 0; k < n; {
		score := yPred.AtVec(idx[k])
		// 同じスコアのグループをまとめて処理
		for k < n && yPred.AtVec(idx[k]) == score {
			i := idx[k]
			w := weightAt(weights, i)
			if yTrue.AtVec(i) > 0.5 {
				tp += w
			} else {
				fp += w
			}
			k++
		}
		area += (fp - prevFP) * (tp + prevTP) / 2
		prevTP, prevFP = tp, fp
	}

	if tp == 0 || fp == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("AUC", "only one class present in yTrue", 0.5))
		return 0.5, nil
	}
	return area / (tp * fp), nil
}
