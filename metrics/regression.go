// Package metrics implements the evaluation metrics reported for watch
// lists during training.
//
// Every metric takes gonum vectors for the true values and the
// predictions, plus an optional weight vector (nil means unit weights).
package metrics

import (
	"math"

	"github.com/YuminosukeSato/gbdata/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// checkInputs は入力ベクトルの長さを検証する
func checkInputs(op string, yTrue, yPred, weights *mat.VecDense) (int, error) {
	n := 0
	if yTrue != nil && !yTrue.IsEmpty() {
		n = yTrue.Len()
	}
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred == nil || yPred.IsEmpty() || yPred.Len() != n {
		got := 0
		if yPred != nil && !yPred.IsEmpty() {
			got = yPred.Len()
		}
		return 0, errors.NewDimensionError(op, n, got, 0)
	}
	if weights != nil && (weights.IsEmpty() || weights.Len() != n) {
		got := 0
		if !weights.IsEmpty() {
			got = weights.Len()
		}
		return 0, errors.NewDimensionError(op, n, got, 0)
	}
	return n, nil
}

func weightAt(weights *mat.VecDense, i int) float64 {
	if weights == nil {
		return 1
	}
	return weights.AtVec(i)
}

// weightedMean は Σw·f(yTrue, yPred) / Σw を計算する
func weightedMean(op string, yTrue, yPred, weights *mat.VecDense, f func(t, p float64) float64) (float64, error) {
	n, err := checkInputs(op, yTrue, yPred, weights)
	if err != nil {
		return 0, err
	}

	var sum, wsum float64
	for i := 0; i < n; i++ {
		w := weightAt(weights, i)
		sum += w * f(yTrue.AtVec(i), yPred.AtVec(i))
		wsum += w
	}

	// 重みの合計が0の場合は定義できない
	if wsum == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(op, "zero total weight", 0))
		return 0, nil
	}
	return sum / wsum, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred, weights *mat.VecDense) (float64, error) {
	// MSE = Σw(yTrue - yPred)² / Σw
	return weightedMean("MSE", yTrue, yPred, weights, func(t, p float64) float64 {
		d := t - p
		return d * d
	})
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred, weights *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred, weights)
	if err != nil {
		return 0, errors.Wrap(err, "RMSE")
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred, weights *mat.VecDense) (float64, error) {
	return weightedMean("MAE", yTrue, yPred, weights, func(t, p float64) float64 {
		return math.Abs(t - p)
	})
}

// R2Score は決定係数（R²）を計算する
func R2Score(yTrue, yPred, weights *mat.VecDense) (float64, error) {
	n, err := checkInputs("R2Score", yTrue, yPred, weights)
	if err != nil {
		return 0, err
	}

	// yTrueの重み付き平均を計算
	var yMean, wsum float64
	for i := 0; i < n; i++ {
		w := weightAt(weights, i)
		yMean += w * yTrue.AtVec(i)
		wsum += w
	}
	if wsum == 0 {
		return 0, errors.NewValueError("R2Score", "zero total weight")
	}
	yMean /= wsum

	// 全変動（TSS）と残差変動（RSS）を計算
	var tss, rss float64
	for i := 0; i < n; i++ {
		w := weightAt(weights, i)
		t, p := yTrue.AtVec(i), yPred.AtVec(i)
		tss += w * (t - yMean) * (t - yMean)
		rss += w * (t - p) * (t - p)
	}

	// 全変動が0の場合（すべてのyTrueが同じ値）
	if tss == 0 {
		return 0, errors.Newf("R2Score: total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}
