package metrics

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/gbdata/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func TestMSE(t *testing.T) {
	tests := []struct {
		name      string
		yTrue     *mat.VecDense
		yPred     *mat.VecDense
		weights   *mat.VecDense
		want      float64
		tolerance float64
		wantErr   bool
	}{
		{
			name:      "perfect prediction",
			yTrue:     mat.NewVecDense(5, []float64{1.0, 2.0, 3.0, 4.0, 5.0}),
			yPred:     mat.NewVecDense(5, []float64{1.0, 2.0, 3.0, 4.0, 5.0}),
			want:      0.0,
			tolerance: 1e-10,
		},
		{
			name:      "simple case",
			yTrue:     mat.NewVecDense(4, []float64{1.0, 2.0, 3.0, 4.0}),
			yPred:     mat.NewVecDense(4, []float64{1.5, 2.5, 2.5, 3.5}),
			want:      0.25, // (0.25 * 4) / 4
			tolerance: 1e-10,
		},
		{
			name:      "weighted",
			yTrue:     mat.NewVecDense(2, []float64{0.0, 0.0}),
			yPred:     mat.NewVecDense(2, []float64{1.0, 2.0}),
			weights:   mat.NewVecDense(2, []float64{3.0, 1.0}),
			want:      7.0 / 4.0, // (3*1 + 1*4) / 4
			tolerance: 1e-10,
		},
		{
			name:    "dimension mismatch",
			yTrue:   mat.NewVecDense(3, []float64{1.0, 2.0, 3.0}),
			yPred:   mat.NewVecDense(2, []float64{1.0, 2.0}),
			wantErr: true,
		},
		{
			name:    "weight length mismatch",
			yTrue:   mat.NewVecDense(2, []float64{1.0, 2.0}),
			yPred:   mat.NewVecDense(2, []float64{1.0, 2.0}),
			weights: mat.NewVecDense(1, []float64{1.0}),
			wantErr: true,
		},
		{
			name:    "empty vectors",
			yTrue:   &mat.VecDense{},
			yPred:   &mat.VecDense{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MSE(tt.yTrue, tt.yPred, tt.weights)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MSE() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("MSE() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMSE_ErrorTypes(t *testing.T) {
	_, err := MSE(&mat.VecDense{}, &mat.VecDense{}, nil)
	var valueErr *errors.ValueError
	if !errors.As(err, &valueErr) {
		t.Errorf("expected ValueError, got %v", err)
	}

	_, err = MSE(mat.NewVecDense(2, nil), mat.NewVecDense(3, nil), nil)
	var dimErr *errors.DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionError, got %v", err)
	}
	if dimErr.Expected != 2 || dimErr.Got != 3 {
		t.Errorf("unexpected dimensions: %+v", dimErr)
	}
}

func TestMSE_ZeroTotalWeight(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(func(w error) {})

	got, err := MSE(
		mat.NewVecDense(2, []float64{1, 2}),
		mat.NewVecDense(2, []float64{0, 0}),
		mat.NewVecDense(2, []float64{0, 0}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Errorf("MSE() = %v, want 0", got)
	}
	if len(warnings) != 1 {
		t.Errorf("expected 1 warning, got %d", len(warnings))
	}
}

func TestRMSE(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{1.0, 2.0, 3.0, 4.0})
	yPred := mat.NewVecDense(4, []float64{1.5, 2.5, 2.5, 3.5})

	got, err := RMSE(yTrue, yPred, nil)
	if err != nil {
		t.Fatalf("RMSE() error = %v", err)
	}
	if math.Abs(got-0.5) > 1e-10 {
		t.Errorf("RMSE() = %v, want 0.5", got)
	}

	if _, err := RMSE(yTrue, mat.NewVecDense(1, nil), nil); err == nil {
		t.Error("expected error for mismatched lengths")
	}
}

func TestMAE(t *testing.T) {
	yTrue := mat.NewVecDense(3, []float64{10.0, 20.0, 30.0})
	yPred := mat.NewVecDense(3, []float64{12.0, 18.0, 33.0})

	got, err := MAE(yTrue, yPred, nil)
	if err != nil {
		t.Fatalf("MAE() error = %v", err)
	}
	// (2 + 2 + 3) / 3
	if math.Abs(got-7.0/3.0) > 1e-10 {
		t.Errorf("MAE() = %v, want %v", got, 7.0/3.0)
	}
}

func TestR2Score(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{1.0, 2.0, 3.0, 4.0})

	got, err := R2Score(yTrue, yTrue, nil)
	if err != nil {
		t.Fatalf("R2Score() error = %v", err)
	}
	if math.Abs(got-1.0) > 1e-10 {
		t.Errorf("R2Score() = %v, want 1", got)
	}

	// 平均値予測は 0
	mean := mat.NewVecDense(4, []float64{2.5, 2.5, 2.5, 2.5})
	got, err = R2Score(yTrue, mean, nil)
	if err != nil {
		t.Fatalf("R2Score() error = %v", err)
	}
	if math.Abs(got) > 1e-10 {
		t.Errorf("R2Score() = %v, want 0", got)
	}

	constant := mat.NewVecDense(2, []float64{1.0, 1.0})
	if _, err := R2Score(constant, constant, nil); err == nil {
		t.Error("expected error for zero variance")
	}
}
