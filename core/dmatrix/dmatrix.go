// Package dmatrix provides DMatrix, the training and prediction data matrix
// consumed by the booster.
//
// A DMatrix owns one sparse.CSR plus optional per-row labels and weights.
// It is built by exactly one of three named constructors, one per input
// shape:
//
//	FromText(path)                      libsvm text, labels attached
//	FromCSR(rowPtr, colIndex, data)     CSR triplets, no labels
//	FromBinary(path)                    buffer written by SaveBinary
//
// The column structure never changes after construction; labels and weights
// may be replaced with SetLabel / SetWeight. A fully built DMatrix is safe
// for concurrent reads. SetLabel and SetWeight are not synchronized and
// must not run concurrently with other calls on the same DMatrix.
package dmatrix

import (
	"github.com/YuminosukeSato/gbdata/core/libsvm"
	"github.com/YuminosukeSato/gbdata/core/sparse"
	"github.com/YuminosukeSato/gbdata/pkg/errors"
	"github.com/YuminosukeSato/gbdata/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// DMatrix is a sparse feature matrix with optional labels and weights.
type DMatrix struct {
	store   *sparse.CSR
	labels  []float32
	weights []float32
}

// FromText parses a libsvm text file and attaches its labels.
func FromText(path string) (*DMatrix, error) {
	store, labels, err := libsvm.ParseFile(path)
	if err != nil {
		return nil, err
	}
	d := FromStore(store)
	d.labels = labels
	return d, nil
}

// FromCSR builds a matrix from CSR triplets. Inputs are validated eagerly
// and copied. Labels are absent until SetLabel is called.
func FromCSR(rowPtr, colIndex []uint32, data []float32) (*DMatrix, error) {
	store, err := sparse.FromCSR(rowPtr, colIndex, data)
	if err != nil {
		return nil, err
	}
	return FromStore(store), nil
}

// FromStore wraps an existing store without labels. The store is shared,
// which is safe because a sparse.CSR is immutable. A nil store gives an
// empty matrix.
func FromStore(store *sparse.CSR) *DMatrix {
	if store == nil {
		store = sparse.Empty()
	}
	return &DMatrix{store: store}
}

// FromBinary loads a matrix previously written by SaveBinary.
func FromBinary(path string) (*DMatrix, error) {
	return Load(path)
}

// SaveBinary writes the matrix to path in the binary buffer format.
func (d *DMatrix) SaveBinary(path string) error {
	return Save(d, path)
}

// SetLabel replaces the label vector with a copy of labels.
func (d *DMatrix) SetLabel(labels []float32) error {
	if len(labels) != d.Rows() {
		return errors.NewShapeError("SetLabel", "labels", d.Rows(), len(labels))
	}
	d.labels = append(make([]float32, 0, len(labels)), labels...)
	return nil
}

// SetWeight replaces the weight vector with a copy of weights.
func (d *DMatrix) SetWeight(weights []float32) error {
	if len(weights) != d.Rows() {
		return errors.NewShapeError("SetWeight", "weights", d.Rows(), len(weights))
	}
	d.weights = append(make([]float32, 0, len(weights)), weights...)
	return nil
}

// Labels returns a copy of the labels, or nil when none are attached.
func (d *DMatrix) Labels() []float32 {
	if d.labels == nil {
		return nil
	}
	return append([]float32(nil), d.labels...)
}

// Weights returns a copy of the weights, or nil when none are attached.
func (d *DMatrix) Weights() []float32 {
	if d.weights == nil {
		return nil
	}
	return append([]float32(nil), d.weights...)
}

// Label returns the label of row i. It panics if no labels are attached.
func (d *DMatrix) Label(i int) float32 { return d.labels[i] }

// Weight returns the weight of row i, or 1 when no weights are attached.
func (d *DMatrix) Weight(i int) float32 {
	if d.weights == nil {
		return 1
	}
	return d.weights[i]
}

// HasLabels reports whether labels are attached.
func (d *DMatrix) HasLabels() bool { return d.labels != nil }

// HasWeights reports whether weights are attached.
func (d *DMatrix) HasWeights() bool { return d.weights != nil }

// Rows returns the number of rows.
func (d *DMatrix) Rows() int { return d.store.Rows() }

// NonZeroCount returns the number of stored entries.
func (d *DMatrix) NonZeroCount() int { return d.store.NonZeroCount() }

// NumCol returns max column index + 1.
func (d *DMatrix) NumCol() int { return d.store.NumCol() }

// Row returns read-only views of row i's columns and values.
func (d *DMatrix) Row(i int) ([]uint32, []float32) { return d.store.Row(i) }

// Store returns the underlying immutable store.
func (d *DMatrix) Store() *sparse.CSR { return d.store }

// CSR returns copies of the row headers, column indices and values.
func (d *DMatrix) CSR() (rowPtr, colIndex []uint32, data []float32) {
	return d.store.Triplets()
}

// Slice returns a new matrix with the given rows, in order, carrying their
// labels and weights.
func (d *DMatrix) Slice(rowIndex []int) (*DMatrix, error) {
	store, err := d.store.SelectRows(rowIndex)
	if err != nil {
		return nil, errors.Wrap(err, "Slice")
	}
	out := FromStore(store)
	if d.labels != nil {
		out.labels = make([]float32, len(rowIndex))
		for i, r := range rowIndex {
			out.labels[i] = d.labels[r]
		}
	}
	if d.weights != nil {
		out.weights = make([]float32, len(rowIndex))
		for i, r := range rowIndex {
			out.weights[i] = d.weights[r]
		}
	}
	return out, nil
}

// ToDense expands the matrix into a rows × NumCol gonum matrix; absent
// entries are 0. Returns nil for a matrix with no rows or no columns,
// since gonum does not allow empty dense matrices.
func (d *DMatrix) ToDense() *mat.Dense {
	rows, cols := d.Rows(), d.NumCol()
	if rows == 0 || cols == 0 {
		return nil
	}
	dense := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		idx, vals := d.store.Row(i)
		for k, c := range idx {
			dense.Set(i, int(c), float64(vals[k]))
		}
	}
	return dense
}

// LabelVec returns the labels as a gonum vector, or nil without labels.
func (d *DMatrix) LabelVec() *mat.VecDense {
	if d.labels == nil || len(d.labels) == 0 {
		return nil
	}
	data := make([]float64, len(d.labels))
	for i, l := range d.labels {
		data[i] = float64(l)
	}
	return mat.NewVecDense(len(data), data)
}

// Equal reports bit-exact equality of structure, values, labels and weights.
// An absent label or weight vector never equals a present one, even an
// empty one on a matrix with no rows.
func (d *DMatrix) Equal(other *DMatrix) bool {
	if d == nil || other == nil {
		return d == other
	}
	if !d.store.Equal(other.store) {
		return false
	}
	if d.HasLabels() != other.HasLabels() || d.HasWeights() != other.HasWeights() {
		return false
	}
	return sparse.Float32sBitEqual(d.labels, other.labels) &&
		sparse.Float32sBitEqual(d.weights, other.weights)
}

func (d *DMatrix) logFields() []any {
	return []any{
		log.RowsKey, d.Rows(),
		log.NNZKey, d.NonZeroCount(),
		log.HasLabelsKey, d.HasLabels(),
		log.HasWeightsKey, d.HasWeights(),
	}
}
