package data

import (
	"math/rand/v2"

	"github.com/pkg/errors"
)

// Split is one batch: an input block and the label block of the same rows.
type Split struct {
	X [][]float64
	Y [][]float64
}

func (s Split) Len() int { return len(s.X) }

// Dataset provides ordered train and test batches for a batch size.
type Dataset interface {
	TrainBatches(batchSize int) ([]Split, error)
	TestBatches(batchSize int) ([]Split, error)
}

type Option func(*TensorDataset)

// KeepRemainder emits a final short batch instead of dropping the rows that do not fill one.
func KeepRemainder() Option {
	return func(d *TensorDataset) { d.keepRemainder = true }
}

// Shuffle permutes the training rows before batching. The n-th call to TrainBatches
// uses the n-th permutation of a generator seeded with seed.
func Shuffle(seed uint64) Option {
	return func(d *TensorDataset) {
		d.rng = rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	}
}

// TensorDataset batches in-memory rows. By default rows that do not fill a whole batch
// are dropped, so every batch has the same size.
type TensorDataset struct {
	trainX, trainY [][]float64
	testX, testY   [][]float64
	keepRemainder  bool
	rng            *rand.Rand
}

func NewTensorDataset(trainX, trainY, testX, testY [][]float64, opts ...Option) (*TensorDataset, error) {
	if len(trainX) != len(trainY) {
		return nil, errors.Errorf("train inputs have %d rows, labels %d", len(trainX), len(trainY))
	}
	if len(testX) != len(testY) {
		return nil, errors.Errorf("test inputs have %d rows, labels %d", len(testX), len(testY))
	}
	d := &TensorDataset{trainX: trainX, trainY: trainY, testX: testX, testY: testY}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// NewHoldoutDataset keeps the last testFraction of the rows for evaluation.
func NewHoldoutDataset(X, Y [][]float64, testFraction float64, opts ...Option) (*TensorDataset, error) {
	if testFraction < 0 || testFraction >= 1 {
		return nil, errors.Errorf("test fraction must be in [0, 1) (got %g)", testFraction)
	}
	if len(X) != len(Y) {
		return nil, errors.Errorf("inputs have %d rows, labels %d", len(X), len(Y))
	}
	cut := len(X) - int(float64(len(X))*testFraction)
	return NewTensorDataset(X[:cut], Y[:cut], X[cut:], Y[cut:], opts...)
}

func (d *TensorDataset) TrainBatches(batchSize int) ([]Split, error) {
	x, y := d.trainX, d.trainY
	if d.rng != nil {
		x, y = Gather(d.shuffled(len(x)), x, y)
	}
	return Batch(x, y, batchSize, d.keepRemainder)
}

func (d *TensorDataset) TestBatches(batchSize int) ([]Split, error) {
	return Batch(d.testX, d.testY, batchSize, d.keepRemainder)
}

func (d *TensorDataset) shuffled(n int) []int {
	indices := NewIndexList(n)
	d.rng.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
	return indices
}

// Batch cuts X and Y into consecutive batches of batchSize rows. The batches share
// backing rows with X and Y.
func Batch(X, Y [][]float64, batchSize int, keepRemainder bool) ([]Split, error) {
	if batchSize <= 0 {
		return nil, errors.Errorf("batch size must be > 0 (got %d)", batchSize)
	}
	if len(X) != len(Y) {
		return nil, errors.Errorf("inputs have %d rows, labels %d", len(X), len(Y))
	}

	var out []Split
	for start := 0; start < len(X); start += batchSize {
		end := start + batchSize
		if end > len(X) {
			if !keepRemainder {
				break
			}
			end = len(X)
		}
		out = append(out, Split{X: X[start:end], Y: Y[start:end]})
	}
	return out, nil
}

// ------ DATA HANDLING HELPERS ------
func NewIndexList(size int) []int {
	indices := make([]int, size)
	for i := range indices {
		indices[i] = i
	}
	return indices
}

// Gather returns the rows of X and Y selected by indices, in that order.
func Gather(indices []int, X, Y [][]float64) ([][]float64, [][]float64) {
	outX := make([][]float64, len(indices))
	outY := make([][]float64, len(indices))
	for i, idx := range indices {
		outX[i] = X[idx]
		outY[i] = Y[idx]
	}
	return outX, outY
}
