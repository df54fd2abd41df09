package tensor

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrPoolExhausted is returned by Acquire when the pool already has its limit of live matrices.
var ErrPoolExhausted = errors.New("tensor pool exhausted")

// Pool hands out batch-sized matrices and takes them back, keeping the number of live
// matrices bounded. Released buffers are reused for later acquisitions of the same size.
type Pool struct {
	mu    sync.Mutex
	limit int
	live  int
	peak  int
	free  map[int][]*Matrix
}

// NewPool creates a pool allowing at most limit live matrices. A limit <= 0 means unbounded.
func NewPool(limit int) *Pool {
	return &Pool{
		limit: limit,
		free:  make(map[int][]*Matrix),
	}
}

// Acquire returns a zeroed rows x cols matrix.
func (p *Pool) Acquire(rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.Errorf("cannot acquire %dx%d matrix", rows, cols)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.limit > 0 && p.live >= p.limit {
		return nil, errors.Wrapf(ErrPoolExhausted, "%d of %d matrices live", p.live, p.limit)
	}

	size := rows * cols
	var m *Matrix
	if bufs := p.free[size]; len(bufs) > 0 {
		buf := bufs[len(bufs)-1]
		p.free[size] = bufs[:len(bufs)-1]
		m = NewMatrixFromSlice(rows, cols, buf.data)
		m.Reset()
	} else {
		m = NewMatrix(rows, cols)
	}

	p.live++
	if p.live > p.peak {
		p.peak = p.live
	}
	return m, nil
}

// AcquireRows acquires a matrix shaped like block and copies block into it.
func (p *Pool) AcquireRows(block [][]float64) (*Matrix, error) {
	if len(block) == 0 || len(block[0]) == 0 {
		return nil, errors.New("cannot acquire matrix for empty block")
	}
	m, err := p.Acquire(len(block), len(block[0]))
	if err != nil {
		return nil, err
	}
	if err := m.CopyRows(block); err != nil {
		p.Release(m)
		return nil, err
	}
	return m, nil
}

// Release returns m to the pool. Releasing nil is a no-op.
func (p *Pool) Release(m *Matrix) {
	if m == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.live--
	size := len(m.data)
	p.free[size] = append(p.free[size], m)
}

// Live reports the number of matrices acquired and not yet released.
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// Peak reports the highest number of simultaneously live matrices.
func (p *Pool) Peak() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peak
}
