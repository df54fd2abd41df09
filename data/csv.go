package data

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// LoadCSV reads a numeric CSV file. Column labelCol becomes the label of each row and the
// remaining columns its features, e.g. labelCol 0 for MNIST exports. A first row that does
// not parse as numbers is treated as a header and skipped.
func LoadCSV(path string, labelCol int) ([][]float64, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open csv")
	}
	defer f.Close()

	X, Y, err := ReadCSV(f, labelCol)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "read %s", path)
	}
	return X, Y, nil
}

func ReadCSV(r io.Reader, labelCol int) ([][]float64, []float64, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	var X [][]float64
	var Y []float64
	for line := 1; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if labelCol < 0 || labelCol >= len(record) {
			return nil, nil, errors.Errorf("line %d: label column %d out of range (%d columns)", line, labelCol, len(record))
		}

		row := make([]float64, 0, len(record)-1)
		var label float64
		bad := false
		for i, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				if line == 1 {
					bad = true
					break
				}
				return nil, nil, errors.Errorf("line %d column %d: %q is not a number", line, i, field)
			}
			if i == labelCol {
				label = v
				continue
			}
			row = append(row, v)
		}
		if bad {
			continue
		}
		X = append(X, row)
		Y = append(Y, label)
	}
	if len(X) == 0 {
		return nil, nil, errors.New("no data rows")
	}
	return X, Y, nil
}

// MinMaxNormalize rescales every column of X to [0, 1] in place. Constant columns become 0.
func MinMaxNormalize(X [][]float64) {
	if len(X) == 0 {
		return
	}
	cols := len(X[0])
	for j := 0; j < cols; j++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, row := range X {
			lo = math.Min(lo, row[j])
			hi = math.Max(hi, row[j])
		}
		span := hi - lo
		for _, row := range X {
			if span == 0 {
				row[j] = 0
				continue
			}
			row[j] = (row[j] - lo) / span
		}
	}
}

// OneHot encodes class indices as rows of length classes.
func OneHot(labels []float64, classes int) ([][]float64, error) {
	out := make([][]float64, len(labels))
	for i, l := range labels {
		c := int(l)
		if float64(c) != l || c < 0 || c >= classes {
			return nil, errors.Errorf("label %d: %v is not a class index in [0, %d)", i, l, classes)
		}
		out[i] = make([]float64, classes)
		out[i][c] = 1
	}
	return out, nil
}

// Column turns a label vector into single-column rows, the layout of sparse class indices.
func Column(labels []float64) [][]float64 {
	out := make([][]float64, len(labels))
	for i, l := range labels {
		out[i] = []float64{l}
	}
	return out
}
