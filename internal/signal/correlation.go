package signal

import (
	"math"

	"github.com/helios-quant/pairtrade/pkg/errors"
)

// pearson computes the Pearson correlation coefficient over paired samples.
// The series must be the same length with at least two points; a
// zero-variance series has no defined correlation.
func pearson(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, errors.Newf(errors.ErrCodeEvaluationFailed, "misaligned series: %d vs %d points", len(x), len(y))
	}

	if len(x) < 2 {
		return 0, errors.Newf(errors.ErrCodeEvaluationFailed, "need at least 2 points, got %d", len(x))
	}

	n := float64(len(x))

	var sumX, sumY float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
	}

	meanX := sumX / n
	meanY := sumY / n

	var cov, varX, varY float64

	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX == 0 || varY == 0 {
		return 0, errors.New(errors.ErrCodeEvaluationFailed, "correlation undefined for constant series")
	}

	r := cov / math.Sqrt(varX*varY)

	return r, nil
}
