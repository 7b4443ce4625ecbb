package calc

import (
	"math"

	"github.com/KyungWonPark/pcarpet/internal/pcerr"
	"gonum.org/v1/gonum/mat"
)

func zScoring(inputMat *mat.Dense, outputMat *mat.Dense, stats []Statistic) func(int) {
	return func(index int) {
		in := inputMat.RawRowView(index)
		out := outputMat.RawRowView(index)
		s := stats[index]

		// a flat row has no defined z-score
		if s.Std == 0 {
			for t := range out {
				out[t] = math.NaN()
			}
			return
		}

		for t, value := range in {
			out[t] = (value - s.Mean) / s.Std
		}
	}
}

// ZScoring does z-scoring on each row. inputMat and outputMat may be the same matrix.
func (p *PipeLine) ZScoring(inputMat *mat.Dense, outputMat *mat.Dense) error {
	inputRows, inputCols := inputMat.Dims()
	outputRows, outputCols := outputMat.Dims()

	if outputRows != inputRows || outputCols != inputCols {
		return pcerr.New(pcerr.ShapeMismatch, "calc.ZScoring", "input is %d by %d but output is %d by %d", inputRows, inputCols, outputRows, outputCols)
	}

	stats := p.RowStats(inputMat)
	p.forEachRow(inputRows, zScoring(inputMat, outputMat, stats))

	return nil
}
