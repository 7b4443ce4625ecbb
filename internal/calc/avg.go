package calc

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ColumnMean averages the rows of inputMat into one row (the global signal of a carpet)
func ColumnMean(inputMat *mat.Dense) []float64 {
	inputRows, inputCols := inputMat.Dims()
	acc := make([]float64, inputCols)

	for i := 0; i < inputRows; i++ {
		floats.Add(acc, inputMat.RawRowView(i))
	}

	floats.Scale(1/float64(inputRows), acc)
	return acc
}
