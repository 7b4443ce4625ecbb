package calc

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ColumnMedians returns the median of every column. A column holding a NaN has a NaN median.
func ColumnMedians(inputMat *mat.Dense) []float64 {
	inputRows, inputCols := inputMat.Dims()
	medians := make([]float64, inputCols)
	col := make([]float64, inputRows)

	for j := 0; j < inputCols; j++ {
		mat.Col(col, j, inputMat)
		if floats.HasNaN(col) {
			medians[j] = math.NaN()
			continue
		}

		// only fails on empty input, which a Dense cannot be
		m, _ := stats.Median(col)
		medians[j] = m
	}

	return medians
}

// DescendingOrder returns the indices of values sorted from largest to smallest.
// Equal values keep their original order and NaNs go last.
func DescendingOrder(values []float64) []int {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := values[order[i]], values[order[j]]
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a > b
	})

	return order
}
