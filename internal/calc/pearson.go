package calc

import (
	"math"

	"github.com/KyungWonPark/pcarpet/internal/pcerr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// centered holds mean-subtracted rows and their sums of squares
type centered struct {
	rows *mat.Dense
	ss   []float64
}

func (p *PipeLine) center(inputMat *mat.Dense) centered {
	rows, cols := inputMat.Dims()
	c := centered{
		rows: mat.NewDense(rows, cols, nil),
		ss:   make([]float64, rows),
	}

	p.forEachRow(rows, func(index int) {
		out := c.rows.RawRowView(index)
		copy(out, inputMat.RawRowView(index))
		floats.AddConst(-floats.Sum(out)/float64(cols), out)
		c.ss[index] = floats.Dot(out, out)
	})

	return c
}

func pearson(a, b centered, outputMat *mat.Dense) func(int) {
	bRows, _ := b.rows.Dims()

	return func(from int) {
		rowA := a.rows.RawRowView(from)
		out := outputMat.RawRowView(from)

		for to := 0; to < bRows; to++ {
			num := floats.Dot(rowA, b.rows.RawRowView(to))
			out[to] = num / (math.Sqrt(a.ss[from]*b.ss[to]) + Epsilon)
		}
	}
}

// Pearson2D does row-wise Pearson's correlation between a (N by T) and b (M by T).
// The result is N by M; element (i, j) correlates row i of a with row j of b.
func (p *PipeLine) Pearson2D(a, b *mat.Dense) (*mat.Dense, error) {
	aRows, aCols := a.Dims()
	bRows, bCols := b.Dims()

	if aCols != bCols {
		return nil, pcerr.New(pcerr.ShapeMismatch, "calc.Pearson2D", "a is %d by %d but b is %d by %d", aRows, aCols, bRows, bCols)
	}

	ca := p.center(a)
	cb := p.center(b)

	outputMat := mat.NewDense(aRows, bRows, nil)
	p.forEachRow(aRows, pearson(ca, cb, outputMat))

	return outputMat, nil
}
