package calc

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// CheckOrthonormal checks whether the rows of vecs are unit length and mutually orthogonal
func CheckOrthonormal(vecs *mat.Dense, pre float64) bool {
	rows, _ := vecs.Dims()

	gram := mat.NewDense(rows, rows, nil)
	gram.Mul(vecs, vecs.T())

	for i := 0; i < rows; i++ {
		for j := 0; j < rows; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}

			if !(math.Abs(gram.At(i, j)-want) < math.Abs(pre)) {
				return false
			}
		}
	}

	return true
}
