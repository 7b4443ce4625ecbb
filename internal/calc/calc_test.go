package calc

import (
	"errors"
	"math"
	"testing"

	"github.com/KyungWonPark/pcarpet/internal/pcerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func series() *mat.Dense {
	return mat.NewDense(3, 6, []float64{
		1, 2, 3, 4, 5, 6,
		2, 1, 4, 3, 6, 5,
		9, 3, 7, 1, 8, 0,
	})
}

func TestPearson2DDiagonalIsOne(t *testing.T) {
	pl := Init(2)

	r, err := pl.Pearson2D(series(), series())
	require.NoError(t, err)

	rows, cols := r.Dims()
	require.Equal(t, 3, rows)
	require.Equal(t, 3, cols)
	for i := 0; i < rows; i++ {
		assert.InDelta(t, 1.0, r.At(i, i), 1e-9)
		for j := 0; j < cols; j++ {
			assert.InDelta(t, r.At(i, j), r.At(j, i), 1e-12)
			assert.LessOrEqual(t, math.Abs(r.At(i, j)), 1.0)
		}
	}
}

func TestPearson2DNegatedRow(t *testing.T) {
	pl := Init(1)
	a := mat.NewDense(1, 5, []float64{0.3, -1.2, 4.0, 2.2, 0.1})
	b := mat.NewDense(1, 5, nil)
	b.Scale(-1, a)

	r, err := pl.Pearson2D(a, b)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, r.At(0, 0), 1e-9)
}

func TestPearson2DOneAgainstMany(t *testing.T) {
	pl := Init(4)
	one := mat.NewDense(1, 6, []float64{1, 2, 3, 4, 5, 6})

	r, err := pl.Pearson2D(series(), one)
	require.NoError(t, err)

	rows, cols := r.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 1, cols)
	assert.InDelta(t, 1.0, r.At(0, 0), 1e-9)
}

func TestPearson2DConstantRowIsZero(t *testing.T) {
	pl := Init(1)
	a := mat.NewDense(1, 4, []float64{2, 2, 2, 2})
	b := mat.NewDense(1, 4, []float64{1, 3, 2, 4})

	r, err := pl.Pearson2D(a, b)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.At(0, 0))
}

func TestPearson2DShapeMismatch(t *testing.T) {
	pl := Init(1)

	_, err := pl.Pearson2D(mat.NewDense(2, 4, nil), mat.NewDense(2, 5, nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, pcerr.ShapeMismatch))
}

func TestZScoring(t *testing.T) {
	pl := Init(2)
	in := mat.NewDense(2, 4, []float64{
		1, 2, 3, 4,
		5, 5, 5, 5,
	})
	out := mat.NewDense(2, 4, nil)

	require.NoError(t, pl.ZScoring(in, out))

	stats := pl.RowStats(out)
	assert.InDelta(t, 0.0, stats[0].Mean, 1e-12)
	assert.InDelta(t, 1.0, stats[0].Std, 1e-12)
	for _, v := range out.RawRowView(1) {
		assert.True(t, math.IsNaN(v))
	}

	assert.Error(t, pl.ZScoring(in, mat.NewDense(4, 2, nil)))
}

func TestQualityMap(t *testing.T) {
	pl := Init(1)
	m := mat.NewDense(2, 4, []float64{
		10, 12, 10, 12,
		3, 3, 3, 3,
	})

	tsnr := QualityMap(pl.RowStats(m))
	assert.InDelta(t, 11.0, tsnr[0], 1e-6)
	assert.InDelta(t, 3e9, tsnr[1], 1)
}

func TestColumnMeanAndMedians(t *testing.T) {
	m := series()

	want := []float64{4, 2, 14.0 / 3, 8.0 / 3, 19.0 / 3, 11.0 / 3}
	assert.InDeltaSlice(t, want, ColumnMean(m), 1e-12)
	assert.Equal(t, []float64{2, 2, 4, 3, 6, 5}, ColumnMedians(m))

	m.Set(1, 0, math.NaN())
	assert.True(t, math.IsNaN(ColumnMedians(m)[0]))
}

func TestDescendingOrder(t *testing.T) {
	order := DescendingOrder([]float64{0.2, math.NaN(), 0.9, 0.2, -0.5})
	assert.Equal(t, []int{2, 0, 3, 4, 1}, order)
}

func TestCheckOrthonormal(t *testing.T) {
	eye := mat.NewDense(2, 3, []float64{
		1, 0, 0,
		0, 1, 0,
	})
	assert.True(t, CheckOrthonormal(eye, 1e-9))

	eye.Set(1, 0, 1)
	assert.False(t, CheckOrthonormal(eye, 1e-9))
}
