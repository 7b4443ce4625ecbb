package pca

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/KyungWonPark/pcarpet/internal/calc"
	"github.com/KyungWonPark/pcarpet/internal/carpet"
	"github.com/KyungWonPark/pcarpet/internal/pcerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// spiky returns a z-scored carpet whose first 30 of 50 rows share a sine with one large
// negative spike, the rest being noise.
func spiky(t *testing.T) *carpet.Carpet {
	t.Helper()
	const voxels, timepoints = 50, 40
	rng := rand.New(rand.NewSource(3))

	s := make([]float64, timepoints)
	for k := range s {
		s[k] = math.Sin(float64(k) / 3)
	}
	s[10] = -6

	m := mat.NewDense(voxels, timepoints, nil)
	for i := 0; i < voxels; i++ {
		row := m.RawRowView(i)
		for k := range row {
			row[k] = rng.NormFloat64()
			if i < 30 {
				row[k] = s[k] + 0.3*row[k]
			}
		}
	}
	require.NoError(t, calc.Init(2).ZScoring(m, m))

	return carpet.FromMatrix(m)
}

func TestAnalyzeExplainedVariance(t *testing.T) {
	res, err := Analyze(spiky(t), Options{NComp: 3})
	require.NoError(t, err)

	k, timepoints := res.Components.Dims()
	assert.Equal(t, 40, k)
	assert.Equal(t, 40, timepoints)
	require.Len(t, res.ExplVar, 40)

	assert.LessOrEqual(t, floats.Sum(res.ExplVar), 1+1e-9)
	assert.InDelta(t, 1, floats.Sum(res.ExplVar), 1e-9)
	for i := 1; i < len(res.ExplVar); i++ {
		assert.GreaterOrEqual(t, res.ExplVar[i-1], res.ExplVar[i])
	}
	assert.True(t, calc.CheckOrthonormal(res.Components, 1e-9))
	assert.Nil(t, res.Scores)
}

func TestAnalyzeLargestLoadingIsPositive(t *testing.T) {
	res, err := Analyze(spiky(t), Options{NComp: 1})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		row := res.Components.RawRowView(i)
		assert.Greater(t, row[maxAbsIdx(row)], 0.0)
	}
	// the spike dominates the first component
	assert.Equal(t, 10, maxAbsIdx(res.Components.RawRowView(0)))
}

func TestAnalyzeSignFlip(t *testing.T) {
	c := spiky(t)

	res, err := Analyze(c, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 5, res.NComp())
	assert.Equal(t, []string{"PC1", "PC2", "PC3", "PC4", "PC5"}, res.Labels())

	// the largest loading of PC1 is the negative spike, so most voxels anti-correlate
	assert.Less(t, res.Report[0].CarpetRMedian, 0.0)
	assert.True(t, res.Flipped[0])

	for i, row := range res.Report {
		median := calc.ColumnMedians(res.CarpetR)[i]
		assert.GreaterOrEqual(t, median, 0.0, row.PC)

		sign := 1.0
		if res.Flipped[i] {
			sign = -1
			assert.InDelta(t, -row.CarpetRMedian, median, 1e-12)
		} else {
			assert.InDelta(t, row.CarpetRMedian, median, 1e-12)
		}

		got := res.Working.RawRowView(i)
		orig := res.Components.RawRowView(i)
		for k := range got {
			assert.Equal(t, sign*orig[k], got[k])
		}
		assert.Equal(t, res.ExplVar[i], row.ExplVar)
	}
}

func TestAnalyzeWithoutFlip(t *testing.T) {
	res, err := Analyze(spiky(t), Options{NComp: 2, FlipSign: false})
	require.NoError(t, err)

	assert.Equal(t, []bool{false, false}, res.Flipped)
	assert.True(t, mat.Equal(res.Working, res.Components.Slice(0, 2, 0, 40)))
	assert.Less(t, calc.ColumnMedians(res.CarpetR)[0], 0.0)
}

func TestAnalyzeScoresAreWhitened(t *testing.T) {
	c := spiky(t)
	res, err := Analyze(c, Options{NComp: 2, Scores: true})
	require.NoError(t, err)
	require.NotNil(t, res.Scores)

	rows, cols := res.Scores.Dims()
	assert.Equal(t, c.Rows(), rows)
	assert.Equal(t, 40, cols)

	col := make([]float64, rows)
	for j := 0; j < 5; j++ {
		mat.Col(col, j, res.Scores)
		assert.InDelta(t, 0, stat.Mean(col, nil), 1e-9)
		assert.InDelta(t, 1, stat.Variance(col, nil), 1e-6)
	}
}

func TestAnalyzeInvalidNComp(t *testing.T) {
	c := spiky(t)

	for _, n := range []int{0, -1, 41} {
		_, err := Analyze(c, Options{NComp: n})
		assert.True(t, errors.Is(err, pcerr.InvalidArgument), "ncomp %d", n)
	}

	narrow := carpet.FromMatrix(mat.NewDense(3, 10, []float64{
		1, 2, 3, 4, 5, 6, 7, 8, 9, 10,
		2, 1, 2, 1, 2, 1, 2, 1, 2, 1,
		0, 0, 1, 0, 0, 1, 0, 0, 1, 1,
	}))
	_, err := Analyze(narrow, Options{NComp: 4})
	assert.True(t, errors.Is(err, pcerr.InvalidArgument))

	res, err := Analyze(narrow, Options{NComp: 3})
	require.NoError(t, err)
	k, _ := res.Components.Dims()
	assert.Equal(t, 3, k)

	_, err = Analyze(nil, DefaultOptions())
	assert.True(t, errors.Is(err, pcerr.InvalidArgument))
}

func TestAnalyzeDegenerateCarpetPropagatesNaN(t *testing.T) {
	c := spiky(t)
	for k := 0; k < 40; k++ {
		c.Matrix.Set(4, k, math.NaN())
	}

	res, err := Analyze(c, Options{NComp: 2, FlipSign: true, Scores: true})
	require.NoError(t, err)

	assert.True(t, floats.HasNaN(res.Components.RawRowView(0)))
	assert.True(t, math.IsNaN(res.ExplVar[0]))
	assert.True(t, math.IsNaN(res.Report[0].CarpetRMedian))
	assert.Equal(t, []bool{false, false}, res.Flipped)
	assert.True(t, math.IsNaN(res.Scores.At(0, 0)))
}
