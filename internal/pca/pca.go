// Package pca fits principal components to a carpet and relates them back to its voxels.
package pca

import (
	"math"
	"strconv"

	"github.com/KyungWonPark/pcarpet/internal/calc"
	"github.com/KyungWonPark/pcarpet/internal/carpet"
	"github.com/KyungWonPark/pcarpet/internal/pcerr"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultNComp is the default number of components correlated with the carpet.
const DefaultNComp = 5

// Options controls an analysis.
type Options struct {
	// NComp leading components are correlated with the carpet and reported.
	NComp int
	// FlipSign negates a working component whose median carpet correlation is negative.
	FlipSign bool
	// Scores keeps the whitened projection of the carpet on every component.
	Scores bool
	// Workers is passed to calc.Init.
	Workers int
}

// DefaultOptions returns five components with sign flipping and no scores.
func DefaultOptions() Options {
	return Options{NComp: DefaultNComp, FlipSign: true}
}

// ReportRow summarizes one of the leading components.
type ReportRow struct {
	PC            string
	ExplVar       float64
	CarpetRMedian float64
}

// Result holds a fitted decomposition. Components, ExplVar, Scores and Report keep the
// sign given by the decomposition; Working and CarpetR carry the sign flips.
type Result struct {
	// Components has one component per row, ordered by decreasing variance.
	Components *mat.Dense
	// ExplVar is the fraction of the total variance explained by each component.
	ExplVar []float64
	// Scores is the whitened projection (voxels by components); nil unless requested.
	Scores *mat.Dense
	// Working holds the first NComp components, one per row.
	Working *mat.Dense
	// CarpetR correlates every carpet row with every working component (voxels by NComp).
	CarpetR *mat.Dense
	// Flipped marks the working components that were negated.
	Flipped []bool
	Report  []ReportRow
}

// NComp returns the number of working components
func (r *Result) NComp() int { return len(r.Report) }

// Labels returns PC1..PCn for the working components
func (r *Result) Labels() []string {
	return Labels(r.NComp())
}

// Labels returns PC1..PCn
func Labels(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = "PC" + strconv.Itoa(i+1)
	}
	return names
}

// Analyze fits the decomposition to c and correlates the first opts.NComp components
// with every carpet row.
func Analyze(c *carpet.Carpet, opts Options) (*Result, error) {
	const op = "pca.Analyze"

	if c == nil || c.Matrix == nil {
		return nil, pcerr.New(pcerr.InvalidArgument, op, "a carpet is required")
	}
	voxels, timepoints := c.Matrix.Dims()

	if opts.NComp < 1 {
		return nil, pcerr.New(pcerr.InvalidArgument, op, "ncomp must be a positive integer, got %d", opts.NComp)
	}
	if opts.NComp > timepoints {
		return nil, pcerr.New(pcerr.InvalidArgument, op, "ncomp = %d exceeds the %d timepoints", opts.NComp, timepoints)
	}
	if k := min(voxels, timepoints); opts.NComp > k {
		return nil, pcerr.New(pcerr.InvalidArgument, op, "ncomp = %d exceeds the %d components of a %d voxel carpet", opts.NComp, k, voxels)
	}

	pl := calc.Init(opts.Workers)

	comps, vars := decompose(c.Matrix)
	res := &Result{
		Components: comps,
		ExplVar:    explainedRatio(c.Matrix, vars),
	}
	if opts.Scores {
		res.Scores = whiten(c.Matrix, comps, vars)
	}
	log.WithField("components", len(vars)).Info("PCA fit to carpet matrix")

	res.Working = mat.DenseCopyOf(comps.Slice(0, opts.NComp, 0, timepoints))
	carpetR, err := pl.Pearson2D(c.Matrix, res.Working)
	if err != nil {
		return nil, pcerr.Wrap(pcerr.ShapeMismatch, op, err)
	}
	res.CarpetR = carpetR
	log.Infof("First %d PCs correlated with carpet", opts.NComp)

	medians := calc.ColumnMedians(carpetR)
	names := Labels(opts.NComp)
	res.Report = make([]ReportRow, opts.NComp)
	for i := range res.Report {
		res.Report[i] = ReportRow{PC: names[i], ExplVar: res.ExplVar[i], CarpetRMedian: medians[i]}
	}

	res.Flipped = make([]bool, opts.NComp)
	if opts.FlipSign {
		for i, m := range medians {
			if m < 0 {
				flip(res.Working, carpetR, i)
				res.Flipped[i] = true
			}
		}
	}

	return res, nil
}

// flip negates working component i and its correlation column
func flip(working, carpetR *mat.Dense, i int) {
	floats.Scale(-1, working.RawRowView(i))

	rows, _ := carpetR.Dims()
	for v := 0; v < rows; v++ {
		carpetR.Set(v, i, -carpetR.At(v, i))
	}
}

// decompose returns the components (one per row) and their variances.
// A carpet with undefined values gives NaN components instead of an error.
func decompose(m *mat.Dense) (*mat.Dense, []float64) {
	rows, cols := m.Dims()
	k := min(rows, cols)

	var pc stat.PC
	if floats.HasNaN(m.RawMatrix().Data) || !pc.PrincipalComponents(m, nil) {
		log.WithField("shape", []int{rows, cols}).Warn("Carpet is degenerate, components are undefined")
		return nanDense(k, cols), nanSlice(k)
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	comps := mat.DenseCopyOf(vecs.T())
	vars := pc.VarsTo(nil)

	// fix the sign of each component so that its largest loading is positive
	for i := 0; i < k; i++ {
		row := comps.RawRowView(i)
		if row[maxAbsIdx(row)] < 0 {
			floats.Scale(-1, row)
		}
	}

	if !calc.CheckOrthonormal(comps, 1e-6) {
		log.Warn("PCA components are not orthonormal")
	}

	return comps, vars
}

// explainedRatio divides each component variance by the total sample variance of the carpet
func explainedRatio(m *mat.Dense, vars []float64) []float64 {
	rows, cols := m.Dims()

	var total float64
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, m)
		total += stat.Variance(col, nil)
	}

	ratio := make([]float64, len(vars))
	for i, v := range vars {
		ratio[i] = v / total
	}
	return ratio
}

// whiten projects the column-centered carpet on the components and scales every score
// column to unit variance.
func whiten(m *mat.Dense, comps *mat.Dense, vars []float64) *mat.Dense {
	rows, cols := m.Dims()

	centered := mat.DenseCopyOf(m)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, centered)
		floats.AddConst(-stat.Mean(col, nil), col)
		centered.SetCol(j, col)
	}

	var scores mat.Dense
	scores.Mul(centered, comps.T())
	scores.Apply(func(_, j int, v float64) float64 {
		return v / math.Sqrt(vars[j])
	}, &scores)

	return &scores
}

func maxAbsIdx(s []float64) int {
	idx := 0
	for i, v := range s {
		if math.Abs(v) > math.Abs(s[idx]) {
			idx = i
		}
	}
	return idx
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func nanDense(r, c int) *mat.Dense {
	return mat.NewDense(r, c, nanSlice(r*c))
}
