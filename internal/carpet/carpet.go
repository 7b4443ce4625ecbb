// Package carpet builds the normalized voxel-by-time matrix of an fMRI series inside a mask.
package carpet

import (
	"github.com/KyungWonPark/pcarpet/internal/calc"
	"github.com/KyungWonPark/pcarpet/internal/pcerr"
	"github.com/KyungWonPark/pcarpet/internal/volume"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// DefaultQualityThreshold is the default minimum tSNR for a voxel to be kept.
const DefaultQualityThreshold = 15.0

// Options controls a carpet build.
type Options struct {
	// QualityThreshold excludes voxels whose tSNR is below it. Nil disables the filter.
	QualityThreshold *float64
	// Reorder sorts rows by decreasing correlation with the global signal.
	Reorder bool
	// Workers is passed to calc.Init.
	Workers int
}

// DefaultOptions returns the tSNR threshold of 15 with reordering on.
func DefaultOptions() Options {
	thr := DefaultQualityThreshold
	return Options{QualityThreshold: &thr, Reorder: true}
}

// Carpet is a z-scored voxels by time matrix.
type Carpet struct {
	// Matrix has one row per retained voxel and one column per timepoint.
	Matrix *mat.Dense
	// Voxels[i] is the flat (x, y, z) index of row i.
	Voxels []int
	// Order[i] is the row that row i held before reordering.
	Order []int
	// GlobalR[i] is the correlation of row i with the global signal; nil unless reordered.
	GlobalR []float64
	// Dims are the spatial dims the flat indices refer to.
	Dims [3]int
}

// Rows returns the number of retained voxels
func (c *Carpet) Rows() int { return len(c.Voxels) }

// Timepoints returns the number of columns
func (c *Carpet) Timepoints() int {
	_, t := c.Matrix.Dims()
	return t
}

// Build masks vol with mask (and the tSNR filter), z-scores every retained voxel and
// optionally reorders the rows.
func Build(vol *volume.Volume, mask *volume.Mask, opts Options) (*Carpet, error) {
	const op = "carpet.Build"

	if err := volume.Check(vol, mask); err != nil {
		return nil, pcerr.Wrap(pcerr.ShapeMismatch, op, err)
	}

	pl := calc.Init(opts.Workers)
	series := vol.Matrix()

	voxels, byMask, byQuality := retained(pl, series, mask, opts.QualityThreshold)
	log.WithFields(log.Fields{
		"voxels":    len(voxels),
		"byMask":    byMask,
		"byQuality": byQuality,
	}).Info("Voxels retained after masking")

	if len(voxels) == 0 {
		return nil, pcerr.New(pcerr.EmptyResult, op, "no voxels left: %d excluded by mask, %d by tSNR threshold", byMask, byQuality)
	}

	m := mat.NewDense(len(voxels), vol.T, nil)
	for row, index := range voxels {
		copy(m.RawRowView(row), series.RawRowView(index))
	}
	log.WithField("shape", []int{len(voxels), vol.T}).Info("Carpet matrix created")

	if err := pl.ZScoring(m, m); err != nil {
		return nil, pcerr.Wrap(pcerr.ShapeMismatch, op, err)
	}
	log.Info("Carpet matrix normalized to zero-mean unit-variance")

	c := &Carpet{
		Matrix: m,
		Voxels: voxels,
		Order:  identity(len(voxels)),
		Dims:   vol.Spatial(),
	}

	if opts.Reorder {
		if err := c.reorder(pl); err != nil {
			return nil, pcerr.Wrap(pcerr.ShapeMismatch, op, err)
		}
		log.Info("Carpet reordered")
	}

	return c, nil
}

// retained returns the flat indices that pass the mask and the tSNR filter, ascending,
// plus how many voxels each criterion removed.
func retained(pl *calc.PipeLine, series *mat.Dense, mask *volume.Mask, thr *float64) (voxels []int, byMask, byQuality int) {
	var tsnr []float64
	if thr != nil {
		tsnr = calc.QualityMap(pl.RowStats(series))
	}

	rows, _ := series.Dims()
	for i := 0; i < rows; i++ {
		if !mask.Included(i) {
			byMask++
			continue
		}
		if thr != nil && tsnr[i] < *thr {
			byQuality++
			continue
		}
		voxels = append(voxels, i)
	}

	return voxels, byMask, byQuality
}

// reorder sorts the rows by decreasing correlation with the global signal.
// Ties keep their current order and rows with an undefined correlation go last.
func (c *Carpet) reorder(pl *calc.PipeLine) error {
	rows, cols := c.Matrix.Dims()

	gs := mat.NewDense(1, cols, calc.ColumnMean(c.Matrix))
	r, err := pl.Pearson2D(c.Matrix, gs)
	if err != nil {
		return err
	}

	gsCorr := make([]float64, rows)
	mat.Col(gsCorr, 0, r)
	sortIndex := calc.DescendingOrder(gsCorr)

	sorted := mat.NewDense(rows, cols, nil)
	voxels := make([]int, rows)
	order := make([]int, rows)
	globalR := make([]float64, rows)
	for i, from := range sortIndex {
		sorted.SetRow(i, c.Matrix.RawRowView(from))
		voxels[i] = c.Voxels[from]
		order[i] = c.Order[from]
		globalR[i] = gsCorr[from]
	}

	c.Matrix, c.Voxels, c.Order, c.GlobalR = sorted, voxels, order, globalR
	return nil
}

func identity(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}

// FromMatrix wraps an already normalized matrix, such as a saved carpet.
// Rows are numbered in order since their voxel positions are unknown.
func FromMatrix(m *mat.Dense) *Carpet {
	rows, _ := m.Dims()
	return &Carpet{
		Matrix: m,
		Voxels: identity(rows),
		Order:  identity(rows),
	}
}
