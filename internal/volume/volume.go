// Package volume holds the 4-D functional series, the 3-D mask and their shared geometry.
package volume

import (
	"github.com/KyungWonPark/pcarpet/internal/pcerr"
	"gonum.org/v1/gonum/mat"
)

// Volume is a 4-D (X, Y, Z, T) series stored row-major with T varying fastest.
// It must not be modified once built.
type Volume struct {
	X, Y, Z, T int
	Data       []float64
}

// New returns a Volume of the given shape backed by data.
func New(shape []int, data []float64) (*Volume, error) {
	if len(shape) != 4 {
		return nil, pcerr.New(pcerr.ShapeMismatch, "volume.New", "fMRI must be 4-dimensional, got shape %v", shape)
	}
	if err := checkData("volume.New", shape, data); err != nil {
		return nil, err
	}

	return &Volume{X: shape[0], Y: shape[1], Z: shape[2], T: shape[3], Data: data}, nil
}

// Shape returns (X, Y, Z, T)
func (v *Volume) Shape() []int { return []int{v.X, v.Y, v.Z, v.T} }

// Spatial returns (X, Y, Z)
func (v *Volume) Spatial() [3]int { return [3]int{v.X, v.Y, v.Z} }

// Voxels returns X*Y*Z
func (v *Volume) Voxels() int { return v.X * v.Y * v.Z }

// At returns the sample at (x, y, z, t)
func (v *Volume) At(x, y, z, t int) float64 {
	return v.Data[Flat(v.Spatial(), x, y, z)*v.T+t]
}

// Matrix returns a (X*Y*Z) by T view of the series. Row i is the voxel with flat index i.
// The view shares memory with the volume and must be treated as read-only.
func (v *Volume) Matrix() *mat.Dense {
	return mat.NewDense(v.Voxels(), v.T, v.Data)
}

// Mask is a 3-D region of interest. Values that are not below 0.5 are inside, NaN included.
type Mask struct {
	X, Y, Z int
	Data    []float64
}

// NewMask returns a Mask of the given shape backed by data.
func NewMask(shape []int, data []float64) (*Mask, error) {
	if len(shape) != 3 {
		return nil, pcerr.New(pcerr.ShapeMismatch, "volume.NewMask", "mask must be 3-dimensional, got shape %v", shape)
	}
	if err := checkData("volume.NewMask", shape, data); err != nil {
		return nil, err
	}

	return &Mask{X: shape[0], Y: shape[1], Z: shape[2], Data: data}, nil
}

// Shape returns (X, Y, Z)
func (m *Mask) Shape() []int { return []int{m.X, m.Y, m.Z} }

// Spatial returns (X, Y, Z)
func (m *Mask) Spatial() [3]int { return [3]int{m.X, m.Y, m.Z} }

// Included reports whether the voxel with the given flat index is inside the mask.
func (m *Mask) Included(index int) bool {
	return !(m.Data[index] < 0.5)
}

// Flat returns the row-major flat index of (x, y, z) in a grid of the given dims.
func Flat(dims [3]int, x, y, z int) int {
	return (x*dims[1]+y)*dims[2] + z
}

// Unflat is the inverse of Flat.
func Unflat(dims [3]int, index int) (x, y, z int) {
	z = index % dims[2]
	index /= dims[2]
	y = index % dims[1]
	x = index / dims[1]
	return x, y, z
}

// Check validates that a volume and a mask can be used together.
func Check(v *Volume, m *Mask) error {
	if v == nil || m == nil {
		return pcerr.New(pcerr.ShapeMismatch, "volume.Check", "fMRI and mask are both required")
	}
	if v.Spatial() != m.Spatial() {
		return pcerr.New(pcerr.ShapeMismatch, "volume.Check", "fMRI and mask must be in the same space: fMRI %v, mask %v", v.Shape(), m.Shape())
	}

	return nil
}

func checkData(op string, shape []int, data []float64) error {
	n := 1
	for _, d := range shape {
		if d < 1 {
			return pcerr.New(pcerr.ShapeMismatch, op, "dimensions must be positive, got shape %v", shape)
		}
		n *= d
	}
	if len(data) != n {
		return pcerr.New(pcerr.ShapeMismatch, op, "shape %v needs %d samples, got %d", shape, n, len(data))
	}

	return nil
}
