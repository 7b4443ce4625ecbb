// Package dataset ties an fMRI series and its mask to the carpet and component stages.
package dataset

import (
	"github.com/KyungWonPark/pcarpet/internal/carpet"
	"github.com/KyungWonPark/pcarpet/internal/io"
	"github.com/KyungWonPark/pcarpet/internal/pca"
	"github.com/KyungWonPark/pcarpet/internal/pcerr"
	"github.com/KyungWonPark/pcarpet/internal/volume"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Loader reads a 4-D series and a 3-D mask
type Loader interface {
	Load(fmriPath, maskPath string) (*volume.Volume, *volume.Mask, volume.Geometry, error)
}

// Store persists named arrays and tables
type Store interface {
	SaveArray(name string, m *mat.Dense) error
	SaveVector(name string, v []float64) error
	SaveTable(name string, t io.Table) error
	SaveYAML(name string, v any) error
}

// Dataset is a series and a mask known to share one voxel grid.
type Dataset struct {
	Volume   *volume.Volume
	Mask     *volume.Mask
	Geometry volume.Geometry
}

// Load reads both images and validates them
func Load(loader Loader, fmriPath, maskPath string) (*Dataset, error) {
	vol, mask, geom, err := loader.Load(fmriPath, maskPath)
	if err != nil {
		return nil, err
	}

	d, err := New(vol, mask, geom)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"fmri": fmriPath, "mask": maskPath, "shape": vol.Shape()}).Info("Dataset loaded")
	return d, nil
}

// New validates an in-memory series and mask. Empty geometry dims are taken from the mask.
func New(vol *volume.Volume, mask *volume.Mask, geom volume.Geometry) (*Dataset, error) {
	const op = "dataset.New"

	if err := volume.Check(vol, mask); err != nil {
		return nil, pcerr.Wrap(pcerr.ShapeMismatch, op, err)
	}

	if geom.Dims == ([3]int{}) {
		geom.Dims = mask.Spatial()
	}
	if geom.Dims != mask.Spatial() {
		return nil, pcerr.New(pcerr.ShapeMismatch, op, "geometry dims %v do not match mask dims %v", geom.Dims, mask.Spatial())
	}

	return &Dataset{Volume: vol, Mask: mask, Geometry: geom}, nil
}

// Carpet builds the carpet of the dataset
func (d *Dataset) Carpet(opts carpet.Options) (*carpet.Carpet, error) {
	return carpet.Build(d.Volume, d.Mask, opts)
}

// Analyze fits the components of a carpet built from this dataset
func (d *Dataset) Analyze(c *carpet.Carpet, opts pca.Options) (*pca.Result, error) {
	if c != nil && c.Dims != d.Geometry.Dims {
		return nil, pcerr.New(pcerr.ShapeMismatch, "dataset.Analyze", "carpet of a %v grid does not belong to a %v dataset", c.Dims, d.Geometry.Dims)
	}
	return pca.Analyze(c, opts)
}

// VoxelTable maps every carpet row back to its flat index, grid coordinates and
// scanner coordinates in mm
func (d *Dataset) VoxelTable(c *carpet.Carpet) io.Table {
	t := io.Table{Columns: []string{"row", "index", "x", "y", "z", "x_mm", "y_mm", "z_mm"}}
	for row, index := range c.Voxels {
		x, y, z := d.Geometry.Coords(index)
		mm := d.Geometry.World(index)
		t.Append(row, index, x, y, z, mm[0], mm[1], mm[2])
	}
	return t
}
