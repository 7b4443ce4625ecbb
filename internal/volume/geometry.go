package volume

// Geometry is the spatial metadata shared by the series and the mask.
// It is taken from the mask header and is needed to place carpet rows back in space.
type Geometry struct {
	Dims      [3]int
	PixDim    [3]float64
	TR        float64
	QFormCode int
	SFormCode int
	SRow      [3][4]float64
}

// Coords maps a flat voxel index to grid coordinates.
func (g Geometry) Coords(index int) (x, y, z int) {
	return Unflat(g.Dims, index)
}

// World maps a flat voxel index to scanner coordinates in mm.
// Without an sform the voxel sizes are used as a plain scaling.
func (g Geometry) World(index int) [3]float64 {
	x, y, z := g.Coords(index)
	ijk := [4]float64{float64(x), float64(y), float64(z), 1}

	var out [3]float64
	if g.SFormCode > 0 {
		for r := 0; r < 3; r++ {
			for c := 0; c < 4; c++ {
				out[r] += g.SRow[r][c] * ijk[c]
			}
		}
		return out
	}

	for r := 0; r < 3; r++ {
		out[r] = ijk[r] * g.PixDim[r]
	}
	return out
}
