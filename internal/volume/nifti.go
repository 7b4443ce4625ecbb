package volume

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"math/bits"
	"os"
	"path/filepath"

	"github.com/KyungWonPark/nifti"
	"github.com/KyungWonPark/pcarpet/internal/pcerr"
	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const headerSize = 348

// magic of a single-file image, "n+1\0"
var singleFileMagic = [4]byte{110, 43, 49, 0}

// NIfTI-1 datatype codes
const (
	dtUint8   = 2
	dtInt16   = 4
	dtInt32   = 8
	dtFloat32 = 16
	dtFloat64 = 64
	dtInt8    = 256
	dtUint16  = 512
	dtUint32  = 768
)

// bitPix lists the datatypes the loader reads and their sample width
var bitPix = map[int16]int16{
	dtUint8:   8,
	dtInt8:    8,
	dtInt16:   16,
	dtUint16:  16,
	dtInt32:   32,
	dtUint32:  32,
	dtFloat32: 32,
	dtFloat64: 64,
}

// sampleDecoder returns the stored number behind a value from nifti.GetAt.
// The library reads samples by width only: 16 bits as uint16, 32 bits as float32 bits.
func sampleDecoder(datatype int16) func(float32) float64 {
	switch datatype {
	case dtInt8:
		return func(v float32) float64 { return float64(int8(uint8(v))) }
	case dtInt16:
		return func(v float32) float64 { return float64(int16(uint16(v))) }
	case dtInt32:
		return func(v float32) float64 { return float64(int32(math.Float32bits(v))) }
	case dtUint32:
		return func(v float32) float64 { return float64(math.Float32bits(v)) }
	default:
		return func(v float32) float64 { return float64(v) }
	}
}

// scaling returns scl_slope and scl_inter. A zero or non-finite slope means unscaled data.
func scaling(h *nifti.Nifti1Header) (slope, inter float64) {
	slope, inter = float64(h.SclSlope), float64(h.SclInter)
	if slope == 0 || math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 1, 0
	}
	if math.IsNaN(inter) || math.IsInf(inter, 0) {
		inter = 0
	}
	return slope, inter
}

func headerShape(h *nifti.Nifti1Header) []int {
	shape := make([]int, h.Dim[0])
	for i := range shape {
		shape[i] = int(h.Dim[i+1])
	}
	return shape
}

func headerGeometry(h *nifti.Nifti1Header) Geometry {
	g := Geometry{
		QFormCode: int(h.QformCode),
		SFormCode: int(h.SformCode),
		TR:        float64(h.Pixdim[4]),
	}
	for i := 0; i < 3; i++ {
		g.Dims[i] = int(h.Dim[i+1])
		g.PixDim[i] = float64(h.Pixdim[i+1])
	}
	for c := 0; c < 4; c++ {
		g.SRow[0][c] = float64(h.SrowX[c])
		g.SRow[1][c] = float64(h.SrowY[c])
		g.SRow[2][c] = float64(h.SrowZ[c])
	}
	return g
}

// checkHeader rejects headers the nifti library would misread.
func checkHeader(h *nifti.Nifti1Header) error {
	if h.SizeofHdr != headerSize {
		if bits.ReverseBytes32(uint32(h.SizeofHdr)) == headerSize {
			return errors.New("big-endian images are not supported")
		}
		return fmt.Errorf("invalid header size %d", h.SizeofHdr)
	}
	if h.Magic != singleFileMagic {
		return errors.New("invalid file magic, header and data must be in one .nii file")
	}
	if h.Dim[0] < 1 || h.Dim[0] > 7 {
		return fmt.Errorf("dim[0] = %d is not in [1, 7]", h.Dim[0])
	}
	for i := 1; i <= int(h.Dim[0]); i++ {
		if h.Dim[i] < 1 {
			return fmt.Errorf("dim[%d] = %d is not positive", i, h.Dim[i])
		}
	}
	width, ok := bitPix[h.Datatype]
	if !ok {
		return fmt.Errorf("datatype %d is not supported", h.Datatype)
	}
	if h.Bitpix != width {
		return fmt.Errorf("bitpix %d does not match datatype %d", h.Bitpix, h.Datatype)
	}
	if h.VoxOffset < headerSize {
		return fmt.Errorf("vox_offset %g is inside the header", h.VoxOffset)
	}
	return nil
}

// readHeader reads and validates the header of a .nii or .nii.gz file.
func readHeader(path string) (nifti.Nifti1Header, error) {
	const op = "volume.readHeader"
	var h nifti.Nifti1Header

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return h, pcerr.New(pcerr.FileNotFound, op, "could not find %s", path)
	}
	if err != nil {
		return h, pcerr.Wrap(pcerr.UnreadableFormat, op, err)
	}
	defer f.Close()

	var r io.Reader = f
	if filepath.Ext(path) == ".gz" {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return h, pcerr.New(pcerr.UnreadableFormat, op, "%s: %v", path, err)
		}
		defer gz.Close()
		r = gz
	}

	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return h, pcerr.New(pcerr.UnreadableFormat, op, "%s: short header: %v", path, err)
	}
	if err := checkHeader(&h); err != nil {
		return h, pcerr.New(pcerr.UnreadableFormat, op, "could not load %s, make sure it is a valid NIfTI-1 file: %v", path, err)
	}

	log.WithFields(log.Fields{
		"file":     path,
		"shape":    headerShape(&h),
		"datatype": h.Datatype,
	}).Debug("NIfTI header read")

	return h, nil
}

// loadImage turns a panic of the nifti library into an error
func loadImage(img *nifti.Nifti1Image, path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pcerr.New(pcerr.UnreadableFormat, "volume.loadImage", "%s: %v", path, r)
		}
	}()
	img.LoadImage(path, true)
	return nil
}

// NiftiLoader reads the series and the mask from NIfTI-1 files.
type NiftiLoader struct {
	// Workers bounds the number of x-slabs read at once; < 1 reads them all at once.
	Workers int
}

// Load reads the 4-D series and the 3-D mask. The geometry comes from the mask header,
// the repetition time from the series header.
func (l NiftiLoader) Load(fmriPath, maskPath string) (*Volume, *Mask, Geometry, error) {
	fh, fdata, err := l.read(fmriPath)
	if err != nil {
		return nil, nil, Geometry{}, err
	}
	log.WithField("shape", headerShape(&fh)).Info("fMRI data read")

	mh, mdata, err := l.read(maskPath)
	if err != nil {
		return nil, nil, Geometry{}, err
	}
	log.WithField("shape", headerShape(&mh)).Info("Mask read")

	vol, err := New(headerShape(&fh), fdata)
	if err != nil {
		return nil, nil, Geometry{}, err
	}
	mask, err := NewMask(headerShape(&mh), mdata)
	if err != nil {
		return nil, nil, Geometry{}, err
	}

	geom := headerGeometry(&mh)
	geom.TR = float64(fh.Pixdim[4])

	return vol, mask, geom, nil
}

// read returns the header and the scaled samples of path in row-major order, last axis fastest.
func (l NiftiLoader) read(path string) (nifti.Nifti1Header, []float64, error) {
	h, err := readHeader(path)
	if err != nil {
		return h, nil, err
	}

	shape := headerShape(&h)
	dims := [4]int{1, 1, 1, 1}
	for i := 0; i < len(shape) && i < 4; i++ {
		dims[i] = shape[i]
	}
	for i := 4; i < len(shape); i++ {
		if shape[i] > 1 {
			return h, nil, pcerr.New(pcerr.UnreadableFormat, "volume.read", "%s: images with more than 4 dimensions are not supported, got %v", path, shape)
		}
	}
	nx, ny, nz, nt := dims[0], dims[1], dims[2], dims[3]

	var img nifti.Nifti1Image
	if err := loadImage(&img, path); err != nil {
		return h, nil, err
	}

	decode := sampleDecoder(h.Datatype)
	slope, inter := scaling(&h)
	data := make([]float64, nx*ny*nz*nt)

	var g errgroup.Group
	if l.Workers > 0 {
		g.SetLimit(l.Workers)
	}

	for x := 0; x < nx; x++ {
		x := x
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = pcerr.New(pcerr.UnreadableFormat, "volume.read", "%s: reading slab x=%d: %v", path, x, r)
				}
			}()

			for y := 0; y < ny; y++ {
				for z := 0; z < nz; z++ {
					base := ((x*ny+y)*nz + z) * nt
					for t := 0; t < nt; t++ {
						v := decode(img.GetAt(uint32(x), uint32(y), uint32(z), uint32(t)))
						data[base+t] = v*slope + inter
					}
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return h, nil, err
	}

	return h, data, nil
}
