package dataset

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/KyungWonPark/pcarpet/internal/carpet"
	"github.com/KyungWonPark/pcarpet/internal/config"
	"github.com/KyungWonPark/pcarpet/internal/io"
	"github.com/KyungWonPark/pcarpet/internal/pca"
	"github.com/KyungWonPark/pcarpet/internal/pcerr"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Artifact names
const (
	CarpetArtifact     = "carpet"
	VoxelsArtifact     = "carpet_voxels"
	ComponentsArtifact = "pca_components_all"
	ExplVarArtifact    = "pca_explained_variance_all"
	ScoresArtifact     = "pca_scores_all"
	ReportArtifact     = "pca_carpet_correlation_report"
	ManifestArtifact   = "manifest"
	workingTablePrefix = "pca_components_"
)

// Session holds the outputs of every stage of one run
type Session struct {
	ID       string
	Started  time.Time
	Finished time.Time
	// TR is the repetition time in seconds; it does not enter any computation
	TR float64

	// Dataset is nil when the run started from a saved carpet
	Dataset *Dataset
	Carpet  *carpet.Carpet
	Result  *pca.Result

	// Artifacts lists what was saved, in order
	Artifacts []string
}

// Manifest is the summary saved next to the artifacts
type Manifest struct {
	Run        string         `yaml:"run"`
	Started    time.Time      `yaml:"started"`
	Finished   time.Time      `yaml:"finished"`
	TR         float64        `yaml:"tr"`
	Voxels     int            `yaml:"voxels"`
	Timepoints int            `yaml:"timepoints"`
	Flipped    []string       `yaml:"flipped,omitempty"`
	Config     *config.Config `yaml:"config"`
	Artifacts  []string       `yaml:"artifacts"`
}

// Run loads the inputs named by cfg (or a saved carpet), builds the carpet, fits the
// components and saves the artifacts to store. ctx is checked between stages.
func Run(ctx context.Context, cfg *config.Config, loader Loader, store Store) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{ID: uuid.NewString(), Started: time.Now(), TR: cfg.Input.TR}
	logger := log.WithField("run", s.ID)

	if cfg.Input.Carpet != "" {
		c, err := loadCarpet(cfg.Input.Carpet)
		if err != nil {
			return nil, err
		}
		s.Carpet = c
		logger.WithField("carpet", cfg.Input.Carpet).Info("Saved carpet loaded")
	} else {
		d, err := Load(loader, cfg.Input.FMRI, cfg.Input.Mask)
		if err != nil {
			return nil, err
		}
		s.Dataset = d
		if s.TR == 0 {
			s.TR = d.Geometry.TR
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c, err := d.Carpet(cfg.CarpetOptions())
		if err != nil {
			return nil, err
		}
		s.Carpet = c
		logger.WithField("voxels", c.Rows()).Info("Carpet built")

		if cfg.Carpet.Save {
			if err := s.save(CarpetArtifact, func() error { return store.SaveArray(CarpetArtifact, c.Matrix) }); err != nil {
				return nil, err
			}
			if err := s.save(VoxelsArtifact, func() error { return store.SaveTable(VoxelsArtifact, d.VoxelTable(c)) }); err != nil {
				return nil, err
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := pca.Analyze(s.Carpet, cfg.PCAOptions())
	if err != nil {
		return nil, err
	}
	s.Result = res

	if err := s.saveResult(store, res, cfg.PCA.Scores); err != nil {
		return nil, err
	}

	s.Finished = time.Now()
	if err := s.save(ManifestArtifact, func() error { return store.SaveYAML(ManifestArtifact, s.manifest(cfg)) }); err != nil {
		return nil, err
	}

	logger.WithField("elapsed", s.Finished.Sub(s.Started)).Info("Run finished")
	return s, nil
}

func (s *Session) save(name string, write func() error) error {
	if err := write(); err != nil {
		log.WithField("artifact", name).Error("Failed to save")
		return err
	}
	s.Artifacts = append(s.Artifacts, name)
	return nil
}

func (s *Session) saveResult(store Store, res *pca.Result, scores bool) error {
	if err := s.save(ComponentsArtifact, func() error { return store.SaveArray(ComponentsArtifact, res.Components) }); err != nil {
		return err
	}
	if err := s.save(ExplVarArtifact, func() error { return store.SaveVector(ExplVarArtifact, res.ExplVar) }); err != nil {
		return err
	}
	if scores && res.Scores != nil {
		if err := s.save(ScoresArtifact, func() error { return store.SaveArray(ScoresArtifact, res.Scores) }); err != nil {
			return err
		}
	}

	name := WorkingTable(res.NComp())
	if err := s.save(name, func() error { return store.SaveTable(name, ComponentsTable(res)) }); err != nil {
		return err
	}

	return s.save(ReportArtifact, func() error { return store.SaveTable(ReportArtifact, ReportTable(res)) })
}

func (s *Session) manifest(cfg *config.Config) Manifest {
	m := Manifest{
		Run:        s.ID,
		Started:    s.Started,
		Finished:   s.Finished,
		TR:         s.TR,
		Voxels:     s.Carpet.Rows(),
		Timepoints: s.Carpet.Timepoints(),
		Config:     cfg,
		Artifacts:  append([]string(nil), s.Artifacts...),
	}
	for i, f := range s.Result.Flipped {
		if f {
			m.Flipped = append(m.Flipped, s.Result.Report[i].PC)
		}
	}
	return m
}

// WorkingTable names the table of the first n components
func WorkingTable(n int) string {
	return workingTablePrefix + strconv.Itoa(n)
}

// ComponentsTable has one row per timepoint and one PC column per working component,
// with the sign given by the decomposition.
func ComponentsTable(res *pca.Result) io.Table {
	n := res.NComp()
	_, timepoints := res.Components.Dims()
	first := res.Components.Slice(0, n, 0, timepoints)
	return io.DenseTable(res.Labels(), mat.DenseCopyOf(first.T()))
}

// ReportTable lists explained variance and median carpet correlation per working component
func ReportTable(res *pca.Result) io.Table {
	t := io.Table{Columns: []string{"PC", "expl_var", "carpet_R_median"}}
	for _, row := range res.Report {
		t.Append(row.PC, row.ExplVar, row.CarpetRMedian)
	}
	return t
}

func loadCarpet(path string) (*carpet.Carpet, error) {
	const op = "dataset.loadCarpet"

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, pcerr.New(pcerr.FileNotFound, op, "%s does not exist", path)
	}
	m, err := io.NpyToDense(path)
	if err != nil {
		return nil, pcerr.Wrap(pcerr.UnreadableFormat, op, err)
	}
	return carpet.FromMatrix(m), nil
}
