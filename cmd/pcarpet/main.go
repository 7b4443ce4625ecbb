package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KyungWonPark/pcarpet/internal/config"
	"github.com/KyungWonPark/pcarpet/internal/dataset"
	"github.com/KyungWonPark/pcarpet/internal/io"
	"github.com/KyungWonPark/pcarpet/internal/pcerr"
	"github.com/KyungWonPark/pcarpet/internal/volume"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	fmri := flag.String("fmri", "", "4-D fMRI image (.nii or .nii.gz)")
	mask := flag.String("mask", "", "3-D mask image in the space of -fmri")
	out := flag.String("out", "", "output directory")
	tr := flag.Float64("tr", 0, "repetition time in seconds (informational; 0 reads the fMRI header)")
	tsnr := flag.Float64("tsnr", 0, "minimum voxel tSNR; negative disables the filter")
	noTSNR := flag.Bool("no-tsnr", false, "disable the tSNR filter")
	reorder := flag.Bool("reorder", true, "sort carpet rows by correlation with the global signal")
	saveCarpet := flag.Bool("save-carpet", true, "save the carpet matrix")
	ncomp := flag.Int("ncomp", 0, "number of components correlated with the carpet")
	saveScores := flag.Bool("save-scores", false, "save the whitened component scores")
	flip := flag.Bool("flip", true, "flip components whose median carpet correlation is negative")
	xlsx := flag.Bool("xlsx", false, "also write tables as .xlsx")
	workers := flag.Int("workers", 0, "worker goroutines (0 uses every core)")
	savedCarpet := flag.String("carpet", "", "fit components on a saved carpet.npy instead of images")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if err := config.LoadEnv(".env"); err != nil {
		fail(err)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fail(err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		fail(err)
	}

	// only flags given on the command line override the file and the environment
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "fmri":
			cfg.Input.FMRI = *fmri
		case "mask":
			cfg.Input.Mask = *mask
		case "carpet":
			cfg.Input.Carpet = *savedCarpet
		case "out":
			cfg.Output.Dir = *out
		case "tr":
			cfg.Input.TR = *tr
		case "tsnr":
			if *tsnr < 0 {
				cfg.Carpet.TSNR = nil
			} else {
				v := *tsnr
				cfg.Carpet.TSNR = &v
			}
		case "reorder":
			cfg.Carpet.Reorder = *reorder
		case "save-carpet":
			cfg.Carpet.Save = *saveCarpet
		case "ncomp":
			cfg.PCA.NComp = *ncomp
		case "save-scores":
			cfg.PCA.Scores = *saveScores
		case "flip":
			cfg.PCA.Flip = *flip
		case "xlsx":
			cfg.Output.XLSX = *xlsx
		case "workers":
			cfg.Workers = *workers
		}
	})
	if *noTSNR {
		cfg.Carpet.TSNR = nil
	}

	if err := cfg.Validate(); err != nil {
		flag.Usage()
		fail(err)
	}

	store, err := io.NewDirStore(cfg.Output.Dir, cfg.Output.XLSX)
	if err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := dataset.Run(ctx, cfg, volume.NiftiLoader{Workers: cfg.Workers}, store)
	if err != nil {
		stop()
		fail(err)
	}

	for _, row := range s.Result.Report {
		fmt.Printf("%s\texpl_var=%.4f\tcarpet_R_median=%.4f\n", row.PC, row.ExplVar, row.CarpetRMedian)
	}
	log.WithFields(log.Fields{"run": s.ID, "out": cfg.Output.Dir}).Info("Finished.")
}

func fail(err error) {
	entry := log.WithError(err)
	if kind := pcerr.KindOf(err); kind != "" {
		entry = entry.WithField("kind", string(kind))
	}
	entry.Error("pcarpet failed")
	os.Exit(1)
}
