package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/KyungWonPark/pcarpet/internal/io"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// npy2csv converts saved arrays (carpet.npy, pca_components_all.npy, ...) into tables.
func main() {
	prefix := flag.String("prefix", "col", "column name prefix; columns are <prefix>1..<prefix>n")
	transpose := flag.Bool("t", false, "write one row per column of the array")
	xlsx := flag.Bool("xlsx", false, "write .xlsx instead of .csv")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: npy2csv [-prefix PC] [-t] [-xlsx] file.npy ...")
		os.Exit(2)
	}

	for _, fileName := range flag.Args() {
		m, err := io.NpyToDense(fileName)
		if err != nil {
			log.WithError(err).Fatal("Reading npy file failed")
		}
		if *transpose {
			m = mat.DenseCopyOf(m.T())
		}
		log.WithField("file", fileName).Info("Reading npy file complete")

		_, cols := m.Dims()
		names := make([]string, cols)
		for i := range names {
			names[i] = *prefix + strconv.Itoa(i+1)
		}
		table := io.DenseTable(names, m)

		base := strings.TrimSuffix(fileName, ".npy")
		if *xlsx {
			err = io.TableToXLSX(base+".xlsx", table)
		} else {
			err = io.TableToCSV(base+".csv", table)
		}
		if err != nil {
			log.WithError(err).Fatal("Writing table failed")
		}
	}
}
