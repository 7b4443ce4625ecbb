package calc

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func getStat(timeSeriesMat *mat.Dense, stats []Statistic) func(int) {
	return func(index int) {
		mean, std := stat.PopMeanStdDev(timeSeriesMat.RawRowView(index), nil)
		stats[index] = Statistic{Mean: mean, Std: std}
	}
}

// RowStats returns the mean and population standard deviation of every row
func (p *PipeLine) RowStats(timeSeriesMat *mat.Dense) []Statistic {
	rows, _ := timeSeriesMat.Dims()
	stats := make([]Statistic, rows)

	p.forEachRow(rows, getStat(timeSeriesMat, stats))

	return stats
}

// QualityMap returns mean / (std + Epsilon) for every row statistic (temporal SNR)
func QualityMap(stats []Statistic) []float64 {
	tsnr := make([]float64, len(stats))
	for i, s := range stats {
		tsnr[i] = s.Mean / (s.Std + Epsilon)
	}

	return tsnr
}
