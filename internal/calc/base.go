package calc

import (
	"runtime"
	"sync"
)

// Epsilon is added to denominators that can be zero.
const Epsilon = 1e-9

// PipeLine represents a row-parallel compute pipeline
type PipeLine struct {
	numWorker int
}

// Init returns a compute PipeLine. A non-positive worker count means one worker per CPU.
func Init(workers int) *PipeLine {
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	return &PipeLine{numWorker: workers}
}

// Workers returns the number of goroutines a call fans out to
func (p *PipeLine) Workers() int {
	return p.numWorker
}

func rowWorker(job func(index int), order <-chan int, wg *sync.WaitGroup) {
	for {
		index, ok := <-order
		if ok {
			job(index)
			wg.Done()
		} else {
			break
		}
	}

	return
}

// forEachRow runs job for every index in [0, rows) and returns when all are done.
// Jobs must only write to their own row of any shared output.
func (p *PipeLine) forEachRow(rows int, job func(index int)) {
	order := make(chan int, p.numWorker)
	var wg sync.WaitGroup

	wg.Add(rows)

	for i := 0; i < p.numWorker; i++ {
		go rowWorker(job, order, &wg)
	}

	for i := 0; i < rows; i++ {
		order <- i
	}

	wg.Wait()
	close(order)
	return
}

/*
	Workflow:

	RowStats -> QualityMap -> ZScoring -> Pearson2D -> ColumnMedians
*/

// Statistic holds the population mean and standard deviation of one row
type Statistic struct {
	Mean float64
	Std  float64
}
