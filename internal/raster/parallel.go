package raster

import (
	"runtime"
	"sync"
)

// Workers caps the number of goroutines ParallelRows uses. Zero means
// runtime.NumCPU(). Results never depend on this value.
var Workers = 0

// ParallelRows splits [0, height) into horizontal stripes and runs fn on each
// stripe concurrently. fn must only write to rows inside its stripe.
func ParallelRows(height int, fn func(y0, y1 int)) {
	numWorkers := Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > height {
		numWorkers = height
	}
	if numWorkers <= 1 {
		if height > 0 {
			fn(0, height)
		}
		return
	}

	rowsPerWorker := (height + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		startY := w * rowsPerWorker
		if startY >= height {
			break
		}
		endY := min(startY+rowsPerWorker, height)

		wg.Add(1)
		go func(yStart, yEnd int) {
			defer wg.Done()
			fn(yStart, yEnd)
		}(startY, endY)
	}
	wg.Wait()
}
