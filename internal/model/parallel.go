package model

import (
	"runtime"
	"sync"
)

// forEachSample calls fn for every index in [0, n), running at most
// GOMAXPROCS calls at once. fn must only write to memory owned by its index.
func forEachSample(n int, fn func(i int)) {
	workers := runtime.GOMAXPROCS(0)
	if workers <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i := 0; i < n; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()
			fn(i)
		}()
	}
	wg.Wait()
}
