package fn

import "sync"

// ParMapResult applies f with bounded concurrency, returning Results in order.
// workers <= 0 runs every item at once.
func ParMapResult[T, U any](items []T, workers int, f func(T) Result[U]) []Result[U] {
	out := make([]Result[U], len(items))
	var wg sync.WaitGroup

	if workers <= 0 {
		workers = len(items)
	}
	if workers == 0 {
		return out
	}

	sem := make(chan struct{}, workers)
	for i, v := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v T) {
			defer func() { <-sem; wg.Done() }()
			out[i] = f(v)
		}(i, v)
	}
	wg.Wait()
	return out
}

// ParStream applies f with at most workers calls in flight and delivers each
// output as soon as it is ready, so the channel yields in completion order.
// The channel is closed after every call has returned.
func ParStream[T, U any](items []T, workers int, f func(T) U) <-chan U {
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}
	out := make(chan U, workers)
	if len(items) == 0 {
		close(out)
		return out
	}

	go func() {
		var wg sync.WaitGroup
		sem := make(chan struct{}, workers)
		for _, v := range items {
			sem <- struct{}{}
			wg.Add(1)
			go func(v T) {
				defer func() { <-sem; wg.Done() }()
				out <- f(v)
			}(v)
		}
		wg.Wait()
		close(out)
	}()
	return out
}
