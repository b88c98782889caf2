package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/sentinel"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes int32
	Errors    int32
	Conflicts int32
	NotFounds int32
	Rejected  int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.Conflicts + r.NotFounds + r.Rejected
}

// RunConcurrent executes fn in parallel goroutines released at the same instant
// and buckets each result. Conflicts cover both the store sentinel and the
// domain conflict code; Rejected counts failed verifications.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		res   [5]atomic.Int32
	)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			res[classify(fn(idx))].Add(1)
		}(i)
	}

	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes: res[0].Load(),
		Errors:    res[1].Load(),
		Conflicts: res[2].Load(),
		NotFounds: res[3].Load(),
		Rejected:  res[4].Load(),
	}
}

func classify(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, sentinel.ErrConflict), dErrors.HasCode(err, dErrors.CodeConflict):
		return 2
	case errors.Is(err, sentinel.ErrNotFound), dErrors.HasCode(err, dErrors.CodeNotFound):
		return 3
	case dErrors.HasCode(err, dErrors.CodeVerificationFailed):
		return 4
	default:
		return 1
	}
}
