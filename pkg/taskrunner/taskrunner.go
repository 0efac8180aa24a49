package taskrunner

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

var errMatched = errors.New("taskrunner: match found")

// Options controls pool size and progress notification.
type Options struct {
	// Workers caps concurrent work. Zero or negative uses runtime.NumCPU().
	Workers int
	// OnComplete is called after each finished item with the number of finished items and the total.
	OnComplete func(completed int, total int)
}

// Outcome is the result of one input. Skipped is true when the input never ran because the
// pool was cancelled first.
type Outcome[O any] struct {
	Index   int
	Value   O
	Err     error
	Skipped bool
}

// WorkFunc processes a single input.
type WorkFunc[I any, O any] func(executionContext context.Context, item I) (O, error)

// ResolveWorkers returns the pool size for itemCount inputs.
func ResolveWorkers(requested int, itemCount int) int {
	workers := requested
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > itemCount {
		workers = itemCount
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// Run processes every item and returns outcomes in input order. Work errors are recorded
// per item and never cancel siblings; only cancellation of executionContext stops the pool.
func Run[I any, O any](executionContext context.Context, items []I, options Options, work WorkFunc[I, O]) []Outcome[O] {
	outcomes, _, _ := execute(executionContext, items, options, work, nil)
	return outcomes
}

// FirstMatch processes items until one outcome satisfies match, then cancels the remaining
// work. It returns the matching outcome and true, or a zero outcome and false when nothing matched.
func FirstMatch[I any, O any](executionContext context.Context, items []I, options Options, work WorkFunc[I, O], match func(Outcome[O]) bool) (Outcome[O], bool) {
	_, matched, found := execute(executionContext, items, options, work, match)
	return matched, found
}

func execute[I any, O any](executionContext context.Context, items []I, options Options, work WorkFunc[I, O], match func(Outcome[O]) bool) ([]Outcome[O], Outcome[O], bool) {
	outcomes := make([]Outcome[O], len(items))
	for index := range outcomes {
		outcomes[index] = Outcome[O]{Index: index, Skipped: true}
	}
	if len(items) == 0 {
		return outcomes, Outcome[O]{}, false
	}
	if executionContext == nil {
		executionContext = context.Background()
	}

	group, groupContext := errgroup.WithContext(executionContext)
	group.SetLimit(ResolveWorkers(options.Workers, len(items)))

	var completed atomic.Int64
	var matchMutex sync.Mutex
	var matched Outcome[O]
	found := false

	total := len(items)
	for index, item := range items {
		if groupContext.Err() != nil {
			break
		}
		group.Go(func() error {
			if groupContext.Err() != nil {
				return nil
			}
			value, workError := work(groupContext, item)
			if workError != nil && groupContext.Err() != nil {
				return nil
			}
			outcome := Outcome[O]{Index: index, Value: value, Err: workError}
			outcomes[index] = outcome

			finished := int(completed.Add(1))
			if options.OnComplete != nil {
				options.OnComplete(finished, total)
			}

			if match != nil && match(outcome) {
				matchMutex.Lock()
				defer matchMutex.Unlock()
				if !found {
					matched = outcome
					found = true
				}
				return errMatched
			}
			return nil
		})
	}
	_ = group.Wait()

	return outcomes, matched, found
}
