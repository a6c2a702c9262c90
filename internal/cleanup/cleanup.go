package cleanup

import (
	"errors"
	"fmt"
	"sync"
)

type hook struct {
	name string
	fn   func() error
}

var (
	mu    sync.Mutex
	hooks []hook
)

// Register queues fn to run when the command exits, e.g. closing the log
// file or the cache database. Hooks run in LIFO order.
func Register(name string, fn func() error) {
	if fn == nil {
		return
	}
	mu.Lock()
	hooks = append(hooks, hook{name: name, fn: fn})
	mu.Unlock()
}

// Pending reports how many hooks are queued.
func Pending() int {
	mu.Lock()
	defer mu.Unlock()
	return len(hooks)
}

// RunAll runs and clears every hook. All hooks run even when some fail.
func RunAll() error {
	mu.Lock()
	local := hooks
	hooks = nil
	mu.Unlock()

	var errs []error
	for i := len(local) - 1; i >= 0; i-- {
		if err := local[i].fn(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", local[i].name, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("cleanup failed: %w", errors.Join(errs...))
}
