// Package watch shares a single piece of state among multiple parties, and
// notifies interested parties as the state changes.
package watch

import "sync"

// Value holds a value of type T that can be read, replaced, and watched.
//
// The zero value of a Value is valid and holds the zero value of T.
type Value[T any] struct {
	mu       sync.RWMutex
	value    T
	watchers map[*watcher[T]]struct{}
}

// NewValue creates a Value initially holding x.
func NewValue[T any](x T) *Value[T] {
	return &Value[T]{value: x}
}

// Get returns the current value held by v.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Set replaces the value held by v with x, and schedules a notification to
// every active watch.
func (v *Value[T]) Set(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.value = x
	for w := range v.watchers {
		w.offer(x)
	}
}

// Watch starts a watch on v that calls handle with the value of v at the time
// of the call, then with each subsequent value.
//
// At most one call to handle runs at a time for a given watch. When v changes
// while a call is in progress, only the latest value is delivered once that
// call returns; intermediate values are dropped.
func (v *Value[T]) Watch(handle func(x T)) Watch {
	w := &watcher[T]{
		value:  v,
		handle: handle,
		next:   make(chan T, 1),
		done:   make(chan struct{}),
	}

	v.mu.Lock()
	w.offer(v.value)
	if v.watchers == nil {
		v.watchers = make(map[*watcher[T]]struct{})
	}
	v.watchers[w] = struct{}{}
	v.mu.Unlock()

	go w.run()
	return w
}

// Watch is an active watch on a Value.
type Watch interface {
	// Cancel stops future notifications. A call to the handler that is already
	// in progress is allowed to finish. Cancel may be called more than once, and
	// from within the handler itself.
	Cancel()

	// Wait blocks until the watch is canceled and no handler call is in
	// progress.
	Wait()
}

type watcher[T any] struct {
	value  *Value[T]
	handle func(T)

	next chan T // buffered, size 1
	done chan struct{}

	cancelOnce sync.Once
}

func (w *watcher[T]) run() {
	defer close(w.done)
	for x := range w.next {
		w.dispatch(x)
	}
}

// dispatch runs the handler on its own goroutine so that a runtime.Goexit in
// the handler can't end the run loop.
func (w *watcher[T]) dispatch(x T) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.handle(x)
	}()
	wg.Wait()
}

// offer must be called with the value's lock held.
func (w *watcher[T]) offer(x T) {
	select {
	case <-w.next:
	default:
	}
	w.next <- x
}

func (w *watcher[T]) Cancel() {
	w.cancelOnce.Do(func() {
		w.value.mu.Lock()
		defer w.value.mu.Unlock()

		delete(w.value.watchers, w)
		select {
		case <-w.next:
		default:
		}
		close(w.next)
	})
}

func (w *watcher[T]) Wait() {
	<-w.done
}
