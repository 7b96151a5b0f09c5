package statussync

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrAlreadyWatching is returned when a watch for the id is still running.
var ErrAlreadyWatching = errors.New("submission is already being watched")

// ErrNotWatching is returned by Refresh and Stop for unknown ids.
var ErrNotWatching = errors.New("submission is not being watched")

// Handle tracks one running watch.
type Handle struct {
	id      int64
	cancel  context.CancelFunc
	refresh chan struct{}
	done    chan struct{}
	result  Result
}

// ID returns the watched submission id.
func (h *Handle) ID() int64 { return h.id }

// Done is closed when the watch has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the watch finishes and returns its result.
func (h *Handle) Wait() Result {
	<-h.done
	return h.result
}

// Registry runs at most one watch per submission id.
type Registry struct {
	watcher *Watcher

	mu      sync.Mutex
	handles map[int64]*Handle
}

// NewRegistry wraps w.
func NewRegistry(w *Watcher) *Registry {
	return &Registry{watcher: w, handles: make(map[int64]*Handle)}
}

// Start begins watching id in the background. The watch ends on its own when
// the submission settles, or when ctx is cancelled or Stop is called.
func (r *Registry) Start(ctx context.Context, id int64, observe func(Observation)) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handles[id]; ok {
		return nil, ErrAlreadyWatching
	}

	watchCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		id:      id,
		cancel:  cancel,
		refresh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	r.handles[id] = h

	go func() {
		defer cancel()
		h.result = r.watcher.run(watchCtx, id, h.refresh, observe)
		r.mu.Lock()
		if r.handles[id] == h {
			delete(r.handles, id)
		}
		r.mu.Unlock()
		close(h.done)
	}()
	return h, nil
}

// Stop cancels the watch for id. No fetch is issued after Stop returns.
func (r *Registry) Stop(id int64) error {
	r.mu.Lock()
	h, ok := r.handles[id]
	r.mu.Unlock()
	if !ok {
		return ErrNotWatching
	}
	h.cancel()
	<-h.done
	return nil
}

// Refresh asks the watch for id to fetch now, outside its regular cadence.
// Repeated calls before the watch picks the first one up are coalesced.
func (r *Registry) Refresh(id int64) error {
	r.mu.Lock()
	h, ok := r.handles[id]
	r.mu.Unlock()
	if !ok {
		return ErrNotWatching
	}
	select {
	case h.refresh <- struct{}{}:
	default:
	}
	return nil
}

// Active lists the ids currently watched, ascending.
func (r *Registry) Active() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// StopAll cancels every running watch and waits for them to finish.
func (r *Registry) StopAll() {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.Unlock()
	for _, h := range handles {
		h.cancel()
		<-h.done
	}
}
