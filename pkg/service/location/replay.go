package location

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/roam/pkg/model"
)

// Replay is a Platform that answers authorization requests from a fixed script and
// plays back a list of fixes. It stands in for a device positioning service.
type Replay struct {
	fixes       []model.Fix
	interval    time.Duration
	loop        bool
	permissions []model.Permission

	events chan Event

	mu       sync.Mutex
	asked    int
	granted  bool
	reported model.Permission
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	closed   bool
	closeCtx context.Context
	closeFn  context.CancelFunc
}

var _ Platform = (*Replay)(nil)

// ReplayOption is a functional option for Replay
type ReplayOption func(*Replay)

// WithInterval sets the delay between fixes
func WithInterval(d time.Duration) ReplayOption {
	return func(r *Replay) {
		r.interval = d
	}
}

// WithLoop replays the fixes forever
func WithLoop(loop bool) ReplayOption {
	return func(r *Replay) {
		r.loop = loop
	}
}

// WithPermissions sets the answers to successive authorization requests. The last
// answer repeats. An answer equal to the previous one produces no event.
func WithPermissions(perms ...model.Permission) ReplayOption {
	return func(r *Replay) {
		r.permissions = perms
	}
}

// NewReplay creates a Replay platform. Permission is granted unless WithPermissions says otherwise.
func NewReplay(fixes []model.Fix, opts ...ReplayOption) *Replay {
	r := &Replay{
		fixes:       fixes,
		interval:    time.Second,
		permissions: []model.Permission{model.PermissionGranted},
		events:      make(chan Event, 16),
	}
	r.closeCtx, r.closeFn = context.WithCancel(context.Background())

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewStatic creates a platform that reports a single fix
func NewStatic(fix model.Fix) *Replay {
	return NewReplay([]model.Fix{fix})
}

func (r *Replay) Events() <-chan Event { return r.events }

func (r *Replay) RequestAuthorization(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || len(r.permissions) == 0 {
		return
	}

	idx := min(r.asked, len(r.permissions)-1)
	perm := r.permissions[idx]
	r.asked++
	r.granted = perm == model.PermissionGranted

	// only a change of status is reported
	if perm == r.reported {
		return
	}
	r.reported = perm

	// answered asynchronously, as a platform would
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.send(ctx, Event{Permission: perm})
	}()
}

func (r *Replay) StartUpdates(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !r.granted || r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.play(ctx)
	}()
}

func (r *Replay) StopUpdates() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Close stops playback and closes the event stream
func (r *Replay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.closeFn()
	r.mu.Unlock()

	r.wg.Wait()
	close(r.events)
}

func (r *Replay) play(ctx context.Context) {
	for {
		for i := range r.fixes {
			fix := r.fixes[i]
			if fix.Timestamp.IsZero() {
				fix.Timestamp = time.Now()
			}
			if !r.send(ctx, Event{Fix: &fix}) {
				return
			}

			if i == len(r.fixes)-1 && !r.loop {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.interval):
			}
		}
		if len(r.fixes) == 0 {
			return
		}
	}
}

func (r *Replay) send(ctx context.Context, ev Event) bool {
	select {
	case r.events <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-r.closeCtx.Done():
		return false
	}
}
