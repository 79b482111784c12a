package location

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/m-mizutani/roam/pkg/model"
	"github.com/m-mizutani/roam/pkg/utils/logging"
)

// Event is pushed by a Platform. Exactly one of Fix or Permission is set.
type Event struct {
	Fix        *model.Fix
	Permission model.Permission
}

// Platform is the device positioning service
type Platform interface {
	// RequestAuthorization asks the user for permission. The answer arrives as an Event.
	RequestAuthorization(ctx context.Context)
	// StartUpdates begins continuous fix delivery. Calling it while running is a no-op.
	StartUpdates(ctx context.Context)
	// StopUpdates halts fix delivery
	StopUpdates()
	// Events is closed when the platform shuts down
	Events() <-chan Event
}

// Tracker keeps the most recent fix reported by the platform. Consumers only see
// "a fix" or "no fix yet"; denied permission is indistinguishable from not acquired.
type Tracker struct {
	platform Platform
	latest   atomic.Pointer[model.Fix]

	mu      sync.Mutex
	arrived chan struct{}
}

// New requests permission and starts updates. Call Run to consume platform events.
func New(ctx context.Context, platform Platform) *Tracker {
	t := &Tracker{
		platform: platform,
		arrived:  make(chan struct{}),
	}

	platform.RequestAuthorization(ctx)
	platform.StartUpdates(ctx)
	return t
}

// Run handles platform events until ctx is done or the event stream closes
func (t *Tracker) Run(ctx context.Context) {
	ctx = logging.Component(ctx, "tracker")
	logger := logging.From(ctx)
	events := t.platform.Events()

	for {
		select {
		case <-ctx.Done():
			t.platform.StopUpdates()
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Fix != nil {
				t.update(ev.Fix)
				continue
			}

			switch ev.Permission {
			case model.PermissionNotDetermined:
				t.platform.RequestAuthorization(ctx)
			case model.PermissionGranted:
				t.platform.StartUpdates(ctx)
			case model.PermissionDenied, model.PermissionRestricted:
				logger.Debug("location permission refused", "permission", ev.Permission)
				t.platform.StopUpdates()
			}
		}
	}
}

func (t *Tracker) update(fix *model.Fix) {
	t.latest.Store(fix)

	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.arrived:
	default:
		close(t.arrived)
	}
}

// Latest returns the newest fix, if any has been received
func (t *Tracker) Latest() (*model.Fix, bool) {
	fix := t.latest.Load()
	return fix, fix != nil
}

// WaitFix blocks until at least one fix has been received or ctx is done
func (t *Tracker) WaitFix(ctx context.Context) (*model.Fix, error) {
	select {
	case <-t.arrived:
		fix, _ := t.Latest()
		return fix, nil
	case <-ctx.Done():
		return nil, model.ErrNoLocation
	}
}
