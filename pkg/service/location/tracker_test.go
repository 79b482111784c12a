package location_test

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/roam/pkg/model"
	"github.com/m-mizutani/roam/pkg/service/location"
	"github.com/m-mizutani/roam/pkg/utils/logging"
	"github.com/paulmach/orb"
)

// mockPlatform records calls and lets the test push events
type mockPlatform struct {
	events    chan location.Event
	requested chan struct{}
	started   chan struct{}
	stopped   chan struct{}
}

func newMockPlatform() *mockPlatform {
	return &mockPlatform{
		events:    make(chan location.Event),
		requested: make(chan struct{}, 8),
		started:   make(chan struct{}, 8),
		stopped:   make(chan struct{}, 8),
	}
}

func (m *mockPlatform) RequestAuthorization(ctx context.Context) { m.requested <- struct{}{} }
func (m *mockPlatform) StartUpdates(ctx context.Context)         { m.started <- struct{}{} }
func (m *mockPlatform) StopUpdates()                             { m.stopped <- struct{}{} }
func (m *mockPlatform) Events() <-chan location.Event            { return m.events }

func expectSignal(t *testing.T, ch chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("expected %s", what)
	}
}

func TestTrackerInitialRequests(t *testing.T) {
	p := newMockPlatform()
	tracker := location.New(context.Background(), p)

	expectSignal(t, p.requested, "authorization request")
	expectSignal(t, p.started, "start updates")

	_, ok := tracker.Latest()
	gt.False(t, ok)
}

func TestTrackerPermissionChanges(t *testing.T) {
	p := newMockPlatform()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker := location.New(ctx, p)
	expectSignal(t, p.requested, "authorization request")
	expectSignal(t, p.started, "start updates")
	go tracker.Run(ctx)

	p.events <- location.Event{Permission: model.PermissionNotDetermined}
	expectSignal(t, p.requested, "re-request on not determined")

	p.events <- location.Event{Permission: model.PermissionGranted}
	expectSignal(t, p.started, "start on granted")

	p.events <- location.Event{Permission: model.PermissionDenied}
	expectSignal(t, p.stopped, "stop on denied")

	p.events <- location.Event{Permission: model.PermissionRestricted}
	expectSignal(t, p.stopped, "stop on restricted")

	// refusal is silent: no fix, no error
	_, ok := tracker.Latest()
	gt.False(t, ok)
}

func TestTrackerKeepsNewestFix(t *testing.T) {
	p := newMockPlatform()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker := location.New(ctx, p)
	go tracker.Run(ctx)

	first := &model.Fix{Point: orb.Point{-122.0, 37.0}, Accuracy: 50}
	second := &model.Fix{Point: orb.Point{-122.1, 37.1}, Accuracy: 500}
	p.events <- location.Event{Fix: first}
	p.events <- location.Event{Fix: second}
	// unbuffered channel: the third send only completes after the second was handled
	p.events <- location.Event{Permission: model.PermissionGranted}

	fix, ok := tracker.Latest()
	gt.True(t, ok)
	// no accuracy filtering, the newest always wins
	gt.Equal(t, fix, second)
}

func TestTrackerWaitFix(t *testing.T) {
	p := newMockPlatform()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker := location.New(ctx, p)
	go tracker.Run(ctx)

	go func() {
		p.events <- location.Event{Fix: &model.Fix{Point: orb.Point{1, 2}}}
	}()

	fix, err := tracker.WaitFix(ctx)
	gt.NoError(t, err)
	gt.Equal(t, fix.Point, orb.Point{1, 2})
}

func TestTrackerWaitFixTimeout(t *testing.T) {
	p := newMockPlatform()
	tracker := location.New(context.Background(), p)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := tracker.WaitFix(ctx)
	gt.Error(t, err)
}

func TestTrackerWithReplay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	replay := location.NewReplay(
		[]model.Fix{{Point: orb.Point{-122.0, 37.0}, Accuracy: 5}},
		location.WithPermissions(model.PermissionNotDetermined, model.PermissionGranted),
	)
	defer replay.Close()

	tracker := location.New(ctx, replay)
	go tracker.Run(ctx)

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	fix, err := tracker.WaitFix(waitCtx)
	gt.NoError(t, err)
	gt.Equal(t, fix.Point.Lat(), 37.0)
	gt.Equal(t, fix.Point.Lon(), -122.0)
	gt.False(t, fix.Timestamp.IsZero())
}

func TestTrackerWithDeniedReplay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	replay := location.NewReplay(
		[]model.Fix{{Point: orb.Point{-122.0, 37.0}}},
		location.WithPermissions(model.PermissionDenied),
	)
	defer replay.Close()

	tracker := location.New(ctx, replay)
	go tracker.Run(ctx)

	waitCtx, waitCancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer waitCancel()
	_, err := tracker.WaitFix(waitCtx)
	gt.Error(t, err)
}

func TestTrackerStopsWhenEventsClose(t *testing.T) {
	replay := location.NewStatic(model.Fix{Point: orb.Point{0, 0}})
	tracker := location.New(context.Background(), replay)

	done := make(chan struct{})
	go func() {
		tracker.Run(context.Background())
		close(done)
	}()

	replay.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after events closed")
	}
}

// countingPlatform counts authorization requests passed to the wrapped platform
type countingPlatform struct {
	*location.Replay
	requests atomic.Int64
}

func (p *countingPlatform) RequestAuthorization(ctx context.Context) {
	p.requests.Add(1)
	p.Replay.RequestAuthorization(ctx)
}

func TestTrackerUndeterminedPermissionDoesNotLoop(t *testing.T) {
	replay := location.NewReplay(
		[]model.Fix{{Point: orb.Point{-122.0, 37.0}}},
		location.WithPermissions(model.PermissionNotDetermined),
	)
	p := &countingPlatform{Replay: replay}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	tracker := location.New(ctx, p)
	done := make(chan struct{})
	go func() {
		tracker.Run(ctx)
		close(done)
	}()
	<-done
	replay.Close()

	// the initial request plus one re-request for the undetermined answer
	gt.True(t, p.requests.Load() <= 2)
	_, ok := tracker.Latest()
	gt.False(t, ok)
}

func TestReplayReportsOnlyPermissionChanges(t *testing.T) {
	replay := location.NewReplay(nil,
		location.WithPermissions(model.PermissionNotDetermined, model.PermissionNotDetermined, model.PermissionGranted),
	)
	defer replay.Close()
	ctx := context.Background()

	next := func() (model.Permission, bool) {
		select {
		case ev := <-replay.Events():
			return ev.Permission, true
		case <-time.After(100 * time.Millisecond):
			return "", false
		}
	}

	replay.RequestAuthorization(ctx)
	perm, ok := next()
	gt.True(t, ok)
	gt.Equal(t, perm, model.PermissionNotDetermined)

	// same answer again: nothing is reported
	replay.RequestAuthorization(ctx)
	_, ok = next()
	gt.False(t, ok)

	replay.RequestAuthorization(ctx)
	perm, ok = next()
	gt.True(t, ok)
	gt.Equal(t, perm, model.PermissionGranted)
}

func TestTrackerLogsWithComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx, cancel := context.WithCancel(logging.With(context.Background(), logging.New("debug", logging.FormatJSON, buf)))
	defer cancel()

	p := newMockPlatform()
	tracker := location.New(ctx, p)
	expectSignal(t, p.requested, "authorization request")
	expectSignal(t, p.started, "start updates")
	go tracker.Run(ctx)

	p.events <- location.Event{Permission: model.PermissionDenied}
	expectSignal(t, p.stopped, "stop on denied")

	output := buf.String()
	gt.S(t, output).Contains("location permission refused")
	gt.S(t, output).Contains(`"component":"tracker"`)
}
