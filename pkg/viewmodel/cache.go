package viewmodel

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/m-mizutani/roam/pkg/model"
	"github.com/m-mizutani/roam/pkg/utils/logging"
	"github.com/paulmach/orb"
)

// Listener is called from the writer goroutine after every snapshot change
type Listener func(memories []*model.Memory)

// Cache holds the last full snapshot of all memories. Snapshots are replaced wholesale,
// never patched, and only the goroutine running Run stores them.
type Cache struct {
	updates chan []*model.Memory
	current atomic.Pointer[[]*model.Memory]

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// New creates an empty Cache. Call Run to start applying snapshots.
func New() *Cache {
	c := &Cache{
		updates:   make(chan []*model.Memory, 1),
		listeners: map[int]Listener{},
	}
	empty := []*model.Memory{}
	c.current.Store(&empty)
	return c
}

// Replace hands a full snapshot to the writer goroutine. It never blocks; a pending
// snapshot that has not been applied yet is superseded.
func (c *Cache) Replace(memories []*model.Memory) {
	snapshot := make([]*model.Memory, len(memories))
	copy(snapshot, memories)

	for {
		select {
		case c.updates <- snapshot:
			return
		default:
			select {
			case <-c.updates:
			default:
			}
		}
	}
}

// Run applies snapshots and notifies listeners until ctx is done
func (c *Cache) Run(ctx context.Context) {
	logger := logging.From(logging.Component(ctx, "viewmodel"))

	for {
		select {
		case <-ctx.Done():
			return
		case snapshot := <-c.updates:
			c.current.Store(&snapshot)
			logger.Debug("view model updated", "count", len(snapshot))

			for _, fn := range c.snapshotListeners() {
				fn(snapshot)
			}
		}
	}
}

func (c *Cache) snapshotListeners() []Listener {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := make([]Listener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		list = append(list, fn)
	}
	return list
}

// Memories returns the current snapshot. The slice must not be modified.
func (c *Cache) Memories() []*model.Memory {
	return *c.current.Load()
}

// OnChange registers a listener and returns a function that removes it
func (c *Cache) OnChange(fn Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Region returns the bounding box of all memories, or false when there are none
func (c *Cache) Region() (orb.Bound, bool) {
	memories := c.Memories()
	if len(memories) == 0 {
		return orb.Bound{}, false
	}

	points := make(orb.MultiPoint, 0, len(memories))
	for _, m := range memories {
		points = append(points, m.Point())
	}
	return points.Bound(), true
}
