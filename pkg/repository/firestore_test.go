package repository_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/roam/pkg/model"
	"github.com/m-mizutani/roam/pkg/repository"
)

func setupFirestore(t *testing.T) *repository.Firestore {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	// each test gets its own collection so snapshots only contain its documents
	collection := "test_locations_" + model.NewMemoryID().String()
	repo, err := repository.New(context.Background(), projectID, databaseID, nil, repository.WithCollection(collection))
	gt.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

// snapshotRecorder collects snapshots delivered by WatchMemories
type snapshotRecorder struct {
	mu        sync.Mutex
	snapshots [][]*model.Memory
	notify    chan struct{}
}

func newSnapshotRecorder() *snapshotRecorder {
	return &snapshotRecorder{notify: make(chan struct{}, 64)}
}

func (r *snapshotRecorder) onChange(memories []*model.Memory) {
	r.mu.Lock()
	r.snapshots = append(r.snapshots, memories)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// waitFor blocks until a snapshot satisfies cond
func (r *snapshotRecorder) waitFor(t *testing.T, cond func([]*model.Memory) bool) []*model.Memory {
	t.Helper()
	timeout := time.After(20 * time.Second)
	for {
		r.mu.Lock()
		for i := len(r.snapshots) - 1; i >= 0; i-- {
			if cond(r.snapshots[i]) {
				found := r.snapshots[i]
				r.mu.Unlock()
				return found
			}
		}
		r.mu.Unlock()

		select {
		case <-r.notify:
		case <-timeout:
			t.Fatal("timed out waiting for snapshot")
			return nil
		}
	}
}

func findMemory(memories []*model.Memory, id model.MemoryID) *model.Memory {
	for _, m := range memories {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func TestFirestorePutAndGetMemory(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	memory := &model.Memory{
		ID:         model.NewMemoryID(),
		Name:       "Cafe",
		Latitude:   37.0,
		Longitude:  -122.0,
		CapturedAt: time.Now().Truncate(time.Microsecond),
	}
	gt.NoError(t, repo.PutMemory(ctx, memory))

	retrieved, err := repo.GetMemory(ctx, memory.ID)
	gt.NoError(t, err)
	gt.V(t, retrieved).NotNil()
	gt.Equal(t, retrieved.ID, memory.ID)
	gt.Equal(t, retrieved.Name, memory.Name)
	gt.Equal(t, retrieved.Latitude, memory.Latitude)
	gt.Equal(t, retrieved.Longitude, memory.Longitude)
	gt.Equal(t, retrieved.PhotoURL, "")
	gt.True(t, retrieved.CapturedAt.Equal(memory.CapturedAt))
}

func TestFirestoreGetMemoryNotFound(t *testing.T) {
	repo := setupFirestore(t)

	_, err := repo.GetMemory(context.Background(), model.NewMemoryID())
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.TagNotFound))
}

func TestFirestorePutMemoryInvalid(t *testing.T) {
	repo := setupFirestore(t)

	err := repo.PutMemory(context.Background(), &model.Memory{ID: "bad-id", Latitude: 1, Longitude: 1})
	gt.Error(t, err)
}

func TestFirestoreWatchMemories(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	rec := newSnapshotRecorder()
	sub, err := repo.WatchMemories(ctx, rec.onChange)
	gt.NoError(t, err)
	defer sub.Stop()

	// initial snapshot of an empty collection
	rec.waitFor(t, func(m []*model.Memory) bool { return len(m) == 0 })

	a := &model.Memory{ID: model.NewMemoryID(), Name: "A", Latitude: 10, Longitude: 20, CapturedAt: time.Now()}
	b := &model.Memory{ID: model.NewMemoryID(), Name: "B", Latitude: 30, Longitude: 40, CapturedAt: time.Now()}

	var wg sync.WaitGroup
	for _, m := range []*model.Memory{a, b} {
		wg.Add(1)
		go func(m *model.Memory) {
			defer wg.Done()
			gt.NoError(t, repo.PutMemory(ctx, m))
		}(m)
	}
	wg.Wait()

	snapshot := rec.waitFor(t, func(m []*model.Memory) bool {
		return findMemory(m, a.ID) != nil && findMemory(m, b.ID) != nil
	})
	gt.A(t, snapshot).Length(2)
	gt.Equal(t, findMemory(snapshot, a.ID).Latitude, 10.0)
	gt.Equal(t, findMemory(snapshot, b.ID).Longitude, 40.0)

	gt.NoError(t, repo.DeleteMemory(ctx, a.ID))
	snapshot = rec.waitFor(t, func(m []*model.Memory) bool { return findMemory(m, a.ID) == nil })
	gt.A(t, snapshot).Length(1)

	gt.NoError(t, repo.DeleteMemory(ctx, b.ID))
	rec.waitFor(t, func(m []*model.Memory) bool { return len(m) == 0 })
}

func TestFirestoreWatchMemoriesStop(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	rec := newSnapshotRecorder()
	sub, err := repo.WatchMemories(ctx, rec.onChange)
	gt.NoError(t, err)
	rec.waitFor(t, func(m []*model.Memory) bool { return true })

	sub.Stop()
	// second stop is a no-op
	sub.Stop()

	rec.mu.Lock()
	count := len(rec.snapshots)
	rec.mu.Unlock()

	gt.NoError(t, repo.PutMemory(ctx, &model.Memory{ID: model.NewMemoryID(), Latitude: 1, Longitude: 1, CapturedAt: time.Now()}))
	time.Sleep(2 * time.Second)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	gt.Equal(t, len(rec.snapshots), count)
}
