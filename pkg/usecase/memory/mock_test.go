package memory_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/roam/pkg/interfaces"
	"github.com/m-mizutani/roam/pkg/model"
	"github.com/paulmach/orb"
)

// mockRepository keeps memories in a map and pushes the full set to every watcher on
// each change, like a collection listener does.
type mockRepository struct {
	mu       sync.Mutex
	memories map[model.MemoryID]*model.Memory
	watchers map[int]interfaces.OnMemories
	nextID   int

	putErr    error
	deleteErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		memories: map[model.MemoryID]*model.Memory{},
		watchers: map[int]interfaces.OnMemories{},
	}
}

func (r *mockRepository) PutMemory(ctx context.Context, memory *model.Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.putErr != nil {
		return r.putErr
	}
	if err := memory.Validate(); err != nil {
		return err
	}
	copied := *memory
	r.memories[memory.ID] = &copied
	r.notify()
	return nil
}

func (r *mockRepository) GetMemory(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memories[id]
	if !ok {
		return nil, goerr.New("memory not found", goerr.V("id", id), goerr.T(model.TagNotFound))
	}
	copied := *m
	return &copied, nil
}

func (r *mockRepository) DeleteMemory(ctx context.Context, id model.MemoryID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.memories, id)
	r.notify()
	return nil
}

func (r *mockRepository) WatchMemories(ctx context.Context, onChange interfaces.OnMemories) (interfaces.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.watchers[id] = onChange
	onChange(r.snapshot())
	return &mockWatch{repo: r, id: id}, nil
}

func (r *mockRepository) watcherCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.watchers)
}

// notify must be called with mu held
func (r *mockRepository) notify() {
	for _, fn := range r.watchers {
		fn(r.snapshot())
	}
}

func (r *mockRepository) snapshot() []*model.Memory {
	list := make([]*model.Memory, 0, len(r.memories))
	for _, m := range r.memories {
		copied := *m
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

type mockWatch struct {
	repo *mockRepository
	id   int
}

func (w *mockWatch) Stop() {
	w.repo.mu.Lock()
	defer w.repo.mu.Unlock()
	delete(w.repo.watchers, w.id)
}

type mockBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	deleted []string

	putErr    error
	urlErr    error
	deleteErr error
	baseURL   string
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{
		objects: map[string][]byte{},
		types:   map[string]string{},
		baseURL: "https://blob.example.com/",
	}
}

func (b *mockBlobStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	if b.putErr != nil {
		return b.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	b.types[key] = contentType
	return nil
}

func (b *mockBlobStore) DownloadURL(ctx context.Context, key string) (string, error) {
	if b.urlErr != nil {
		return "", b.urlErr
	}
	return b.baseURL + key, nil
}

func (b *mockBlobStore) Get(ctx context.Context, downloadURL string) (io.ReadCloser, error) {
	return nil, goerr.New("not implemented")
}

func (b *mockBlobStore) Delete(ctx context.Context, downloadURL string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, downloadURL)
	return b.deleteErr
}

func (b *mockBlobStore) object(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	return data, ok
}

type mockLookup struct {
	place *model.Place
	calls int
	block chan struct{}
}

func (l *mockLookup) Nearby(ctx context.Context, pt orb.Point) *model.Place {
	l.calls++
	if l.block != nil {
		<-l.block
	}
	if l.place == nil {
		return &model.Place{}
	}
	return l.place
}

// recorder collects full-set deliveries
type recorder struct {
	mu    sync.Mutex
	calls [][]*model.Memory
}

func (r *recorder) onChange(memories []*model.Memory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, memories)
}

func (r *recorder) last() []*model.Memory {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder) waitFor(t *testing.T, cond func([]*model.Memory) bool) []*model.Memory {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if last := r.last(); cond(last) {
			return last
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
	return nil
}

func hasID(list []*model.Memory, id model.MemoryID) bool {
	for _, m := range list {
		if m.ID == id {
			return true
		}
	}
	return false
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := range 8 {
		for y := range 8 {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	gt.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// detailedImage has enough high-frequency content for JPEG quality to affect size
func detailedImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for x := range 64 {
		for y := range 64 {
			v := uint8((x ^ y) * 4)
			img.Set(x, y, color.RGBA{R: v, G: uint8(x * y), B: 255 - v, A: 255})
		}
	}
	var buf bytes.Buffer
	gt.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
