package interfaces

import (
	"context"
	"io"

	"github.com/m-mizutani/roam/pkg/model"
	"github.com/paulmach/orb"
)

// Subscription is a live listener that must be stopped by its owner
type Subscription interface {
	Stop()
}

// OnMemories receives the complete current set of memories on every change
type OnMemories func(memories []*model.Memory)

// Repository defines the interface for memory document persistence
type Repository interface {
	// PutMemory writes a memory document keyed by its ID
	PutMemory(ctx context.Context, memory *model.Memory) error

	// GetMemory retrieves a memory by ID
	GetMemory(ctx context.Context, id model.MemoryID) (*model.Memory, error)

	// DeleteMemory deletes a memory document by ID
	DeleteMemory(ctx context.Context, id model.MemoryID) error

	// WatchMemories starts a live subscription over the whole collection
	WatchMemories(ctx context.Context, onChange OnMemories) (Subscription, error)
}

// BlobStore stores photo blobs and resolves durable download URLs for them
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	DownloadURL(ctx context.Context, key string) (string, error)
	Get(ctx context.Context, downloadURL string) (io.ReadCloser, error)
	Delete(ctx context.Context, downloadURL string) error
}

// Places is the third-party nearby places service
type Places interface {
	SearchNearby(ctx context.Context, center orb.Point, radius float64) ([]*model.PlaceCandidate, error)
	FetchPhoto(ctx context.Context, photoName string, maxWidth, maxHeight int) ([]byte, error)
}

// PlaceLookup resolves a coordinate to a best-effort place. It never fails; missing
// information is left empty.
type PlaceLookup interface {
	Nearby(ctx context.Context, pt orb.Point) *model.Place
}
