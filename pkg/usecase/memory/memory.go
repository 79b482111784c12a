package memory

import (
	"sync"
	"sync/atomic"

	"github.com/m-mizutani/roam/pkg/interfaces"
)

const defaultJPEGQuality = 70

// UseCase provides memory operations: create, subscribe, delete, photo upload and the
// add-memory workflow.
type UseCase struct {
	repo        interfaces.Repository
	blob        interfaces.BlobStore
	lookup      interfaces.PlaceLookup
	jpegQuality int
	onState     func(State)

	saving atomic.Bool

	subMu sync.Mutex
	sub   *Subscription
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithBlobStore sets the photo blob store. Without it photo upload always fails.
func WithBlobStore(blob interfaces.BlobStore) Option {
	return func(uc *UseCase) {
		uc.blob = blob
	}
}

// WithPlaceLookup sets the lookup used by Save when no place is given
func WithPlaceLookup(lookup interfaces.PlaceLookup) Option {
	return func(uc *UseCase) {
		uc.lookup = lookup
	}
}

// WithJPEGQuality overrides the re-encode quality (1-100)
func WithJPEGQuality(q int) Option {
	return func(uc *UseCase) {
		uc.jpegQuality = q
	}
}

// WithStateHook sets a callback for save state transitions
func WithStateHook(hook func(State)) Option {
	return func(uc *UseCase) {
		uc.onState = hook
	}
}

// New creates a new memory UseCase instance
func New(repo interfaces.Repository, opts ...Option) *UseCase {
	uc := &UseCase{
		repo:        repo,
		jpegQuality: defaultJPEGQuality,
		onState:     func(State) {},
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
