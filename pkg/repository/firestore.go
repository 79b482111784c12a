package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/roam/pkg/interfaces"
	"github.com/m-mizutani/roam/pkg/model"
	"github.com/m-mizutani/roam/pkg/utils/logging"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const collectionLocations = "locations"

// Firestore implements interfaces.Repository using Cloud Firestore
type Firestore struct {
	client      *firestore.Client
	collection  string
	onMalformed MalformedHandler
	now         func() time.Time
}

var _ interfaces.Repository = (*Firestore)(nil)

// Option is a functional option for Firestore
type Option func(*Firestore)

// WithCollection overrides the collection name. Mainly for tests.
func WithCollection(name string) Option {
	return func(r *Firestore) {
		r.collection = name
	}
}

// WithMalformedHandler sets the handler called for documents that do not match the
// memory schema. The document is still delivered with defaults applied.
func WithMalformedHandler(h MalformedHandler) Option {
	return func(r *Firestore) {
		r.onMalformed = h
	}
}

// New creates a new Firestore repository
func New(ctx context.Context, projectID, databaseID string, clientOpts []option.ClientOption, opts ...Option) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, clientOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID),
			goerr.T(model.TagNetwork))
	}

	r := &Firestore{
		client:      client,
		collection:  collectionLocations,
		onMalformed: logMalformed,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Close releases the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

func (r *Firestore) PutMemory(ctx context.Context, memory *model.Memory) error {
	if err := memory.Validate(); err != nil {
		return err
	}

	if _, err := r.client.Collection(r.collection).Doc(memory.ID.String()).Set(ctx, encodeMemory(memory)); err != nil {
		return goerr.Wrap(err, "failed to put memory", goerr.V("id", memory.ID), goerr.T(model.TagNetwork))
	}

	return nil
}

func (r *Firestore) GetMemory(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	doc, err := r.client.Collection(r.collection).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(err, "memory not found", goerr.V("id", id), goerr.T(model.TagNotFound))
		}
		return nil, goerr.Wrap(err, "failed to get memory", goerr.V("id", id), goerr.T(model.TagNetwork))
	}

	return r.decode(ctx, doc), nil
}

func (r *Firestore) DeleteMemory(ctx context.Context, id model.MemoryID) error {
	if _, err := r.client.Collection(r.collection).Doc(id.String()).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete memory", goerr.V("id", id), goerr.T(model.TagNetwork))
	}
	return nil
}

// WatchMemories listens to the whole collection and calls onChange with every
// document on each change. The listener runs until Stop is called or ctx is done.
func (r *Firestore) WatchMemories(ctx context.Context, onChange interfaces.OnMemories) (interfaces.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	w := &watch{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	it := r.client.Collection(r.collection).Snapshots(ctx)
	go func() {
		defer close(w.done)
		defer it.Stop()
		r.listen(ctx, it, onChange)
	}()

	logging.From(ctx).Debug("started listening", "collection", r.collection)
	return w, nil
}

func (r *Firestore) listen(ctx context.Context, it *firestore.QuerySnapshotIterator, onChange interfaces.OnMemories) {
	logger := logging.From(logging.Component(ctx, "listener"))

	for {
		snap, err := it.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled || ctx.Err() != nil {
				logger.Debug("stopped listening", "collection", r.collection)
				return
			}
			logger.Error("failed to fetch documents",
				"error", goerr.Wrap(err, "snapshot listener failed", goerr.T(model.TagNetwork)))
			return
		}

		docs, err := snap.Documents.GetAll()
		if err != nil {
			logger.Error("failed to read snapshot documents",
				"error", goerr.Wrap(err, "snapshot read failed", goerr.T(model.TagNetwork)))
			continue
		}

		memories := make([]*model.Memory, 0, len(docs))
		for _, doc := range docs {
			memories = append(memories, r.decode(ctx, doc))
		}

		logger.Debug("read memories", "count", len(memories))
		onChange(memories)
	}
}

func (r *Firestore) decode(ctx context.Context, doc *firestore.DocumentSnapshot) *model.Memory {
	memory, err := DecodeMemory(doc.Ref.ID, doc.Data(), r.now())
	if err != nil {
		r.onMalformed(ctx, &MalformedRecord{ID: doc.Ref.ID, Err: err})
	}
	return memory
}

func encodeMemory(m *model.Memory) map[string]any {
	data := map[string]any{
		fieldName:      m.Name,
		fieldLatitude:  m.Latitude,
		fieldLongitude: m.Longitude,
		fieldDate:      m.CapturedAt,
	}
	if m.PhotoURL != "" {
		data[fieldImageURL] = m.PhotoURL
	}
	return data
}

type watch struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop cancels the listener and waits for its goroutine to exit
func (w *watch) Stop() {
	w.once.Do(w.cancel)
	<-w.done
}
