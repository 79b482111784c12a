package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/roam/pkg/model"
	"github.com/m-mizutani/roam/pkg/utils/logging"
)

// Delete removes the memory document and then its photo blob. A failed blob delete is
// only logged and leaves an orphaned blob behind.
func (u *UseCase) Delete(ctx context.Context, memory *model.Memory) error {
	if err := u.repo.DeleteMemory(ctx, memory.ID); err != nil {
		return err
	}

	logger := logging.From(ctx)
	logger.Info("memory deleted", "id", memory.ID)

	if !memory.HasPhoto() {
		return nil
	}
	if u.blob == nil {
		logger.Warn("photo left in place, no blob store configured", "id", memory.ID, "url", memory.PhotoURL)
		return nil
	}
	if err := u.blob.Delete(ctx, memory.PhotoURL); err != nil {
		logger.Warn("failed to delete photo", "error", err, "id", memory.ID)
	}

	return nil
}

// DeleteByID loads a memory and deletes it
func (u *UseCase) DeleteByID(ctx context.Context, id model.MemoryID) error {
	memory, err := u.repo.GetMemory(ctx, id)
	if err != nil {
		return goerr.Wrap(err, "failed to load memory for delete", goerr.V("id", id))
	}

	return u.Delete(ctx, memory)
}
