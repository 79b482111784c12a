package memory

import (
	"context"

	"github.com/m-mizutani/roam/pkg/model"
	"github.com/m-mizutani/roam/pkg/utils/logging"
)

// Create writes the memory document keyed by its ID
func (u *UseCase) Create(ctx context.Context, memory *model.Memory) error {
	if err := u.repo.PutMemory(ctx, memory); err != nil {
		return err
	}

	logging.From(ctx).Info("memory created", "id", memory.ID, "name", memory.Name)
	return nil
}
