package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/roam/pkg/model"
	"github.com/m-mizutani/roam/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
)

func deleteCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a memory and its photo",
		ArgsUsage: "<memory-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setupLogger(ctx, c)
			if err != nil {
				return err
			}

			if c.Args().Len() != 1 {
				return goerr.New("memory ID is required")
			}
			id := model.MemoryID(c.Args().First())

			// Initialize dependencies
			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			var opts []memory.Option
			if cfg.bucket != "" {
				storage, err := cfg.newStorage(ctx)
				if err != nil {
					return err
				}
				defer storage.Close()
				opts = append(opts, memory.WithBlobStore(storage))
			}

			uc := memory.New(repo, opts...)
			if err := uc.DeleteByID(ctx, id); err != nil {
				return goerr.Wrap(err, "failed to delete memory")
			}

			fmt.Fprintf(c.Root().Writer, "Memory deleted: %s\n", id)
			return nil
		},
	}
}
