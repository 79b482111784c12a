package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/roam/pkg/model"
	"github.com/m-mizutani/roam/pkg/usecase/memory"
	"github.com/m-mizutani/roam/pkg/viewmodel"
	"github.com/urfave/cli/v3"
)

func watchCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "watch",
		Usage: "Print the full memory list on every change until interrupted",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setupLogger(ctx, c)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Initialize dependencies
			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			uc := memory.New(repo)
			cache := viewmodel.New()

			w := c.Root().Writer
			remove := cache.OnChange(func(memories []*model.Memory) {
				fmt.Fprintf(w, "--- %d memories\n", len(memories))
				for _, m := range sortByDate(memories) {
					printMemory(w, m, nil)
				}
				if bound, ok := cache.Region(); ok {
					printRegion(w, bound)
				}
			})
			defer remove()

			sub, err := uc.Subscribe(ctx, cache.Replace)
			if err != nil {
				return goerr.Wrap(err, "failed to subscribe memories")
			}
			defer sub.Release()

			cache.Run(ctx)
			return nil
		},
	}
}
