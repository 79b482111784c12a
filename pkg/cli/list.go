package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/roam/pkg/model"
	"github.com/m-mizutani/roam/pkg/usecase/memory"
	"github.com/m-mizutani/roam/pkg/viewmodel"
	"github.com/paulmach/orb"
	"github.com/urfave/cli/v3"
)

func listCommand() *cli.Command {
	var (
		cfg     config
		nearLat float64
		nearLon float64
		region  bool
		timeout time.Duration
	)

	flags := []cli.Flag{
		&cli.FloatFlag{
			Name:        "near-lat",
			Usage:       "Latitude to measure distances from",
			Destination: &nearLat,
		},
		&cli.FloatFlag{
			Name:        "near-lon",
			Usage:       "Longitude to measure distances from",
			Destination: &nearLon,
		},
		&cli.BoolFlag{
			Name:        "region",
			Usage:       "Print the bounding region of all memories as WKT",
			Destination: &region,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "How long to wait for the first snapshot",
			Value:       30 * time.Second,
			Destination: &timeout,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List all memories, newest first",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setupLogger(ctx, c)
			if err != nil {
				return err
			}

			// Initialize dependencies
			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			uc := memory.New(repo)

			cache := viewmodel.New()
			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go cache.Run(runCtx)

			first := make(chan struct{}, 1)
			remove := cache.OnChange(func([]*model.Memory) {
				select {
				case first <- struct{}{}:
				default:
				}
			})
			defer remove()

			sub, err := uc.Subscribe(ctx, cache.Replace)
			if err != nil {
				return goerr.Wrap(err, "failed to subscribe memories")
			}
			defer sub.Release()

			select {
			case <-first:
			case <-time.After(timeout):
				return goerr.New("timed out waiting for memories", goerr.V("timeout", timeout))
			case <-ctx.Done():
				return ctx.Err()
			}

			var here *orb.Point
			if c.IsSet("near-lat") && c.IsSet("near-lon") {
				here = &orb.Point{nearLon, nearLat}
			}

			w := c.Root().Writer
			for _, m := range sortByDate(cache.Memories()) {
				printMemory(w, m, here)
			}
			if region {
				if bound, ok := cache.Region(); ok {
					printRegion(w, bound)
				}
			}

			return nil
		},
	}
}
