package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/roam/pkg/model"
	"github.com/m-mizutani/roam/pkg/service/location"
	"github.com/m-mizutani/roam/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
)

func addCommand() *cli.Command {
	var (
		cfg       config
		name      string
		photoPath string
		wait      time.Duration
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "name",
			Aliases:     []string{"n"},
			Usage:       "Place name. Skips the nearby place lookup",
			Destination: &name,
		},
		&cli.StringFlag{
			Name:        "photo",
			Usage:       "Path to a JPEG or PNG photo to attach",
			Destination: &photoPath,
		},
		&cli.DurationFlag{
			Name:        "wait",
			Usage:       "How long to wait for a location fix",
			Value:       10 * time.Second,
			Destination: &wait,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)
	flags = append(flags, photoFlags(&cfg)...)
	flags = append(flags, placesFlags(&cfg)...)
	flags = append(flags, locationFlags(&cfg)...)

	return &cli.Command{
		Name:  "add",
		Usage: "Save the current location as a memory",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setupLogger(ctx, c)
			if err != nil {
				return err
			}

			var photo []byte
			if photoPath != "" {
				photo, err = os.ReadFile(photoPath)
				if err != nil {
					return goerr.Wrap(err, "failed to read photo", goerr.V("path", photoPath))
				}
			}

			// Acquire location
			platform, err := cfg.newPlatform(c)
			if err != nil {
				return err
			}
			defer platform.Close()

			trackCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			tracker := location.New(trackCtx, platform)
			go tracker.Run(trackCtx)

			waitCtx, waitCancel := context.WithTimeout(ctx, wait)
			defer waitCancel()
			fix, err := tracker.WaitFix(waitCtx)
			if err != nil {
				return goerr.Wrap(err, "no location fix", goerr.V("wait", wait))
			}

			// Initialize dependencies
			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(c.Root().ErrWriter))
			spin.Suffix = " Saving..."

			opts := []memory.Option{
				memory.WithStateHook(func(s memory.State) {
					switch s {
					case memory.StateSaving:
						spin.Start()
					case memory.StateIdle:
						spin.Stop()
					}
				}),
			}
			if cfg.bucket != "" {
				storage, err := cfg.newStorage(ctx)
				if err != nil {
					return err
				}
				defer storage.Close()
				opts = append(opts, memory.WithBlobStore(storage), memory.WithJPEGQuality(int(cfg.photoQuality)))
			}
			if lookup := cfg.newLookup(); lookup != nil {
				opts = append(opts, memory.WithPlaceLookup(lookup))
			}

			uc := memory.New(repo, opts...)

			input := memory.SaveInput{Fix: fix, Photo: photo}
			if name != "" {
				input.Place = &model.Place{Name: name}
			}

			result, err := uc.Save(ctx, input)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			for _, f := range result.Failures {
				fmt.Fprintf(w, "warning: %s failed: %v\n", f.Step, f.Err)
			}
			if !result.Stored() {
				return goerr.New("memory was not saved", goerr.V("id", result.Memory.ID))
			}

			fmt.Fprintf(w, "Memory saved: %s\n", result.Memory.ID)
			printMemory(w, result.Memory, nil)
			return nil
		},
	}
}
