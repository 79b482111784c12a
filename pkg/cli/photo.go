package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/roam/pkg/model"
	"github.com/urfave/cli/v3"
)

func photoCommand() *cli.Command {
	var (
		cfg     config
		outPath string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "out",
			Aliases:     []string{"o"},
			Usage:       "Output file path. Defaults to <memory-id>.jpg",
			Destination: &outPath,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:      "photo",
		Usage:     "Download the photo of a memory",
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
			if outPath == "" {
				outPath = id.String() + ".jpg"
			}

			// Initialize dependencies
			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}
			defer storage.Close()

			m, err := repo.GetMemory(ctx, id)
			if err != nil {
				return err
			}
			if !m.HasPhoto() {
				return goerr.New("memory has no photo", goerr.V("id", id))
			}

			r, err := storage.Get(ctx, m.PhotoURL)
			if err != nil {
				return err
			}
			defer r.Close()

			f, err := os.Create(outPath)
			if err != nil {
				return goerr.Wrap(err, "failed to create output file", goerr.V("path", outPath))
			}
			defer f.Close()

			n, err := io.Copy(f, r)
			if err != nil {
				return goerr.Wrap(err, "failed to download photo", goerr.V("id", id))
			}

			fmt.Fprintf(c.Root().Writer, "Photo saved: %s (%d bytes)\n", outPath, n)
			return nil
		},
	}
}
