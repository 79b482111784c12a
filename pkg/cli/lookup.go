package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/paulmach/orb"
	"github.com/urfave/cli/v3"
)

func lookupCommand() *cli.Command {
	var (
		cfg     config
		outPath string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "out",
			Aliases:     []string{"o"},
			Usage:       "Write the place photo to this path",
			Destination: &outPath,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, placesFlags(&cfg)...)
	flags = append(flags, locationFlags(&cfg)...)

	return &cli.Command{
		Name:  "lookup",
		Usage: "Show the nearest place for a location",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setupLogger(ctx, c)
			if err != nil {
				return err
			}

			if !c.IsSet("lat") || !c.IsSet("lon") {
				return goerr.New("--lat and --lon are required")
			}
			lookup := cfg.newLookup()
			if lookup == nil {
				return goerr.New("places-api-key is required")
			}

			result := lookup.Nearby(ctx, orb.Point{cfg.lon, cfg.lat})

			w := c.Root().Writer
			if result.Name == "" {
				fmt.Fprintln(w, "No place found")
				return nil
			}
			fmt.Fprintf(w, "Place: %s\n", result.Name)
			fmt.Fprintf(w, "Photo: %d bytes\n", len(result.Photo))

			if outPath != "" && len(result.Photo) > 0 {
				if err := os.WriteFile(outPath, result.Photo, 0644); err != nil {
					return goerr.Wrap(err, "failed to write photo", goerr.V("path", outPath))
				}
			}
			return nil
		},
	}
}
