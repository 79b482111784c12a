package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "roam",
		Usage: "Capture and browse location memories",
		Commands: []*cli.Command{
			addCommand(),
			listCommand(),
			watchCommand(),
			deleteCommand(),
			lookupCommand(),
			photoCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
