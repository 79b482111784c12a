package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/roam/pkg/adapter"
	"github.com/m-mizutani/roam/pkg/model"
	"github.com/m-mizutani/roam/pkg/repository"
	"github.com/m-mizutani/roam/pkg/service/location"
	"github.com/m-mizutani/roam/pkg/service/place"
	"github.com/m-mizutani/roam/pkg/utils/logging"
	"github.com/paulmach/orb"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/option"
)

// config holds configuration values
type config struct {
	// Repository
	project     string
	database    string
	credentials string

	// Storage
	bucket       string
	photoQuality int64

	// Places
	placesAPIKey  string
	placesRadius  float64
	placesTimeout time.Duration

	// Location
	lat      float64
	lon      float64
	accuracy float64
	track    string

	// Logging
	logLevel  string
	logFormat string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "credentials",
			Usage:       "Path to a service account key file",
			Sources:     cli.EnvVars("GOOGLE_APPLICATION_CREDENTIALS"),
			Destination: &cfg.credentials,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("ROAM_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("ROAM_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

// storageFlags returns flags for photo blob storage
func storageFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "bucket",
			Aliases:     []string{"b"},
			Usage:       "Cloud Storage bucket for photos",
			Sources:     cli.EnvVars("ROAM_BUCKET"),
			Destination: &cfg.bucket,
		},
	}
}

func photoFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "photo-quality",
			Usage:       "JPEG quality (1-100) of uploaded photos",
			Value:       70,
			Sources:     cli.EnvVars("ROAM_PHOTO_QUALITY"),
			Destination: &cfg.photoQuality,
		},
	}
}

// placesFlags returns flags for the nearby places lookup
func placesFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "places-api-key",
			Usage:       "Google Places API key",
			Sources:     cli.EnvVars("ROAM_PLACES_API_KEY"),
			Destination: &cfg.placesAPIKey,
		},
		&cli.FloatFlag{
			Name:        "places-radius",
			Usage:       "Nearby search radius in meters",
			Value:       place.DefaultRadius,
			Sources:     cli.EnvVars("ROAM_PLACES_RADIUS"),
			Destination: &cfg.placesRadius,
		},
		&cli.DurationFlag{
			Name:        "places-timeout",
			Usage:       "HTTP timeout of each Places API request",
			Value:       30 * time.Second,
			Sources:     cli.EnvVars("ROAM_PLACES_TIMEOUT"),
			Destination: &cfg.placesTimeout,
		},
	}
}

// locationFlags returns flags that select the positioning source
func locationFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.FloatFlag{
			Name:        "lat",
			Usage:       "Current latitude",
			Destination: &cfg.lat,
		},
		&cli.FloatFlag{
			Name:        "lon",
			Usage:       "Current longitude",
			Destination: &cfg.lon,
		},
		&cli.FloatFlag{
			Name:        "accuracy",
			Usage:       "Horizontal accuracy of --lat/--lon in meters",
			Destination: &cfg.accuracy,
		},
		&cli.StringFlag{
			Name:        "track",
			Usage:       "Path to a YAML track file to replay instead of --lat/--lon",
			Sources:     cli.EnvVars("ROAM_TRACK"),
			Destination: &cfg.track,
		},
	}
}

// setupLogger installs the configured logger as default and returns ctx carrying it
func (cfg *config) setupLogger(ctx context.Context, c *cli.Command) (context.Context, error) {
	if _, err := logging.ParseLevel(cfg.logLevel); err != nil {
		return ctx, err
	}
	format, err := logging.ParseFormat(cfg.logFormat)
	if err != nil {
		return ctx, err
	}

	logger := logging.New(cfg.logLevel, format, c.Root().ErrWriter)
	logging.SetDefault(logger)
	slog.SetDefault(logger)
	return logging.With(ctx, logger), nil
}

func (cfg *config) clientOptions() []option.ClientOption {
	if cfg.credentials == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.credentials)}
}

// newRepository creates a new repository instance
func (cfg *config) newRepository(ctx context.Context) (*repository.Firestore, error) {
	if cfg.project == "" {
		return nil, goerr.New("project is required")
	}
	if cfg.database == "" {
		return nil, goerr.New("database is required")
	}

	repo, err := repository.New(ctx, cfg.project, cfg.database, cfg.clientOptions())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, nil
}

// newStorage creates a new Storage adapter instance
func (cfg *config) newStorage(ctx context.Context) (*adapter.Storage, error) {
	if cfg.bucket == "" {
		return nil, goerr.New("bucket is required")
	}

	storage, err := adapter.NewStorage(ctx, cfg.bucket, cfg.clientOptions()...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}

// newLookup creates a place lookup, or nil when no API key is configured
func (cfg *config) newLookup() *place.Lookup {
	if cfg.placesAPIKey == "" {
		return nil
	}
	places := adapter.NewPlaces(cfg.placesAPIKey, adapter.WithPlacesTimeout(cfg.placesTimeout))
	return place.New(places, place.WithRadius(cfg.placesRadius))
}

// newPlatform creates the positioning source selected by the location flags
func (cfg *config) newPlatform(c *cli.Command) (*location.Replay, error) {
	if cfg.track != "" {
		return location.LoadTrack(cfg.track)
	}
	if !c.IsSet("lat") || !c.IsSet("lon") {
		return nil, goerr.New("either --lat and --lon, or --track is required")
	}

	fix := model.Fix{
		Point:    orb.Point{cfg.lon, cfg.lat},
		Accuracy: cfg.accuracy,
	}
	if fix.Point.Lat() < -90 || fix.Point.Lat() > 90 || fix.Point.Lon() < -180 || fix.Point.Lon() > 180 {
		return nil, goerr.New("location out of range",
			goerr.V("lat", cfg.lat), goerr.V("lon", cfg.lon), goerr.T(model.TagMalformed))
	}
	return location.NewStatic(fix), nil
}
