package place

import (
	"context"

	"github.com/m-mizutani/roam/pkg/interfaces"
	"github.com/m-mizutani/roam/pkg/model"
	"github.com/m-mizutani/roam/pkg/utils/logging"
	"github.com/paulmach/orb"
)

const (
	DefaultRadius     = 30.0
	DefaultMaxPhotoPx = 4800
)

// Lookup resolves a coordinate to the nearest named place and its photo
type Lookup struct {
	places    interfaces.Places
	radius    float64
	maxWidth  int
	maxHeight int
}

// Option is a functional option for Lookup
type Option func(*Lookup)

// WithRadius sets the search radius in meters
func WithRadius(meters float64) Option {
	return func(l *Lookup) {
		l.radius = meters
	}
}

// WithMaxPhotoSize sets the bounding box requested for the place photo
func WithMaxPhotoSize(width, height int) Option {
	return func(l *Lookup) {
		l.maxWidth = width
		l.maxHeight = height
	}
}

// New creates a new Lookup
func New(places interfaces.Places, opts ...Option) *Lookup {
	l := &Lookup{
		places:    places,
		radius:    DefaultRadius,
		maxWidth:  DefaultMaxPhotoPx,
		maxHeight: DefaultMaxPhotoPx,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Nearby returns the first place around pt. Failures are logged and degrade to empty
// fields, so the result is never nil.
func (l *Lookup) Nearby(ctx context.Context, pt orb.Point) *model.Place {
	logger := logging.From(ctx)
	result := &model.Place{}

	candidates, err := l.places.SearchNearby(ctx, pt, l.radius)
	if err != nil {
		logger.Warn("place search failed", "error", err, "lat", pt.Lat(), "lon", pt.Lon())
		return result
	}
	if len(candidates) == 0 {
		logger.Debug("no place nearby", "lat", pt.Lat(), "lon", pt.Lon())
		return result
	}

	first := candidates[0]
	result.Name = first.Name
	if len(first.PhotoNames) == 0 {
		return result
	}

	photo, err := l.places.FetchPhoto(ctx, first.PhotoNames[0], l.maxWidth, l.maxHeight)
	if err != nil {
		logger.Warn("place photo fetch failed", "error", err, "place", first.Name)
		return result
	}
	result.Photo = photo

	return result
}
