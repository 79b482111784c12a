package adapter

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/roam/pkg/interfaces"
	"github.com/m-mizutani/roam/pkg/model"
	"github.com/paulmach/orb"
)

const (
	defaultPlacesBaseURL = "https://places.googleapis.com"
	placesFieldMask      = "places.displayName,places.photos"
)

// PlacesClient calls the Google Places API (New)
type PlacesClient struct {
	client     *resty.Client
	maxResults int
}

var _ interfaces.Places = (*PlacesClient)(nil)

// PlacesOption is a functional option for PlacesClient
type PlacesOption func(*PlacesClient)

// WithPlacesBaseURL replaces the API endpoint. Used by tests.
func WithPlacesBaseURL(baseURL string) PlacesOption {
	return func(p *PlacesClient) {
		p.client.SetBaseURL(baseURL)
	}
}

// WithPlacesTimeout sets the HTTP timeout of each request
func WithPlacesTimeout(d time.Duration) PlacesOption {
	return func(p *PlacesClient) {
		p.client.SetTimeout(d)
	}
}

// WithMaxResults sets maxResultCount of nearby search requests
func WithMaxResults(n int) PlacesOption {
	return func(p *PlacesClient) {
		p.maxResults = n
	}
}

// NewPlaces creates a new Places API client
func NewPlaces(apiKey string, opts ...PlacesOption) *PlacesClient {
	c := resty.New().
		SetBaseURL(defaultPlacesBaseURL).
		SetHeader("X-Goog-Api-Key", apiKey).
		SetTimeout(30 * time.Second)

	p := &PlacesClient{
		client:     c,
		maxResults: 1,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type searchNearbyRequest struct {
	MaxResultCount      int `json:"maxResultCount,omitempty"`
	LocationRestriction struct {
		Circle struct {
			Center latLng  `json:"center"`
			Radius float64 `json:"radius"`
		} `json:"circle"`
	} `json:"locationRestriction"`
}

type searchNearbyResponse struct {
	Places []struct {
		DisplayName struct {
			Text         string `json:"text"`
			LanguageCode string `json:"languageCode"`
		} `json:"displayName"`
		Photos []struct {
			Name     string `json:"name"`
			WidthPx  int    `json:"widthPx"`
			HeightPx int    `json:"heightPx"`
		} `json:"photos"`
	} `json:"places"`
}

// SearchNearby returns places within radius meters of center, ranked by the service
func (p *PlacesClient) SearchNearby(ctx context.Context, center orb.Point, radius float64) ([]*model.PlaceCandidate, error) {
	var req searchNearbyRequest
	req.MaxResultCount = p.maxResults
	req.LocationRestriction.Circle.Center = latLng{Latitude: center.Lat(), Longitude: center.Lon()}
	req.LocationRestriction.Circle.Radius = radius

	var result searchNearbyResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("X-Goog-FieldMask", placesFieldMask).
		SetBody(&req).
		SetResult(&result).
		Post("/v1/places:searchNearby")
	if err != nil {
		return nil, goerr.Wrap(err, "places search request failed", goerr.T(model.TagNetwork))
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, goerr.New("places search returned error status",
			goerr.V("status", resp.StatusCode()),
			goerr.V("body", resp.String()),
			goerr.T(model.TagNetwork))
	}

	candidates := make([]*model.PlaceCandidate, 0, len(result.Places))
	for _, place := range result.Places {
		c := &model.PlaceCandidate{Name: place.DisplayName.Text}
		for _, photo := range place.Photos {
			c.PhotoNames = append(c.PhotoNames, photo.Name)
		}
		candidates = append(candidates, c)
	}

	return candidates, nil
}

// FetchPhoto downloads the image of a photo resource, bounded by maxWidth x maxHeight pixels
func (p *PlacesClient) FetchPhoto(ctx context.Context, photoName string, maxWidth, maxHeight int) ([]byte, error) {
	if photoName == "" {
		return nil, goerr.New("photo name is empty", goerr.T(model.TagMalformed))
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"maxWidthPx":  strconv.Itoa(maxWidth),
			"maxHeightPx": strconv.Itoa(maxHeight),
		}).
		Get("/v1/" + photoName + "/media")
	if err != nil {
		return nil, goerr.Wrap(err, "place photo request failed", goerr.V("photo", photoName), goerr.T(model.TagNetwork))
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, goerr.New("place photo returned error status",
			goerr.V("photo", photoName),
			goerr.V("status", resp.StatusCode()),
			goerr.T(model.TagNetwork))
	}
	if len(resp.Body()) == 0 {
		return nil, goerr.New("place photo is empty", goerr.V("photo", photoName), goerr.T(model.TagNotFound))
	}

	return resp.Body(), nil
}
