package location

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/roam/pkg/model"
	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"
)

// trackFile is the YAML layout of a recorded track, e.g.
//
//	permissions: [not_determined, granted]
//	interval: 500ms
//	loop: false
//	fixes:
//	  - {lat: 37.0, lon: -122.0, accuracy: 5}
type trackFile struct {
	Permissions []model.Permission `yaml:"permissions"`
	Interval    string             `yaml:"interval"`
	Loop        bool               `yaml:"loop"`
	Fixes       []struct {
		Lat      float64 `yaml:"lat"`
		Lon      float64 `yaml:"lon"`
		Accuracy float64 `yaml:"accuracy"`
	} `yaml:"fixes"`
}

// LoadTrack reads a YAML track file and returns a Replay platform for it
func LoadTrack(path string) (*Replay, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read track file", goerr.V("path", path))
	}

	return ParseTrack(raw)
}

// ParseTrack builds a Replay platform from YAML track data
func ParseTrack(raw []byte) (*Replay, error) {
	var track trackFile
	if err := yaml.Unmarshal(raw, &track); err != nil {
		return nil, goerr.Wrap(err, "failed to parse track YAML", goerr.T(model.TagMalformed))
	}

	var opts []ReplayOption
	if track.Interval != "" {
		d, err := time.ParseDuration(track.Interval)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid track interval", goerr.V("interval", track.Interval), goerr.T(model.TagMalformed))
		}
		opts = append(opts, WithInterval(d))
	}
	if len(track.Permissions) > 0 {
		for _, p := range track.Permissions {
			if err := p.Validate(); err != nil {
				return nil, err
			}
		}
		opts = append(opts, WithPermissions(track.Permissions...))
	}
	opts = append(opts, WithLoop(track.Loop))

	fixes := make([]model.Fix, 0, len(track.Fixes))
	for i, f := range track.Fixes {
		if f.Lat < -90 || f.Lat > 90 || f.Lon < -180 || f.Lon > 180 {
			return nil, goerr.New("track fix out of range", goerr.V("index", i), goerr.T(model.TagMalformed))
		}
		fixes = append(fixes, model.Fix{
			Point:    orb.Point{f.Lon, f.Lat},
			Accuracy: f.Accuracy,
		})
	}

	return NewReplay(fixes, opts...), nil
}
