package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/paulmach/orb"
)

type MemoryID string

// NewMemoryID generates a new unique MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

func (x MemoryID) String() string { return string(x) }

// Validate checks the ID is a UUID string
func (x MemoryID) Validate() error {
	if _, err := uuid.Parse(string(x)); err != nil {
		return goerr.Wrap(err, "memory ID is not a UUID", goerr.V("id", x), goerr.T(TagMalformed))
	}
	return nil
}

// Memory is a captured location with an optional place name and photo. Empty Name and
// PhotoURL mean the value is absent.
type Memory struct {
	ID         MemoryID
	Name       string
	Latitude   float64
	Longitude  float64
	CapturedAt time.Time
	PhotoURL   string
}

// NewMemory creates a Memory at the given point, captured now.
func NewMemory(pt orb.Point, name string) *Memory {
	return &Memory{
		ID:         NewMemoryID(),
		Name:       name,
		Latitude:   pt.Lat(),
		Longitude:  pt.Lon(),
		CapturedAt: time.Now(),
	}
}

// Point returns the location as orb.Point (lon, lat)
func (m *Memory) Point() orb.Point {
	return orb.Point{m.Longitude, m.Latitude}
}

func (m *Memory) HasPhoto() bool { return m.PhotoURL != "" }

// Validate checks fields required before writing the memory.
func (m *Memory) Validate() error {
	if err := m.ID.Validate(); err != nil {
		return err
	}
	if m.Latitude < -90 || m.Latitude > 90 {
		return goerr.New("latitude out of range", goerr.V("latitude", m.Latitude), goerr.T(TagMalformed))
	}
	if m.Longitude < -180 || m.Longitude > 180 {
		return goerr.New("longitude out of range", goerr.V("longitude", m.Longitude), goerr.T(TagMalformed))
	}
	return nil
}

// PhotoKey returns the blob key of the photo attached to a memory with this ID.
func PhotoKey(id MemoryID) string {
	return "images/" + string(id) + ".jpg"
}
