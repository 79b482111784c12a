package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/paulmach/orb"
)

// Fix is a single position reported by the platform
type Fix struct {
	Point     orb.Point
	Accuracy  float64 // horizontal accuracy in meters
	Timestamp time.Time
}

type Permission string

const (
	PermissionNotDetermined Permission = "not_determined"
	PermissionGranted       Permission = "granted"
	PermissionDenied        Permission = "denied"
	PermissionRestricted    Permission = "restricted"
)

// Validate checks if the permission is known
func (p Permission) Validate() error {
	switch p {
	case PermissionNotDetermined, PermissionGranted, PermissionDenied, PermissionRestricted:
		return nil
	default:
		return goerr.New("invalid permission", goerr.V("permission", p), goerr.T(TagMalformed))
	}
}

// Place is the result of a nearby place lookup. Both fields may be empty.
type Place struct {
	Name  string
	Photo []byte
}

// PlaceCandidate is one search hit from the places service. PhotoNames are resource
// names that must be fetched separately.
type PlaceCandidate struct {
	Name       string
	PhotoNames []string
}
