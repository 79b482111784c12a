package memory

import (
	"context"
	"time"

	"github.com/m-mizutani/roam/pkg/model"
	"github.com/m-mizutani/roam/pkg/utils/logging"
)

// State of the add-memory workflow
type State int

const (
	StateIdle State = iota
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSaving:
		return "saving"
	default:
		return "unknown"
	}
}

// Step names a part of the add-memory workflow that can fail
type Step string

const (
	StepUpload Step = "upload"
	StepWrite  Step = "write"
)

// Failure is one failed workflow step
type Failure struct {
	Step Step
	Err  error
}

// SaveInput is what the user captured. Place is looked up when nil. Photo, when set,
// wins over the place photo.
type SaveInput struct {
	Fix        *model.Fix
	Place      *model.Place
	Photo      []byte
	CapturedAt time.Time
}

// SaveResult reports the memory built by Save and every step that failed
type SaveResult struct {
	Memory   *model.Memory
	Failures []Failure
}

// Stored reports whether the memory document was written
func (r *SaveResult) Stored() bool {
	for _, f := range r.Failures {
		if f.Step == StepWrite {
			return false
		}
	}
	return true
}

// Save runs the add-memory workflow: place lookup, photo upload and document write.
// Each step is best effort; failures are logged and collected in the result instead of
// aborting. Only one Save runs at a time per UseCase; a concurrent call gets
// model.ErrAlreadySaving. A nil Fix gets model.ErrNoLocation.
func (u *UseCase) Save(ctx context.Context, input SaveInput) (*SaveResult, error) {
	if input.Fix == nil {
		return nil, model.ErrNoLocation
	}
	if !u.saving.CompareAndSwap(false, true) {
		return nil, model.ErrAlreadySaving
	}
	u.onState(StateSaving)
	defer func() {
		u.saving.Store(false)
		u.onState(StateIdle)
	}()

	logger := logging.From(ctx)

	place := input.Place
	if place == nil {
		place = &model.Place{}
		if u.lookup != nil {
			place = u.lookup.Nearby(ctx, input.Fix.Point)
		}
	}

	memory := model.NewMemory(input.Fix.Point, place.Name)
	if !input.CapturedAt.IsZero() {
		memory.CapturedAt = input.CapturedAt
	}
	result := &SaveResult{Memory: memory}

	photo := input.Photo
	if len(photo) == 0 {
		photo = place.Photo
	}
	if len(photo) > 0 {
		photoURL, err := u.UploadPhoto(ctx, photo, memory.ID)
		if err != nil {
			logger.Error("failed to upload photo", "error", err, "id", memory.ID)
			result.Failures = append(result.Failures, Failure{Step: StepUpload, Err: err})
		}
		memory.PhotoURL = photoURL
	}

	if err := u.Create(ctx, memory); err != nil {
		logger.Error("failed to create memory", "error", err, "id", memory.ID)
		result.Failures = append(result.Failures, Failure{Step: StepWrite, Err: err})
	}

	return result, nil
}
