package repository

import (
	"context"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/roam/pkg/model"
	"github.com/m-mizutani/roam/pkg/utils/logging"
)

const (
	fieldName      = "name"
	fieldLatitude  = "latitude"
	fieldLongitude = "longitude"
	fieldDate      = "date"
	fieldImageURL  = "imageUrl"
)

// MalformedRecord describes a stored document that did not match the memory schema
type MalformedRecord struct {
	ID  string
	Err error
}

// MalformedHandler receives documents that were decoded with defaults
type MalformedHandler func(ctx context.Context, rec *MalformedRecord)

func logMalformed(ctx context.Context, rec *MalformedRecord) {
	logging.From(ctx).Warn("malformed record", "id", rec.ID, "error", rec.Err)
}

func floatPtr(v float64) *float64 { return &v }

var memorySchema = mustResolve(&jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		fieldName:      {Type: "string"},
		fieldLatitude:  {Type: "number", Minimum: floatPtr(-90), Maximum: floatPtr(90)},
		fieldLongitude: {Type: "number", Minimum: floatPtr(-180), Maximum: floatPtr(180)},
		fieldDate:      {Type: "string"},
		fieldImageURL:  {Types: []string{"string", "null"}},
	},
	Required: []string{fieldName, fieldLatitude, fieldLongitude, fieldDate},
})

func mustResolve(s *jsonschema.Schema) *jsonschema.Resolved {
	resolved, err := s.Resolve(nil)
	if err != nil {
		panic("invalid memory schema: " + err.Error())
	}
	return resolved
}

// DecodeMemory converts a stored document into a Memory. Missing or mistyped fields
// fall back to defaults (empty name, zero coordinates, now as capture time). The
// returned Memory is always usable; a non-nil error reports what was wrong with the
// document.
func DecodeMemory(id string, data map[string]any, now time.Time) (*model.Memory, error) {
	memory := &model.Memory{
		ID:         model.MemoryID(id),
		CapturedAt: now,
	}

	if v, ok := data[fieldName].(string); ok {
		memory.Name = v
	}
	if v, ok := toFloat(data[fieldLatitude]); ok {
		memory.Latitude = v
	}
	if v, ok := toFloat(data[fieldLongitude]); ok {
		memory.Longitude = v
	}
	if v, ok := data[fieldDate].(time.Time); ok {
		memory.CapturedAt = v
	}
	if v, ok := data[fieldImageURL].(string); ok {
		memory.PhotoURL = v
	}

	if err := memory.ID.Validate(); err != nil {
		return memory, err
	}
	if err := memorySchema.Validate(normalize(data)); err != nil {
		return memory, goerr.Wrap(err, "document does not match memory schema", goerr.V("id", id), goerr.T(model.TagMalformed))
	}
	// the schema sees timestamps as strings, so a plain string must be rejected here
	if _, ok := data[fieldDate].(time.Time); !ok {
		return memory, goerr.New("date is not a timestamp",
			goerr.V("id", id), goerr.V("date", data[fieldDate]), goerr.T(model.TagMalformed))
	}

	return memory, nil
}

// normalize converts Firestore native values into their JSON counterparts so the
// document can be checked against the schema.
func normalize(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch x := v.(type) {
		case time.Time:
			out[k] = x.Format(time.RFC3339Nano)
		case int64:
			out[k] = float64(x)
		case int:
			out[k] = float64(x)
		default:
			out[k] = v
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}
