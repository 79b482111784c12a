package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/m-mizutani/roam/pkg/model"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geo"
)

// printMemory writes one memory as a tab separated line. When here is set the distance
// from it is appended.
func printMemory(w io.Writer, m *model.Memory, here *orb.Point) {
	name := m.Name
	if name == "" {
		name = "(unnamed)"
	}
	photo := "-"
	if m.HasPhoto() {
		photo = "photo"
	}

	line := fmt.Sprintf("%s\t%s\t%.6f,%.6f\t%s\t%s",
		m.ID, m.CapturedAt.Local().Format(time.DateTime), m.Latitude, m.Longitude, name, photo)
	if here != nil {
		line += fmt.Sprintf("\t%s", formatDistance(geo.Distance(*here, m.Point())))
	}
	fmt.Fprintln(w, line)
}

func formatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0fm", meters)
	}
	return fmt.Sprintf("%.1fkm", meters/1000)
}

// sortByDate returns memories ordered newest first
func sortByDate(memories []*model.Memory) []*model.Memory {
	sorted := make([]*model.Memory, len(memories))
	copy(sorted, memories)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CapturedAt.After(sorted[j].CapturedAt)
	})
	return sorted
}

func printRegion(w io.Writer, bound orb.Bound) {
	fmt.Fprintf(w, "region: %s\n", wkt.MarshalString(bound.ToPolygon()))
}
