// Package notes converts between clip notes and grid coordinates. Rows are
// sixteenth-note steps and columns are drum-rack pads.
package notes

import (
	"fmt"
	"math"

	"github.com/banshee-data/dice/internal/grid"
)

// Note is one clip note as exchanged with the host.
type Note struct {
	Pitch     int     `json:"pitch"`
	StartTime float64 `json:"start_time"`
	Duration  float64 `json:"duration"`
	Velocity  float64 `json:"velocity,omitempty"`
	Mute      bool    `json:"mute,omitempty"`
}

// Mapping fixes the time resolution and the pitch of the first pad.
type Mapping struct {
	StepsPerBeat int `json:"steps_per_beat"`
	BasePitch    int `json:"base_pitch"`
}

// DefaultMapping is four steps per beat starting at C1, the first pad of a
// drum rack.
var DefaultMapping = Mapping{StepsPerBeat: 4, BasePitch: 36}

// Encode converts the notes that land inside d into a sparse coordinate list.
// Notes outside the grid are returned unchanged in rest, in input order.
func (m Mapping) Encode(ns []Note, d grid.Dims) (coords []int, rest []Note) {
	coords = make([]int, 0, 2*len(ns))
	for _, n := range ns {
		step := int(math.Round(n.StartTime * float64(m.StepsPerBeat)))
		pad := n.Pitch - m.BasePitch
		if n.StartTime < 0 || step >= d.Rows || pad < 0 || pad >= d.Cols {
			rest = append(rest, n)
			continue
		}
		coords = append(coords, step+1, pad+1)
	}
	return coords, rest
}

// Decode converts a sparse coordinate list into one note per pair, each one
// step long.
func (m Mapping) Decode(coords []int) ([]Note, error) {
	if len(coords)%2 != 0 {
		return nil, fmt.Errorf("%w: odd coordinate count %d", grid.ErrInvalidEncoding, len(coords))
	}
	steps := float64(m.StepsPerBeat)
	out := make([]Note, 0, len(coords)/2)
	for i := 0; i < len(coords); i += 2 {
		out = append(out, Note{
			StartTime: float64(coords[i]-1) / steps,
			Pitch:     coords[i+1] - 1 + m.BasePitch,
			Duration:  1 / steps,
		})
	}
	return out, nil
}

// Encode uses DefaultMapping.
func Encode(ns []Note, d grid.Dims) ([]int, []Note) { return DefaultMapping.Encode(ns, d) }

// Decode uses DefaultMapping.
func Decode(coords []int) ([]Note, error) { return DefaultMapping.Decode(coords) }
