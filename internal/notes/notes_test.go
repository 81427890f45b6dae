package notes

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/dice/internal/grid"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		notes    []Note
		want     []int
		wantRest []Note
	}{
		{
			name:  "kick on the downbeats",
			notes: []Note{{Pitch: 36, StartTime: 0, Duration: 0.25}, {Pitch: 36, StartTime: 1, Duration: 0.25}},
			want:  []int{1, 1, 5, 1},
		},
		{
			name:  "rounds to nearest step",
			notes: []Note{{Pitch: 38, StartTime: 0.27}},
			want:  []int{2, 3},
		},
		{
			name:  "last cell",
			notes: []Note{{Pitch: 51, StartTime: 3.75}},
			want:  []int{16, 16},
		},
		{
			name: "outside grid kept in rest",
			notes: []Note{
				{Pitch: 35, StartTime: 0},
				{Pitch: 52, StartTime: 0},
				{Pitch: 40, StartTime: 4},
				{Pitch: 40, StartTime: 3.9},
				{Pitch: 40, StartTime: -0.5},
				{Pitch: 40, StartTime: 0.5, Velocity: 100},
			},
			want: []int{3, 5},
			wantRest: []Note{
				{Pitch: 35, StartTime: 0},
				{Pitch: 52, StartTime: 0},
				{Pitch: 40, StartTime: 4},
				{Pitch: 40, StartTime: 3.9},
				{Pitch: 40, StartTime: -0.5},
			},
		},
		{
			name:  "empty",
			notes: nil,
			want:  []int{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rest := Encode(tt.notes, grid.DefaultDims)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("coords mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantRest, rest); diff != "" {
				t.Errorf("rest mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	got, err := Decode([]int{1, 1, 16, 16, 5, 3})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := []Note{
		{Pitch: 36, StartTime: 0, Duration: 0.25},
		{Pitch: 51, StartTime: 3.75, Duration: 0.25},
		{Pitch: 38, StartTime: 1, Duration: 0.25},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
	}

	if _, err := Decode([]int{1, 2, 3}); !errors.Is(err, grid.ErrInvalidEncoding) {
		t.Errorf("odd length error = %v, want ErrInvalidEncoding", err)
	}

	empty, err := Decode(nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("Decode(nil) = %v, %v", empty, err)
	}
}

func TestRoundTrip(t *testing.T) {
	coords := []int{1, 1, 3, 7, 16, 16}
	ns, err := Decode(coords)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	got, rest := Encode(ns, grid.DefaultDims)
	if len(rest) != 0 {
		t.Errorf("unexpected rest %v", rest)
	}
	if diff := cmp.Diff(coords, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCustomMapping(t *testing.T) {
	m := Mapping{StepsPerBeat: 2, BasePitch: 60}
	got, _ := m.Encode([]Note{{Pitch: 61, StartTime: 1.5}}, grid.Dims{Rows: 8, Cols: 4})
	if diff := cmp.Diff([]int{4, 2}, got); diff != "" {
		t.Errorf("Encode() mismatch (-want +got):\n%s", diff)
	}
	ns, _ := m.Decode(got)
	if ns[0].Duration != 0.5 || ns[0].Pitch != 61 || ns[0].StartTime != 1.5 {
		t.Errorf("Decode() = %+v", ns[0])
	}
}
