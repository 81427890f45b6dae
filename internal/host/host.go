// Package host speaks the line protocol used by the music host: integer
// lists in, integer lists out, plus parameter get/set messages.
package host

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/dice/internal/monitoring"
	"github.com/banshee-data/dice/internal/pipeline"
	"github.com/banshee-data/dice/internal/serialmux"
)

// Parameter names as used on the wire.
const (
	ParamThreshold  = "threshold"
	ParamNoiseLevel = "noiseLevel"
	ParamSeed       = "seed"
)

// Shell reads requests from a serial mux and writes replies back to it.
type Shell struct {
	mux      serialmux.SerialMuxInterface
	pipeline *pipeline.Pipeline
	subID    string
	lines    chan string
}

// NewShell binds p to the lines of mux. The shell subscribes immediately and
// the mux waits for it rather than dropping requests, so create it before
// starting the mux's Monitor and then call Run.
func NewShell(mux serialmux.SerialMuxInterface, p *pipeline.Pipeline) *Shell {
	id, lines := mux.SubscribeBlocking()
	return &Shell{mux: mux, pipeline: p, subID: id, lines: lines}
}

// Run handles lines one at a time until ctx is cancelled or the mux closes.
func (s *Shell) Run(ctx context.Context) error {
	defer s.mux.Unsubscribe(s.subID)
	lines := s.lines

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			reply, ok := s.HandleLine(ctx, line)
			if !ok {
				continue
			}
			if err := s.mux.SendCommand(reply); err != nil {
				monitoring.Errorf("failed to write reply: %v", err)
			}
		}
	}
}

// HandleLine processes one message. ok is false when nothing should be sent
// back: setters, malformed lines and failed transforms.
func (s *Shell) HandleLine(ctx context.Context, line string) (reply string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", false
	}

	switch fields[0] {
	case "list":
		return s.transform(ctx, fields[1:])
	case ParamThreshold, ParamNoiseLevel, ParamSeed:
		if err := s.set(fields[0], fields[1:]); err != nil {
			monitoring.Logf("[Host] ignoring %q: %v", line, err)
		}
		return "", false
	case "get":
		if len(fields) != 2 {
			monitoring.Logf("[Host] ignoring %q: get takes one parameter name", line)
			return "", false
		}
		v, err := s.get(fields[1])
		if err != nil {
			monitoring.Logf("[Host] ignoring %q: %v", line, err)
			return "", false
		}
		return fields[1] + " " + v, true
	}

	if _, err := strconv.Atoi(fields[0]); err == nil {
		return s.transform(ctx, fields)
	}
	monitoring.Logf("[Host] ignoring unknown message %q", line)
	return "", false
}

func (s *Shell) transform(ctx context.Context, args []string) (string, bool) {
	coords, err := parseInts(args)
	if err != nil {
		monitoring.Errorf("malformed list: %v", err)
		return "", false
	}
	out, ok := s.pipeline.Handle(ctx, coords)
	if !ok {
		return "", false
	}
	return formatList(out), true
}

func (s *Shell) set(name string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%s takes exactly one value", name)
	}
	params := s.pipeline.Params()
	switch name {
	case ParamSeed:
		v, err := parseSeed(args[0])
		if err != nil {
			return err
		}
		params.SetSeed(v)
	case ParamThreshold, ParamNoiseLevel:
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, args[0], err)
		}
		if name == ParamThreshold {
			return params.SetThreshold(v)
		}
		return params.SetNoiseLevel(v)
	}
	return nil
}

func (s *Shell) get(name string) (string, error) {
	p := s.pipeline.Params().Snapshot()
	switch name {
	case ParamThreshold:
		return strconv.FormatFloat(p.Threshold, 'g', -1, 64), nil
	case ParamNoiseLevel:
		return strconv.FormatFloat(p.NoiseLevel, 'g', -1, 64), nil
	case ParamSeed:
		return strconv.FormatInt(p.Seed, 10), nil
	}
	return "", fmt.Errorf("unknown parameter %q", name)
}

// parseSeed accepts an integer or an integral float such as "3." that fits
// in an int64.
func parseSeed(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid seed %q: want an integer", s)
	}
	if f < -(1<<63) || f >= 1<<63 {
		return 0, fmt.Errorf("invalid seed %q: out of range", s)
	}
	return int64(f), nil
}

func parseInts(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func formatList(coords []int) string {
	var b strings.Builder
	b.WriteString("list")
	for _, c := range coords {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(c))
	}
	return b.String()
}
