package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/dice/internal/api"
	"github.com/banshee-data/dice/internal/httputil"
	"github.com/banshee-data/dice/internal/notes"
)

var (
	serverURL     = flag.String("server", "http://localhost:8080", "Server URL for client commands")
	clientTimeout = flag.Duration("timeout", 10*time.Second, "Timeout for client commands")
)

const clientUsage = `  transform ROW COL [ROW COL ...]   transform a coordinate list
  notes                             transform a JSON note array read from stdin
  params                            print the current parameters
  set NAME VALUE                    set threshold, noise_level or seed
  status                            print server status
  history [N]                       print the N most recent transforms
`

// httpClient is replaced in tests.
var httpClient httputil.HTTPClient

var errUsage = errors.New("usage error")

func runClient(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, *clientTimeout)
	defer cancel()

	c := api.NewClient(*serverURL, httpClient)
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "transform":
		coords := make([]int, len(rest))
		for i, a := range rest {
			n, err := strconv.Atoi(a)
			if err != nil {
				return fmt.Errorf("%w: transform: %q is not an integer", errUsage, a)
			}
			coords[i] = n
		}
		resp, err := c.Transform(ctx, coords)
		if err != nil {
			return err
		}
		parts := make([]string, len(resp.Coords))
		for i, v := range resp.Coords {
			parts[i] = strconv.Itoa(v)
		}
		_, err = fmt.Fprintln(out, strings.Join(parts, " "))
		return err

	case "notes":
		if in == nil {
			return fmt.Errorf("%w: notes: no input", errUsage)
		}
		var ns []notes.Note
		if err := json.NewDecoder(in).Decode(&ns); err != nil {
			return fmt.Errorf("notes: invalid JSON input: %w", err)
		}
		resp, err := c.Notes(ctx, ns)
		if err != nil {
			return err
		}
		return printJSON(out, resp)

	case "params":
		p, err := c.Params(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, p)

	case "set":
		if len(rest) != 2 {
			return fmt.Errorf("%w: set NAME VALUE", errUsage)
		}
		u, err := parseSet(rest[0], rest[1])
		if err != nil {
			return err
		}
		p, err := c.SetParams(ctx, u)
		if err != nil {
			return err
		}
		return printJSON(out, p)

	case "status":
		s, err := c.Status(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, s)

	case "history":
		limit := 0
		if len(rest) > 0 {
			n, err := strconv.Atoi(rest[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("%w: history: N must be a positive integer", errUsage)
			}
			limit = n
		}
		records, err := c.History(ctx, limit)
		if err != nil {
			return err
		}
		return printJSON(out, records)

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func parseSet(name, value string) (api.ParamsUpdate, error) {
	var u api.ParamsUpdate
	switch name {
	case "threshold", "noise_level", "noiseLevel":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return u, fmt.Errorf("%w: %s must be a number", errUsage, name)
		}
		if name == "threshold" {
			u.Threshold = &f
		} else {
			u.NoiseLevel = &f
		}
	case "seed":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return u, fmt.Errorf("%w: seed must be an integer", errUsage)
		}
		u.Seed = &n
	default:
		return u, fmt.Errorf("%w: unknown parameter %q", errUsage, name)
	}
	return u, nil
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
