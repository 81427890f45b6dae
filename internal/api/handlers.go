package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/dice/internal/grid"
	"github.com/banshee-data/dice/internal/httputil"
	"github.com/banshee-data/dice/internal/notes"
	"github.com/banshee-data/dice/internal/pipeline"
	"github.com/banshee-data/dice/internal/version"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

type TransformRequest struct {
	Coords []int `json:"coords"`
}

type TransformResponse struct {
	ID         string  `json:"id"`
	Coords     []int   `json:"coords"`
	Active     int     `json:"active"`
	DurationMs float64 `json:"duration_ms"`
}

type NotesRequest struct {
	Notes []notes.Note `json:"notes"`
}

type NotesResponse struct {
	ID    string       `json:"id"`
	Notes []notes.Note `json:"notes"`
	Rest  []notes.Note `json:"rest"`
}

// ParamsUpdate is a partial parameter change; nil fields keep their value.
type ParamsUpdate struct {
	Threshold  *float64 `json:"threshold,omitempty"`
	NoiseLevel *float64 `json:"noise_level,omitempty"`
	Seed       *int64   `json:"seed,omitempty"`
}

func (u ParamsUpdate) apply(p *pipeline.Params) {
	if u.Threshold != nil {
		p.Threshold = *u.Threshold
	}
	if u.NoiseLevel != nil {
		p.NoiseLevel = *u.NoiseLevel
	}
	if u.Seed != nil {
		p.Seed = *u.Seed
	}
}

type ModelStatus struct {
	ModelInfo
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

type LastTransform struct {
	ID     string    `json:"id"`
	Time   time.Time `json:"time"`
	Active int       `json:"active"`
	Mean   float64   `json:"mean"`
	StdDev float64   `json:"stddev"`
}

type StatusResponse struct {
	Version       version.Info    `json:"version"`
	Model         ModelStatus     `json:"model"`
	Grid          grid.Dims       `json:"grid"`
	Params        pipeline.Params `json:"params"`
	UptimeSeconds float64         `json:"uptime_seconds"`
	Last          *LastTransform  `json:"last,omitempty"`
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req TransformRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	res, err := s.pipeline.TransformDetailed(r.Context(), req.Coords)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, TransformResponse{
		ID:         res.ID,
		Coords:     res.Output,
		Active:     res.Active,
		DurationMs: float64(res.Duration.Nanoseconds()) / 1e6,
	})
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req NotesRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	coords, rest := s.mapping.Encode(req.Notes, s.pipeline.Dims())
	res, err := s.pipeline.TransformDetailed(r.Context(), coords)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.mapping.Decode(res.Output)
	if err != nil {
		writeError(w, err)
		return
	}
	if rest == nil {
		rest = []notes.Note{}
	}
	httputil.WriteJSONOK(w, NotesResponse{ID: res.ID, Notes: out, Rest: rest})
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	store := s.pipeline.Params()
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, store.Snapshot())
	case http.MethodPut, http.MethodPatch:
		var u ParamsUpdate
		if err := httputil.DecodeJSON(w, r, &u); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		p, err := store.Update(u.apply)
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSONOK(w, p)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.history == nil {
		httputil.NotFound(w, "transform history is not enabled")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := s.history.RecentTransforms(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, records)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	resp := StatusResponse{
		Version:       version.Current(),
		Model:         ModelStatus{ModelInfo: s.model, State: "unknown"},
		Grid:          s.pipeline.Dims(),
		Params:        s.pipeline.Params().Snapshot(),
		UptimeSeconds: time.Since(s.started).Seconds(),
	}
	if s.engine != nil {
		resp.Model.State = s.engine.State().String()
		if err := s.engine.LoadErr(); err != nil {
			resp.Model.Error = err.Error()
		}
	}
	if last, ok := s.pipeline.Last(); ok {
		resp.Last = &LastTransform{
			ID:     last.ID,
			Time:   last.Time,
			Active: last.Active,
			Mean:   last.Mean,
			StdDev: last.StdDev,
		}
	}
	httputil.WriteJSONOK(w, resp)
}
