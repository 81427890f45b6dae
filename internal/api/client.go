package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/banshee-data/dice/internal/db"
	"github.com/banshee-data/dice/internal/httputil"
	"github.com/banshee-data/dice/internal/notes"
	"github.com/banshee-data/dice/internal/pipeline"
)

// Client calls a running dice server.
type Client struct {
	baseURL string
	http    httputil.HTTPClient
}

// NewClient returns a client for the server at baseURL. A nil c uses
// http.DefaultClient.
func NewClient(baseURL string, c httputil.HTTPClient) *Client {
	if c == nil {
		c = httputil.NewStandardClient(nil)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: c}
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	return httputil.DoJSON(ctx, c.http, method, c.baseURL+path, in, out)
}

func (c *Client) Transform(ctx context.Context, coords []int) (TransformResponse, error) {
	var resp TransformResponse
	if coords == nil {
		coords = []int{}
	}
	err := c.do(ctx, http.MethodPost, "/api/transform", TransformRequest{Coords: coords}, &resp)
	return resp, err
}

func (c *Client) Notes(ctx context.Context, ns []notes.Note) (NotesResponse, error) {
	var resp NotesResponse
	if ns == nil {
		ns = []notes.Note{}
	}
	err := c.do(ctx, http.MethodPost, "/api/notes", NotesRequest{Notes: ns}, &resp)
	return resp, err
}

func (c *Client) Params(ctx context.Context) (pipeline.Params, error) {
	var p pipeline.Params
	err := c.do(ctx, http.MethodGet, "/api/params", nil, &p)
	return p, err
}

func (c *Client) SetParams(ctx context.Context, u ParamsUpdate) (pipeline.Params, error) {
	var p pipeline.Params
	err := c.do(ctx, http.MethodPut, "/api/params", u, &p)
	return p, err
}

func (c *Client) History(ctx context.Context, limit int) ([]db.TransformRecord, error) {
	path := "/api/history"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var records []db.TransformRecord
	err := c.do(ctx, http.MethodGet, path, nil, &records)
	return records, err
}

func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var s StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &s)
	return s, err
}
