package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dice/internal/db"
	"github.com/banshee-data/dice/internal/httputil"
	"github.com/banshee-data/dice/internal/notes"
	"github.com/banshee-data/dice/internal/pipeline"
)

func TestClient_RoundTrip(t *testing.T) {
	h := &fakeHistory{records: []db.TransformRecord{{ID: "r1"}}}
	s := setupTestServer(t, nil, WithHistory(h))
	srv := httptest.NewServer(s.ServeMux())
	defer srv.Close()

	c := NewClient(srv.URL+"/", nil)
	ctx := context.Background()

	tr, err := c.Transform(ctx, []int{3, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3}, tr.Coords)

	tr, err = c.Transform(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, tr.Coords)

	nr, err := c.Notes(ctx, []notes.Note{{Pitch: 37, StartTime: 0.5, Duration: 0.25}})
	require.NoError(t, err)
	assert.Equal(t, []notes.Note{{Pitch: 37, StartTime: 0.5, Duration: 0.25}}, nr.Notes)

	seed := int64(11)
	p, err := c.SetParams(ctx, ParamsUpdate{Seed: &seed})
	require.NoError(t, err)
	assert.Equal(t, pipeline.Params{Threshold: 0.5, Seed: 11}, p)

	p, err = c.Params(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(11), p.Seed)

	records, err := c.History(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, h.limit)
	require.Len(t, records, 1)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ready", st.Model.State)
}

func TestClient_Errors(t *testing.T) {
	s := setupTestServer(t, nil)
	srv := httptest.NewServer(s.ServeMux())
	defer srv.Close()
	c := NewClient(srv.URL, nil)

	_, err := c.Transform(context.Background(), []int{1})
	var se *httputil.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Contains(t, se.Message, "odd coordinate count")

	bad := -1.0
	_, err = c.SetParams(context.Background(), ParamsUpdate{NoiseLevel: &bad})
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
}

func TestClient_Mock(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusServiceUnavailable, `{"error":"inference: session is not initialized"}`)
	c := NewClient("http://dice.local:8080", mock)

	_, err := c.Transform(context.Background(), []int{1, 1})
	var se *httputil.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)

	req, body := mock.GetRequest(0)
	require.NotNil(t, req)
	assert.Equal(t, "http://dice.local:8080/api/transform", req.URL.String())
	assert.JSONEq(t, `{"coords":[1,1]}`, body)
}
