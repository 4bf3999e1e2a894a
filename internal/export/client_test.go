package export

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slideforge/slideforge-backend/internal/decks"
)

func TestClient_Submit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/exports" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "pptx", req.Format)
		assert.Len(t, req.Slides, 2)

		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"id":"exp-1","status":"queued"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	status, err := c.Submit(context.Background(), Request{
		DeckID: "d1",
		Title:  "Deck",
		Format: "pptx",
		Slides: []decks.Slide{{Number: 1}, {Number: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, "exp-1", status.ID)
	assert.Equal(t, "queued", status.Status)
}

func TestClient_SubmitRejectsUnknownFormat(t *testing.T) {
	c := NewClient("http://localhost:0")
	_, err := c.Submit(context.Background(), Request{DeckID: "d1", Format: "docx"})
	assert.Error(t, err)
}

func TestClient_Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/exports/exp-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":"exp-1","status":"done","url":"https://files/exp-1.pptx"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	status, err := c.Status(context.Background(), "exp-1")
	require.NoError(t, err)
	assert.Equal(t, "done", status.Status)
	assert.NotEmpty(t, status.URL)
}

func TestClient_StatusUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(server.URL)
	_, err := c.Status(context.Background(), "exp-broken")
	assert.Error(t, err)
}
