package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadUpserts(t *testing.T) {
	var gotPath, gotUpsert, gotCT, gotAuth string
	var gotBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		gotPath = r.URL.Path
		gotUpsert = r.Header.Get("x-upsert")
		gotCT = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := New(ts.URL, "service-key")
	err := c.Upload(context.Background(), "sentiment", "q4_relevance.csv", []byte("a,b\n1,2\n"), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, "/storage/v1/object/sentiment/q4_relevance.csv", gotPath)
	assert.Equal(t, "true", gotUpsert)
	assert.Equal(t, "text/csv", gotCT)
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, "a,b\n1,2\n", string(gotBody))
}

func TestDownload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/storage/v1/object/transcripts/call.txt", r.URL.Path)
		require.Equal(t, "service-key", r.Header.Get("apikey"))
		_, _ = w.Write([]byte("transcript body"))
	}))
	defer ts.Close()

	c := New(ts.URL, "service-key")
	data, err := c.Download(context.Background(), "transcripts", "call.txt")
	require.NoError(t, err)
	assert.Equal(t, "transcript body", string(data))
}

func TestDownloadMissing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
	}))
	defer ts.Close()

	c := New(ts.URL, "k")
	_, err := c.Download(context.Background(), "transcripts", "missing.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestList(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/storage/v1/object/list/sentiment", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"name": "a.csv", "metadata": map[string]any{"size": 120}},
			{"name": "b.csv", "metadata": map[string]any{"size": 7}},
		})
	}))
	defer ts.Close()

	c := New(ts.URL, "k")
	files, err := c.List(context.Background(), "sentiment")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.csv", files[0].Name)
	assert.EqualValues(t, 120, files[0].Metadata.Size)
}

func TestRemove(t *testing.T) {
	var body removeRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/storage/v1/object/sentiment", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := New(ts.URL, "k")
	require.NoError(t, c.Remove(context.Background(), "sentiment", []string{"old.csv"}))
	assert.Equal(t, []string{"old.csv"}, body.Prefixes)
}

func TestInsert(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/v1/processing_jobs", r.URL.Path)
		require.Equal(t, "return=minimal", r.Header.Get("Prefer"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	c := New(ts.URL, "k")
	err := c.Insert(context.Background(), "processing_jobs", map[string]any{"input_file": "call.txt", "status": "completed"})
	require.NoError(t, err)
	assert.Equal(t, "call.txt", got["input_file"])
}
