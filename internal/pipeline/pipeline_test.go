package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earnings-insights-go/internal/classify"
	"earnings-insights-go/internal/result"
	"earnings-insights-go/internal/segment"
	"earnings-insights-go/internal/storage"
)

// fakeInference scores each sentence from a fixed table.
func fakeInference(t *testing.T, verdicts map[string][2]any) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Inputs []string `json:"inputs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		out := make([][]map[string]any, len(req.Inputs))
		for i, text := range req.Inputs {
			v, ok := verdicts[text]
			require.True(t, ok, "unexpected sentence %q", text)
			out[i] = []map[string]any{{"label": v[0], "score": v[1]}}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
}

func TestRunScenario(t *testing.T) {
	ts := fakeInference(t, map[string][2]any{
		"Revenue grew.":      {"LABEL_2", 0.9},
		"Margins fell.":      {"LABEL_0", 0.8},
		"Outlook is strong.": {"LABEL_2", 0.95},
	})
	defer ts.Close()

	out := filepath.Join(t.TempDir(), "relevance.csv")
	runner := NewRunner(segment.New(""), classify.New(ts.URL, "acme/relevance", ""), nil)
	sum, err := runner.Run(context.Background(), Params{
		Kind:      result.KindRelevance,
		Text:      "Revenue grew. Margins fell. Outlook is strong.",
		Window:    2,
		LocalPath: out,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.SentenceCount)
	assert.False(t, sum.NothingToDo)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	table, err := result.ParseCSV(f)
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)

	assert.InDelta(t, 0.967, table.Rows[0].Score01, 1e-6)
	assert.InDelta(t, 0.264, table.Rows[1].Score01, 1e-6)
	assert.InDelta(t, 0.9835, table.Rows[2].Score01, 1e-6)

	assert.True(t, math.IsNaN(table.Rows[0].MovingAvg))
	assert.InDelta(t, 0.6155, table.Rows[1].MovingAvg, 1e-6)
	assert.InDelta(t, 0.62375, table.Rows[2].MovingAvg, 1e-6)

	// ordering preserved end to end
	for i, r := range table.Rows {
		assert.Equal(t, i, r.SentenceIndex)
	}
	assert.Equal(t, "Revenue grew.", table.Rows[0].SentenceText)
}

func TestRunEmptyInputIsNothingToDo(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("classifier must not be invoked for empty input")
	}))
	defer ts.Close()

	out := filepath.Join(t.TempDir(), "out.csv")
	runner := NewRunner(segment.New(""), classify.New(ts.URL, "acme/relevance", ""), nil)
	sum, err := runner.Run(context.Background(), Params{
		Kind:      result.KindRelevance,
		Text:      "   \n ",
		Window:    2,
		LocalPath: out,
	})
	require.NoError(t, err)
	assert.True(t, sum.NothingToDo)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no output table for empty input")
}

func TestRunClassifierFailureWritesNothing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer ts.Close()

	out := filepath.Join(t.TempDir(), "out.csv")
	runner := NewRunner(segment.New(""), classify.New(ts.URL, "acme/relevance", ""), nil)
	_, err := runner.Run(context.Background(), Params{
		Kind:      result.KindRelevance,
		Text:      "One sentence. Two sentences.",
		LocalPath: out,
	})
	var cerr *ClassifierError
	require.ErrorAs(t, err, &cerr)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no partial table on classifier failure")
}

func TestRunUploadFailureIsNonTerminal(t *testing.T) {
	clfTS := fakeInference(t, map[string][2]any{"Only sentence.": {"LABEL_1", 0.5}})
	defer clfTS.Close()
	storeTS := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bucket gone", http.StatusInternalServerError)
	}))
	defer storeTS.Close()

	out := filepath.Join(t.TempDir(), "out.csv")
	runner := NewRunner(segment.New(""), classify.New(clfTS.URL, "acme/relevance", ""), storage.New(storeTS.URL, "k"))
	sum, err := runner.Run(context.Background(), Params{
		Kind:         result.KindRelevance,
		Text:         "Only sentence.",
		LocalPath:    out,
		RemoteBucket: "sentiment",
		RemoteName:   "out.csv",
	})
	require.NoError(t, err, "failed upload must not fail the run")
	assert.NotEmpty(t, sum.UploadErr)
	assert.Empty(t, sum.RemoteName)
	_, statErr := os.Stat(out)
	assert.NoError(t, statErr, "local table survives the failed upload")
}

func TestRunUploadsSameBytes(t *testing.T) {
	clfTS := fakeInference(t, map[string][2]any{"Only sentence.": {"LABEL_2", 0.75}})
	defer clfTS.Close()

	var uploaded []byte
	storeTS := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/storage/v1/object/sentiment/") {
			uploaded, _ = io.ReadAll(r.Body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer storeTS.Close()

	out := filepath.Join(t.TempDir(), "out.csv")
	runner := NewRunner(segment.New(""), classify.New(clfTS.URL, "acme/relevance", ""), storage.New(storeTS.URL, "k"))
	sum, err := runner.Run(context.Background(), Params{
		Kind:         result.KindRelevance,
		Text:         "Only sentence.",
		LocalPath:    out,
		RemoteBucket: "sentiment",
		RemoteName:   "named.csv",
	})
	require.NoError(t, err)
	assert.Equal(t, "named.csv", sum.RemoteName)

	local, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, string(local), string(uploaded))
}

func TestDeriveOutputName(t *testing.T) {
	now := time.Date(2026, 2, 3, 14, 5, 6, 0, time.UTC)
	assert.Equal(t, "tesla_q4_relevance_20260203_140506.csv",
		DeriveOutputName("calls/tesla_q4.txt", result.KindRelevance, now))
	assert.Equal(t, "transcript_specificity_20260203_140506.csv",
		DeriveOutputName("", result.KindSpecificity, now))
}
