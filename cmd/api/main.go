package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/joho/godotenv"

	"earnings-insights-go/internal/classify"
	"earnings-insights-go/internal/config"
	"earnings-insights-go/internal/jobs"
	"earnings-insights-go/internal/logger"
	"earnings-insights-go/internal/pipeline"
	"earnings-insights-go/internal/result"
	"earnings-insights-go/internal/segment"
	"earnings-insights-go/internal/storage"
)

type analysisRequest struct {
	InputFile     string `json:"input_file"`
	OutputFile    string `json:"output_file,omitempty"`
	BatchSize     *int   `json:"batch_size,omitempty"`
	MAWindow      *int   `json:"ma_window,omitempty"`
	TrackMetadata bool   `json:"track_metadata,omitempty"`
}

type analysisResponse struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	OutputFile string `json:"output_file,omitempty"`
}

type app struct {
	cfg     config.Config
	store   *storage.Client
	jobs    jobs.Store
	runners map[result.Kind]*pipeline.Runner
}

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "earnings-insights-go").Info("starting service")

	cfg := config.Load()

	var store *storage.Client
	if cfg.SupabaseConfigured() {
		store = storage.New(cfg.SupabaseURL, cfg.SupabaseKey)
		log.Info("object store configured")
	} else {
		log.Warn("SUPABASE_URL/SUPABASE_KEY not set, storage endpoints disabled")
	}

	seg := segment.New(cfg.SegmenterURL)
	runners := map[result.Kind]*pipeline.Runner{}
	for kind, model := range map[result.Kind]string{
		result.KindRelevance:   cfg.RelevanceModel,
		result.KindSpecificity: cfg.SpecificityModel,
	} {
		clf := classify.New(cfg.HFAPIURL, model, cfg.HFToken)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := clf.LoadLabelMap(ctx); err != nil {
			log.WithError(err).WithField("model", model).Warn("label map unavailable, raw labels only")
		}
		cancel()
		runners[kind] = pipeline.NewRunner(seg, clf, store)
	}

	a := &app{cfg: cfg, store: store, jobs: jobs.NewMemoryStore(), runners: runners}

	mux := http.NewServeMux()

	// health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.New().WithRequest(r).Info("health check")
		writeJSON(w, http.StatusOK, map[string]any{
			"status":            "ok",
			"service":           "earnings-insights-go",
			"storage_enabled":   store != nil,
			"relevance_model":   cfg.RelevanceModel,
			"specificity_model": cfg.SpecificityModel,
		})
	})

	mux.HandleFunc("POST /analyze/relevance", a.handleAnalyze(result.KindRelevance))
	mux.HandleFunc("POST /analyze/specificity", a.handleAnalyze(result.KindSpecificity))

	mux.HandleFunc("GET /jobs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.jobs.List())
	})
	mux.HandleFunc("GET /jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		j, ok := a.jobs.Get(r.PathValue("id"))
		if !ok {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, j)
	})

	mux.HandleFunc("GET /transcripts", a.handleList(cfg.TranscriptsBucket))
	mux.HandleFunc("GET /sentiment", a.handleList(cfg.ResultsBucket))

	mux.HandleFunc("GET /sentiment/{name}", func(w http.ResponseWriter, r *http.Request) {
		if a.store == nil {
			http.Error(w, "storage not configured", http.StatusInternalServerError)
			return
		}
		name := r.PathValue("name")
		data, err := a.store.Download(r.Context(), cfg.ResultsBucket, name)
		if err != nil {
			http.Error(w, fmt.Sprintf("file not found: %v", err), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
		_, _ = w.Write(data)
	})

	mux.HandleFunc("GET /sentiment/{name}/data", func(w http.ResponseWriter, r *http.Request) {
		if a.store == nil {
			http.Error(w, "storage not configured", http.StatusInternalServerError)
			return
		}
		name := r.PathValue("name")
		data, err := a.store.Download(r.Context(), cfg.ResultsBucket, name)
		if err != nil {
			http.Error(w, fmt.Sprintf("file not found: %v", err), http.StatusNotFound)
			return
		}
		table, err := result.ParseCSV(bytes.NewReader(data))
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"filename":        name,
			"total_sentences": len(table.Rows),
			"data":            table.Records(),
		})
	})

	mux.HandleFunc("DELETE /sentiment/{name}", func(w http.ResponseWriter, r *http.Request) {
		if a.store == nil {
			http.Error(w, "storage not configured", http.StatusInternalServerError)
			return
		}
		name := r.PathValue("name")
		if err := a.store.Remove(r.Context(), cfg.ResultsBucket, []string{name}); err != nil {
			http.Error(w, fmt.Sprintf("failed to delete: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "deleted " + name})
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}

func (a *app) handleAnalyze(kind result.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("kind", kind)
		if a.store == nil {
			http.Error(w, "storage not configured", http.StatusInternalServerError)
			return
		}
		var req analysisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.InputFile == "" {
			reqLog.Warn("missing input_file")
			http.Error(w, "missing input_file", http.StatusBadRequest)
			return
		}

		job := a.jobs.Create(string(kind), req.InputFile, req.OutputFile)
		reqLog.WithField("job_id", job.ID).Info("analysis accepted")

		go a.runJob(job.ID, kind, req)

		writeJSON(w, http.StatusAccepted, analysisResponse{
			JobID:      job.ID,
			Status:     string(jobs.StatePending),
			Message:    fmt.Sprintf("%s analysis started", kind),
			OutputFile: req.OutputFile,
		})
	}
}

// runJob is the orchestrating caller of the pipeline, so retry policy lives
// here: transient classifier cold starts are retried with backoff, everything
// else fails the job immediately.
func (a *app) runJob(jobID string, kind result.Kind, req analysisRequest) {
	log := logger.Component("job").WithField("job_id", jobID)
	ctx := context.Background()
	a.jobs.MarkRunning(jobID)

	data, err := a.store.Download(ctx, a.cfg.TranscriptsBucket, req.InputFile)
	if err != nil {
		a.jobs.MarkFailed(jobID, &pipeline.InputError{Err: err})
		log.WithError(err).Warn("transcript download failed")
		return
	}

	window := config.EnvInt("MA_WINDOW", pipeline.DefaultWindow)
	if req.MAWindow != nil {
		window = *req.MAWindow
	}
	batch := classify.DefaultBatchSize
	if req.BatchSize != nil {
		batch = *req.BatchSize
	}
	params := pipeline.Params{
		Kind:          kind,
		Text:          string(data),
		InputName:     req.InputFile,
		BatchSize:     batch,
		Window:        window,
		LocalPath:     filepath.Join(os.TempDir(), jobID+".csv"),
		RemoteBucket:  a.cfg.ResultsBucket,
		RemoteName:    req.OutputFile,
		TrackMetadata: req.TrackMetadata,
		MetadataTable: a.cfg.MetadataTable,
	}

	var sum pipeline.Summary
	op := func() error {
		var runErr error
		sum, runErr = a.runners[kind].Run(ctx, params)
		if runErr != nil && !errors.Is(runErr, classify.ErrModelLoading) {
			return backoff.Permanent(runErr)
		}
		return runErr
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(op, bo); err != nil {
		a.jobs.MarkFailed(jobID, err)
		log.WithError(err).Warn("job failed")
		return
	}
	defer os.Remove(params.LocalPath)

	if sum.NothingToDo {
		a.jobs.MarkFailed(jobID, errors.New("nothing to process: transcript contains no sentences"))
		return
	}
	a.jobs.MarkCompleted(jobID, sum.RemoteName)
	log.WithField("sentences", sum.SentenceCount).WithField("output", sum.RemoteName).Info("job completed")
}

func (a *app) handleList(bucket string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.store == nil {
			http.Error(w, "storage not configured", http.StatusInternalServerError)
			return
		}
		files, err := a.store.List(r.Context(), bucket)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to list %s: %v", bucket, err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, files)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
