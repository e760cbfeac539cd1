// Package pipeline runs the sentence scoring flow end to end:
// segment -> classify -> map -> smooth -> materialize, strictly in sequence.
// Each run is self-contained; nothing survives in memory between runs.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"earnings-insights-go/internal/classify"
	"earnings-insights-go/internal/logger"
	"earnings-insights-go/internal/result"
	"earnings-insights-go/internal/score"
	"earnings-insights-go/internal/segment"
	"earnings-insights-go/internal/smooth"
	"earnings-insights-go/internal/storage"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

const DefaultWindow = 20

// Params describe one run. Text is the transcript; LocalPath is where the
// CSV lands. Remote upload happens only when RemoteBucket is set and a store
// is wired; RemoteName is derived from InputName when empty.
type Params struct {
	Kind      result.Kind
	Text      string
	InputName string

	BatchSize int
	MaxLength int
	Window    int

	LocalPath string
	XLSXPath  string

	RemoteBucket string
	RemoteName   string

	TrackMetadata bool
	MetadataTable string
}

// Summary reports what a run produced. UploadErr carries a failed
// best-effort remote upload alongside an otherwise successful run.
type Summary struct {
	Kind          result.Kind `json:"kind"`
	SentenceCount int         `json:"sentence_count"`
	MeanScore01   float64     `json:"mean_score_0_1"`
	LocalPath     string      `json:"local_path,omitempty"`
	XLSXPath      string      `json:"xlsx_path,omitempty"`
	RemoteName    string      `json:"remote_name,omitempty"`
	UploadErr     string      `json:"upload_error,omitempty"`
	NothingToDo   bool        `json:"nothing_to_do,omitempty"`
	DurationMs    int64       `json:"duration_ms"`
}

type Runner struct {
	segmenter  *segment.Segmenter
	classifier *classify.Classifier
	store      *storage.Client // nil when no object store is configured
	log        *logrus.Entry
}

func NewRunner(seg *segment.Segmenter, clf *classify.Classifier, store *storage.Client) *Runner {
	return &Runner{
		segmenter:  seg,
		classifier: clf,
		store:      store,
		log:        logger.Component("pipeline"),
	}
}

// Run executes one scoring pass. An empty segmentation result is the
// documented "nothing to process" terminal condition, not an error: the
// classifier is never invoked and no table is written.
func (r *Runner) Run(ctx context.Context, p Params) (Summary, error) {
	start := time.Now()
	log := r.log.WithField("kind", p.Kind)
	sum := Summary{Kind: p.Kind}

	sentences := r.segmenter.Split(ctx, p.Text)
	if len(sentences) == 0 {
		log.Info("nothing to process, no sentences in input")
		sum.NothingToDo = true
		sum.DurationMs = time.Since(start).Milliseconds()
		return sum, nil
	}
	log.WithField("sentences", len(sentences)).Info("segmentation complete")

	opts := classify.Options{BatchSize: p.BatchSize, MaxLength: p.MaxLength}
	verdicts, err := r.classifier.Classify(ctx, sentences, opts)
	if err != nil {
		return sum, &ClassifierError{Err: err}
	}
	if len(verdicts) != len(sentences) {
		return sum, &ClassifierError{Err: fmt.Errorf("%d results for %d sentences", len(verdicts), len(sentences))}
	}

	table := &result.Table{Kind: p.Kind, Rows: make([]result.Row, len(sentences))}
	series := make([]float64, len(sentences))
	for i, v := range verdicts {
		s01 := score.To01(v.Label, v.Confidence)
		series[i] = s01
		table.Rows[i] = result.Row{
			SentenceIndex: i,
			SentenceText:  sentences[i],
			RawLabel:      v.RawLabel,
			LabelID:       v.Label.ID(),
			LabelName:     v.LabelName,
			Score:         v.Confidence,
			Score01:       s01,
			ScoreNeg11:    score.ToNeg11(v.Label, v.Confidence),
			MovingAvg:     math.NaN(),
		}
	}

	window := p.Window
	if window < 0 {
		window = 0
	}
	ma := smooth.Trailing(series, window)
	for i := range table.Rows {
		table.Rows[i].MovingAvg = ma[i]
	}

	if p.LocalPath != "" {
		if err := table.SaveCSV(p.LocalPath); err != nil {
			return sum, &StorageError{Err: err}
		}
		sum.LocalPath = p.LocalPath
		log.WithFields(logrus.Fields{"rows": len(table.Rows), "path": p.LocalPath}).Info("wrote result table")
	}
	if p.XLSXPath != "" {
		if err := table.SaveXLSX(p.XLSXPath); err != nil {
			return sum, &StorageError{Err: err}
		}
		sum.XLSXPath = p.XLSXPath
	}

	sum.SentenceCount = len(table.Rows)
	sum.MeanScore01 = result.Round6(stat.Mean(series, nil))

	if r.store != nil && p.RemoteBucket != "" {
		name := p.RemoteName
		if name == "" {
			name = DeriveOutputName(p.InputName, p.Kind, time.Now())
		}
		if err := r.upload(ctx, p.RemoteBucket, name, table); err != nil {
			// best effort: the local table already stands
			log.WithError(err).Warn("remote upload failed")
			sum.UploadErr = err.Error()
		} else {
			sum.RemoteName = name
			if p.TrackMetadata && p.MetadataTable != "" {
				r.trackMetadata(ctx, p, name, len(table.Rows))
			}
		}
	}

	sum.DurationMs = time.Since(start).Milliseconds()
	return sum, nil
}

func (r *Runner) upload(ctx context.Context, bucket, name string, table *result.Table) error {
	var buf strings.Builder
	if err := table.WriteCSV(&buf); err != nil {
		return &StorageError{Err: err, Remote: true}
	}
	if err := r.store.Upload(ctx, bucket, name, []byte(buf.String()), "text/csv"); err != nil {
		return &StorageError{Err: err, Remote: true}
	}
	return nil
}

func (r *Runner) trackMetadata(ctx context.Context, p Params, outputName string, sentenceCount int) {
	record := map[string]any{
		"input_file":     p.InputName,
		"output_file":    outputName,
		"model":          r.classifier.Model(),
		"sentence_count": sentenceCount,
		"processed_at":   time.Now().UTC().Format(time.RFC3339),
		"status":         "completed",
	}
	if err := r.store.Insert(ctx, p.MetadataTable, record); err != nil {
		r.log.WithError(err).Warn("metadata insert failed")
	}
}

// DeriveOutputName builds the timestamped remote object name used when the
// caller did not pick one: <input base>_<kind>_<yyyymmdd_hhmmss>.csv.
func DeriveOutputName(inputName string, kind result.Kind, now time.Time) string {
	base := "transcript"
	if inputName != "" {
		base = strings.TrimSuffix(filepath.Base(inputName), filepath.Ext(inputName))
	}
	return fmt.Sprintf("%s_%s_%s.csv", base, kind, now.Format("20060102_150405"))
}
