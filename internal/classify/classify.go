package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"earnings-insights-go/internal/logger"
	"github.com/sirupsen/logrus"
)

// Label is the typed 3-class decision of the sentence classifiers.
// Unknown covers labels the model reported in a shape we could not resolve.
type Label int

const (
	LabelUnknown  Label = -1
	LabelNegative Label = 0
	LabelNeutral  Label = 1
	LabelPositive Label = 2
)

func (l Label) ID() int { return int(l) }

func labelFromID(id int) Label {
	if id >= 0 && id <= 2 {
		return Label(id)
	}
	return LabelUnknown
}

// Result is the classifier's verdict for one sentence.
type Result struct {
	RawLabel   string
	Label      Label
	LabelName  string
	Confidence float64
}

// ErrModelLoading marks a transient backend condition (inference API cold
// start). The pipeline fails fast on it; retrying is the caller's call.
var ErrModelLoading = errors.New("classifier model is loading")

const (
	DefaultBatchSize = 32
	DefaultMaxLength = 512
)

// Options control batching and per-sentence truncation.
type Options struct {
	BatchSize int
	MaxLength int
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MaxLength <= 0 {
		o.MaxLength = DefaultMaxLength
	}
	return o
}

// Classifier talks to a HuggingFace-style text-classification inference API.
type Classifier struct {
	apiURL string
	hubURL string
	model  string
	token  string
	labels map[int]string // id -> readable name, from the model config
	client *http.Client
	log    *logrus.Entry
}

func New(apiURL, model, token string) *Classifier {
	return &Classifier{
		apiURL: strings.TrimRight(apiURL, "/"),
		hubURL: "https://huggingface.co",
		model:  model,
		token:  token,
		client: &http.Client{Timeout: 60 * time.Second},
		log:    logger.Component("classify").WithField("model", model),
	}
}

// WithHubURL overrides where the model config is fetched from.
func (c *Classifier) WithHubURL(u string) *Classifier {
	c.hubURL = strings.TrimRight(u, "/")
	return c
}

func (c *Classifier) Model() string { return c.model }

type modelConfig struct {
	ID2Label map[string]string `json:"id2label"`
}

// LoadLabelMap resolves the model's declared id2label map once, so labels
// come back as a typed enum instead of string pattern matches per sentence.
// A missing config is tolerated: raw labels still resolve by their numeric
// suffix, anything else becomes Unknown.
func (c *Classifier) LoadLabelMap(ctx context.Context) error {
	u := fmt.Sprintf("%s/%s/resolve/main/config.json", c.hubURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model config %s: %s", c.model, resp.Status)
	}
	var cfg modelConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return fmt.Errorf("model config decode: %w", err)
	}
	labels := make(map[int]string, len(cfg.ID2Label))
	for k, v := range cfg.ID2Label {
		if id, err := strconv.Atoi(k); err == nil {
			labels[id] = v
		}
	}
	c.labels = labels
	c.log.WithField("labels", len(labels)).Info("label map resolved")
	return nil
}

type inferRequest struct {
	Inputs     []string        `json:"inputs"`
	Parameters inferParameters `json:"parameters"`
}
type inferParameters struct {
	Truncation bool `json:"truncation"`
	MaxLength  int  `json:"max_length"`
}
type candidate struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify runs the model over every sentence in contiguous batches of at
// most BatchSize, sequentially and in input order. The output has exactly one
// Result per input sentence, mirroring the flattened batch order. Any backend
// failure aborts the whole call.
func (c *Classifier) Classify(ctx context.Context, sentences []string, opts Options) ([]Result, error) {
	opts = opts.withDefaults()
	results := make([]Result, 0, len(sentences))
	for start := 0; start < len(sentences); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(sentences) {
			end = len(sentences)
		}
		batch, err := c.classifyBatch(ctx, sentences[start:end], opts)
		if err != nil {
			return nil, err
		}
		results = append(results, batch...)
	}
	return results, nil
}

func (c *Classifier) classifyBatch(ctx context.Context, batch []string, opts Options) ([]Result, error) {
	payload, _ := json.Marshal(inferRequest{
		Inputs:     batch,
		Parameters: inferParameters{Truncation: true, MaxLength: opts.MaxLength},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/models/"+c.model, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, fmt.Errorf("%w: %s", ErrModelLoading, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var out [][]candidate
	if err := json.Unmarshal(body, &out); err != nil {
		// single-input calls may come back as one flat candidate list
		var flat []candidate
		if err2 := json.Unmarshal(body, &flat); err2 == nil && len(batch) == 1 {
			out = [][]candidate{flat}
		} else {
			return nil, fmt.Errorf("inference decode: %w body=%s", err, string(body))
		}
	}
	if len(out) != len(batch) {
		return nil, fmt.Errorf("inference returned %d results for %d inputs", len(out), len(batch))
	}
	results := make([]Result, len(out))
	for i, cands := range out {
		results[i] = c.resolve(top(cands))
	}
	return results, nil
}

// top picks the highest-scoring candidate; the API usually sorts, but don't
// bet a row on it.
func top(cands []candidate) candidate {
	best := candidate{Label: "LABEL_0", Score: 0.0}
	for i, cd := range cands {
		if i == 0 || cd.Score > best.Score {
			best = cd
		}
	}
	return best
}

func (c *Classifier) resolve(cd candidate) Result {
	label := LabelUnknown
	if id, ok := parseLabelSuffix(cd.Label); ok {
		label = labelFromID(id)
	} else {
		for id, name := range c.labels {
			if strings.EqualFold(name, cd.Label) {
				label = labelFromID(id)
				break
			}
		}
	}
	name := cd.Label
	if readable, ok := c.labels[label.ID()]; ok && label != LabelUnknown {
		name = readable
	}
	return Result{RawLabel: cd.Label, Label: label, LabelName: name, Confidence: cd.Score}
}

func parseLabelSuffix(raw string) (int, bool) {
	const prefix = "LABEL_"
	if !strings.HasPrefix(raw, prefix) {
		return 0, false
	}
	id, err := strconv.Atoi(raw[len(prefix):])
	if err != nil {
		return 0, false
	}
	return id, true
}
