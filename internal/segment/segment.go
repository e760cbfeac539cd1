package segment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode"

	"earnings-insights-go/internal/logger"
	"github.com/sirupsen/logrus"
)

// Segmenter splits transcript text into ordered sentences. When a remote
// sentence-boundary service is configured it is tried first; any failure
// falls back to the punctuation splitter so a run never dies on segmentation.
type Segmenter struct {
	url    string
	client *http.Client
	log    *logrus.Entry
}

func New(serviceURL string) *Segmenter {
	return &Segmenter{
		url:    strings.TrimRight(serviceURL, "/"),
		client: &http.Client{Timeout: 30 * time.Second},
		log:    logger.Component("segment"),
	}
}

type segmentRequest struct {
	Text string `json:"text"`
}
type segmentResponse struct {
	Sentences []string `json:"sentences"`
}

// Split returns the sentences of text in document order, empty fragments
// dropped. Invalid UTF-8 is repaired best-effort before splitting. An empty
// or whitespace-only blob yields an empty slice.
func (s *Segmenter) Split(ctx context.Context, text string) []string {
	text = strings.TrimSpace(strings.ToValidUTF8(text, ""))
	if text == "" {
		return nil
	}
	if s.url != "" {
		if sents, err := s.remote(ctx, text); err == nil && len(sents) > 0 {
			return sents
		} else if err != nil {
			s.log.WithError(err).Warn("segmentation service unavailable, using fallback splitter")
		}
	}
	return naiveSplit(text)
}

func (s *Segmenter) remote(ctx context.Context, text string) ([]string, error) {
	payload, _ := json.Marshal(segmentRequest{Text: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+"/segment", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{resp.Status}
	}
	var out segmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	cleaned := make([]string, 0, len(out.Sentences))
	for _, sent := range out.Sentences {
		if t := strings.TrimSpace(sent); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return cleaned, nil
}

type statusError struct{ status string }

func (e *statusError) Error() string { return "segment service: " + e.status }

// naiveSplit cuts after sentence-terminal punctuation followed by whitespace.
// RE2 has no lookbehind, so the split is done by index instead of regexp.
// A blob with no terminal punctuation comes back as one long sentence.
func naiveSplit(text string) []string {
	rs := []rune(text)
	var out []string
	start := 0
	for i := 0; i < len(rs); i++ {
		if !isTerminal(rs[i]) {
			continue
		}
		j := i + 1
		for j < len(rs) && isTerminal(rs[j]) {
			j++
		}
		if j < len(rs) && !unicode.IsSpace(rs[j]) {
			i = j - 1
			continue
		}
		if frag := strings.TrimSpace(string(rs[start:j])); frag != "" {
			out = append(out, frag)
		}
		for j < len(rs) && unicode.IsSpace(rs[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(rs) {
		if frag := strings.TrimSpace(string(rs[start:])); frag != "" {
			out = append(out, frag)
		}
	}
	return out
}

func isTerminal(r rune) bool { return r == '.' || r == '!' || r == '?' }
