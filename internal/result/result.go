// Package result materializes scored sentences into the tabular output the
// dashboard consumes. The column set and its order are load-bearing for
// downstream plotting; change them and the charts go dark.
package result

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Kind selects which classification task produced the table; it only affects
// the score column names.
type Kind string

const (
	KindRelevance   Kind = "relevance"
	KindSpecificity Kind = "specificity"
)

// ParseKind validates a user-supplied kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindRelevance:
		return KindRelevance, nil
	case KindSpecificity:
		return KindSpecificity, nil
	}
	return "", fmt.Errorf("unknown analysis kind %q (want relevance or specificity)", s)
}

// nullMarker is written for absent moving-average cells. The legacy reader
// accepted both this token and an empty cell, so ParseCSV takes either.
const nullMarker = "None"

// Row is one sentence with its classification and derived scores.
// MovingAvg is NaN where the trailing window had insufficient history.
type Row struct {
	SentenceIndex int
	SentenceText  string
	RawLabel      string
	LabelID       int
	LabelName     string
	Score         float64
	Score01       float64
	ScoreNeg11    float64
	MovingAvg     float64
}

// Table is the ordered, index-stable row set of one pipeline run.
type Table struct {
	Kind Kind
	Rows []Row
}

// Header returns the exact column names for this table's kind.
func (t *Table) Header() []string {
	k := string(t.Kind)
	return []string{
		"sentence_index",
		"sentence_text",
		"raw_label",
		"label_id",
		"label_name",
		"score",
		k + "_0_1",
		k + "_-1_1",
		"ma_" + k + "_0_1",
	}
}

// WriteCSV serializes the table with all numerics rounded to 6 decimals.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header()); err != nil {
		return err
	}
	for _, r := range t.Rows {
		ma := nullMarker
		if !math.IsNaN(r.MovingAvg) {
			ma = formatScore(r.MovingAvg)
		}
		rec := []string{
			strconv.Itoa(r.SentenceIndex),
			r.SentenceText,
			r.RawLabel,
			strconv.Itoa(r.LabelID),
			r.LabelName,
			formatScore(r.Score),
			formatScore(r.Score01),
			formatScore(r.ScoreNeg11),
			ma,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the table to a local file.
func (t *Table) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := t.WriteCSV(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ParseCSV reads a previously written table back, inferring the kind from the
// header. Absent moving-average cells (empty or the null marker) come back as
// NaN.
func ParseCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty csv")
	}
	header := records[0]
	if len(header) != 9 {
		return nil, fmt.Errorf("unexpected column count %d", len(header))
	}
	var kind Kind
	switch {
	case header[6] == "relevance_0_1":
		kind = KindRelevance
	case header[6] == "specificity_0_1":
		kind = KindSpecificity
	default:
		return nil, fmt.Errorf("unrecognized score column %q", header[6])
	}
	t := &Table{Kind: kind, Rows: make([]Row, 0, len(records)-1)}
	for _, rec := range records[1:] {
		idx, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("sentence_index %q: %w", rec[0], err)
		}
		labelID, err := strconv.Atoi(rec[3])
		if err != nil {
			return nil, fmt.Errorf("label_id %q: %w", rec[3], err)
		}
		row := Row{
			SentenceIndex: idx,
			SentenceText:  rec[1],
			RawLabel:      rec[2],
			LabelID:       labelID,
			LabelName:     rec[4],
			MovingAvg:     math.NaN(),
		}
		if row.Score, err = strconv.ParseFloat(rec[5], 64); err != nil {
			return nil, fmt.Errorf("score %q: %w", rec[5], err)
		}
		if row.Score01, err = strconv.ParseFloat(rec[6], 64); err != nil {
			return nil, fmt.Errorf("%s %q: %w", header[6], rec[6], err)
		}
		if row.ScoreNeg11, err = strconv.ParseFloat(rec[7], 64); err != nil {
			return nil, fmt.Errorf("%s %q: %w", header[7], rec[7], err)
		}
		if rec[8] != "" && rec[8] != nullMarker {
			if row.MovingAvg, err = strconv.ParseFloat(rec[8], 64); err != nil {
				return nil, fmt.Errorf("%s %q: %w", header[8], rec[8], err)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Records returns JSON-ready row maps keyed by the column names, with absent
// moving averages as explicit nulls. Used by the /data endpoint.
func (t *Table) Records() []map[string]any {
	header := t.Header()
	out := make([]map[string]any, len(t.Rows))
	for i, r := range t.Rows {
		var ma any
		if !math.IsNaN(r.MovingAvg) {
			ma = Round6(r.MovingAvg)
		}
		out[i] = map[string]any{
			header[0]: r.SentenceIndex,
			header[1]: r.SentenceText,
			header[2]: r.RawLabel,
			header[3]: r.LabelID,
			header[4]: r.LabelName,
			header[5]: Round6(r.Score),
			header[6]: Round6(r.Score01),
			header[7]: Round6(r.ScoreNeg11),
			header[8]: ma,
		}
	}
	return out
}

// Round6 rounds to the table's declared 6-decimal precision.
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// formatScore renders a rounded value without trailing zero padding, matching
// the historical writer's output.
func formatScore(v float64) string {
	return strconv.FormatFloat(Round6(v), 'f', -1, 64)
}
