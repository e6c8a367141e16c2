// Package report renders scored runs as the JSON report and the terminal
// summary table.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/zhaambo/NetscapeX-CLI/internal/analysis"
	"github.com/zhaambo/NetscapeX-CLI/internal/model"
)

// Build returns the report mapping of flow id to scored result.
func Build(run *model.Run) map[string]model.ScoredResult {
	out := make(map[string]model.ScoredResult, len(run.Results))
	for _, r := range run.Results {
		out[r.FlowID] = r
	}
	return out
}

// ErrDuplicateFlow is returned when a run holds two results with the same
// flow id; the report object cannot represent both.
var ErrDuplicateFlow = errors.New("report: duplicate flow id")

// Marshal encodes the report as an indented JSON object whose keys follow
// the flow first-seen order of the run.
func Marshal(run *model.Run) ([]byte, error) {
	if byID := Build(run); len(byID) != len(run.Results) {
		return nil, fmt.Errorf("%w: %d results, %d distinct ids", ErrDuplicateFlow, len(run.Results), len(byID))
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range run.Results {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(r.FlowID)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("report: encode %s: %w", r.FlowID, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("report: indent: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// WriteFile writes the JSON report to path.
func WriteFile(path string, run *model.Run) error {
	data, err := Marshal(run)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}

// Row is one line of the summary table.
type Row struct {
	FlowID     string            `json:"flow_id"`
	Src        string            `json:"src"`
	Dst        string            `json:"dst"`
	Threat     string            `json:"threat_type"`
	RiskScore  float64           `json:"risk_score"`
	Confidence float64           `json:"confidence"`
	Severity   analysis.Severity `json:"severity"`
}

// Summary returns one row per flow, highest risk first. Flows with equal
// risk keep their first-seen order.
func Summary(run *model.Run) []Row {
	rows := make([]Row, 0, len(run.Results))
	for _, r := range run.Results {
		rows = append(rows, Row{
			FlowID:     r.FlowID,
			Src:        r.Src,
			Dst:        r.Dst,
			Threat:     analysis.ThreatType(r.DetectionResult),
			RiskScore:  r.RiskScore,
			Confidence: r.Confidence,
			Severity:   analysis.SeverityFor(r.RiskScore),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].RiskScore > rows[j].RiskScore
	})
	return rows
}

const rowFormat = "%-20s | %-15s | %-15s | %-20s | %-9s\n"

// PrintSummary writes the summary table to w.
func PrintSummary(w io.Writer, rows []Row) error {
	header := fmt.Sprintf(rowFormat, "Flow ID", "Src", "Dst", "Threat Type", "Confidence")
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, dashes(len(header)-1)); err != nil {
		return err
	}
	for _, r := range rows {
		conf := strconv.FormatFloat(r.Confidence, 'f', -1, 64)
		if _, err := fmt.Fprintf(w, rowFormat, r.FlowID, r.Src, r.Dst, r.Threat, conf); err != nil {
			return err
		}
	}
	return nil
}

func dashes(n int) string {
	return string(bytes.Repeat([]byte{'-'}, n))
}
