// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/hybridqa/internal/intent"
	"github.com/jeranaias/hybridqa/internal/util"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

// Result holds a complete benchmark run.
type Result struct {
	FullRoute  bool                    `json:"full_route"`
	StartTime  time.Time               `json:"start_time"`
	EndTime    time.Time               `json:"end_time"`
	Duration   time.Duration           `json:"duration"`
	Cases      []CaseResult            `json:"cases"`
	Accuracy   float64                 `json:"accuracy"`
	Escalated  int                     `json:"escalated"`
	Failed     int                     `json:"failed"`
	AvgLatency time.Duration           `json:"avg_latency"`
	ByIntent   map[string]*IntentStats `json:"by_intent"`
}

// CaseResult is the outcome of one case. Got is empty when the query was
// rejected before a decision was made.
type CaseResult struct {
	Query     string        `json:"query"`
	Want      string        `json:"want"`
	Got       string        `json:"got"`
	Correct   bool          `json:"correct"`
	Escalated bool          `json:"escalated"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
}

// IntentStats aggregates the cases labelled with one intent.
type IntentStats struct {
	Total      int           `json:"total"`
	Correct    int           `json:"correct"`
	AvgLatency time.Duration `json:"avg_latency"`
}

func (r *Result) computeAggregates() {
	r.ByIntent = make(map[string]*IntentStats, len(intent.Priority))
	r.Accuracy, r.Escalated, r.Failed, r.AvgLatency = 0, 0, 0, 0
	if len(r.Cases) == 0 {
		return
	}

	var total time.Duration
	correct := 0
	sums := make(map[string]time.Duration)
	for _, c := range r.Cases {
		s := r.ByIntent[c.Want]
		if s == nil {
			s = &IntentStats{}
			r.ByIntent[c.Want] = s
		}
		s.Total++
		sums[c.Want] += c.Latency
		total += c.Latency

		if c.Correct {
			s.Correct++
			correct++
		}
		if c.Escalated {
			r.Escalated++
		}
		if c.Error != "" {
			r.Failed++
		}
	}
	for want, s := range r.ByIntent {
		s.AvgLatency = sums[want] / time.Duration(s.Total)
	}
	r.Accuracy = float64(correct) / float64(len(r.Cases))
	r.AvgLatency = total / time.Duration(len(r.Cases))
}

// Misrouted returns the cases whose decision did not match the label.
func (r *Result) Misrouted() []CaseResult {
	var out []CaseResult
	for _, c := range r.Cases {
		if !c.Correct {
			out = append(out, c)
		}
	}
	return out
}

// Summary renders a short report.
func (r *Result) Summary() string {
	var sb strings.Builder
	mode := "decide"
	if r.FullRoute {
		mode = "full route"
	}
	fmt.Fprintf(&sb, "Routing benchmark (%s): %d cases in %s\n", mode, len(r.Cases), FormatDuration(r.Duration))
	fmt.Fprintf(&sb, "  accuracy:  %s\n", FormatAccuracy(r.Accuracy))
	fmt.Fprintf(&sb, "  escalated: %d\n", r.Escalated)
	fmt.Fprintf(&sb, "  failed:    %d\n", r.Failed)
	fmt.Fprintf(&sb, "  latency:   %s avg\n", FormatDuration(r.AvgLatency))

	for _, in := range intent.Priority {
		s, ok := r.ByIntent[in.String()]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "  %s %d/%d  %s avg\n",
			util.PadWidth(in.String(), len("conversational")), s.Correct, s.Total, FormatDuration(s.AvgLatency))
	}

	if miss := r.Misrouted(); len(miss) > 0 {
		sb.WriteString("Misrouted:\n")
		for _, c := range miss {
			got := c.Got
			if got == "" {
				got = "error: " + c.Error
			}
			fmt.Fprintf(&sb, "  %s  want %s, got %s\n", util.TruncateWidth(c.Query, 40), c.Want, got)
		}
	}
	return sb.String()
}

// FormatAccuracy formats a 0..1 ratio as a percentage.
func FormatAccuracy(a float64) string {
	return fmt.Sprintf("%.1f%%", a*100)
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// =============================================================================
// RESULT STORAGE
// =============================================================================

// Storage saves benchmark results as JSON files in one directory.
type Storage struct {
	dir string
}

// NewStorage creates a storage rooted at dir.
func NewStorage(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create benchmark directory: %w", err)
	}
	return &Storage{dir: dir}, nil
}

// Save writes result and returns the file path.
func (s *Storage) Save(result *Result) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	name := fmt.Sprintf("routing_%s.json", result.StartTime.Format("20060102_150405"))
	path := filepath.Join(s.dir, name)
	if err := util.AtomicWriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}
	return path, nil
}

// Load reads a result saved by Save.
func (s *Storage) Load(name string) (*Result, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse result: %w", err)
	}
	return &r, nil
}
