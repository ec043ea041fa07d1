package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResultStatus describes one analyzer's outcome.
type ResultStatus string

const (
	ResultOK      ResultStatus = "ok"
	ResultSkipped ResultStatus = "skipped"
	ResultFailed  ResultStatus = "failed"
)

// Result is one analyzer's contribution to the report.
type Result struct {
	Analyzer string          `json:"analyzer"`
	Status   ResultStatus    `json:"status"`
	Detail   string          `json:"detail,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Report aggregates analyzer results in registration order.
type Report struct {
	Results []Result `json:"results"`
}

// ResultFor returns the result for a named analyzer.
func (r Report) ResultFor(name string) (Result, bool) {
	for _, result := range r.Results {
		if result.Analyzer == name {
			return result, true
		}
	}
	return Result{}, false
}

// Succeeded counts analyzers that produced data.
func (r Report) Succeeded() int {
	count := 0
	for _, result := range r.Results {
		if result.Status == ResultOK {
			count++
		}
	}
	return count
}

// Encode serializes the report for session storage.
func (r Report) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode analysis report: %w", err)
	}
	return string(data), nil
}

// DecodeReport restores a report from its session storage form.
func DecodeReport(raw string) (Report, error) {
	var r Report
	if strings.TrimSpace(raw) == "" {
		return r, fmt.Errorf("decode analysis report: empty payload")
	}
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return r, fmt.Errorf("decode analysis report: %w", err)
	}
	return r, nil
}
