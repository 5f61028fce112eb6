package models

import "time"

// Attachment is one binary resource tied to a venue's price list.
type Attachment struct {
	URL  string
	Path string
}

// RunSummary holds the overall result of one entity run.
type RunSummary struct {
	Entity       string
	StartTime    time.Time
	EndTime      time.Time
	TotalURLs    int
	Attempted    int
	Succeeded    int
	Failed       int
	Skipped      int
	Duplicates   int
	Interrupted  bool
	FailedURLs   []string
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
}

// Duration reports how long the run took.
func (s RunSummary) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}
