package domain

import "time"

// RunStatistics counts per-file outcomes of one batch run. Mutated only by
// the orchestrator's collector, read by the caller after completion.
type RunStatistics struct {
	RunID              string    `json:"run_id"`
	FilesSeen          int       `json:"files_seen"`
	FilesParsed        int       `json:"files_parsed"`
	ParseFailures      int       `json:"parse_failures"`
	ValidationFailures int       `json:"validation_failures"`
	CacheHits          int       `json:"cache_hits"`
	FieldsDefaulted    int       `json:"fields_defaulted"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
}
