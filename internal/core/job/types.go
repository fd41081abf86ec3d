package job

// Job represents internal run storage (not exposed verbatim in the API)
type Job struct {
	JobID   string    `json:"job_id"`
	Type    Type      `json:"type"`
	Status  Status    `json:"status"`
	Results JobResult `json:"results,omitempty"`
}

// Type for internal job classification
type Type string

const (
	TypeAnalyze Type = "analyze"
)

// Status for internal job tracking
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Internal job result storage
type JobResult struct {
	AnalyzeResult *RunOutcome `json:"analyze_result,omitempty"`
}

// ItemState is the terminal disposition of one work item. An item moves from
// pending to exactly one of these and is never reprocessed afterwards.
type ItemState string

const (
	ItemSaved         ItemState = "saved"
	ItemSkippedNoData ItemState = "skipped-no-data"
	ItemFailed        ItemState = "failed"
)

// ItemReport records how a single work item ended. Degraded marks items that
// produced output despite non-fatal warnings (e.g. unverified upload).
type ItemReport struct {
	Title      string    `json:"title"`
	State      ItemState `json:"state"`
	Degraded   bool      `json:"degraded,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// RunOutcome is the terminal report for a whole batch run.
type RunOutcome struct {
	ItemsTotal int          `json:"items_total"`
	ItemsSaved int          `json:"items_saved"`
	PerItem    []ItemReport `json:"per_item,omitempty"`
	Message    string       `json:"message,omitempty"`
}
