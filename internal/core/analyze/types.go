package analyze

import (
	"time"

	"storyboard/internal/core/queue"
)

const TaskTypeAnalyze = "analyze:task"

// Request is the configuration surface for one batch run, supplied by the
// front-end that collects it.
type Request struct {
	Kind            queue.Kind `json:"kind"`
	SourcePath      string     `json:"source_path"`
	OutputPath      string     `json:"output_path"`
	Prompt          string     `json:"prompt"`
	SessionID       string     `json:"session_id"`
	MinDelaySeconds float64    `json:"min_delay_seconds"`
	MaxDelaySeconds float64    `json:"max_delay_seconds"`
}

type Payload struct {
	JobID   string  `json:"job_id"`
	Request Request `json:"request"`
}

// AnalysisResult is one successful extraction. Created by the extractor,
// consumed exactly once by the persistence layer.
type AnalysisResult struct {
	SourceRef   string    `json:"source_ref"`
	Title       string    `json:"title"`
	RawContent  string    `json:"raw_content"`
	ExtractedAt time.Time `json:"extracted_at"`
}

type JobResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
