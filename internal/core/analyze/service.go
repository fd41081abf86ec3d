package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storyboard/internal/browser"
	"storyboard/internal/config"
	"storyboard/internal/core/extract"
	"storyboard/internal/core/job"
	"storyboard/internal/core/queue"
	"storyboard/internal/core/storage"
	"storyboard/internal/logger"
	"storyboard/internal/platform/tasks"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// retryInstruction re-requests a complete result after a generation error.
	retryInstruction = "按照要求输出完整分镜提示词"

	maxGenerationRetries = 3

	completionPoll    = 2 * time.Second
	completionTimeout = 300 * time.Second
	settleDelay       = 2 * time.Second

	uploadConfirmTimeout   = 30 * time.Second
	runEnableTimeoutURL    = 60 * time.Second
	runEnableTimeoutUpload = 120 * time.Second
)

// Service orchestrates a batch run: queue load, session connect, per-item
// state machine, persistence and completion marking.
type Service struct {
	log       *logger.Logger
	cfg       config.Config
	jobs      *job.JobService
	extractor *extract.Service
	store     *storage.Service

	// indirection points so tests can run the loop without redis or a browser
	newRepository func(kind queue.Kind, sourcePath string) (queue.Repository, error)
	connect       func(ctx context.Context, sessionID string, policy browser.DelayPolicy) (browser.Driver, func(), error)
}

func NewService(cfg config.Config, jobs *job.JobService, extractor *extract.Service, store *storage.Service) *Service {
	s := &Service{
		log:           logger.New("AnalysisOrchestrator"),
		cfg:           cfg,
		jobs:          jobs,
		extractor:     extractor,
		store:         store,
		newRepository: queue.NewRepository,
	}
	s.connect = func(ctx context.Context, sessionID string, policy browser.DelayPolicy) (browser.Driver, func(), error) {
		connector := browser.NewConnector(cfg.ControlAPIURL)
		session, err := connector.Connect(ctx, sessionID, policy)
		if err != nil {
			connector.Close()
			return nil, nil, err
		}
		return session, connector.Close, nil
	}
	return s
}

// Enqueue registers a pending job and hands the run to the worker.
func (s *Service) Enqueue(ctx context.Context, t *tasks.Client, req Request) (string, error) {
	jobID := uuid.NewString()
	payload, err := json.Marshal(Payload{JobID: jobID, Request: req})
	if err != nil {
		return "", err
	}
	if err := s.jobs.InitPending(ctx, jobID); err != nil {
		return "", fmt.Errorf("init job: %w", err)
	}
	if err := t.Enqueue(asynq.NewTask(TaskTypeAnalyze, payload), "default", s.cfg.TaskMaxRetries); err != nil {
		return "", fmt.Errorf("enqueue task: %w", err)
	}
	s.log.LogInfof("job %s enqueued (%s queue from %s)", jobID, req.Kind, req.SourcePath)
	return jobID, nil
}

// HandleTask is the asynq entry point for a batch run.
func (s *Service) HandleTask(ctx context.Context, t *asynq.Task) error {
	var p Payload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal analyze payload: %w", err)
	}
	if err := s.jobs.SetProcessing(ctx, p.JobID); err != nil {
		s.log.LogWarnf("job %s: set processing: %v", p.JobID, err)
	}

	outcome, err := s.Run(ctx, p.JobID, p.Request)
	if err != nil {
		s.log.LogError(fmt.Sprintf("job %s failed", p.JobID), err)
		if outcome == nil {
			outcome = &job.RunOutcome{Message: err.Error()}
		} else {
			outcome.Message = err.Error()
		}
		return s.jobs.Complete(ctx, p.JobID, job.StatusFailed, outcome)
	}
	return s.jobs.Complete(ctx, p.JobID, job.StatusCompleted, outcome)
}

// Run executes the whole batch. Queue and connection failures are fatal and
// returned as errors; everything past that point is contained per item.
func (s *Service) Run(ctx context.Context, jobID string, req Request) (*job.RunOutcome, error) {
	repo, err := s.newRepository(req.Kind, req.SourcePath)
	if err != nil {
		return nil, err
	}
	items, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}
	if len(items) == 0 {
		s.publishProgress(ctx, jobID, "no pending items, nothing to do")
		return &job.RunOutcome{Message: "all items already complete"}, nil
	}

	policy := browser.DelayPolicy{MinSeconds: req.MinDelaySeconds, MaxSeconds: req.MaxDelaySeconds}
	driver, closeSession, err := s.connect(ctx, req.SessionID, policy)
	if err != nil {
		return nil, err
	}
	defer closeSession()

	outcome := &job.RunOutcome{ItemsTotal: len(items)}
	for i, item := range items {
		// Cancellation is honored between items only: a started item always
		// runs to its terminal state.
		if ctx.Err() != nil {
			s.publishProgress(ctx, jobID, fmt.Sprintf("cancelled before item %d/%d", i+1, len(items)))
			outcome.Message = "cancelled"
			break
		}

		s.publishProgress(ctx, jobID, fmt.Sprintf("[%d/%d] processing %s", i+1, len(items), item.Title))
		report := s.processItem(ctx, driver, item, req)

		if report.State == job.ItemSaved {
			outcome.ItemsSaved++
			if err := repo.MarkComplete(ctx, item); err != nil {
				// Output exists on disk, so a lost marker only costs a
				// duplicate analysis on the next run.
				s.log.LogWarnf("mark complete %s: %v", item.Title, err)
				report.Degraded = true
				report.Warnings = append(report.Warnings, fmt.Sprintf("queue update failed: %v", err))
			}
		}
		outcome.PerItem = append(outcome.PerItem, report)
		s.publishProgress(ctx, jobID, fmt.Sprintf("[%d/%d] %s: %s", i+1, len(items), item.Title, report.State))
	}

	s.log.LogSuccessf("run finished: %d/%d saved", outcome.ItemsSaved, outcome.ItemsTotal)
	return outcome, nil
}

// publishProgress is fire-and-forget; with no job store wired nobody is
// listening and lines are simply dropped.
func (s *Service) publishProgress(ctx context.Context, jobID, line string) {
	if s.jobs != nil {
		s.jobs.PublishProgress(ctx, jobID, line)
	}
}

// processItem drives one work item through the page: navigate, prompt,
// attach, run, wait, retry on generation errors, extract, persist. Always
// returns a terminal report, never panics the batch.
func (s *Service) processItem(ctx context.Context, d browser.Driver, item queue.WorkItem, req Request) job.ItemReport {
	report := job.ItemReport{Title: item.Title, State: job.ItemFailed}
	warn := func(msg string) {
		s.log.LogWarnf("%s: %s", item.Title, msg)
		report.Degraded = true
		report.Warnings = append(report.Warnings, msg)
	}

	if err := d.Navigate(ctx, s.cfg.StudioURL); err != nil {
		report.Error = fmt.Sprintf("navigate: %v", err)
		return report
	}
	d.Sleep()

	if err := d.Fill(browser.RolePromptInput, req.Prompt); err != nil {
		report.Error = fmt.Sprintf("fill prompt: %v", err)
		return report
	}
	d.Sleep()

	if !d.Click(browser.RoleAttachMenu, "attachment menu") {
		warn("attachment menu click missed")
	}
	d.Sleep()

	runTimeout := runEnableTimeoutURL
	switch item.Kind {
	case queue.KindYouTube:
		if !d.Click(browser.RoleYouTubeOption, "YouTube Video option") {
			warn("YouTube option click missed")
		}
		d.Sleep()
		if err := d.Fill(browser.RoleURLField, item.MediaRef); err != nil {
			report.Error = fmt.Sprintf("fill url: %v", err)
			return report
		}
		d.Sleep()
		if !d.Click(browser.RoleSaveButton, "Save") {
			warn("save click missed")
		}
		d.Sleep()
	case queue.KindLocal:
		runTimeout = runEnableTimeoutUpload
		if err := d.AttachFile(browser.RoleUploadButton, item.MediaRef); err != nil {
			report.Error = fmt.Sprintf("attach file: %v", err)
			return report
		}
		if err := d.WaitVisible(browser.RoleUploadedChunk, uploadConfirmTimeout); err != nil {
			warn("upload confirmation not detected, continuing")
		}
	default:
		report.Error = fmt.Sprintf("unknown item kind %q", item.Kind)
		return report
	}

	if err := d.WaitVisible(browser.RoleRunButton, runTimeout); err != nil {
		warn("run control never became enabled, clicking anyway")
	}
	if !d.Click(browser.RoleRunButton, "Run") {
		report.Error = "run click missed"
		return report
	}
	d.Sleep()

	if !s.waitForCompletion(d) {
		warn("completion wait timed out")
	}

	attempts := 0
	for attempts < maxGenerationRetries && d.Visible(browser.RoleErrorBadge) {
		attempts++
		s.log.LogWarnf("%s: generation error, retry %d/%d", item.Title, attempts, maxGenerationRetries)
		d.Pause(completionPoll, 2*completionPoll)
		s.retryGeneration(d)
		if !s.waitForCompletion(d) {
			warn(fmt.Sprintf("completion wait timed out on retry %d", attempts))
		}
	}
	if attempts >= maxGenerationRetries {
		report.Error = fmt.Sprintf("generation failed after %d retries", maxGenerationRetries)
		return report
	}

	// Give the result area a moment to finish rendering
	d.Pause(settleDelay, settleDelay)

	raw, err := s.extractor.Extract(d)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	result := AnalysisResult{
		SourceRef:   item.MediaRef,
		Title:       item.Title,
		RawContent:  raw,
		ExtractedAt: time.Now(),
	}

	saved := s.store.Save(result.Title, result.RawContent, req.OutputPath)
	if !saved.Success {
		if saved.NoRows {
			report.State = job.ItemSkippedNoData
		}
		report.Error = saved.Reason
		return report
	}

	report.State = job.ItemSaved
	report.OutputPath = saved.OutputPath
	return report
}

// waitForCompletion polls for the generation-in-progress indicator to clear.
// Returns true the moment it is absent, false after the ceiling.
func (s *Service) waitForCompletion(d browser.Driver) bool {
	deadline := time.Now().Add(completionTimeout)
	for {
		if !d.Visible(browser.RoleStopButton) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		d.Pause(completionPoll, completionPoll)
	}
}

// retryGeneration asks the model again for the complete result.
func (s *Service) retryGeneration(d browser.Driver) {
	if err := d.Fill(browser.RolePromptInput, retryInstruction); err != nil {
		s.log.LogWarnf("retry instruction fill: %v", err)
		return
	}
	d.Sleep()
	if !d.Click(browser.RoleRunButton, "Run (retry)") {
		s.log.LogWarn("retry run click missed")
	}
	d.Sleep()
}
