package analyze

import (
	"storyboard/internal/core/job"
	"storyboard/internal/core/queue"
	"storyboard/internal/platform/tasks"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	service *Service
	tasks   *tasks.Client
	jobs    *job.JobService
}

func NewHandler(service *Service, tasks *tasks.Client, jobs *job.JobService) *Handler {
	return &Handler{service: service, tasks: tasks, jobs: jobs}
}

func (h *Handler) HandleCreate(c *fiber.Ctx) error {
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid body"})
	}
	if msg := validate(&req); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
	}

	id, err := h.service.Enqueue(c.Context(), h.tasks, req)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.JSON(JobResponse{Success: true, JobID: id})
}

func (h *Handler) HandleGet(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "jobId is required"})
	}
	j, err := h.jobs.GetJobStatus(c.Context(), jobID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "not_found"})
	}
	return c.JSON(j)
}

// validate normalizes a request in place and returns a message for the first
// problem found, or "".
func validate(req *Request) string {
	switch req.Kind {
	case queue.KindYouTube, queue.KindLocal:
	default:
		return "kind must be youtube or local"
	}
	if req.SourcePath == "" {
		return "source_path is required"
	}
	if req.OutputPath == "" {
		return "output_path is required"
	}
	if req.Prompt == "" {
		return "prompt is required"
	}
	if req.SessionID == "" {
		return "session_id is required"
	}
	if req.MinDelaySeconds == 0 && req.MaxDelaySeconds == 0 {
		req.MinDelaySeconds, req.MaxDelaySeconds = 1, 3
	}
	if req.MinDelaySeconds < 0 || req.MinDelaySeconds >= req.MaxDelaySeconds {
		return "min_delay_seconds must be non-negative and below max_delay_seconds"
	}
	return ""
}
