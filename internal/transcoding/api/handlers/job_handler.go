package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"transcoding_service/internal/transcoding/app"
	"transcoding_service/internal/transcoding/domain"
	"transcoding_service/pkg"
	errprocess "transcoding_service/pkg/err"

	"github.com/gofiber/fiber/v2"
)

// defaultGrace DELETE /jobs grace period when ?grace is missing
const defaultGrace = 1000 * time.Millisecond

// JobHandler job http handler
type JobHandler struct {
	UseCase app.TranscodingUseCase
	// WatchInterval websocket snapshot interval
	WatchInterval time.Duration
}

// NewJobHandler create job handler
func NewJobHandler(uc app.TranscodingUseCase) *JobHandler {
	return &JobHandler{
		UseCase:       uc,
		WatchInterval: time.Second,
	}
}

// createJobReq POST /jobs payload
type createJobReq struct {
	URL string `json:"url"`
}

// Metrics redis health, 503 when redis can not be reached
func (h *JobHandler) Metrics(c *fiber.Ctx) error {
	m, err := h.UseCase.Metrics(c.UserContext())
	if err != nil {
		return errprocess.New(fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(m)
}

// Counts job count per state
func (h *JobHandler) Counts(c *fiber.Ctx) error {
	counts, err := h.UseCase.Counts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(counts)
}

// ListJobs GET /jobs?status=a,b&start=&end=&asc=
func (h *JobHandler) ListJobs(c *fiber.Ctx) error {
	states, err := parseStates(c.Query("status"))
	if err != nil {
		return err
	}
	start, end, err := parseRange(c)
	if err != nil {
		return err
	}
	jobs, err := h.UseCase.List(c.UserContext(), domain.ListQuery{
		States: states,
		Start:  start,
		End:    end,
		Asc:    c.QueryBool("asc", false),
	})
	if err != nil {
		return err
	}
	return c.JSON(jobs)
}

// GetJob GET /jobs/:id
func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	job, err := h.UseCase.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"job": job})
}

// GetLogs GET /jobs/:id/logs?start=&end=
func (h *JobHandler) GetLogs(c *fiber.Ctx) error {
	start, end, err := parseRange(c)
	if err != nil {
		return err
	}
	logs, err := h.UseCase.Logs(c.UserContext(), c.Params("id"), start, end)
	if err != nil {
		return err
	}
	return c.JSON(logs)
}

// CreateJob POST /jobs { url }
func (h *JobHandler) CreateJob(c *fiber.Ctx) error {
	var req createJobReq
	if err := c.BodyParser(&req); err != nil {
		return &domain.InputError{Message: "Failed to create job. Invalid URL param", Err: err}
	}
	job, err := h.UseCase.Submit(c.UserContext(), domain.JobData{URL: req.URL})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "job added", "job": job})
}

// CancelJob PUT /jobs/:id/cancel
func (h *JobHandler) CancelJob(c *fiber.Ctx) error {
	job, err := h.UseCase.Cancel(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": fmt.Sprintf("cancelled job with id %s", job.ID)})
}

// CleanJobs DELETE /jobs?grace=1000&status=&limit=
func (h *JobHandler) CleanJobs(c *fiber.Ctx) error {
	states, err := parseStates(c.Query("status"))
	if err != nil {
		return err
	}
	grace := defaultGrace
	if raw := c.Query("grace"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return &domain.InputError{Message: fmt.Sprintf("invalid grace %q", raw), Err: err}
		}
		grace = time.Duration(ms) * time.Millisecond
	}
	limit, err := queryInt64(c, "limit", 0)
	if err != nil {
		return err
	}

	ids, err := h.UseCase.Clean(c.UserContext(), states, grace, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":     fmt.Sprintf("cleaned %d jobs", len(ids)),
		"deleted_ids": ids,
	})
}

// DeleteJob DELETE /jobs/:id
func (h *JobHandler) DeleteJob(c *fiber.Ctx) error {
	job, err := h.UseCase.Delete(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": fmt.Sprintf("deleted job with id %s", job.ID)})
}

// parseStates comma separated state names, empty input means no filter
func parseStates(raw string) ([]domain.JobState, error) {
	var states []domain.JobState
	for _, name := range strings.Split(raw, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		s, ok := domain.ParseState(name)
		if !ok {
			return nil, &domain.InputError{Message: fmt.Sprintf("unknown status %q", name)}
		}
		if !pkg.Contains(states, s) {
			states = append(states, s)
		}
	}
	return states, nil
}

func parseRange(c *fiber.Ctx) (int64, int64, error) {
	start, err := queryInt64(c, "start", 0)
	if err != nil {
		return 0, 0, err
	}
	end, err := queryInt64(c, "end", -1)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func queryInt64(c *fiber.Ctx, key string, def int64) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &domain.InputError{Message: fmt.Sprintf("invalid %s %q", key, raw), Err: err}
	}
	return v, nil
}
