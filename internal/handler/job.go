package handler

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/workbridge/api/internal/middleware"
	"github.com/workbridge/api/internal/model"
	"github.com/workbridge/api/internal/service"
	"github.com/workbridge/api/pkg/response"
)

type JobHandler struct {
	service   *service.JobService
	validator *validator.Validate
}

func NewJobHandler(svc *service.JobService, v *validator.Validate) *JobHandler {
	return &JobHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/jobs
// @Summary      Post a job
// @Description  Create a new job posting for the authenticated client
// @Tags         Jobs
// @Accept       json
// @Produce      json
// @Param        request body model.CreateJobRequest true "Job details"
// @Success      201 {object} response.Envelope
// @Failure      400 {object} response.Envelope
// @Failure      401 {object} response.Envelope
// @Failure      403 {object} response.Envelope
// @Security     BearerAuth
// @Router       /api/jobs [post]
func (h *JobHandler) Create(c *fiber.Ctx) error {
	if middleware.GetUserRole(c) != model.RoleClient {
		return response.Forbidden(c, "Only clients can post jobs")
	}

	var req model.CreateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	job, err := h.service.Create(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Created(c, "Job posted", job)
}

// Get handles GET /api/jobs/:id
// @Summary      Get a job
// @Tags         Jobs
// @Produce      json
// @Param        id path string true "Job ID"
// @Success      200 {object} response.Envelope
// @Failure      404 {object} response.Envelope
// @Security     BearerAuth
// @Router       /api/jobs/{id} [get]
func (h *JobHandler) Get(c *fiber.Ctx) error {
	job, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, "", job)
}

// Search handles GET /api/jobs
// @Summary      Browse open jobs
// @Description  List open jobs matching the filter, excluding the caller's own postings
// @Tags         Jobs
// @Produce      json
// @Param        keyword query string false "Title/description keyword"
// @Param        skills query string false "Comma-separated skills"
// @Param        minBudget query number false "Minimum budget"
// @Param        maxBudget query number false "Maximum budget"
// @Param        experienceLevel query string false "entry|intermediate|expert"
// @Param        urgent query bool false "Urgent jobs only"
// @Success      200 {object} response.Envelope
// @Security     BearerAuth
// @Router       /api/jobs [get]
func (h *JobHandler) Search(c *fiber.Ctx) error {
	filter := model.JobSearchFilter{
		Keyword:    c.Query("keyword"),
		Experience: model.ExperienceLevel(c.Query("experienceLevel")),
	}
	if skills := c.Query("skills"); skills != "" {
		for _, s := range strings.Split(skills, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter.Skills = append(filter.Skills, s)
			}
		}
	}
	if v := c.Query("minBudget"); v != "" {
		filter.MinBudget, _ = strconv.ParseFloat(v, 64)
	}
	if v := c.Query("maxBudget"); v != "" {
		filter.MaxBudget, _ = strconv.ParseFloat(v, 64)
	}
	filter.UrgentOnly = c.QueryBool("urgent")

	jobs, err := h.service.Search(c.Context(), middleware.GetUserID(c), filter)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, "", jobs)
}

// Mine handles GET /api/jobs/mine
// @Summary      List my postings
// @Tags         Jobs
// @Produce      json
// @Success      200 {object} response.Envelope
// @Security     BearerAuth
// @Router       /api/jobs/mine [get]
func (h *JobHandler) Mine(c *fiber.Ctx) error {
	jobs, err := h.service.ListMine(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, "", jobs)
}

// Dashboard handles GET /api/jobs/dashboard
// @Summary      Freelancer dashboard
// @Description  Available jobs, active bids, accepted and completed jobs for the caller
// @Tags         Jobs
// @Produce      json
// @Success      200 {object} response.Envelope
// @Failure      403 {object} response.Envelope
// @Security     BearerAuth
// @Router       /api/jobs/dashboard [get]
func (h *JobHandler) Dashboard(c *fiber.Ctx) error {
	if middleware.GetUserRole(c) != model.RoleFreelancer {
		return response.Forbidden(c, "Only freelancers have a dashboard")
	}

	dashboard, err := h.service.Dashboard(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, "", dashboard)
}

// Update handles PUT /api/jobs/:id
// @Summary      Edit a job
// @Description  Update an open job owned by the caller
// @Tags         Jobs
// @Accept       json
// @Produce      json
// @Param        id path string true "Job ID"
// @Param        request body model.UpdateJobRequest true "Fields to change"
// @Success      200 {object} response.Envelope
// @Failure      403 {object} response.Envelope
// @Failure      422 {object} response.Envelope
// @Security     BearerAuth
// @Router       /api/jobs/{id} [put]
func (h *JobHandler) Update(c *fiber.Ctx) error {
	var req model.UpdateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	job, err := h.service.Update(c.Context(), c.Params("id"), middleware.GetUserID(c), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, "Job updated", job)
}

// Delete handles DELETE /api/jobs/:id
// @Summary      Delete a job
// @Description  Remove an open job owned by the caller along with its bids and messages
// @Tags         Jobs
// @Param        id path string true "Job ID"
// @Success      204
// @Failure      403 {object} response.Envelope
// @Failure      422 {object} response.Envelope
// @Security     BearerAuth
// @Router       /api/jobs/{id} [delete]
func (h *JobHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), c.Params("id"), middleware.GetUserID(c)); err != nil {
		return serviceError(c, err)
	}
	return response.NoContent(c)
}

// MarkReady handles POST /api/jobs/:id/ready
// @Summary      Mark a job complete
// @Description  The accepted freelancer marks an in-progress job as completed
// @Tags         Jobs
// @Produce      json
// @Param        id path string true "Job ID"
// @Success      200 {object} response.Envelope
// @Failure      403 {object} response.Envelope
// @Failure      422 {object} response.Envelope
// @Security     BearerAuth
// @Router       /api/jobs/{id}/ready [post]
func (h *JobHandler) MarkReady(c *fiber.Ctx) error {
	if err := h.service.MarkReady(c.Context(), c.Params("id"), middleware.GetUserID(c)); err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, "Job marked as completed", nil)
}
