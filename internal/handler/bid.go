package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/workbridge/api/internal/middleware"
	"github.com/workbridge/api/internal/model"
	"github.com/workbridge/api/internal/service"
	"github.com/workbridge/api/pkg/response"
)

type BidHandler struct {
	service   *service.BidService
	validator *validator.Validate
}

func NewBidHandler(svc *service.BidService, v *validator.Validate) *BidHandler {
	return &BidHandler{
		service:   svc,
		validator: v,
	}
}

// Submit handles POST /api/jobs/:id/bids
// @Summary      Bid on a job
// @Description  Submit a pending bid on an open job. One bid per freelancer per job.
// @Tags         Bids
// @Accept       json
// @Produce      json
// @Param        id path string true "Job ID"
// @Param        request body model.SubmitBidRequest true "Bid details"
// @Success      201 {object} response.Envelope
// @Failure      400 {object} response.Envelope
// @Failure      403 {object} response.Envelope
// @Failure      409 {object} response.Envelope
// @Security     BearerAuth
// @Router       /api/jobs/{id}/bids [post]
func (h *BidHandler) Submit(c *fiber.Ctx) error {
	if middleware.GetUserRole(c) != model.RoleFreelancer {
		return response.Forbidden(c, "Only freelancers can bid")
	}

	var req model.SubmitBidRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	bid, err := h.service.Submit(c.Context(), c.Params("id"), middleware.GetUserID(c), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Created(c, "Bid submitted", bid)
}

// ListForJob handles GET /api/jobs/:id/bids
// @Summary      List a job's bids
// @Description  The job owner lists bids, cheapest first
// @Tags         Bids
// @Produce      json
// @Param        id path string true "Job ID"
// @Success      200 {object} response.Envelope
// @Failure      403 {object} response.Envelope
// @Security     BearerAuth
// @Router       /api/jobs/{id}/bids [get]
func (h *BidHandler) ListForJob(c *fiber.Ctx) error {
	bids, err := h.service.ListForJob(c.Context(), c.Params("id"), middleware.GetUserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, "", bids)
}

// Mine handles GET /api/bids/mine
// @Summary      List my bids
// @Tags         Bids
// @Produce      json
// @Success      200 {object} response.Envelope
// @Security     BearerAuth
// @Router       /api/bids/mine [get]
func (h *BidHandler) Mine(c *fiber.Ctx) error {
	bids, err := h.service.ListMine(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, "", bids)
}

// Get handles GET /api/bids/:id
// @Summary      Get a bid
// @Tags         Bids
// @Produce      json
// @Param        id path string true "Bid ID"
// @Success      200 {object} response.Envelope
// @Failure      403 {object} response.Envelope
// @Failure      404 {object} response.Envelope
// @Security     BearerAuth
// @Router       /api/bids/{id} [get]
func (h *BidHandler) Get(c *fiber.Ctx) error {
	bid, err := h.service.Get(c.Context(), c.Params("id"), middleware.GetUserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, "", bid)
}

// Accept handles POST /api/bids/:id/accept
// @Summary      Accept a bid
// @Description  Bind the job to this bid's freelancer and reject sibling pending bids
// @Tags         Bids
// @Produce      json
// @Param        id path string true "Bid ID"
// @Success      200 {object} response.Envelope
// @Failure      403 {object} response.Envelope
// @Failure      409 {object} response.Envelope
// @Failure      422 {object} response.Envelope
// @Security     BearerAuth
// @Router       /api/bids/{id}/accept [post]
func (h *BidHandler) Accept(c *fiber.Ctx) error {
	bid, err := h.service.Accept(c.Context(), c.Params("id"), middleware.GetUserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, "Bid accepted", bid)
}

// Reject handles POST /api/bids/:id/reject
// @Summary      Reject a bid
// @Tags         Bids
// @Produce      json
// @Param        id path string true "Bid ID"
// @Success      200 {object} response.Envelope
// @Failure      403 {object} response.Envelope
// @Failure      422 {object} response.Envelope
// @Security     BearerAuth
// @Router       /api/bids/{id}/reject [post]
func (h *BidHandler) Reject(c *fiber.Ctx) error {
	if err := h.service.Reject(c.Context(), c.Params("id"), middleware.GetUserID(c)); err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, "Bid rejected", nil)
}

// Withdraw handles POST /api/bids/:id/withdraw
// @Summary      Withdraw a bid
// @Description  Retract the caller's own pending bid
// @Tags         Bids
// @Produce      json
// @Param        id path string true "Bid ID"
// @Success      200 {object} response.Envelope
// @Failure      403 {object} response.Envelope
// @Failure      422 {object} response.Envelope
// @Security     BearerAuth
// @Router       /api/bids/{id}/withdraw [post]
func (h *BidHandler) Withdraw(c *fiber.Ctx) error {
	if err := h.service.Withdraw(c.Context(), c.Params("id"), middleware.GetUserID(c)); err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, "Bid withdrawn", nil)
}
