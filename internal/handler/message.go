package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/workbridge/api/internal/middleware"
	"github.com/workbridge/api/internal/model"
	"github.com/workbridge/api/internal/service"
	"github.com/workbridge/api/pkg/response"
)

type MessageHandler struct {
	service   *service.MessageService
	validator *validator.Validate
}

func NewMessageHandler(svc *service.MessageService, v *validator.Validate) *MessageHandler {
	return &MessageHandler{
		service:   svc,
		validator: v,
	}
}

// Send handles POST /api/messages
// @Summary      Send a message
// @Description  Append a message to a job conversation. Only the job's client and accepted freelancer may write.
// @Tags         Messages
// @Accept       json
// @Produce      json
// @Param        request body model.SendMessageRequest true "Message"
// @Success      201 {object} response.Envelope
// @Failure      400 {object} response.Envelope
// @Failure      403 {object} response.Envelope
// @Failure      422 {object} response.Envelope
// @Security     BearerAuth
// @Router       /api/messages [post]
func (h *MessageHandler) Send(c *fiber.Ctx) error {
	var req model.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	msg, err := h.service.Send(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Created(c, "Message sent", msg)
}

// Inbox handles GET /api/messages/inbox
// @Summary      List conversations
// @Description  The caller's conversations grouped by job with unread counts
// @Tags         Messages
// @Produce      json
// @Success      200 {object} response.Envelope
// @Security     BearerAuth
// @Router       /api/messages/inbox [get]
func (h *MessageHandler) Inbox(c *fiber.Ctx) error {
	summaries, err := h.service.Inbox(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, "", summaries)
}

// UnreadCount handles GET /api/messages/unread
// @Summary      Count unread messages
// @Tags         Messages
// @Produce      json
// @Success      200 {object} response.Envelope
// @Security     BearerAuth
// @Router       /api/messages/unread [get]
func (h *MessageHandler) UnreadCount(c *fiber.Ctx) error {
	count, err := h.service.UnreadCount(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, "", fiber.Map{"unread": count})
}

// Conversation handles GET /api/messages/:jobId
// @Summary      Read a conversation
// @Description  A job's full message history for one of its parties. Marks incoming messages read.
// @Tags         Messages
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} response.Envelope
// @Failure      403 {object} response.Envelope
// @Failure      404 {object} response.Envelope
// @Security     BearerAuth
// @Router       /api/messages/{jobId} [get]
func (h *MessageHandler) Conversation(c *fiber.Ctx) error {
	conversation, err := h.service.Conversation(c.Context(), c.Params("jobId"), middleware.GetUserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, "", conversation)
}
