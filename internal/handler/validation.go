package handler

import (
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/workbridge/api/internal/service"
	"github.com/workbridge/api/pkg/response"
)

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}

// serviceError maps service sentinels onto the HTTP error taxonomy
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		return response.ValidationError(c, err.Error(), nil)
	case errors.Is(err, service.ErrNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrInvalidState):
		return response.InvalidState(c, err.Error())
	case errors.Is(err, service.ErrConflict):
		return response.Conflict(c, err.Error())
	default:
		log.Printf("Unhandled service error: %v", err)
		return response.ServiceError(c, "Something went wrong")
	}
}
